package models

import "time"

// SeedConfessions returns the example feed a fresh install starts with.
// Timestamps are relative to now.
func SeedConfessions(now time.Time) []Confession {
	ms := now.UnixMilli()
	hour := time.Hour.Milliseconds()

	return []Confession{
		{
			ID:             "1",
			Type:           KindMusic,
			To:             "Sarah",
			SourceTitle:    "Mystery of Love",
			SourceSub:      "Sufjan Stevens",
			DedicatedLines: "The first time that you touched me, oh, will wonders ever cease?",
			Message:        "We see each other every day at the library. You're always lost in your music, but I'm always lost in thought about you.",
			Timestamp:      ms - hour,
			Likes:          42,
			Comments: []Comment{
				{ID: "c1", Text: "This is so sweet!", Timestamp: ms - 50*time.Minute.Milliseconds()},
			},
		},
		{
			ID:             "2",
			Type:           KindBook,
			To:             "Elias",
			SourceTitle:    "Normal People",
			SourceSub:      "Sally Rooney",
			DedicatedLines: "It's not like this with other people.",
			Message:        "I read this and immediately thought of that rainy afternoon in the park. You have a way of making the world feel quiet.",
			Timestamp:      ms - 2*hour,
			Likes:          128,
			Comments:       []Comment{},
		},
		{
			ID:             "3",
			Type:           KindMusic,
			To:             "Alex",
			SourceTitle:    "Nightcall",
			SourceSub:      "Kavinsky",
			DedicatedLines: "I am giving you a nightcall to tell you how I feel.",
			Message:        "Every time I drive home late, this song reminds me of our long talks on your porch.",
			Timestamp:      ms - 3*hour,
			Likes:          89,
			Comments:       []Comment{},
		},
	}
}

// Recommendation is a hand-picked source shown beside the feed.
type Recommendation struct {
	Title string `json:"title"`
	Sub   string `json:"sub"`
}

// Recommendations lists the "Famous Music" and "Timeless Reads" panels.
var Recommendations = map[Kind][]Recommendation{
	KindMusic: {
		{Title: "As It Was", Sub: "Harry Styles"},
		{Title: "Cruel Summer", Sub: "Taylor Swift"},
		{Title: "Die With A Smile", Sub: "Lady Gaga & Bruno Mars"},
	},
	KindBook: {
		{Title: "It Ends With Us", Sub: "Colleen Hoover"},
		{Title: "The Seven Husbands of Evelyn Hugo", Sub: "Taylor Jenkins Reid"},
		{Title: "Beach Read", Sub: "Emily Henry"},
	},
}

// Theme is a selectable colour scheme for the presentation layer.
type Theme struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

const DefaultTheme = "noir"

var Themes = []Theme{
	{ID: "noir", Name: "Noir", Color: "#09090b"},
	{ID: "paper", Name: "Paper", Color: "#ffffff"},
	{ID: "sepia", Name: "Sepia", Color: "#f8f5f2"},
	{ID: "midnight", Name: "Midnight", Color: "#0f172a"},
}

// IsTheme reports whether id names one of Themes.
func IsTheme(id string) bool {
	for _, t := range Themes {
		if t.ID == id {
			return true
		}
	}
	return false
}
