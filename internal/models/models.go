package models

// Kind is the medium a confession is dedicated through.
type Kind string

const (
	KindMusic Kind = "music"
	KindBook  Kind = "book"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindMusic || k == KindBook
}

// Confession represents a single anonymous dedication to a person through a
// song or a book. Only Likes and Comments change after creation.
type Confession struct {
	ID             string    `json:"id"`
	Type           Kind      `json:"type"`
	To             string    `json:"to"`
	SourceTitle    string    `json:"sourceTitle"`
	SourceSub      string    `json:"sourceSub"` // Artist or author
	DedicatedLines string    `json:"dedicatedLines"`
	Message        string    `json:"message"`
	Timestamp      int64     `json:"timestamp"` // Unix milliseconds
	Likes          int       `json:"likes"`
	Comments       []Comment `json:"comments"`
}

// Comment is a public reply appended under a confession.
type Comment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// AnonymousMessage is a private reply sent through an inbox link. TargetID
// is not checked against the confession collection.
type AnonymousMessage struct {
	ID        string `json:"id"`
	TargetID  string `json:"targetId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Suggestion is a candidate source returned by the suggestion service.
type Suggestion struct {
	Title string `json:"title"`
	Sub   string `json:"sub"`   // Artist or author
	Lines string `json:"lines"` // Lyric or quote
}
