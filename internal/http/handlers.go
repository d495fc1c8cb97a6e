package http

import (
	"html"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/inbox"
	"github.com/sujalbistaa/whispr/internal/models"
	"github.com/sujalbistaa/whispr/internal/store"
	"github.com/sujalbistaa/whispr/internal/suggest"
	"github.com/sujalbistaa/whispr/internal/views"
)

// --- Configuration Constants ---
const (
	maxCommentLength = 500
	maxTopSources    = 20
	viewerHeader     = "X-Viewer-Id"
)

const maxCleanRounds = 8

var stripTags = bluemonday.StrictPolicy()

// clean removes markup from user text and trims it. Entities are decoded
// and the text sanitised again until nothing changes, so encoded tags are
// stripped too. Plain "&" and "<" that form no markup are stored as is.
func clean(s string) string {
	for range maxCleanRounds {
		next := html.UnescapeString(stripTags.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(stripTags.Sanitize(s))
}

// --- Structs for request binding ---
type SuggestionInput struct {
	Title string `json:"title" binding:"required,max=200"`
	Sub   string `json:"sub" binding:"max=200"`
	Lines string `json:"lines" binding:"max=1000"`
}

type CreateConfessionInput struct {
	Type       models.Kind     `json:"type" binding:"required,oneof=music book"`
	To         string          `json:"to" binding:"required,max=100"`
	Suggestion SuggestionInput `json:"suggestion"`
	Message    string          `json:"message" binding:"required,max=2000"`
}

type TextInput struct {
	Text string `json:"text" binding:"required,max=2000"`
}

type ThemeInput struct {
	ID string `json:"id" binding:"required"`
}

type SuggestInput struct {
	Query string      `json:"query" binding:"required,max=200"`
	Type  models.Kind `json:"type" binding:"required,oneof=music book"`
}

// --- Handlers ---
type Env struct {
	Store   *store.Store
	Inbox   *inbox.Router
	Suggest suggest.Collaborator
	Log     *zap.Logger
}

func (e *Env) ListConfessions(c *gin.Context) {
	mode, ok := views.ParseSortMode(c.Query("sort"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be one of all, popular, recent"})
		return
	}
	c.JSON(http.StatusOK, views.Query(e.Store.Snapshot(), c.Query("q"), mode))
}

func (e *Env) GetConfession(c *gin.Context) {
	confession, ok := views.FindByID(e.Store.Snapshot(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Confession not found"})
		return
	}
	c.JSON(http.StatusOK, confession)
}

func (e *Env) CreateConfession(c *gin.Context) {
	var input CreateConfessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	confession := models.Confession{
		Type:           input.Type,
		To:             clean(input.To),
		SourceTitle:    clean(input.Suggestion.Title),
		SourceSub:      clean(input.Suggestion.Sub),
		DedicatedLines: clean(input.Suggestion.Lines),
		Message:        clean(input.Message),
	}
	if confession.To == "" || confession.SourceTitle == "" || confession.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: recipient, source and message are required"})
		return
	}

	created, err := e.Store.AddConfession(c.Request.Context(), confession)
	if err != nil {
		e.fail(c, "create confession", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (e *Env) AddComment(c *gin.Context) {
	var input TextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	text := clean(input.Text)
	if utf8.RuneCountInString(text) > maxCommentLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment is too long"})
		return
	}

	comment, err := e.Store.AddComment(c.Request.Context(), c.Param("id"), text)
	if err != nil {
		e.fail(c, "add comment", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (e *Env) ToggleLike(c *gin.Context) {
	viewer := c.GetHeader(viewerHeader)
	if viewer == "" {
		viewer = c.ClientIP()
	}

	likes, liked, err := e.Store.ToggleLike(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		e.fail(c, "toggle like", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "likes": likes, "liked": liked})
}

func (e *Env) TopSources(c *gin.Context) {
	limit := views.DefaultTopSources
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTopSources {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 20"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, views.MostReferencedSources(e.Store.Snapshot(), limit))
}

func (e *Env) Stats(c *gin.Context) {
	snapshot := e.Store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"activeEchoes": views.ActiveEchoes(snapshot),
		"confessions":  len(snapshot),
		"messages":     len(e.Store.Messages()),
	})
}

func (e *Env) Recommendations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"music": models.Recommendations[models.KindMusic],
		"books": models.Recommendations[models.KindBook],
	})
}

func (e *Env) ListThemes(c *gin.Context) {
	c.JSON(http.StatusOK, models.Themes)
}

func (e *Env) GetTheme(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": e.Store.Theme()})
}

func (e *Env) SetTheme(c *gin.Context) {
	var input ThemeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := e.Store.SetTheme(c.Request.Context(), input.ID); err != nil {
		e.fail(c, "set theme", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": e.Store.Theme()})
}

func (e *Env) Suggestions(c *gin.Context) {
	var input SuggestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	res := e.Suggest.Suggest(c.Request.Context(), input.Query, input.Type)
	c.JSON(http.StatusOK, gin.H{"suggestions": res.Value, "fallback": res.Fallback})
}

func (e *Env) Refine(c *gin.Context) {
	var input TextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	res := e.Suggest.Refine(c.Request.Context(), input.Text)
	c.JSON(http.StatusOK, gin.H{"text": res.Value, "fallback": res.Fallback})
}

func (e *Env) GetInbox(c *gin.Context) {
	id := c.Param("id")
	link, err := inbox.ShareLink(requestBase(c), id)
	if err != nil {
		e.Log.Warn("failed to build share link", zap.Error(err))
	}

	resp := gin.H{"id": id, "target": nil, "shareLink": link}
	if target, ok := e.Inbox.Resolve(id); ok {
		resp["target"] = target
	}
	c.JSON(http.StatusOK, resp)
}

// SendAnonymousMessage records a reply through a one-request inbox session.
// "sent" only confirms the write; hiding the confirmation after the
// configured window is up to the client.
func (e *Env) SendAnonymousMessage(c *gin.Context) {
	var input TextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	session := e.Inbox.Open(c.Param("id"))
	defer session.Close()

	msg, err := session.Send(c.Request.Context(), clean(input.Text))
	if err != nil {
		e.fail(c, "send anonymous message", err)
		return
	}
	_, bound := session.Target()
	c.JSON(http.StatusCreated, gin.H{"message": msg, "sent": session.Sent(), "bound": bound})
}

// fail maps store errors onto HTTP responses.
func (e *Env) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrConfessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Confession not found"})
	case errors.Is(err, errs.ErrValidationSkipped):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrPersistence):
		e.Log.Warn(op+": not persisted", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Saved for now, but could not be written to storage", "retryable": true})
	case errors.Is(err, errs.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service is shutting down"})
	default:
		e.Log.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + op})
	}
}

func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/"
}
