// Package inbox resolves inbox links to a confession and accepts anonymous
// replies for it.
package inbox

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/sujalbistaa/whispr/internal/models"
	"github.com/sujalbistaa/whispr/internal/views"
)

// QueryParam is the link parameter that carries the confession id.
const QueryParam = "inbox"

// DefaultConfirmation is how long the "sent" flag stays up after a reply.
const DefaultConfirmation = 3 * time.Second

// Backend is the slice of the store the inbox needs.
type Backend interface {
	Snapshot() []models.Confession
	RecordAnonymousMessage(ctx context.Context, targetID, text string) (models.AnonymousMessage, error)
}

// Router binds inbox ids to confessions.
type Router struct {
	backend      Backend
	clock        clock.Clock
	confirmation time.Duration
}

func NewRouter(b Backend, clk clock.Clock, confirmation time.Duration) *Router {
	if clk == nil {
		clk = clock.New()
	}
	if confirmation <= 0 {
		confirmation = DefaultConfirmation
	}
	return &Router{backend: b, clock: clk, confirmation: confirmation}
}

// Resolve returns the confession an inbox id points at. An unknown id
// yields no target; replies are still accepted for it.
func (r *Router) Resolve(id string) (models.Confession, bool) {
	return views.FindByID(r.backend.Snapshot(), id)
}

// Reply records an anonymous message for targetID.
func (r *Router) Reply(ctx context.Context, targetID, text string) (models.AnonymousMessage, error) {
	return r.backend.RecordAnonymousMessage(ctx, targetID, text)
}

// ShareLink builds the inbox link for a confession from the page URL.
func ShareLink(base string, confessionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	q := u.Query()
	q.Set(QueryParam, confessionID)
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// Open starts an inbox session for targetID.
func (r *Router) Open(targetID string) *Session {
	target, ok := r.Resolve(targetID)
	s := &Session{router: r, targetID: targetID}
	if ok {
		s.target = &target
	}
	return s
}

// Session is one visit to an inbox link. It tracks the transient "sent"
// confirmation that clears itself after a short delay.
type Session struct {
	router   *Router
	targetID string
	target   *models.Confession

	mu     sync.Mutex
	sent   bool
	timer  *clock.Timer
	closed bool
}

// Target returns the bound confession, if the id resolved.
func (s *Session) Target() (models.Confession, bool) {
	if s.target == nil {
		return models.Confession{}, false
	}
	return *s.target, true
}

// Send records a reply and raises the sent flag.
func (s *Session) Send(ctx context.Context, text string) (models.AnonymousMessage, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.AnonymousMessage{}, errors.New("inbox session closed")
	}

	msg, err := s.router.Reply(ctx, s.targetID, text)
	if msg.ID == "" {
		return msg, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return msg, err
	}
	s.sent = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.router.clock.AfterFunc(s.router.confirmation, s.clearSent)
	return msg, err
}

// Sent reports whether a reply was sent within the confirmation window.
func (s *Session) Sent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func (s *Session) clearSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.sent = false
}

// Close cancels the pending confirmation timer. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sent = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
