// Package store holds the confession feed and the anonymous inbox in memory
// and writes every mutation through to the persistence layer.
//
// Published slices are never modified in place: each mutation builds a new
// slice and swaps it in. Readers may hold a snapshot for as long as they
// like but must not write to it.
package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/metrics"
	"github.com/sujalbistaa/whispr/internal/models"
	"github.com/sujalbistaa/whispr/internal/persist"
)

const defaultLikeSessionTTL = 24 * time.Hour

// Store is the single mutable resource of the service. Construct it once
// with New, call Init before use and Teardown on shutdown.
type Store struct {
	repo    *persist.Repository
	log     *zap.Logger
	metrics *metrics.Collector
	clock   clock.Clock
	newID   func() string
	likers  *cache.Cache

	mu          sync.RWMutex
	confessions []models.Confession
	messages    []models.AnonymousMessage
	theme       string
	closed      bool

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) { s.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithLikeSessionTTL sets how long a viewer's like is remembered.
func WithLikeSessionTTL(d time.Duration) Option {
	return func(s *Store) { s.likers = cache.New(d, 2*d) }
}

func New(repo *persist.Repository, opts ...Option) *Store {
	s := &Store{
		repo:        repo,
		log:         zap.NewNop(),
		clock:       clock.New(),
		newID:       uuid.NewString,
		likers:      cache.New(defaultLikeSessionTTL, 2*defaultLikeSessionTTL),
		confessions: []models.Confession{},
		messages:    []models.AnonymousMessage{},
		theme:       models.DefaultTheme,
		subs:        make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init hydrates the store from persistence. Read failures are logged and
// degrade to the seed feed, an empty inbox and the default theme.
func (s *Store) Init(ctx context.Context) error {
	confessions, err := s.repo.LoadConfessions(ctx)
	switch {
	case errors.Is(err, errs.ErrSlotMissing):
		s.log.Info("no saved confessions, starting from seed feed")
		confessions = models.SeedConfessions(s.clock.Now())
	case err != nil:
		s.metrics.PersistenceFailure("load_confessions")
		s.log.Warn("failed to load confessions, starting from seed feed", zap.Error(err))
		confessions = models.SeedConfessions(s.clock.Now())
	}

	messages, err := s.repo.LoadMessages(ctx)
	switch {
	case errors.Is(err, errs.ErrSlotMissing):
		messages = []models.AnonymousMessage{}
	case err != nil:
		s.metrics.PersistenceFailure("load_messages")
		s.log.Warn("failed to load anonymous messages", zap.Error(err))
		messages = []models.AnonymousMessage{}
	}

	theme, err := s.repo.LoadTheme(ctx)
	if err != nil && !errors.Is(err, errs.ErrSlotMissing) {
		s.metrics.PersistenceFailure("load_theme")
		s.log.Warn("failed to load theme", zap.Error(err))
	}
	if !models.IsTheme(theme) {
		theme = models.DefaultTheme
	}

	s.mu.Lock()
	s.confessions = confessions
	s.messages = messages
	s.theme = theme
	s.closed = false
	s.mu.Unlock()

	s.log.Info("store initialised",
		zap.Int("confessions", len(confessions)),
		zap.Int("messages", len(messages)),
		zap.String("theme", theme))
	s.notify()
	return nil
}

// Teardown closes the store. Later mutations return errs.ErrClosed and all
// subscription channels are closed.
func (s *Store) Teardown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.likers.Flush()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

// Snapshot returns the current confessions, newest first.
func (s *Store) Snapshot() []models.Confession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confessions
}

// Messages returns the current anonymous messages, newest first.
func (s *Store) Messages() []models.AnonymousMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages
}

func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Subscribe returns a channel that receives a value after confessions
// change. Notifications coalesce; the channel is closed on Teardown or when
// cancel is called.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// AddConfession prepends c to the feed and persists it. Callers validate
// the compose fields; only a missing id or timestamp is filled in here.
func (s *Store) AddConfession(ctx context.Context, c models.Confession) (models.Confession, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.Timestamp == 0 {
		c.Timestamp = s.clock.Now().UnixMilli()
	}
	if c.Comments == nil {
		c.Comments = []models.Comment{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Confession{}, errs.ErrClosed
	}
	next := make([]models.Confession, 0, len(s.confessions)+1)
	next = append(next, c)
	next = append(next, s.confessions...)
	err := s.commitConfessions(ctx, next)
	s.mu.Unlock()

	s.notify()
	return c, s.finish("add_confession", err, zap.String("confession_id", c.ID))
}

// AddComment appends a comment to the confession with the given id. Blank
// text or an unknown id is skipped without any write.
func (s *Store) AddComment(ctx context.Context, confessionID, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, s.skip("add_comment", errs.ErrEmptyText)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Comment{}, errs.ErrClosed
	}
	idx := s.indexOf(confessionID)
	if idx < 0 {
		s.mu.Unlock()
		return models.Comment{}, s.skip("add_comment", errs.ErrConfessionNotFound)
	}

	comment := models.Comment{
		ID:        s.newID(),
		Text:      text,
		Timestamp: s.clock.Now().UnixMilli(),
	}
	next := append([]models.Confession(nil), s.confessions...)
	target := next[idx]
	comments := make([]models.Comment, 0, len(target.Comments)+1)
	comments = append(comments, target.Comments...)
	target.Comments = append(comments, comment)
	next[idx] = target
	err := s.commitConfessions(ctx, next)
	s.mu.Unlock()

	s.notify()
	return comment, s.finish("add_comment", err, zap.String("confession_id", confessionID))
}

// ToggleLike flips viewer's like on a confession and moves the stored count
// by one in the matching direction. It returns the new count and whether
// the viewer now likes the confession.
func (s *Store) ToggleLike(ctx context.Context, confessionID, viewer string) (int, bool, error) {
	if viewer == "" {
		return 0, false, s.skip("toggle_like", errs.Skip("viewer is empty"))
	}
	// The NUL separator cannot appear in an id or a viewer token.
	key := viewer + "\x00" + confessionID

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false, errs.ErrClosed
	}
	idx := s.indexOf(confessionID)
	if idx < 0 {
		s.mu.Unlock()
		return 0, false, s.skip("toggle_like", errs.ErrConfessionNotFound)
	}

	_, liked := s.likers.Get(key)
	next := append([]models.Confession(nil), s.confessions...)
	target := next[idx]
	if liked {
		target.Likes--
		s.likers.Delete(key)
	} else {
		target.Likes++
		s.likers.SetDefault(key, struct{}{})
	}
	next[idx] = target
	err := s.commitConfessions(ctx, next)
	s.mu.Unlock()

	s.notify()
	return target.Likes, !liked, s.finish("toggle_like", err, zap.String("confession_id", confessionID))
}

// RecordAnonymousMessage prepends a reply to the inbox. The target is not
// required to exist.
func (s *Store) RecordAnonymousMessage(ctx context.Context, targetID, text string) (models.AnonymousMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.AnonymousMessage{}, s.skip("record_message", errs.ErrEmptyText)
	}
	if strings.TrimSpace(targetID) == "" {
		return models.AnonymousMessage{}, s.skip("record_message", errs.ErrMissingTarget)
	}

	msg := models.AnonymousMessage{
		ID:        s.newID(),
		TargetID:  targetID,
		Text:      text,
		Timestamp: s.clock.Now().UnixMilli(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.AnonymousMessage{}, errs.ErrClosed
	}
	next := make([]models.AnonymousMessage, 0, len(s.messages)+1)
	next = append(next, msg)
	next = append(next, s.messages...)
	err := s.repo.SaveMessages(ctx, next)
	s.messages = next
	s.mu.Unlock()

	return msg, s.finish("record_message", err, zap.String("target_id", targetID))
}

// SetTheme stores the selected theme id. Unknown ids are skipped.
func (s *Store) SetTheme(ctx context.Context, id string) error {
	if !models.IsTheme(id) {
		return s.skip("set_theme", errs.ErrUnknownTheme)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errs.ErrClosed
	}
	err := s.repo.SaveTheme(ctx, id)
	s.theme = id
	return s.finish("set_theme", err, zap.String("theme", id))
}

// Flush rewrites both collections. Use it to retry after a persistence
// failure.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.repo.SaveConfessions(ctx, s.confessions); err != nil {
		return s.finish("flush", err)
	}
	return s.finish("flush", s.repo.SaveMessages(ctx, s.messages))
}

// commitConfessions writes next and publishes it. The in-memory state moves
// forward even if the write fails; Flush can retry. Requires s.mu held.
func (s *Store) commitConfessions(ctx context.Context, next []models.Confession) error {
	err := s.repo.SaveConfessions(ctx, next)
	s.confessions = next
	return err
}

func (s *Store) indexOf(id string) int {
	for i := range s.confessions {
		if s.confessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) skip(op string, err error) error {
	s.metrics.Skip(op)
	s.log.Debug("mutation skipped", zap.String("op", op), zap.Error(err))
	return err
}

func (s *Store) finish(op string, err error, fields ...zap.Field) error {
	if err != nil {
		s.metrics.PersistenceFailure(op)
		s.log.Warn("mutation applied but not persisted",
			append(fields, zap.String("op", op), zap.Error(err))...)
		return err
	}
	s.metrics.Mutation(op)
	return nil
}
