package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/persist"
	"github.com/sujalbistaa/whispr/internal/store"
)

func newRouter(t *testing.T) (*Router, *store.Store, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	st := store.New(persist.NewRepository(persist.NewMemoryAdapter()), store.WithClock(mock))
	require.NoError(t, st.Init(context.Background()))
	return NewRouter(st, mock, DefaultConfirmation), st, mock
}

func TestRouter_Resolve(t *testing.T) {
	r, _, _ := newRouter(t)

	c, ok := r.Resolve("2")
	require.True(t, ok)
	assert.Equal(t, "Elias", c.To)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestRouter_ReplyToUnresolvedTarget(t *testing.T) {
	r, st, _ := newRouter(t)

	msg, err := r.Reply(context.Background(), "missing", "hello stranger")
	require.NoError(t, err)
	assert.Equal(t, "missing", msg.TargetID)
	assert.Equal(t, msg, st.Messages()[0])
}

func TestRouter_ReplySkipsBlank(t *testing.T) {
	r, st, _ := newRouter(t)

	_, err := r.Reply(context.Background(), "1", "   ")
	assert.ErrorIs(t, err, errs.ErrValidationSkipped)
	assert.Empty(t, st.Messages())
}

func TestShareLink(t *testing.T) {
	link, err := ShareLink("https://unspoken.example/feed?inbox=old#top", "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://unspoken.example/feed?inbox=abc", link)
}

func TestSession_SentFlagClearsAfterDelay(t *testing.T) {
	r, _, mock := newRouter(t)
	s := r.Open("1")
	defer s.Close()

	target, ok := s.Target()
	require.True(t, ok)
	assert.Equal(t, "Sarah", target.To)

	_, err := s.Send(context.Background(), "thinking of you")
	require.NoError(t, err)
	assert.True(t, s.Sent())

	mock.Add(time.Second)
	assert.True(t, s.Sent())

	require.Eventually(t, func() bool {
		mock.Add(500 * time.Millisecond)
		return !s.Sent()
	}, time.Second, time.Millisecond)
}

func TestSession_SkippedSendLeavesFlagDown(t *testing.T) {
	r, _, _ := newRouter(t)
	s := r.Open("1")
	defer s.Close()

	_, err := s.Send(context.Background(), "")
	assert.ErrorIs(t, err, errs.ErrEmptyText)
	assert.False(t, s.Sent())
}

func TestSession_CloseCancelsTimer(t *testing.T) {
	r, st, mock := newRouter(t)
	s := r.Open("nobody")

	_, ok := s.Target()
	assert.False(t, ok)

	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	s.Close()
	s.Close()

	mock.Add(time.Minute)
	assert.False(t, s.Sent())

	_, err = s.Send(context.Background(), "after close")
	assert.Error(t, err)
	assert.Len(t, st.Messages(), 1)
}
