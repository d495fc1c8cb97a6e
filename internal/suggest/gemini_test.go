package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/models"
)

func answer(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	assert.NoError(t, json.NewEncoder(w).Encode(resp))
}

func newTestClient(srv *httptest.Server) *GeminiClient {
	return NewGeminiClient(GeminiConfig{
		APIKey:     "test-key",
		Model:      "test-model",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
}

func TestGeminiClient_Suggest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.NotNil(t, req.GenerationConfig) {
			assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
		}
		assert.Contains(t, req.Contents[0].Parts[0].Text, "Suggest 3 real books")

		answer(t, w, `{"suggestions":[{"title":"Persuasion","sub":"Jane Austen","lines":"You pierce my soul."},{"title":"","sub":"x","lines":"y"}]}`)
	}))
	defer srv.Close()
	c := newTestClient(srv)

	res := c.Suggest(context.Background(), "rainy longing", models.KindBook)

	require.False(t, res.Fallback)
	require.NoError(t, res.Err)
	assert.Equal(t, []models.Suggestion{{Title: "Persuasion", Sub: "Jane Austen", Lines: "You pierce my soul."}}, res.Value)

	again := c.Suggest(context.Background(), "rainy longing", models.KindBook)
	assert.Equal(t, res.Value, again.Value)
	assert.Equal(t, int32(1), calls.Load(), "second call served from cache")
}

func TestGeminiClient_SuggestFallsBackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	res := newTestClient(srv).Suggest(context.Background(), "anything", models.KindMusic)

	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, errs.ErrCollaborator)
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
}

func TestGeminiClient_SuggestFallsBackOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer(t, w, "not json at all")
	}))
	defer srv.Close()

	res := newTestClient(srv).Suggest(context.Background(), "anything", models.KindMusic)

	assert.True(t, res.Fallback)
	assert.ErrorIs(t, res.Err, errs.ErrCollaborator)
	assert.Empty(t, res.Value)
}

func TestGeminiClient_Refine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.GenerationConfig)
		assert.True(t, strings.HasPrefix(req.Contents[0].Parts[0].Text, "Refine this confession"))
		answer(t, w, "  You are the quiet I look for.  ")
	}))
	defer srv.Close()

	res := newTestClient(srv).Refine(context.Background(), "i like u")

	assert.False(t, res.Fallback)
	assert.Equal(t, "You are the quiet I look for.", res.Value)
}

func TestGeminiClient_RefineFallsBackToInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		answer(t, w, "   ")
	}))
	defer srv.Close()

	res := newTestClient(srv).Refine(context.Background(), "i like u")

	assert.True(t, res.Fallback)
	assert.Equal(t, "i like u", res.Value)
	assert.ErrorIs(t, res.Err, errs.ErrCollaborator)
}

func TestGeminiClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := newTestClient(srv)

	for i := 0; i < 8; i++ {
		res := c.Refine(context.Background(), "text")
		assert.True(t, res.Fallback)
		assert.Equal(t, "text", res.Value)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestGeminiClient_CancelledCallsKeepBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		answer(t, w, "polished")
	}))
	defer srv.Close()
	c := newTestClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 8; i++ {
		res := c.Refine(ctx, "text")
		assert.True(t, res.Fallback)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, int32(0), calls.Load())

	res := c.Refine(context.Background(), "text")
	require.False(t, res.Fallback, "breaker must stay closed: %v", res.Err)
	assert.Equal(t, "polished", res.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStatic(t *testing.T) {
	var c Collaborator = Static{}

	s := c.Suggest(context.Background(), "q", models.KindMusic)
	assert.True(t, s.Fallback)
	assert.Empty(t, s.Value)

	r := c.Refine(context.Background(), "keep me")
	assert.True(t, r.Fallback)
	assert.Equal(t, "keep me", r.Value)
}
