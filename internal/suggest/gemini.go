package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sujalbistaa/whispr/internal/errs"
	"github.com/sujalbistaa/whispr/internal/metrics"
	"github.com/sujalbistaa/whispr/internal/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

var (
	errNotConfigured = errs.Collaborator(errors.New("no api key configured"), "suggest")
	errEmptyAnswer   = errors.New("empty answer")
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Collector
}

// GeminiClient calls the Gemini generateContent REST endpoint behind a
// circuit breaker. Suggestions are cached per kind and query.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	cache   *cache.Cache
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	c := &GeminiClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller giving up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

func suggestionPrompt(query string, kind models.Kind) string {
	instruction := "Suggest 3 real songs. For each, provide title, artist, and one iconic romantic lyric."
	if kind == models.KindBook {
		instruction = "Suggest 3 real books. For each, provide title, author, and one beautiful, short quote about love/longing."
	}
	return fmt.Sprintf("Context: %q. %s Return only as a valid JSON object with a \"suggestions\" array.", query, instruction)
}

var suggestionSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"suggestions": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"title": map[string]any{"type": "STRING"},
					"sub":   map[string]any{"type": "STRING"},
					"lines": map[string]any{"type": "STRING"},
				},
				"required": []string{"title", "sub", "lines"},
			},
		},
	},
	"required": []string{"suggestions"},
}

func (c *GeminiClient) Suggest(ctx context.Context, query string, kind models.Kind) Result[[]models.Suggestion] {
	query = strings.TrimSpace(query)
	if query == "" {
		return ok([]models.Suggestion{})
	}
	cacheKey := string(kind) + "\x00" + query
	if cached, found := c.cache.Get(cacheKey); found {
		return ok(cached.([]models.Suggestion))
	}

	text, err := c.generate(ctx, suggestionPrompt(query, kind), &generationConfig{
		ResponseMimeType: "application/json",
		ResponseSchema:   suggestionSchema,
	})
	if err != nil {
		return c.suggestFallback(err)
	}

	var parsed struct {
		Suggestions []models.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return c.suggestFallback(errs.Collaborator(err, "decode suggestions"))
	}
	valid := make([]models.Suggestion, 0, len(parsed.Suggestions))
	for _, s := range parsed.Suggestions {
		if strings.TrimSpace(s.Title) != "" {
			valid = append(valid, s)
		}
	}

	c.cache.SetDefault(cacheKey, valid)
	c.metrics.Collaborator("suggest", false)
	return ok(valid)
}

func (c *GeminiClient) suggestFallback(err error) Result[[]models.Suggestion] {
	c.metrics.Collaborator("suggest", true)
	c.log.Warn("suggestion service failed, returning no suggestions", zap.Error(err))
	return fallback([]models.Suggestion{}, err)
}

func (c *GeminiClient) Refine(ctx context.Context, text string) Result[string] {
	if strings.TrimSpace(text) == "" {
		return ok(text)
	}

	prompt := fmt.Sprintf("Refine this confession into a poetic, sincere 2-3 sentence note: %q", text)
	refined, err := c.generate(ctx, prompt, nil)
	if err == nil {
		refined = strings.TrimSpace(refined)
		if refined == "" {
			err = errs.Collaborator(errEmptyAnswer, "refine")
		}
	}
	if err != nil {
		c.metrics.Collaborator("refine", true)
		c.log.Warn("refine failed, keeping original text", zap.Error(err))
		return fallback(text, err)
	}
	c.metrics.Collaborator("refine", false)
	return ok(refined)
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
	ResponseSchema   any    `json:"responseSchema,omitempty"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate runs one generateContent call and returns the first text part.
func (c *GeminiClient) generate(ctx context.Context, prompt string, gen *generationConfig) (string, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.doGenerate(ctx, prompt, gen)
	})
	if err != nil {
		if errors.Is(err, errs.ErrCollaborator) {
			return "", err
		}
		return "", errs.Collaborator(err, "generate")
	}
	return out.(string), nil
}

func (c *GeminiClient) doGenerate(ctx context.Context, prompt string, gen *generationConfig) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: gen,
	})
	if err != nil {
		return "", errs.Collaborator(err, "encode request")
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.Collaborator(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.Collaborator(err, "call gemini")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", errs.Collaborator(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.Collaborator(errors.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200)), "call gemini")
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", errs.Collaborator(err, "decode response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errs.Collaborator(errEmptyAnswer, "decode response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
