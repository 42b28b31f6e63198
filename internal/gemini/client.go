// Package gemini asks Google's Gemini models to explain incidents and
// propose fixes, with an offline demo analyzer and an analysis cache.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 60 * time.Second

	// DemoKey selects the offline DemoAnalyzer.
	DemoKey = "demo-key"
)

var (
	// ErrMissingAPIKey is returned when creating a client without a key.
	ErrMissingAPIKey = errors.New("gemini API key is required")
	// ErrEmptyResponse is returned when the model returns no text.
	ErrEmptyResponse = errors.New("gemini returned no content")
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini API error %d: %s", e.StatusCode, e.Message)
}

// ClientOptions configures a Client. Zero values take the defaults.
type ClientOptions struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	RatePerSec float64
	HTTPClient *http.Client
}

// Client calls the generateContent REST endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Gemini client for apiKey.
func NewClient(apiKey string, opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Analyze sends the incident prompt and parses the answer.
func (c *Client) Analyze(ctx context.Context, input AnalyzeInput) (*Analysis, error) {
	prompt, err := BuildPrompt(input)
	if err != nil {
		return nil, err
	}
	text, err := c.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze code: %w", err)
	}
	return ParseResponse(text), nil
}

// GenerateContent sends a single-turn prompt and returns the concatenated
// text of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature: 0.2,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	log.Debug().
		Str("model", c.model).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("gemini generateContent")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error.Message != "" {
			apiErr.Message = er.Error.Message
			apiErr.Status = er.Error.Status
		}
		return "", apiErr
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked (%s): %w", gr.PromptFeedback.BlockReason, ErrEmptyResponse)
	}
	if len(gr.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
