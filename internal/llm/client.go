package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	// BaseURL is the OpenRouter API base URL.
	BaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "anthropic/claude-3.5-sonnet"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens caps the completion length.
	DefaultMaxTokens = 1024

	// DefaultTemperature keeps summaries factual.
	DefaultTemperature = 0.3

	// maxAttempts bounds retries on transient upstream failures.
	maxAttempts = 3
)

// initialRetryDelay is the first backoff step; it doubles per attempt.
// Overridable in tests.
var initialRetryDelay = time.Second

// Common errors returned by the LLM client.
var (
	// ErrAuthError indicates a missing or rejected API key.
	ErrAuthError = errors.New("openrouter authentication error")

	// ErrUpstream indicates the API kept failing after retries.
	ErrUpstream = errors.New("openrouter request failed")
)

// Response is a chat completion result.
type Response struct {
	Content    string
	Model      string
	TokensUsed int
}

// Client is an OpenRouter chat-completion client. Transient failures (429
// and 5xx) are retried with exponential backoff.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	siteURL    string
	appName    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithModel sets the default completion model.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an OpenRouter client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		model:      DefaultModel,
		baseURL:    BaseURL,
		siteURL:    "https://github.com/zotwatch/zotwatch",
		appName:    "ZotWatch",
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// chatRequest is the OpenRouter chat-completions payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a single-user-message completion request. model may be
// empty to use the client default.
func (c *Client) Complete(ctx context.Context, prompt, model string) (*Response, error) {
	if model == "" {
		model = c.model
	}

	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	delay := initialRetryDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		resp, retryable, err := c.doComplete(ctx, payload, model)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUpstream, maxAttempts, lastErr)
}

func (c *Client) doComplete(ctx context.Context, payload []byte, model string) (*Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.siteURL)
	req.Header.Set("X-Title", c.appName)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("posting completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return nil, false, fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	}
	if resp.StatusCode == 429 || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("reading response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, fmt.Errorf("parsing completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, fmt.Errorf("%w: empty choices", ErrUpstream)
	}

	usedModel := parsed.Model
	if usedModel == "" {
		usedModel = model
	}
	return &Response{
		Content:    parsed.Choices[0].Message.Content,
		Model:      usedModel,
		TokensUsed: parsed.Usage.TotalTokens,
	}, false, nil
}
