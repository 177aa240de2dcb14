package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultVoyageURL is the Voyage AI API endpoint.
	DefaultVoyageURL = "https://api.voyageai.com/v1"

	// DefaultModel is the default embedding model.
	DefaultModel = "voyage-3"

	// DefaultDimensions is the output dimensionality of voyage-3.
	DefaultDimensions = 1024

	// DefaultBatchSize caps how many texts go into one API request.
	DefaultBatchSize = 128

	// DefaultTimeout is the timeout for embedding requests.
	DefaultTimeout = 60 * time.Second

	apiPathEmbeddings = "/embeddings"

	maxEmbedAttempts = 3
)

// Overridable in tests.
var embedRetryDelay = time.Second

// VoyageProvider generates embeddings using the Voyage AI API.
type VoyageProvider struct {
	baseURL    string
	apiKey     string
	model      string
	inputType  string
	dimensions int
	batchSize  int
	client     *http.Client
}

// VoyageOption configures a VoyageProvider.
type VoyageOption func(*VoyageProvider)

// WithBaseURL sets the API base URL (used by tests).
func WithBaseURL(url string) VoyageOption {
	return func(p *VoyageProvider) { p.baseURL = url }
}

// WithModel sets the embedding model.
func WithModel(model string) VoyageOption {
	return func(p *VoyageProvider) { p.model = model }
}

// WithInputType sets the Voyage input_type hint (document or query).
func WithInputType(t string) VoyageOption {
	return func(p *VoyageProvider) { p.inputType = t }
}

// WithDimensions sets the expected vector dimensions.
func WithDimensions(dims int) VoyageOption {
	return func(p *VoyageProvider) { p.dimensions = dims }
}

// WithBatchSize sets the maximum texts per API request.
func WithBatchSize(n int) VoyageOption {
	return func(p *VoyageProvider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) VoyageOption {
	return func(p *VoyageProvider) { p.client.Timeout = timeout }
}

// NewVoyageProvider creates a new Voyage AI embedding provider.
func NewVoyageProvider(apiKey string, opts ...VoyageOption) *VoyageProvider {
	p := &VoyageProvider{
		baseURL:    DefaultVoyageURL,
		apiKey:     apiKey,
		model:      DefaultModel,
		inputType:  "document",
		dimensions: DefaultDimensions,
		batchSize:  DefaultBatchSize,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Encode generates embeddings for the given texts, batching requests to stay
// under the API's per-request input limit.
func (p *VoyageProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.encodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// encodeBatch sends one embedding request, retrying rate limits and server
// errors with doubling backoff.
func (p *VoyageProvider) encodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(voyageEmbedRequest{
		Model:     p.model,
		Input:     texts,
		InputType: p.inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	delay := embedRetryDelay

	for attempt := 0; attempt < maxEmbedAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		vectors, retryable, err := p.doEncodeBatch(ctx, body, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxEmbedAttempts, lastErr)
}

func (p *VoyageProvider) doEncodeBatch(ctx context.Context, body []byte, texts []string) ([][]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+apiPathEmbeddings, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("voyage returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("voyage returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
	}

	var result voyageEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, false, fmt.Errorf("unexpected embedding count: got %d, want %d", len(result.Data), len(texts))
	}

	// The API reports each row's input index; order by it rather than
	// trusting response order.
	vectors := make([][]float32, len(texts))
	for _, row := range result.Data {
		if row.Index < 0 || row.Index >= len(texts) {
			return nil, false, fmt.Errorf("embedding index %d out of range", row.Index)
		}
		if len(row.Embedding) != p.dimensions {
			return nil, false, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(row.Embedding), p.dimensions)
		}
		vectors[row.Index] = row.Embedding
	}
	return vectors, false, nil
}

// ModelName returns the model identifier.
func (p *VoyageProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *VoyageProvider) Dimensions() int {
	return p.dimensions
}

func formatErrorBody(body io.Reader) string {
	respBody, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return string(respBody)
}

type voyageEmbedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageEmbedResponse struct {
	Data []voyageEmbedding `json:"data"`
}

type voyageEmbedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}
