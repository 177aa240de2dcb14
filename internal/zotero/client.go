package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Zotero Web API base URL.
	BaseURL = "https://api.zotero.org"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit keeps us well under Zotero's burst limits.
	RateLimit = 2.0

	// pageSize is the Zotero maximum items per request.
	pageSize = 100
)

// Common errors returned by the Zotero client.
var (
	// ErrAuthError indicates a missing or rejected API key.
	ErrAuthError = errors.New("zotero authentication error")

	// ErrRateLimited indicates the Zotero rate limit has been exceeded.
	ErrRateLimited = errors.New("zotero rate limit exceeded")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from zotero")
)

// Item is one library entry as returned by the API.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
}

// ItemData is the editable payload of an item.
type ItemData struct {
	ItemType         string    `json:"itemType"`
	Title            string    `json:"title,omitempty"`
	AbstractNote     string    `json:"abstractNote,omitempty"`
	Creators         []Creator `json:"creators,omitempty"`
	Tags             []Tag     `json:"tags,omitempty"`
	Collections      []string  `json:"collections,omitempty"`
	Date             string    `json:"date,omitempty"`
	DOI              string    `json:"DOI,omitempty"`
	URL              string    `json:"url,omitempty"`
	PublicationTitle string    `json:"publicationTitle,omitempty"`
	Extra            string    `json:"extra,omitempty"`
}

// Creator is an author, editor, or similar contributor.
type Creator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// DisplayName returns the creator's name in "First Last" form.
func (c Creator) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.FirstName == "" {
		return c.LastName
	}
	return c.FirstName + " " + c.LastName
}

// Tag is a Zotero item tag.
type Tag struct {
	Tag string `json:"tag"`
}

// ItemsPage is one page of a versioned items fetch.
type ItemsPage struct {
	Items []Item

	// LibraryVersion is the Last-Modified-Version the server reported. The
	// whole sync records the value from the final page.
	LibraryVersion int
}

// Client is a rate-limited Zotero Web API client for a single user library.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	userID     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a Zotero client for the given user library.
func NewClient(userID string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userID:     userID,
	}

	if key := os.Getenv("ZOTERO_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchItemsSince pages through all items changed after the given library
// version. since = 0 fetches the whole library.
func (c *Client) FetchItemsSince(ctx context.Context, since int) (*ItemsPage, error) {
	var all []Item
	var libraryVersion int
	start := 0

	for {
		params := url.Values{}
		params.Set("format", "json")
		params.Set("since", strconv.Itoa(since))
		params.Set("limit", strconv.Itoa(pageSize))
		params.Set("start", strconv.Itoa(start))

		body, header, err := c.get(ctx, fmt.Sprintf("/users/%s/items", c.userID), params)
		if err != nil {
			return nil, err
		}

		var items []Item
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: parsing items: %v", ErrInvalidResponse, err)
		}
		all = append(all, items...)

		if v := header.Get("Last-Modified-Version"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				libraryVersion = parsed
			}
		}

		total, _ := strconv.Atoi(header.Get("Total-Results"))
		start += len(items)
		if len(items) < pageSize || start >= total {
			break
		}
	}

	return &ItemsPage{Items: all, LibraryVersion: libraryVersion}, nil
}

// FetchDeletedSince returns the keys of items deleted after the given
// library version.
func (c *Client) FetchDeletedSince(ctx context.Context, since int) ([]string, error) {
	params := url.Values{}
	params.Set("since", strconv.Itoa(since))

	body, _, err := c.get(ctx, fmt.Sprintf("/users/%s/deleted", c.userID), params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []string `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing deletions: %v", ErrInvalidResponse, err)
	}
	return payload.Items, nil
}

// CreateItems posts new items to the library.
func (c *Client) CreateItems(ctx context.Context, items []ItemData) error {
	if len(items) == 0 {
		return nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshaling items: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/items", c.baseURL, c.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting items: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.Header, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Zotero-API-Version", "3")
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	case resp.StatusCode == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}
	return nil
}
