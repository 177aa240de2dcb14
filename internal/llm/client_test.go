package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string, tokens int) string {
	body, _ := json.Marshal(map[string]any{
		"model": "test/model",
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"total_tokens": tokens},
	})
	return string(body)
}

func TestCompleteSuccess(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key123" {
			t.Error("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionBody("hello", 42)))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithAPIKey("key123"), WithModel("test/model"))
	resp, err := c.Complete(context.Background(), "say hello", "")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "hello" || resp.TokensUsed != 42 || resp.Model != "test/model" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if gotReq.Model != "test/model" {
		t.Errorf("default model not applied: %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "say hello" {
		t.Errorf("prompt not forwarded: %+v", gotReq.Messages)
	}
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	old := initialRetryDelay
	initialRetryDelay = time.Millisecond
	defer func() { initialRetryDelay = old }()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(completionBody("ok", 1)))
		}
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithAPIKey("k"))
	resp, err := c.Complete(context.Background(), "p", "")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "ok" || hits.Load() != 3 {
		t.Errorf("expected success on third attempt, got %+v after %d hits", resp, hits.Load())
	}
}

func TestCompleteGivesUp(t *testing.T) {
	old := initialRetryDelay
	initialRetryDelay = time.Millisecond
	defer func() { initialRetryDelay = old }()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := c.Complete(context.Background(), "p", "")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestCompleteAuthErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithAPIKey("bad"))
	_, err := c.Complete(context.Background(), "p", "")
	if !errors.Is(err, ErrAuthError) {
		t.Errorf("expected ErrAuthError, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("auth errors must not be retried, got %d attempts", hits.Load())
	}
}

func TestCompleteModelOverride(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionBody("x", 1)))
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithAPIKey("k"), WithModel("default/model"))
	if _, err := c.Complete(context.Background(), "p", "override/model"); err != nil {
		t.Fatal(err)
	}
	if gotReq.Model != "override/model" {
		t.Errorf("model override ignored: %q", gotReq.Model)
	}
}
