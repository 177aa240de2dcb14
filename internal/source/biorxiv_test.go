package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const biorxivFixture = `{
  "collection": [
    {
      "title": "A Study of Gene Expression",
      "abstract": "We measured things.",
      "authors": "Doe, Jane; Smith, John; ",
      "doi": "10.1101/2026.08.15.123456",
      "rel_link": "https://www.biorxiv.org/content/10.1101/2026.08.15.123456",
      "date": "2026-08-15",
      "category": "genomics",
      "version": "1"
    },
    {
      "title": "",
      "doi": "10.1101/skipped"
    },
    {
      "title": "No Link Entry",
      "authors": "Solo, Han",
      "doi": "10.1101/2026.08.16.654321",
      "date": "2026-08-16"
    }
  ]
}`

func TestPreprintFetch(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(biorxivFixture))
	}))
	defer server.Close()

	src := NewBiorxiv(PreprintConfig{Enabled: true}, zap.NewNop())
	src.baseURL = server.URL
	src.fetcher = newHTTPFetcher(1000)
	src.now = func() time.Time { return time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC) }

	got, err := src.Fetch(context.Background(), 5)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotPath != "/details/biorxiv/2026-08-15/2026-08-20" {
		t.Errorf("unexpected request path: %q", gotPath)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates (titleless entry skipped), got %d", len(got))
	}

	first := got[0]
	if first.Source != "biorxiv" || first.Venue != "biorxiv" {
		t.Errorf("wrong source/venue: %s/%s", first.Source, first.Venue)
	}
	if first.Identifier != "10.1101/2026.08.15.123456" {
		t.Errorf("identifier should be the DOI: %q", first.Identifier)
	}
	if len(first.Authors) != 2 || first.Authors[0] != "Doe, Jane" {
		t.Errorf("semicolon author split wrong: %v", first.Authors)
	}
	if first.Published == nil || first.Published.Day() != 15 {
		t.Errorf("published date wrong: %v", first.Published)
	}
	if first.Extra["category"] != "genomics" {
		t.Errorf("category missing: %v", first.Extra)
	}

	second := got[1]
	if second.URL != "https://doi.org/10.1101/2026.08.16.654321" {
		t.Errorf("missing rel_link should fall back to DOI URL, got %q", second.URL)
	}
}

func TestMedrxivUsesOwnServer(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"collection": []}`))
	}))
	defer server.Close()

	src := NewMedrxiv(PreprintConfig{Enabled: true, DaysBack: 3}, zap.NewNop())
	src.baseURL = server.URL
	src.fetcher = newHTTPFetcher(1000)
	src.now = func() time.Time { return time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC) }

	// daysBack <= 0 falls back to the configured window.
	if _, err := src.Fetch(context.Background(), 0); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotPath != "/details/medrxiv/2026-08-17/2026-08-20" {
		t.Errorf("unexpected request path: %q", gotPath)
	}
	if src.Name() != "medrxiv" {
		t.Errorf("wrong name: %s", src.Name())
	}
}

func TestPreprintFetchBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	src := NewBiorxiv(PreprintConfig{Enabled: true}, zap.NewNop())
	src.baseURL = server.URL
	src.fetcher = newHTTPFetcher(1000)

	if _, err := src.Fetch(context.Background(), 3); err == nil {
		t.Error("expected a parse error")
	}
}
