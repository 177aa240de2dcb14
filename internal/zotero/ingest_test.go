package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

// libraryServer simulates a small Zotero library with versioned sync.
type libraryServer struct {
	items   []Item
	deleted []string
	version int
}

func (ls *libraryServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		switch r.URL.Path {
		case "/users/u1/items":
			var changed []Item
			for _, item := range ls.items {
				if item.Version > since {
					changed = append(changed, item)
				}
			}
			w.Header().Set("Last-Modified-Version", strconv.Itoa(ls.version))
			w.Header().Set("Total-Results", strconv.Itoa(len(changed)))
			json.NewEncoder(w).Encode(changed)
		case "/users/u1/deleted":
			json.NewEncoder(w).Encode(map[string]any{"items": ls.deleted})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "profile.sqlite"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestIngestor(t *testing.T, ls *libraryServer, st *store.Store) *Ingestor {
	t.Helper()
	server := httptest.NewServer(ls.handler(t))
	t.Cleanup(server.Close)

	c := NewClient("u1", WithBaseURL(server.URL))
	c.limiter.SetLimit(1000)
	return NewIngestor(c, st, zap.NewNop())
}

func TestIngestInitialSync(t *testing.T) {
	ls := &libraryServer{
		version: 200,
		items: []Item{
			{Key: "A1", Version: 10, Data: ItemData{
				ItemType:         "journalArticle",
				Title:            "First Paper",
				AbstractNote:     "About things.",
				Creators:         []Creator{{CreatorType: "author", FirstName: "Jane", LastName: "Doe"}},
				Tags:             []Tag{{Tag: "ml"}},
				Date:             "March 2024",
				DOI:              "10.1/a1",
				PublicationTitle: "Nature",
			}},
			{Key: "A2", Version: 12, Data: ItemData{ItemType: "journalArticle", Title: "Second Paper"}},
			{Key: "ATT", Version: 13, Data: ItemData{ItemType: "attachment", Title: "paper.pdf"}},
		},
	}
	st := openTestStore(t)
	ig := newTestIngestor(t, ls, st)

	stats, err := ig.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Fetched != 3 || stats.Updated != 2 {
		t.Errorf("expected fetched=3 updated=2 (attachment skipped), got %+v", stats)
	}

	items, err := st.AllItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(items))
	}

	var first work.LibraryItem
	for _, item := range items {
		if item.Key == "A1" {
			first = item
		}
	}
	if first.Title != "First Paper" || first.Venue != "Nature" || first.Year != 2024 {
		t.Errorf("item fields not mapped: %+v", first)
	}
	if len(first.Creators) != 1 || first.Creators[0] != "Jane Doe" {
		t.Errorf("creators not mapped: %v", first.Creators)
	}
	if first.ContentHash == "" {
		t.Error("content hash must be set on ingest")
	}

	v, err := st.LastSyncVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 200 {
		t.Errorf("expected sync version 200, got %d", v)
	}
}

func TestIngestIncrementalSync(t *testing.T) {
	ls := &libraryServer{
		version: 100,
		items: []Item{
			{Key: "A1", Version: 10, Data: ItemData{ItemType: "journalArticle", Title: "Old Paper"}},
			{Key: "A2", Version: 20, Data: ItemData{ItemType: "journalArticle", Title: "Another"}},
		},
	}
	st := openTestStore(t)
	ig := newTestIngestor(t, ls, st)

	if _, err := ig.Run(context.Background(), false); err != nil {
		t.Fatalf("initial sync failed: %v", err)
	}

	// One item changes, one gets deleted.
	ls.items[0].Version = 110
	ls.items[0].Data.Title = "Old Paper, Revised"
	ls.items = ls.items[:1]
	ls.deleted = []string{"A2"}
	ls.version = 120

	stats, err := ig.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("incremental sync failed: %v", err)
	}
	if stats.Fetched != 1 || stats.Updated != 1 || stats.Removed != 1 {
		t.Errorf("expected fetched=1 updated=1 removed=1, got %+v", stats)
	}

	items, err := st.AllItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Old Paper, Revised" {
		t.Errorf("store should hold only the revised item, got %+v", items)
	}

	v, _ := st.LastSyncVersion()
	if v != 120 {
		t.Errorf("expected sync version 120, got %d", v)
	}
}

func TestIngestFullResync(t *testing.T) {
	ls := &libraryServer{
		version: 100,
		items: []Item{
			{Key: "A1", Version: 10, Data: ItemData{ItemType: "journalArticle", Title: "Paper"}},
		},
	}
	st := openTestStore(t)
	ig := newTestIngestor(t, ls, st)

	if _, err := ig.Run(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	// full = true refetches everything even with a recorded version.
	stats, err := ig.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("full sync failed: %v", err)
	}
	if stats.Fetched != 1 {
		t.Errorf("full resync should refetch all items, got %+v", stats)
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"2024", 2024},
		{"March 2024", 2024},
		{"2024-03-15", 2024},
		{"n.d.", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseYear(tt.in); got != tt.want {
			t.Errorf("parseYear(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
