package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/index"
	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

// countingProvider produces a fixed unit vector per distinct text and
// records how many texts it was asked to encode.
type countingProvider struct {
	encoded []string
}

func (p *countingProvider) Encode(_ context.Context, texts []string) ([][]float32, error) {
	p.encoded = append(p.encoded, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 4)
		v[len(text)%4] = 1
		out[i] = v
	}
	return out, nil
}

func (p *countingProvider) ModelName() string { return "counting-model" }
func (p *countingProvider) Dimensions() int   { return 4 }

func setupBuilder(t *testing.T) (*Builder, *store.Store, *countingProvider, string, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "profile.sqlite"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	provider := &countingProvider{}
	indexPath := filepath.Join(dir, "profile.index")
	summaryPath := filepath.Join(dir, "profile.json")
	b := NewBuilder(s, provider, indexPath, summaryPath, zap.NewNop())
	return b, s, provider, indexPath, summaryPath
}

func addItem(t *testing.T, s *store.Store, key, title, abstract string, creators ...string) {
	t.Helper()
	item := work.LibraryItem{
		Key: key, Version: 1, Title: title, Abstract: abstract,
		Creators: creators, Venue: "Test Journal",
	}
	item.ContentHash = item.ComputeContentHash()
	if err := s.UpsertItem(item, item.ContentHash); err != nil {
		t.Fatalf("upserting %s: %v", key, err)
	}
}

func TestBuilderRun(t *testing.T) {
	b, s, _, indexPath, summaryPath := setupBuilder(t)
	addItem(t, s, "A", "First paper", "About things.", "Alice")
	addItem(t, s, "B", "Second paper", "About other things.", "Alice", "Bob")

	stats, err := b.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Items != 2 || stats.Embedded != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	idx, err := index.Load(indexPath)
	if err != nil {
		t.Fatalf("index should exist after build: %v", err)
	}
	if idx.Len() != 2 || idx.ModelName != "counting-model" {
		t.Errorf("unexpected index: len=%d model=%s", idx.Len(), idx.ModelName)
	}

	summary, err := LoadSummary(summaryPath)
	if err != nil {
		t.Fatalf("summary should exist after build: %v", err)
	}
	if summary.ItemCount != 2 || summary.Model != "counting-model" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(summary.Centroid) != 4 {
		t.Errorf("centroid should match embedding dimensions, got %d", len(summary.Centroid))
	}
	if len(summary.TopAuthors) == 0 || summary.TopAuthors[0].Name != "Alice" || summary.TopAuthors[0].Count != 2 {
		t.Errorf("unexpected author table: %+v", summary.TopAuthors)
	}
	if len(summary.TopVenues) != 1 || summary.TopVenues[0].Count != 2 {
		t.Errorf("unexpected venue table: %+v", summary.TopVenues)
	}
}

func TestBuilderIncremental(t *testing.T) {
	b, s, provider, _, _ := setupBuilder(t)
	addItem(t, s, "A", "First paper", "Abstract.", "Alice")

	if _, err := b.Run(context.Background(), false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(provider.encoded) != 1 {
		t.Fatalf("expected 1 embedding computed, got %d", len(provider.encoded))
	}

	// Second run with nothing changed computes nothing new.
	provider.encoded = nil
	if _, err := b.Run(context.Background(), false); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(provider.encoded) != 0 {
		t.Errorf("up-to-date items should not be re-embedded, got %d", len(provider.encoded))
	}

	// Adding an item only embeds the new one.
	addItem(t, s, "B", "Second paper", "Another abstract.", "Bob")
	if _, err := b.Run(context.Background(), false); err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if len(provider.encoded) != 1 {
		t.Errorf("only the new item should be embedded, got %d", len(provider.encoded))
	}

	// A full rebuild recomputes everything.
	provider.encoded = nil
	if _, err := b.Run(context.Background(), true); err != nil {
		t.Fatalf("full run failed: %v", err)
	}
	if len(provider.encoded) != 2 {
		t.Errorf("full rebuild should embed all items, got %d", len(provider.encoded))
	}
}

func TestBuilderEmptyStore(t *testing.T) {
	b, _, _, _, _ := setupBuilder(t)
	if _, err := b.Run(context.Background(), false); !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}

func TestTopEntriesDeterminism(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}
	entries := topEntries(counts, 3)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "c" || entries[1].Name != "a" || entries[2].Name != "b" {
		t.Errorf("ties should break by name: %+v", entries)
	}
}
