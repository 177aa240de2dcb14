package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zotwatch/zotwatch/internal/index"
	"github.com/zotwatch/zotwatch/internal/work"
)

// topEntryCount caps the author and venue frequency tables.
const topEntryCount = 20

// Summary is the JSON artifact describing the built profile. Reporting and
// summarization collaborators read it; nothing here writes it twice.
type Summary struct {
	GeneratedAt time.Time    `json:"generated_at"`
	ItemCount   int          `json:"item_count"`
	Model       string       `json:"model"`
	Centroid    []float32    `json:"centroid"`
	TopAuthors  []FreqEntry  `json:"top_authors"`
	TopVenues   []FreqEntry  `json:"top_venues"`
}

// FreqEntry is one row of a frequency table.
type FreqEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func writeSummary(path string, items []work.LibraryItem, vectors [][]float32, model string) error {
	authors := map[string]int{}
	venues := map[string]int{}
	for _, item := range items {
		for _, creator := range item.Creators {
			authors[creator]++
		}
		if item.Venue != "" {
			venues[item.Venue]++
		}
	}

	summary := Summary{
		GeneratedAt: time.Now().UTC(),
		ItemCount:   len(items),
		Model:       model,
		Centroid:    index.Centroid(vectors),
		TopAuthors:  topEntries(authors, topEntryCount),
		TopVenues:   topEntries(venues, topEntryCount),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating summary directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// LoadSummary reads a profile summary artifact.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &s, nil
}

// topEntries returns the n highest-count entries, ties broken by name so
// the output is deterministic.
func topEntries(counts map[string]int, n int) []FreqEntry {
	entries := make([]FreqEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, FreqEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
