package zotero

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

// itemTypes Zotero manages that never enter the library profile.
var skippedItemTypes = map[string]struct{}{
	"attachment": {},
	"note":       {},
	"annotation": {},
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// Stats summarize one ingest run.
type Stats struct {
	Fetched int
	Updated int
	Removed int
}

// Ingestor syncs a Zotero library into the item store. Incremental runs
// fetch only items changed since the recorded library version; removals
// propagate via the deleted-keys endpoint.
type Ingestor struct {
	client *Client
	store  *store.Store
	logger *zap.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(client *Client, st *store.Store, logger *zap.Logger) *Ingestor {
	return &Ingestor{client: client, store: st, logger: logger}
}

// Run performs a sync. full = true ignores the recorded version and
// refetches the whole library. Embedding columns are untouched: an item
// whose content did not change keeps its embedding, one whose content did
// change is picked up by the next profile build through the stale hash.
func (ig *Ingestor) Run(ctx context.Context, full bool) (Stats, error) {
	var stats Stats

	since := 0
	if !full {
		v, err := ig.store.LastSyncVersion()
		if err != nil {
			return stats, fmt.Errorf("reading sync version: %w", err)
		}
		since = v
	}

	page, err := ig.client.FetchItemsSince(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("fetching items: %w", err)
	}
	stats.Fetched = len(page.Items)

	for _, item := range page.Items {
		if _, skip := skippedItemTypes[item.Data.ItemType]; skip {
			continue
		}
		libItem := toLibraryItem(item)
		if err := ig.store.UpsertItem(libItem, libItem.ComputeContentHash()); err != nil {
			return stats, fmt.Errorf("upserting item %s: %w", item.Key, err)
		}
		stats.Updated++
	}

	if since > 0 {
		deleted, err := ig.client.FetchDeletedSince(ctx, since)
		if err != nil {
			return stats, fmt.Errorf("fetching deletions: %w", err)
		}
		if len(deleted) > 0 {
			if err := ig.store.RemoveItems(deleted); err != nil {
				return stats, fmt.Errorf("removing items: %w", err)
			}
			stats.Removed = len(deleted)
		}
	}

	if page.LibraryVersion > 0 {
		if err := ig.store.SetLastSyncVersion(page.LibraryVersion); err != nil {
			return stats, fmt.Errorf("recording sync version: %w", err)
		}
	}

	ig.logger.Info("zotero sync complete",
		zap.Int("fetched", stats.Fetched),
		zap.Int("updated", stats.Updated),
		zap.Int("removed", stats.Removed),
		zap.Int("library_version", page.LibraryVersion))
	return stats, nil
}

// toLibraryItem converts an API item to the domain type.
func toLibraryItem(item Item) work.LibraryItem {
	creators := make([]string, 0, len(item.Data.Creators))
	for _, c := range item.Data.Creators {
		if name := c.DisplayName(); name != "" {
			creators = append(creators, name)
		}
	}

	tags := make([]string, 0, len(item.Data.Tags))
	for _, t := range item.Data.Tags {
		if t.Tag != "" {
			tags = append(tags, t.Tag)
		}
	}

	return work.LibraryItem{
		Key:         item.Key,
		Version:     item.Version,
		Title:       item.Data.Title,
		Abstract:    item.Data.AbstractNote,
		Creators:    creators,
		Tags:        tags,
		Collections: item.Data.Collections,
		Year:        parseYear(item.Data.Date),
		DOI:         item.Data.DOI,
		URL:         item.Data.URL,
		Venue:       item.Data.PublicationTitle,
	}
}

// parseYear extracts a four-digit year from Zotero's free-form date field.
func parseYear(date string) int {
	match := yearPattern.FindString(date)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}
