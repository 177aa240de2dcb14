package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// FeedInfo describes the RSS channel.
type FeedInfo struct {
	Title       string
	Link        string
	Description string
}

// RSSWriter renders ranked works as an RSS 2.0 feed.
type RSSWriter struct {
	info   FeedInfo
	logger *zap.Logger
	now    func() time.Time
}

// NewRSSWriter creates a writer with the given channel info.
func NewRSSWriter(info FeedInfo, logger *zap.Logger) *RSSWriter {
	if info.Title == "" {
		info.Title = "ZotWatch Recommendations"
	}
	return &RSSWriter{info: info, logger: logger, now: time.Now}
}

// Write renders the feed to path. An empty ranked list still produces a
// valid feed with no items.
func (w *RSSWriter) Write(ranked []work.RankedWork, path string) error {
	now := w.now().UTC()
	feed := &feeds.Feed{
		Title:       w.info.Title,
		Link:        &feeds.Link{Href: w.info.Link},
		Description: w.info.Description,
		Created:     now,
	}

	for _, rw := range ranked {
		item := &feeds.Item{
			Title:       fmt.Sprintf("[%.3f] %s", rw.Score, rw.Title),
			Link:        &feeds.Link{Href: rw.URL},
			Description: itemDescription(rw),
			Id:          rw.Identifier,
			Created:     now,
		}
		if rw.Published != nil {
			item.Created = *rw.Published
		}
		if len(rw.Authors) > 0 {
			item.Author = &feeds.Author{Name: strings.Join(rw.Authors, ", ")}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("rendering rss: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating feed directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(rss), 0o644); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}

	w.logger.Info("wrote rss feed",
		zap.String("path", path),
		zap.Int("count", len(ranked)))
	return nil
}

func itemDescription(rw work.RankedWork) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %s | score %.3f", rw.Label, rw.Source, rw.Score)
	if rw.Venue != "" {
		fmt.Fprintf(&b, " | %s", rw.Venue)
	}
	if rw.Summary != nil && len(rw.Summary.Bullets) > 0 {
		b.WriteString("\n\n")
		for _, bullet := range rw.Summary.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
	} else if rw.Abstract != "" {
		b.WriteString("\n\n")
		b.WriteString(rw.Abstract)
	}
	return b.String()
}
