package zotero

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// recommendationTag marks pushed items so they are easy to find and prune
// inside Zotero.
const recommendationTag = "zotwatch"

// Pusher writes top recommendations back into the Zotero library as web
// link items.
type Pusher struct {
	client     *Client
	collection string
	logger     *zap.Logger
}

// NewPusher creates a pusher. collection may be empty, in which case items
// land in the library root.
func NewPusher(client *Client, collection string, logger *zap.Logger) *Pusher {
	return &Pusher{client: client, collection: collection, logger: logger}
}

// Push creates a webpage item for every must_read recommendation that has
// a URL. Lower-labeled works are skipped.
func (p *Pusher) Push(ctx context.Context, ranked []work.RankedWork) (int, error) {
	var items []ItemData
	for _, rw := range ranked {
		if rw.Label != work.LabelMustRead || rw.URL == "" {
			continue
		}
		items = append(items, p.toItemData(rw))
	}
	if len(items) == 0 {
		p.logger.Info("no must_read recommendations to push")
		return 0, nil
	}

	if err := p.client.CreateItems(ctx, items); err != nil {
		return 0, fmt.Errorf("pushing recommendations: %w", err)
	}

	p.logger.Info("pushed recommendations", zap.Int("count", len(items)))
	return len(items), nil
}

func (p *Pusher) toItemData(rw work.RankedWork) ItemData {
	data := ItemData{
		ItemType:     "webpage",
		Title:        rw.Title,
		AbstractNote: rw.Abstract,
		URL:          rw.URL,
		Extra:        fmt.Sprintf("score: %.3f | source: %s", rw.Score, rw.Source),
		Tags: []Tag{
			{Tag: recommendationTag},
			{Tag: recommendationTag + ":" + strings.ToLower(rw.Source)},
		},
	}
	if p.collection != "" {
		data.Collections = []string{p.collection}
	}
	return data
}
