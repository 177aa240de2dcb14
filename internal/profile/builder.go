// Package profile builds the library profile: embeddings for every item,
// the similarity index, and the profile summary artifact.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/embedding"
	"github.com/zotwatch/zotwatch/internal/index"
	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

// ErrNoItems means the store is empty; ingest must run before a profile
// can be built.
var ErrNoItems = errors.New("no items in store; run ingest before building profile")

// Artifacts lists the files produced by a profile build.
type Artifacts struct {
	StorePath   string `json:"store_path"`
	IndexPath   string `json:"index_path"`
	SummaryPath string `json:"summary_path"`
}

// Stats reports what a build did.
type Stats struct {
	Items    int           `json:"items"`
	Embedded int           `json:"embedded"`
	Duration time.Duration `json:"duration"`
}

// Builder runs the profile-build flow against the item store.
type Builder struct {
	store    *store.Store
	provider embedding.Provider
	logger   *zap.Logger

	indexPath   string
	summaryPath string
}

// NewBuilder creates a profile builder writing the index and summary to the
// given paths.
func NewBuilder(s *store.Store, provider embedding.Provider, indexPath, summaryPath string, logger *zap.Logger) *Builder {
	return &Builder{
		store:       s,
		provider:    provider,
		logger:      logger,
		indexPath:   indexPath,
		summaryPath: summaryPath,
	}
}

// Run computes embeddings for items that need them (all items when full is
// set), rebuilds the similarity index wholesale, and writes the profile
// summary. The index on disk is replaced atomically; a crash mid-build
// leaves the previous index intact.
func (b *Builder) Run(ctx context.Context, full bool) (*Stats, error) {
	start := time.Now()

	items, err := b.store.AllItems()
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	var toEmbed []work.LibraryItem
	if full {
		toEmbed = items
		b.logger.Info("full rebuild: recomputing all embeddings", zap.Int("items", len(items)))
	} else {
		toEmbed, err = b.store.ItemsNeedingEmbedding()
		if err != nil {
			return nil, fmt.Errorf("finding stale items: %w", err)
		}
		b.logger.Info("incremental build",
			zap.Int("stale", len(toEmbed)),
			zap.Int("items", len(items)),
		)
	}

	if len(toEmbed) > 0 {
		texts := make([]string, len(toEmbed))
		for i := range toEmbed {
			texts[i] = toEmbed[i].ContentForEmbedding()
		}
		vectors, err := b.provider.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("computing embeddings: %w", err)
		}
		for i := range toEmbed {
			hash := toEmbed[i].ContentHash
			if hash == "" {
				hash = toEmbed[i].ComputeContentHash()
			}
			if err := b.store.SetEmbedding(toEmbed[i].Key, vectors[i], hash); err != nil {
				return nil, err
			}
		}
	}

	embeddings, err := b.store.AllEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, errors.New("no embeddings in store after computation")
	}

	keys := make([]string, len(embeddings))
	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		keys[i] = e.Key
		vectors[i] = e.Vector
	}

	idx, err := index.Build(b.provider.ModelName(), keys, vectors)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	if err := idx.Save(b.indexPath); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}

	if err := writeSummary(b.summaryPath, items, vectors, b.provider.ModelName()); err != nil {
		return nil, err
	}

	stats := &Stats{
		Items:    len(items),
		Embedded: len(toEmbed),
		Duration: time.Since(start),
	}
	b.logger.Info("profile built",
		zap.Int("items", stats.Items),
		zap.Int("embedded", stats.Embedded),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}
