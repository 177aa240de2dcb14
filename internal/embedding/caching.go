package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// CachingProvider wraps a Provider with the content-hash cache. Lookups key
// on the hash of the text, not an identifier, so an abstract change on the
// same paper correctly triggers a recompute.
type CachingProvider struct {
	provider   Provider
	cache      *Cache
	sourceType string
	ttl        time.Duration
	logger     *zap.Logger
}

// NewCachingProvider builds a caching wrapper for the given source type.
// Each source type carries its own TTL.
func NewCachingProvider(provider Provider, cache *Cache, sourceType string, ttl time.Duration, logger *zap.Logger) *CachingProvider {
	return &CachingProvider{
		provider:   provider,
		cache:      cache,
		sourceType: sourceType,
		ttl:        ttl,
		logger:     logger,
	}
}

// Encode returns one vector per text, serving unexpired cache entries and
// calling the underlying provider once for the batch of misses.
func (p *CachingProvider) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	hashes := make([]string, len(texts))

	for i, text := range texts {
		hashes[i] = work.HashContent(text)
		vec, ok, err := p.cache.Get(p.sourceType, hashes[i], p.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			vectors[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	p.logger.Debug("embedding cache lookup",
		zap.String("source_type", p.sourceType),
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)),
	)

	if len(missTexts) == 0 {
		return vectors, nil
	}

	computed, err := p.provider.Encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vec := range computed {
		i := missIdx[j]
		vectors[i] = vec
		if err := p.cache.Put(p.sourceType, hashes[i], p.provider.ModelName(), vec); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// ModelName returns the wrapped provider's model identifier.
func (p *CachingProvider) ModelName() string {
	return p.provider.ModelName()
}

// Dimensions returns the wrapped provider's dimensionality.
func (p *CachingProvider) Dimensions() int {
	return p.provider.Dimensions()
}
