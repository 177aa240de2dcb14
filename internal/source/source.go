package source

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// Common errors returned by candidate sources.
var (
	// ErrRateLimited indicates the upstream rate limit has been exceeded
	// even after retries.
	ErrRateLimited = errors.New("source rate limit exceeded")

	// ErrInvalidResponse indicates an unexpected upstream response.
	ErrInvalidResponse = errors.New("invalid response from source")
)

// Source fetches candidate works from one upstream feed.
type Source interface {
	// Name is the stable source identifier ("arxiv", "biorxiv", ...). It is
	// recorded on every candidate and used for dedup priority.
	Name() string

	// Enabled reports whether this source should be fetched at all.
	Enabled() bool

	// Fetch returns candidates published within the last daysBack days.
	Fetch(ctx context.Context, daysBack int) ([]work.CandidateWork, error)
}

// Registry holds the configured sources in priority order. The order sources
// are registered in is the dedup priority order: earlier wins.
type Registry struct {
	sources []Source
	logger  *zap.Logger
}

// NewRegistry creates a registry. Sources should be registered in dedup
// priority order.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends a source. Registration order defines priority.
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

// Priority returns the source names in registration order.
func (r *Registry) Priority() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// FetchAll fetches every enabled source in order and concatenates the
// results. A failing source is logged and skipped; the remaining sources
// still run. The error is non-nil only when every enabled source failed.
func (r *Registry) FetchAll(ctx context.Context, daysBack int) ([]work.CandidateWork, error) {
	var all []work.CandidateWork
	var attempted, failed int
	var lastErr error

	for _, s := range r.sources {
		if !s.Enabled() {
			r.logger.Debug("source disabled", zap.String("source", s.Name()))
			continue
		}
		attempted++

		start := time.Now()
		candidates, err := s.Fetch(ctx, daysBack)
		if err != nil {
			failed++
			lastErr = err
			r.logger.Warn("source fetch failed",
				zap.String("source", s.Name()),
				zap.Error(err))
			continue
		}

		r.logger.Info("fetched candidates",
			zap.String("source", s.Name()),
			zap.Int("count", len(candidates)),
			zap.Duration("elapsed", time.Since(start)))
		all = append(all, candidates...)
	}

	if attempted > 0 && failed == attempted {
		return nil, lastErr
	}
	return all, nil
}
