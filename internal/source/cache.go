package source

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// DefaultCacheTTL is how long a fetched candidate list stays valid.
const DefaultCacheTTL = 12 * time.Hour

// ResultsCache stores the candidate list of a fetch run as a JSON file so
// repeated watch runs within the TTL skip the upstream APIs entirely.
type ResultsCache struct {
	path   string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// cachePayload is the on-disk layout. RunID identifies the fetch run that
// produced the snapshot.
type cachePayload struct {
	RunID      string               `json:"run_id"`
	FetchedAt  time.Time            `json:"fetched_at"`
	Candidates []work.CandidateWork `json:"candidates"`
}

// NewResultsCache creates a cache at path. ttl <= 0 uses DefaultCacheTTL.
func NewResultsCache(path string, ttl time.Duration, logger *zap.Logger) *ResultsCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultsCache{path: path, ttl: ttl, logger: logger, now: time.Now}
}

// Load returns the cached candidates when the snapshot is younger than the
// TTL. A missing or unreadable cache is not an error, just a miss.
func (c *ResultsCache) Load() ([]work.CandidateWork, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}

	var payload cachePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("unreadable candidate cache, refetching", zap.Error(err))
		return nil, false
	}

	age := c.now().Sub(payload.FetchedAt)
	if age > c.ttl {
		c.logger.Info("candidate cache is stale",
			zap.String("run_id", payload.RunID),
			zap.Duration("age", age))
		return nil, false
	}

	c.logger.Info("using cached candidate list",
		zap.String("run_id", payload.RunID),
		zap.Duration("age", age),
		zap.Int("count", len(payload.Candidates)))
	return payload.Candidates, true
}

// Save writes a new snapshot and returns the run ID assigned to it.
func (c *ResultsCache) Save(candidates []work.CandidateWork) (string, error) {
	now := c.now()
	runID := ulid.MustNew(ulid.Timestamp(now), rand.New(rand.NewSource(now.UnixNano()))).String()

	payload := cachePayload{
		RunID:      runID,
		FetchedAt:  now,
		Candidates: candidates,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding candidate cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	// Write-then-rename so a crashed run never leaves a torn cache.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing candidate cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replacing candidate cache: %w", err)
	}
	return runID, nil
}
