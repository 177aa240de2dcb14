package embedding

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
	CREATE TABLE IF NOT EXISTS embedding_cache (
		source_type TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		vector BLOB NOT NULL,
		model_name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (source_type, content_hash)
	);
`

// Cache is a SQLite-backed embedding cache keyed by (source type, content
// hash). Entries past their TTL are treated as absent on lookup; they are
// replaced on the next Put rather than swept in the background.
type Cache struct {
	db *sql.DB

	// now is overridable for TTL tests.
	now func() time.Time
}

// OpenCache opens or creates the embedding cache at the given path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached vector for (sourceType, contentHash) if present and
// younger than ttl. The second return value reports a usable hit.
func (c *Cache) Get(sourceType, contentHash string, ttl time.Duration) ([]float32, bool, error) {
	var (
		blob      []byte
		createdAt int64
	)
	err := c.db.QueryRow(
		"SELECT vector, created_at FROM embedding_cache WHERE source_type = ? AND content_hash = ?",
		sourceType, contentHash,
	).Scan(&blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	age := c.now().Sub(time.Unix(createdAt, 0))
	if ttl > 0 && age > ttl {
		return nil, false, nil
	}
	return decodeCacheVector(blob), true, nil
}

// Put stores a vector for (sourceType, contentHash), replacing any existing
// entry and resetting its creation time.
func (c *Cache) Put(sourceType, contentHash, modelName string, vector []float32) error {
	_, err := c.db.Exec(
		"REPLACE INTO embedding_cache(source_type, content_hash, vector, model_name, created_at) VALUES(?, ?, ?, ?, ?)",
		sourceType, contentHash, encodeCacheVector(vector), modelName, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

func encodeCacheVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeCacheVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
