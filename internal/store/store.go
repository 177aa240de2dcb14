// Package store implements the SQLite-backed item store holding the
// researcher's library, its embeddings, and cached LLM summaries.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zotwatch/zotwatch/internal/work"
)

const schema = `
	CREATE TABLE IF NOT EXISTS items (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		abstract TEXT,
		creators TEXT,
		tags TEXT,
		collections TEXT,
		year INTEGER,
		doi TEXT,
		url TEXT,
		venue TEXT,
		raw_json TEXT NOT NULL,
		content_hash TEXT,
		embedding BLOB,
		embedding_hash TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_items_version ON items(version);
	CREATE INDEX IF NOT EXISTS idx_items_doi ON items(doi) WHERE doi IS NOT NULL AND doi != '';

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		paper_id TEXT PRIMARY KEY,
		bullets_json TEXT NOT NULL,
		detailed TEXT NOT NULL,
		model_used TEXT NOT NULL,
		tokens_used INTEGER DEFAULT 0,
		generated_at TIMESTAMP NOT NULL
	);
`

// metaLastSyncVersion is the metadata key tracking the last library version
// seen by incremental ingest.
const metaLastSyncVersion = "last_modified_version"

// Store wraps a SQLite database holding library items.
type Store struct {
	db *sql.DB
}

// Open opens or creates the item store at the given path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertItem inserts or replaces a library item by key. The stored embedding
// and embedding hash are preserved; writing them goes through SetEmbedding.
func (s *Store) UpsertItem(item work.LibraryItem, contentHash string) error {
	creators, err := json.Marshal(item.Creators)
	if err != nil {
		return fmt.Errorf("marshaling creators for %s: %w", item.Key, err)
	}
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags for %s: %w", item.Key, err)
	}
	collections, err := json.Marshal(item.Collections)
	if err != nil {
		return fmt.Errorf("marshaling collections for %s: %w", item.Key, err)
	}
	raw, err := json.Marshal(item.Raw)
	if err != nil {
		return fmt.Errorf("marshaling raw payload for %s: %w", item.Key, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO items (
			key, version, title, abstract, creators, tags, collections,
			year, doi, url, venue, raw_json, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			version=excluded.version,
			title=excluded.title,
			abstract=excluded.abstract,
			creators=excluded.creators,
			tags=excluded.tags,
			collections=excluded.collections,
			year=excluded.year,
			doi=excluded.doi,
			url=excluded.url,
			venue=excluded.venue,
			raw_json=excluded.raw_json,
			content_hash=excluded.content_hash,
			updated_at=CURRENT_TIMESTAMP`,
		item.Key, item.Version, item.Title, nullable(item.Abstract),
		string(creators), string(tags), string(collections),
		item.Year, nullable(item.DOI), nullable(item.URL), nullable(item.Venue),
		string(raw), contentHash,
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", item.Key, err)
	}
	return nil
}

// RemoveItems deletes items by key. A no-op on empty input; deleting keys
// that are already absent is not an error.
func (s *Store) RemoveItems(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.Exec("DELETE FROM items WHERE key IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("removing %d items: %w", len(keys), err)
	}
	return nil
}

// SetEmbedding stores the embedding vector and the content hash it was
// computed from. No other item attributes are touched.
func (s *Store) SetEmbedding(key string, vector []float32, embeddingHash string) error {
	res, err := s.db.Exec(
		"UPDATE items SET embedding = ?, embedding_hash = ?, updated_at=CURRENT_TIMESTAMP WHERE key = ?",
		encodeVector(vector), embeddingHash, key,
	)
	if err != nil {
		return fmt.Errorf("setting embedding for %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("setting embedding for %s: item not found", key)
	}
	return nil
}

// AllItems returns every item in the store.
func (s *Store) AllItems() ([]work.LibraryItem, error) {
	return s.queryItems("SELECT " + itemFields + " FROM items")
}

// ItemsNeedingEmbedding returns items whose embedding is missing or was
// computed from a different content hash, oldest-updated first so stale
// entries refresh in a stable order.
func (s *Store) ItemsNeedingEmbedding() ([]work.LibraryItem, error) {
	return s.queryItems(`
		SELECT ` + itemFields + ` FROM items
		WHERE embedding IS NULL
		   OR embedding_hash IS NULL
		   OR embedding_hash != content_hash
		ORDER BY updated_at ASC`)
}

// CountItemsNeedingEmbedding counts items with missing or stale embeddings.
func (s *Store) CountItemsNeedingEmbedding() (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM items
		WHERE embedding IS NULL
		   OR embedding_hash IS NULL
		   OR embedding_hash != content_hash`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting items needing embedding: %w", err)
	}
	return n, nil
}

// CountItems returns the number of items in the store.
func (s *Store) CountItems() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// KeyedEmbedding pairs an item key with its stored embedding vector.
type KeyedEmbedding struct {
	Key    string
	Vector []float32
}

// AllEmbeddings returns every stored embedding, ordered by key so the result
// is stable for a given store state.
func (s *Store) AllEmbeddings() ([]KeyedEmbedding, error) {
	rows, err := s.db.Query("SELECT key, embedding FROM items WHERE embedding IS NOT NULL ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var result []KeyedEmbedding
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		result = append(result, KeyedEmbedding{Key: key, Vector: decodeVector(blob)})
	}
	return result, rows.Err()
}

// GetMetadata returns the metadata value for key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a metadata key/value pair.
func (s *Store) SetMetadata(key, value string) error {
	if _, err := s.db.Exec("REPLACE INTO metadata(key, value) VALUES(?, ?)", key, value); err != nil {
		return fmt.Errorf("writing metadata %s: %w", key, err)
	}
	return nil
}

// LastSyncVersion returns the last library version seen by ingest, 0 when
// the store has never been synced.
func (s *Store) LastSyncVersion() (int, error) {
	value, err := s.GetMetadata(metaLastSyncVersion)
	if err != nil || value == "" {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(value, "%d", &v); err != nil {
		return 0, fmt.Errorf("parsing last sync version %q: %w", value, err)
	}
	return v, nil
}

// SetLastSyncVersion records the library version after a successful ingest.
func (s *Store) SetLastSyncVersion(version int) error {
	return s.SetMetadata(metaLastSyncVersion, fmt.Sprintf("%d", version))
}

const itemFields = `key, version, title, abstract, creators, tags, collections,
	year, doi, url, venue, raw_json, content_hash, embedding, embedding_hash`

func (s *Store) queryItems(query string, args ...any) ([]work.LibraryItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []work.LibraryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(rows *sql.Rows) (work.LibraryItem, error) {
	var (
		item                        work.LibraryItem
		abstract, doi, url, venue   sql.NullString
		creators, tags, collections sql.NullString
		year                        sql.NullInt64
		rawJSON                     string
		contentHash, embeddingHash  sql.NullString
		embedding                   []byte
	)
	err := rows.Scan(
		&item.Key, &item.Version, &item.Title, &abstract,
		&creators, &tags, &collections, &year,
		&doi, &url, &venue, &rawJSON,
		&contentHash, &embedding, &embeddingHash,
	)
	if err != nil {
		return item, fmt.Errorf("scanning item row: %w", err)
	}

	item.Abstract = abstract.String
	item.DOI = doi.String
	item.URL = url.String
	item.Venue = venue.String
	item.Year = int(year.Int64)
	item.ContentHash = contentHash.String
	item.EmbeddingHash = embeddingHash.String
	if len(embedding) > 0 {
		item.Embedding = decodeVector(embedding)
	}

	for _, pair := range []struct {
		src string
		dst *[]string
	}{
		{creators.String, &item.Creators},
		{tags.String, &item.Tags},
		{collections.String, &item.Collections},
	} {
		if pair.src != "" {
			if err := json.Unmarshal([]byte(pair.src), pair.dst); err != nil {
				return item, fmt.Errorf("decoding list field for %s: %w", item.Key, err)
			}
		}
	}
	if rawJSON != "" && rawJSON != "null" {
		if err := json.Unmarshal([]byte(rawJSON), &item.Raw); err != nil {
			return item, fmt.Errorf("decoding raw payload for %s: %w", item.Key, err)
		}
	}

	return item, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetSummary returns the cached summary for a paper, or nil when absent.
func (s *Store) GetSummary(paperID string) (*work.PaperSummary, error) {
	var (
		sum         work.PaperSummary
		bulletsJSON string
		generatedAt string
	)
	err := s.db.QueryRow(
		"SELECT paper_id, bullets_json, detailed, model_used, tokens_used, generated_at FROM summaries WHERE paper_id = ?",
		paperID,
	).Scan(&sum.PaperID, &bulletsJSON, &sum.Detailed, &sum.ModelUsed, &sum.TokensUsed, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading summary for %s: %w", paperID, err)
	}
	if err := json.Unmarshal([]byte(bulletsJSON), &sum.Bullets); err != nil {
		return nil, fmt.Errorf("decoding bullets for %s: %w", paperID, err)
	}
	if t, err := time.Parse(time.RFC3339, generatedAt); err == nil {
		sum.GeneratedAt = t
	}
	return &sum, nil
}

// SaveSummary upserts a summary for a paper.
func (s *Store) SaveSummary(sum work.PaperSummary) error {
	bullets, err := json.Marshal(sum.Bullets)
	if err != nil {
		return fmt.Errorf("marshaling bullets for %s: %w", sum.PaperID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO summaries(paper_id, bullets_json, detailed, model_used, tokens_used, generated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(paper_id) DO UPDATE SET
			bullets_json=excluded.bullets_json,
			detailed=excluded.detailed,
			model_used=excluded.model_used,
			tokens_used=excluded.tokens_used,
			generated_at=excluded.generated_at`,
		sum.PaperID, string(bullets), sum.Detailed, sum.ModelUsed, sum.TokensUsed,
		sum.GeneratedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving summary for %s: %w", sum.PaperID, err)
	}
	return nil
}

// HasSummary reports whether a summary is cached for the paper.
func (s *Store) HasSummary(paperID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM summaries WHERE paper_id = ?", paperID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking summary for %s: %w", paperID, err)
	}
	return true, nil
}
