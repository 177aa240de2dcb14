// Package index provides the similarity index over library embeddings.
//
// The index is an immutable snapshot: it is built wholesale from the item
// store's embeddings on every profile build and swapped in atomically via
// a tmp-file rename. It is never mutated in place.
package index

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Errors returned by index operations.
var (
	// ErrIndexNotFound means the profile has not been built yet; ranking
	// cannot proceed without an index.
	ErrIndexNotFound = errors.New("similarity index not found; run profile build first")

	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrEmptyIndex         = errors.New("cannot build index from zero vectors")
)

// CurrentIndexVersion is the serialized format version. Increment on
// breaking changes to the on-disk layout.
const CurrentIndexVersion = 1

// Index holds L2-normalized library embeddings in insertion order and
// answers nearest-neighbor queries by inner product (cosine similarity
// after normalization).
type Index struct {
	Version    int
	ModelName  string
	Dimensions int
	CreatedAt  time.Time

	// Keys[i] identifies the library item whose vector is Vectors[i].
	Keys    []string
	Vectors [][]float32
}

// Build constructs an index from keys and their embedding vectors. Vectors
// are L2-normalized on insertion so that inner product equals cosine
// similarity. Inputs are copied; the caller may reuse its slices.
func Build(modelName string, keys []string, vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(keys) != len(vectors) {
		return nil, fmt.Errorf("key/vector count mismatch: %d vs %d", len(keys), len(vectors))
	}

	dims := len(vectors[0])
	idx := &Index{
		Version:    CurrentIndexVersion,
		ModelName:  modelName,
		Dimensions: dims,
		CreatedAt:  time.Now().UTC(),
		Keys:       append([]string(nil), keys...),
		Vectors:    make([][]float32, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dims)
		}
		idx.Vectors[i] = Normalize(v)
	}
	return idx, nil
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	return len(idx.Vectors)
}

// Result is a single nearest-neighbor match.
type Result struct {
	Key        string
	Position   int
	Similarity float32
}

// Search returns the topK stored vectors nearest to each query by inner
// product, one result slice per query in input order. Queries are
// normalized before comparison.
func (idx *Index) Search(queries [][]float32, topK int) ([][]Result, error) {
	if topK <= 0 {
		topK = 1
	}

	out := make([][]Result, len(queries))
	for qi, query := range queries {
		if len(query) != idx.Dimensions {
			return nil, fmt.Errorf("query %d has %d dimensions, want %d", qi, len(query), idx.Dimensions)
		}
		q := Normalize(query)

		results := make([]Result, 0, len(idx.Vectors))
		for pos, stored := range idx.Vectors {
			results = append(results, Result{
				Key:        idx.Keys[pos],
				Position:   pos,
				Similarity: dot(q, stored),
			})
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Similarity > results[j].Similarity
		})
		if len(results) > topK {
			results = results[:topK]
		}
		out[qi] = results
	}
	return out, nil
}

// Save persists the index using GOB encoding, writing to a temp file and
// renaming so readers never observe a partial index.
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(idx); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding index: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Load reads an index from disk. A missing file is reported as
// ErrIndexNotFound so callers can fail fast with a "profile not built"
// condition.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var idx Index
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&idx); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}

	if idx.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild the profile)",
			ErrUnsupportedVersion, idx.Version, CurrentIndexVersion)
	}

	return &idx, nil
}

// Normalize returns a unit-length copy of v. Zero vectors are returned as a
// copy unchanged rather than dividing by zero.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / math.Sqrt(norm)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Centroid computes the unit-normalized mean of the given vectors. Used for
// the profile summary artifact.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dims := len(vectors[0])
	mean := make([]float64, dims)
	for _, v := range vectors {
		for i, f := range v {
			mean[i] += float64(f)
		}
	}
	out := make([]float32, dims)
	n := float64(len(vectors))
	for i := range mean {
		out[i] = float32(mean[i] / n)
	}
	return Normalize(out)
}
