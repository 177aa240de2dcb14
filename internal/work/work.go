// Package work defines the core domain types for papers flowing through
// the recommendation pipeline.
package work

import (
	"strings"
	"time"
)

// Label categorizes a ranked work by how strongly it matches the profile.
type Label string

const (
	LabelMustRead Label = "must_read"
	LabelConsider Label = "consider"
	LabelIgnore   Label = "ignore"
)

// LibraryItem is a paper already present in the researcher's library.
// Embedding and EmbeddingHash are managed exclusively by the profile-build
// flow; ingestion never touches them.
type LibraryItem struct {
	Key         string         `json:"key"`
	Version     int            `json:"version"`
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract,omitempty"`
	Creators    []string       `json:"creators,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Collections []string       `json:"collections,omitempty"`
	Year        int            `json:"year,omitempty"`
	DOI         string         `json:"doi,omitempty"`
	URL         string         `json:"url,omitempty"`
	Venue       string         `json:"venue,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`

	// ContentHash is a digest over title, abstract, and creators. The
	// stored embedding is stale whenever EmbeddingHash differs from it.
	ContentHash   string    `json:"content_hash,omitempty"`
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`
}

// ComputeContentHash derives the change-tracking hash for the item.
func (it *LibraryItem) ComputeContentHash() string {
	parts := []string{it.Title, it.Abstract}
	parts = append(parts, it.Creators...)
	return HashContent(parts...)
}

// ContentForEmbedding returns the text that is embedded for this item.
func (it *LibraryItem) ContentForEmbedding() string {
	return joinTitleAbstract(it.Title, it.Abstract)
}

// NeedsEmbedding reports whether the stored embedding is absent or stale.
func (it *LibraryItem) NeedsEmbedding() bool {
	return len(it.Embedding) == 0 || it.EmbeddingHash == "" || it.EmbeddingHash != it.ContentHash
}

// CandidateWork is a paper discovered from an external source. Candidates
// are ephemeral: they live for a single run plus the short-lived results
// cache.
type CandidateWork struct {
	Source     string             `json:"source"`
	Identifier string             `json:"identifier"`
	Title      string             `json:"title"`
	Abstract   string             `json:"abstract,omitempty"`
	Authors    []string           `json:"authors,omitempty"`
	DOI        string             `json:"doi,omitempty"`
	URL        string             `json:"url,omitempty"`
	Published  *time.Time         `json:"published,omitempty"`
	Venue      string             `json:"venue,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Extra      map[string]string  `json:"extra,omitempty"`
}

// ContentForEmbedding returns the text that is embedded for this candidate.
// Candidates without abstracts embed on title alone.
func (c *CandidateWork) ContentForEmbedding() string {
	return joinTitleAbstract(c.Title, c.Abstract)
}

// CitationCount returns the citation metric for the candidate, checking the
// keys used by the supported sources. Zero when unknown.
func (c *CandidateWork) CitationCount() float64 {
	if v, ok := c.Metrics["cited_by"]; ok {
		return v
	}
	if v, ok := c.Metrics["is-referenced-by"]; ok {
		return v
	}
	return 0
}

// RankedWork is a candidate extended with scoring components. Instances are
// immutable after ranking except for the optional Summary attachment.
type RankedWork struct {
	CandidateWork

	Score             float64 `json:"score"`
	Similarity        float64 `json:"similarity"`
	RecencyScore      float64 `json:"recency_score"`
	MetricScore       float64 `json:"metric_score"`
	AuthorBonus       float64 `json:"author_bonus"`
	VenueBonus        float64 `json:"venue_bonus"`
	ImpactFactorScore float64 `json:"impact_factor_score,omitempty"`
	ImpactFactor      float64 `json:"impact_factor,omitempty"`
	Label             Label   `json:"label"`

	Summary *PaperSummary `json:"summary,omitempty"`
}

// PaperSummary is an LLM-generated summary attached to a ranked work and
// cached in the item store.
type PaperSummary struct {
	PaperID     string    `json:"paper_id"`
	Bullets     []string  `json:"bullets"`
	Detailed    string    `json:"detailed"`
	ModelUsed   string    `json:"model_used"`
	TokensUsed  int       `json:"tokens_used"`
	GeneratedAt time.Time `json:"generated_at"`
}

func joinTitleAbstract(title, abstract string) string {
	title = strings.TrimSpace(title)
	abstract = strings.TrimSpace(abstract)
	if abstract == "" {
		return title
	}
	return title + "\n\n" + abstract
}
