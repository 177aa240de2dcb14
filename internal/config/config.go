// Package config loads layered settings: built-in defaults, then
// config/config.yaml under the base directory, then ZOTWATCH_* environment
// overrides. API keys are not settings; clients read them from the
// environment directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps all validation failures. Configuration errors are
// fatal: a run with a half-valid scoring setup silently misranks.
var ErrInvalidConfig = errors.New("invalid configuration")

// Settings is the full runtime configuration.
type Settings struct {
	Zotero    ZoteroSettings    `mapstructure:"zotero"`
	Embedding EmbeddingSettings `mapstructure:"embedding"`
	Sources   SourcesSettings   `mapstructure:"sources"`
	Scoring   ScoringSettings   `mapstructure:"scoring"`
	Filters   FilterSettings    `mapstructure:"filters"`
	LLM       LLMSettings       `mapstructure:"llm"`
	Output    OutputSettings    `mapstructure:"output"`
	Daemon    DaemonSettings    `mapstructure:"daemon"`
}

// ZoteroSettings configure library sync and push-back.
type ZoteroSettings struct {
	UserID         string `mapstructure:"user_id"`
	PushCollection string `mapstructure:"push_collection"`
}

// EmbeddingSettings configure the embedding provider and its cache.
type EmbeddingSettings struct {
	Model            string `mapstructure:"model"`
	InputType        string `mapstructure:"input_type"`
	BatchSize        int    `mapstructure:"batch_size"`
	Dimensions       int    `mapstructure:"dimensions"`
	CandidateTTLDays int    `mapstructure:"candidate_ttl_days"`
}

// SourcesSettings hold per-source fetch configuration.
type SourcesSettings struct {
	Arxiv   ArxivSettings    `mapstructure:"arxiv"`
	Biorxiv PreprintSettings `mapstructure:"biorxiv"`
	Medrxiv PreprintSettings `mapstructure:"medrxiv"`
}

// ArxivSettings configure the arXiv source.
type ArxivSettings struct {
	Enabled    bool     `mapstructure:"enabled"`
	Categories []string `mapstructure:"categories"`
	MaxResults int      `mapstructure:"max_results"`
	DaysBack   int      `mapstructure:"days_back"`
}

// PreprintSettings configure a bioRxiv-family source.
type PreprintSettings struct {
	Enabled  bool `mapstructure:"enabled"`
	DaysBack int  `mapstructure:"days_back"`
}

// ScoringSettings configure the ranking engine.
type ScoringSettings struct {
	Weights          WeightSettings    `mapstructure:"weights"`
	Thresholds       ThresholdSettings `mapstructure:"thresholds"`
	Decay            DecaySettings     `mapstructure:"decay"`
	WhitelistAuthors []string          `mapstructure:"whitelist_authors"`
	WhitelistVenues  []string          `mapstructure:"whitelist_venues"`
}

// WeightSettings are the full-mode component weights.
type WeightSettings struct {
	Similarity  float64 `mapstructure:"similarity"`
	Recency     float64 `mapstructure:"recency"`
	Citations   float64 `mapstructure:"citations"`
	AuthorBonus float64 `mapstructure:"author_bonus"`
	VenueBonus  float64 `mapstructure:"venue_bonus"`
}

// ThresholdSettings map composite scores to labels.
type ThresholdSettings struct {
	MustRead float64 `mapstructure:"must_read"`
	Consider float64 `mapstructure:"consider"`
}

// DecaySettings are the recency step-function windows, in days.
type DecaySettings struct {
	Fast   int `mapstructure:"fast"`
	Medium int `mapstructure:"medium"`
	Slow   int `mapstructure:"slow"`
}

// FilterSettings configure the post-ranking filters.
type FilterSettings struct {
	RecentDays      int     `mapstructure:"recent_days"`
	MaxPreprintRate float64 `mapstructure:"max_preprint_ratio"`
}

// LLMSettings configure summarization.
type LLMSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	TopN    int    `mapstructure:"top_n"`
}

// OutputSettings configure report and feed generation.
type OutputSettings struct {
	RSSTitle       string `mapstructure:"rss_title"`
	RSSLink        string `mapstructure:"rss_link"`
	RSSDescription string `mapstructure:"rss_description"`
}

// DaemonSettings configure the scheduled watch loop.
type DaemonSettings struct {
	Schedule string `mapstructure:"schedule"`
}

// Load reads settings for the given base directory. A missing config file
// is fine; defaults and environment still apply.
func Load(baseDir string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Join(baseDir, "config", "config.yaml"))
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ZOTWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	// Keys must be registered for AutomaticEnv to surface them during
	// Unmarshal, so settings without a meaningful default get a zero value.
	v.SetDefault("zotero.user_id", "")
	v.SetDefault("zotero.push_collection", "")

	v.SetDefault("embedding.model", "voyage-3")
	v.SetDefault("embedding.input_type", "document")
	v.SetDefault("embedding.batch_size", 128)
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.candidate_ttl_days", 14)

	v.SetDefault("sources.arxiv.enabled", true)
	v.SetDefault("sources.arxiv.categories", []string{"q-bio.PE", "q-bio.QM"})
	v.SetDefault("sources.arxiv.max_results", 200)
	v.SetDefault("sources.arxiv.days_back", 7)
	v.SetDefault("sources.biorxiv.enabled", true)
	v.SetDefault("sources.biorxiv.days_back", 7)
	v.SetDefault("sources.medrxiv.enabled", false)
	v.SetDefault("sources.medrxiv.days_back", 7)

	v.SetDefault("scoring.weights.similarity", 1.0)
	v.SetDefault("scoring.weights.recency", 0.3)
	v.SetDefault("scoring.weights.citations", 0.1)
	v.SetDefault("scoring.weights.author_bonus", 0.25)
	v.SetDefault("scoring.weights.venue_bonus", 0.15)
	v.SetDefault("scoring.thresholds.must_read", 0.8)
	v.SetDefault("scoring.thresholds.consider", 0.5)
	v.SetDefault("scoring.decay.fast", 3)
	v.SetDefault("scoring.decay.medium", 7)
	v.SetDefault("scoring.decay.slow", 30)

	v.SetDefault("filters.recent_days", 7)
	v.SetDefault("filters.max_preprint_ratio", 0.3)

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.model", "anthropic/claude-3.5-sonnet")
	v.SetDefault("llm.top_n", 20)

	v.SetDefault("output.rss_title", "ZotWatch Recommendations")
	v.SetDefault("output.rss_link", "")
	v.SetDefault("output.rss_description", "")

	v.SetDefault("daemon.schedule", "0 7 * * *")
}

// Validate checks cross-field constraints. Any violation is fatal.
func (s *Settings) Validate() error {
	w := s.Scoring.Weights
	for name, value := range map[string]float64{
		"similarity":   w.Similarity,
		"recency":      w.Recency,
		"citations":    w.Citations,
		"author_bonus": w.AuthorBonus,
		"venue_bonus":  w.VenueBonus,
	} {
		if value < 0 {
			return fmt.Errorf("%w: scoring weight %s is negative", ErrInvalidConfig, name)
		}
	}
	if w.Similarity+w.Recency+w.Citations+w.AuthorBonus+w.VenueBonus == 0 {
		return fmt.Errorf("%w: all scoring weights are zero", ErrInvalidConfig)
	}

	t := s.Scoring.Thresholds
	if t.MustRead < t.Consider {
		return fmt.Errorf("%w: must_read threshold %.3f below consider threshold %.3f",
			ErrInvalidConfig, t.MustRead, t.Consider)
	}

	d := s.Scoring.Decay
	if d.Fast <= 0 || d.Medium < d.Fast || d.Slow < d.Medium {
		return fmt.Errorf("%w: decay windows must satisfy 0 < fast <= medium <= slow", ErrInvalidConfig)
	}

	if s.Filters.MaxPreprintRate < 0 || s.Filters.MaxPreprintRate > 1 {
		return fmt.Errorf("%w: max_preprint_ratio must be in [0, 1]", ErrInvalidConfig)
	}

	if s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch_size must be positive", ErrInvalidConfig)
	}
	return nil
}
