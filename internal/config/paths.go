package config

import "path/filepath"

// Paths resolves the on-disk layout under a base directory. Everything the
// pipeline persists lives below data/ and reports/.
type Paths struct {
	BaseDir string
}

// NewPaths creates a path resolver for baseDir.
func NewPaths(baseDir string) Paths {
	return Paths{BaseDir: baseDir}
}

// ProfileDB is the sqlite item store.
func (p Paths) ProfileDB() string {
	return filepath.Join(p.BaseDir, "data", "profile.sqlite")
}

// Index is the serialized similarity index.
func (p Paths) Index() string {
	return filepath.Join(p.BaseDir, "data", "profile.index")
}

// ProfileSummary is the human-readable profile JSON.
func (p Paths) ProfileSummary() string {
	return filepath.Join(p.BaseDir, "data", "profile.json")
}

// EmbeddingCache is the sqlite embedding cache.
func (p Paths) EmbeddingCache() string {
	return filepath.Join(p.BaseDir, "data", "cache", "embeddings.sqlite")
}

// CandidateCache is the JSON candidate results cache.
func (p Paths) CandidateCache() string {
	return filepath.Join(p.BaseDir, "data", "cache", "candidates.json")
}

// JournalTable is the YAML impact-factor table.
func (p Paths) JournalTable() string {
	return filepath.Join(p.BaseDir, "config", "journals.yaml")
}

// ReportsDir holds generated HTML reports and the RSS feed.
func (p Paths) ReportsDir() string {
	return filepath.Join(p.BaseDir, "reports")
}

// TemplatesDir optionally holds a custom report template.
func (p Paths) TemplatesDir() string {
	return filepath.Join(p.BaseDir, "templates")
}

// EnvFile is the dotenv file with API keys.
func (p Paths) EnvFile() string {
	return filepath.Join(p.BaseDir, ".env")
}
