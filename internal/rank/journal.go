package rank

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// JournalScorer maps venue names to a normalized impact-factor score in
// [0, 1]. The table lives in a YAML file shipped alongside the config.
type JournalScorer struct {
	factors map[string]float64
	maxLog  float64
}

// journalTable is the YAML layout of the impact-factor file.
type journalTable struct {
	Journals map[string]float64 `yaml:"journals"`
}

// LoadJournalScorer reads an impact-factor table. A missing file yields a
// scorer that scores everything zero, since profile-mode ranking should
// still work without the table.
func LoadJournalScorer(path string) (*JournalScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewJournalScorer(nil), nil
		}
		return nil, fmt.Errorf("reading journal table: %w", err)
	}

	var table journalTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing journal table: %w", err)
	}
	return NewJournalScorer(table.Journals), nil
}

// NewJournalScorer builds a scorer from a venue → impact factor map. Venue
// names are normalized the same way titles are.
func NewJournalScorer(factors map[string]float64) *JournalScorer {
	normalized := make(map[string]float64, len(factors))
	var maxIF float64
	for name, factor := range factors {
		normalized[normalizeVenue(name)] = factor
		if factor > maxIF {
			maxIF = factor
		}
	}
	return &JournalScorer{
		factors: normalized,
		maxLog:  math.Log1p(maxIF),
	}
}

// Score returns the normalized impact score and the raw impact factor for
// a venue. Unknown venues score zero.
func (j *JournalScorer) Score(venue string) (normalized, raw float64) {
	if venue == "" || len(j.factors) == 0 {
		return 0, 0
	}
	raw, ok := j.factors[normalizeVenue(venue)]
	if !ok || j.maxLog == 0 {
		return 0, 0
	}
	return math.Log1p(raw) / j.maxLog, raw
}

func normalizeVenue(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
