package rank

import (
	"math"
	"testing"
	"time"

	"github.com/zotwatch/zotwatch/internal/work"
)

func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	windows := DefaultDecayWindows

	daysAgo := func(d int) *time.Time {
		ts := now.AddDate(0, 0, -d)
		return &ts
	}

	tests := []struct {
		name      string
		published *time.Time
		want      float64
	}{
		{"nil date scores zero", nil, 0.0},
		{"today", daysAgo(0), 1.0},
		{"inside fast window", daysAgo(3), 1.0},
		{"inside medium window", daysAgo(5), 0.7},
		{"inside slow window", daysAgo(20), 0.4},
		{"beyond slow window", daysAgo(90), 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recencyScore(tt.published, now, windows); got != tt.want {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}

	t.Run("future date counts as today", func(t *testing.T) {
		future := now.AddDate(0, 0, 2)
		if got := recencyScore(&future, now, windows); got != 1.0 {
			t.Errorf("got %f, want 1.0", got)
		}
	})
}

func TestCitationScore(t *testing.T) {
	tests := []struct {
		name    string
		metrics map[string]float64
		want    float64
	}{
		{"uncited", map[string]float64{"cited_by": 0}, 0.0},
		{"unknown", nil, 0.0},
		{"ten citations", map[string]float64{"cited_by": 10}, math.Log1p(10)},
		{"crossref key", map[string]float64{"is-referenced-by": 4}, math.Log1p(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := work.CandidateWork{Metrics: tt.metrics}
			if got := citationScore(&c); got != tt.want {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestWhitelistBonus(t *testing.T) {
	whitelist := []string{"Jane Doe", "NATURE"}

	tests := []struct {
		name   string
		values []string
		want   float64
	}{
		{"exact match", []string{"Jane Doe"}, 1.0},
		{"case insensitive", []string{"jane doe"}, 1.0},
		{"second value matches", []string{"Nobody", "nature"}, 1.0},
		{"no match", []string{"Someone Else"}, 0.0},
		{"empty values", nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := whitelistBonus(tt.values, whitelist); got != tt.want {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}

	t.Run("empty whitelist", func(t *testing.T) {
		if got := whitelistBonus([]string{"anyone"}, nil); got != 0.0 {
			t.Errorf("got %f, want 0", got)
		}
	})
}

func TestJournalScorer(t *testing.T) {
	j := NewJournalScorer(map[string]float64{
		"Nature":       50,
		"PLOS ONE":     3,
		"Some Journal": 1,
	})

	t.Run("top journal scores one", func(t *testing.T) {
		norm, raw := j.Score("nature")
		if norm != 1.0 || raw != 50 {
			t.Errorf("got %f/%f, want 1.0/50", norm, raw)
		}
	})

	t.Run("lower impact scales by log1p", func(t *testing.T) {
		norm, _ := j.Score("PLOS ONE")
		want := math.Log1p(3) / math.Log1p(50)
		if math.Abs(norm-want) > 1e-9 {
			t.Errorf("got %f, want %f", norm, want)
		}
	})

	t.Run("unknown venue scores zero", func(t *testing.T) {
		if norm, raw := j.Score("Unknown Venue"); norm != 0 || raw != 0 {
			t.Errorf("got %f/%f, want zeros", norm, raw)
		}
	})

	t.Run("whitespace normalized", func(t *testing.T) {
		norm, _ := j.Score("  nature ")
		if norm != 1.0 {
			t.Errorf("got %f, want 1.0", norm)
		}
	})

	t.Run("empty scorer", func(t *testing.T) {
		empty := NewJournalScorer(nil)
		if norm, _ := empty.Score("Nature"); norm != 0 {
			t.Errorf("got %f, want 0", norm)
		}
	})
}
