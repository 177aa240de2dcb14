package rank

import (
	"math"
	"strings"
	"time"

	"github.com/zotwatch/zotwatch/internal/work"
)

// Weights combine the scoring components into a composite score. They are
// supplied by configuration, never hardcoded.
type Weights struct {
	Similarity  float64
	Recency     float64
	Citations   float64
	AuthorBonus float64
	VenueBonus  float64
}

// Thresholds map a composite score to a label.
type Thresholds struct {
	MustRead float64
	Consider float64
}

// Label assigns the categorical label for a score.
func (t Thresholds) Label(score float64) work.Label {
	switch {
	case score >= t.MustRead:
		return work.LabelMustRead
	case score >= t.Consider:
		return work.LabelConsider
	default:
		return work.LabelIgnore
	}
}

// DecayWindows define the recency step function, in days since publication.
type DecayWindows struct {
	Fast   int
	Medium int
	Slow   int
}

// DefaultDecayWindows matches the shipped configuration.
var DefaultDecayWindows = DecayWindows{Fast: 3, Medium: 7, Slow: 30}

// recencyScore is a step function of days since publication. Unknown
// publication dates score zero rather than failing.
func recencyScore(published *time.Time, now time.Time, windows DecayWindows) float64 {
	if published == nil {
		return 0.0
	}
	days := int(now.Sub(*published).Hours() / 24)
	if days < 0 {
		days = 0
	}
	switch {
	case days <= windows.Fast:
		return 1.0
	case days <= windows.Medium:
		return 0.7
	case days <= windows.Slow:
		return 0.4
	default:
		return 0.1
	}
}

// citationScore is log1p of the citation count, so differences at low
// counts matter proportionally more; unknown counts score zero and never
// penalize a candidate.
func citationScore(c *work.CandidateWork) float64 {
	citations := c.CitationCount()
	if citations <= 0 {
		return 0.0
	}
	return math.Log1p(citations)
}

// whitelistBonus returns 1.0 when any value matches the whitelist,
// case-insensitively.
func whitelistBonus(values []string, whitelist []string) float64 {
	if len(whitelist) == 0 {
		return 0.0
	}
	set := make(map[string]struct{}, len(whitelist))
	for _, w := range whitelist {
		set[strings.ToLower(w)] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := set[strings.ToLower(v)]; ok {
			return 1.0
		}
	}
	return 0.0
}
