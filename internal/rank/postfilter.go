package rank

import (
	"strings"
	"time"

	"github.com/zotwatch/zotwatch/internal/work"
)

// preprintSources are the feeds whose output the preprint cap applies to.
var preprintSources = map[string]struct{}{
	"arxiv":   {},
	"biorxiv": {},
	"medrxiv": {},
}

// FilterRecent drops ranked works published more than days ago, or with no
// publication date. days <= 0 disables the filter. Rank order is preserved.
func FilterRecent(ranked []work.RankedWork, days int, now time.Time) []work.RankedWork {
	if days <= 0 {
		return ranked
	}
	cutoff := now.AddDate(0, 0, -days)
	kept := make([]work.RankedWork, 0, len(ranked))
	for _, rw := range ranked {
		if rw.Published != nil && !rw.Published.Before(cutoff) {
			kept = append(kept, rw)
		}
	}
	return kept
}

// CapPreprints walks the ranked list in order and skips preprint entries
// that would push the preprint share above maxRatio. maxRatio <= 0 disables
// the cap. Relative order of kept entries is preserved.
func CapPreprints(ranked []work.RankedWork, maxRatio float64) []work.RankedWork {
	if len(ranked) == 0 || maxRatio <= 0 {
		return ranked
	}
	kept := make([]work.RankedWork, 0, len(ranked))
	preprints := 0
	for _, rw := range ranked {
		_, isPreprint := preprintSources[strings.ToLower(rw.Source)]
		if isPreprint {
			if float64(preprints+1)/float64(len(kept)+1) > maxRatio {
				continue
			}
			preprints++
		}
		kept = append(kept, rw)
	}
	return kept
}
