package rank

import (
	"sort"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// LibraryKeys holds the identity keys already present in the library,
// normalized for comparison. Build it once per run from the item store.
type LibraryKeys struct {
	DOIs   map[string]struct{}
	Titles map[string]struct{}
}

// NewLibraryKeys extracts normalized dedup keys from library items. Items
// missing a DOI or title simply contribute nothing to that key set.
func NewLibraryKeys(items []work.LibraryItem) *LibraryKeys {
	keys := &LibraryKeys{
		DOIs:   make(map[string]struct{}, len(items)),
		Titles: make(map[string]struct{}, len(items)),
	}
	for _, item := range items {
		if doi := NormalizeDOI(item.DOI); doi != "" {
			keys.DOIs[doi] = struct{}{}
		}
		if title := NormalizeTitle(item.Title); title != "" {
			keys.Titles[title] = struct{}{}
		}
	}
	return keys
}

// Dedupe removes candidates that duplicate library items or each other.
type Dedupe struct {
	library  *LibraryKeys
	priority map[string]int
	logger   *zap.Logger
}

// NewDedupe creates a dedupe engine. sourcePriority lists source names in
// preference order; when the same paper arrives from two sources, the entry
// from the earlier-listed source survives.
func NewDedupe(library *LibraryKeys, sourcePriority []string, logger *zap.Logger) *Dedupe {
	priority := make(map[string]int, len(sourcePriority))
	for i, name := range sourcePriority {
		priority[name] = i
	}
	return &Dedupe{library: library, priority: priority, logger: logger}
}

// Filter removes candidates whose DOI or normalized title matches a library
// item, then collapses cross-source duplicates within the batch. Candidates
// with no DOI and no usable title can only be matched by the keys they do
// have; malformed metadata never causes an error. The survivor of an
// in-batch duplicate pair is deterministic: source priority order first,
// then discovery order. Kept candidates come back in discovery order.
func (d *Dedupe) Filter(candidates []work.CandidateWork) []work.CandidateWork {
	// Visit candidates in priority order so the preferred source's copy of a
	// duplicate pair is the one that claims the key; unknown sources rank
	// after configured ones. The output itself keeps discovery order —
	// priority only decides survivors.
	visit := make([]int, len(candidates))
	for i := range visit {
		visit[i] = i
	}
	sort.SliceStable(visit, func(i, j int) bool {
		return d.sourceRank(candidates[visit[i]].Source) < d.sourceRank(candidates[visit[j]].Source)
	})

	seenDOIs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	survives := make([]bool, len(candidates))
	dropped := 0

	for _, i := range visit {
		c := candidates[i]
		doi := NormalizeDOI(c.DOI)
		title := NormalizeTitle(c.Title)

		if doi != "" {
			if _, ok := d.library.DOIs[doi]; ok {
				dropped++
				continue
			}
			if _, ok := seenDOIs[doi]; ok {
				dropped++
				continue
			}
		}
		if title != "" {
			if _, ok := d.library.Titles[title]; ok {
				dropped++
				continue
			}
			if _, ok := seenTitles[title]; ok {
				dropped++
				continue
			}
		}

		if doi != "" {
			seenDOIs[doi] = struct{}{}
		}
		if title != "" {
			seenTitles[title] = struct{}{}
		}
		survives[i] = true
	}

	kept := make([]work.CandidateWork, 0, len(candidates))
	for i, c := range candidates {
		if survives[i] {
			kept = append(kept, c)
		}
	}

	if dropped > 0 {
		d.logger.Info("dedupe removed candidates",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(kept)),
		)
	}
	return kept
}

func (d *Dedupe) sourceRank(source string) int {
	if rank, ok := d.priority[source]; ok {
		return rank
	}
	return len(d.priority)
}
