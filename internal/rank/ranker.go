package rank

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/embedding"
	"github.com/zotwatch/zotwatch/internal/index"
	"github.com/zotwatch/zotwatch/internal/work"
)

// Mode selects which scoring components a Ranker uses.
type Mode int

const (
	// ModeFull combines similarity, recency, citations, and whitelist
	// bonuses under configured weights.
	ModeFull Mode = iota

	// ModeProfile uses only similarity and journal impact, for ranking
	// right after a profile build before auxiliary signals are gathered.
	ModeProfile
)

// Profile-mode blend: 80% similarity, 20% impact factor.
const (
	profileSimilarityWeight = 0.8
	profileImpactWeight     = 0.2
)

// Options configure a Ranker.
type Options struct {
	Mode       Mode
	Weights    Weights
	Thresholds Thresholds
	Decay      DecayWindows

	WhitelistAuthors []string
	WhitelistVenues  []string

	// Journal supplies the impact-factor component in profile mode. May be
	// nil, in which case that component scores zero.
	Journal *JournalScorer

	// Now is overridable for recency tests; defaults to time.Now.
	Now func() time.Time
}

// Ranker scores candidates against the similarity index and sorts them.
type Ranker struct {
	index   *index.Index
	encoder embedding.Provider
	opts    Options
	logger  *zap.Logger
}

// NewRanker creates a ranker over a loaded index. The encoder is typically
// a CachingProvider so repeated candidates across runs hit the cache.
func NewRanker(idx *index.Index, encoder embedding.Provider, opts Options, logger *zap.Logger) *Ranker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Decay == (DecayWindows{}) {
		opts.Decay = DefaultDecayWindows
	}
	return &Ranker{index: idx, encoder: encoder, opts: opts, logger: logger}
}

// Rank embeds each candidate, takes its top-1 library similarity, combines
// it with the auxiliary components for the active mode, labels it, and
// returns the list sorted by descending composite score. Equal scores keep
// their relative input order. An empty candidate list returns an empty
// result, not an error.
func (r *Ranker) Rank(ctx context.Context, candidates []work.CandidateWork) ([]work.RankedWork, error) {
	if len(candidates) == 0 {
		return []work.RankedWork{}, nil
	}

	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = candidates[i].ContentForEmbedding()
	}
	vectors, err := r.encoder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding candidates: %w", err)
	}

	matches, err := r.index.Search(vectors, 1)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	r.logger.Info("scoring candidates", zap.Int("count", len(candidates)))

	now := r.opts.Now()
	ranked := make([]work.RankedWork, 0, len(candidates))
	for i, candidate := range candidates {
		var similarity float64
		if len(matches[i]) > 0 {
			similarity = float64(matches[i][0].Similarity)
		}

		rw := work.RankedWork{CandidateWork: candidate, Similarity: similarity}
		switch r.opts.Mode {
		case ModeProfile:
			r.scoreProfile(&rw)
		default:
			r.scoreFull(&rw, now)
		}
		rw.Label = r.opts.Thresholds.Label(rw.Score)
		ranked = append(ranked, rw)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

func (r *Ranker) scoreFull(rw *work.RankedWork, now time.Time) {
	rw.RecencyScore = recencyScore(rw.Published, now, r.opts.Decay)
	rw.MetricScore = citationScore(&rw.CandidateWork)
	rw.AuthorBonus = whitelistBonus(rw.Authors, r.opts.WhitelistAuthors)
	var venues []string
	if rw.Venue != "" {
		venues = []string{rw.Venue}
	}
	rw.VenueBonus = whitelistBonus(venues, r.opts.WhitelistVenues)

	w := r.opts.Weights
	rw.Score = rw.Similarity*w.Similarity +
		rw.RecencyScore*w.Recency +
		rw.MetricScore*w.Citations +
		rw.AuthorBonus*w.AuthorBonus +
		rw.VenueBonus*w.VenueBonus
}

func (r *Ranker) scoreProfile(rw *work.RankedWork) {
	if r.opts.Journal != nil {
		rw.ImpactFactorScore, rw.ImpactFactor = r.opts.Journal.Score(rw.Venue)
	}
	rw.Score = profileSimilarityWeight*rw.Similarity + profileImpactWeight*rw.ImpactFactorScore
}
