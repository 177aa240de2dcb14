package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

// bulletKeys fixes the order bullets appear in, matching the prompt.
var bulletKeys = []string{
	"research_question",
	"methodology",
	"key_findings",
	"innovation",
	"relevance_note",
}

// Summarizer generates paper summaries and caches them in the item store,
// keyed by candidate identifier. Already-summarized papers are skipped
// unless forced.
type Summarizer struct {
	client *Client
	store  *store.Store
	model  string
	logger *zap.Logger
	now    func() time.Time
}

// NewSummarizer creates a summarizer. model may be empty to use the client
// default.
func NewSummarizer(client *Client, st *store.Store, model string, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, store: st, model: model, logger: logger, now: time.Now}
}

// SummarizeBatch summarizes the given works in order, returning the
// summaries that exist afterwards (cached plus newly generated). A failure
// on one paper is logged and skipped so the rest of the batch survives.
func (s *Summarizer) SummarizeBatch(ctx context.Context, ranked []work.RankedWork, force bool) ([]work.PaperSummary, error) {
	summaries := make([]work.PaperSummary, 0, len(ranked))

	for _, rw := range ranked {
		if rw.Identifier == "" {
			continue
		}

		if !force {
			cached, err := s.store.GetSummary(rw.Identifier)
			if err != nil {
				return summaries, fmt.Errorf("reading cached summary: %w", err)
			}
			if cached != nil {
				summaries = append(summaries, *cached)
				continue
			}
		}

		summary, err := s.summarizeOne(ctx, rw)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, ctx.Err()
			}
			s.logger.Warn("summary generation failed",
				zap.String("paper_id", rw.Identifier),
				zap.Error(err))
			continue
		}

		if err := s.store.SaveSummary(*summary); err != nil {
			return summaries, fmt.Errorf("caching summary: %w", err)
		}
		summaries = append(summaries, *summary)
	}

	s.logger.Info("summarized batch",
		zap.Int("requested", len(ranked)),
		zap.Int("available", len(summaries)))
	return summaries, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, rw work.RankedWork) (*work.PaperSummary, error) {
	bulletResp, err := s.client.Complete(ctx, bulletPrompt(rw), s.model)
	if err != nil {
		return nil, fmt.Errorf("bullet summary: %w", err)
	}

	bullets, err := parseBullets(bulletResp.Content)
	if err != nil {
		return nil, err
	}

	detailResp, err := s.client.Complete(ctx, detailedPrompt(rw), s.model)
	if err != nil {
		return nil, fmt.Errorf("detailed analysis: %w", err)
	}

	return &work.PaperSummary{
		PaperID:     rw.Identifier,
		Bullets:     bullets,
		Detailed:    stripCodeFence(detailResp.Content),
		ModelUsed:   bulletResp.Model,
		TokensUsed:  bulletResp.TokensUsed + detailResp.TokensUsed,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// parseBullets decodes the bullet JSON object into the fixed key order.
func parseBullets(content string) ([]string, error) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &fields); err != nil {
		return nil, fmt.Errorf("parsing bullet summary: %w", err)
	}

	bullets := make([]string, 0, len(bulletKeys))
	for _, key := range bulletKeys {
		if v := fields[key]; v != "" {
			bullets = append(bullets, v)
		}
	}
	if len(bullets) == 0 {
		return nil, fmt.Errorf("bullet summary contained no recognized fields")
	}
	return bullets, nil
}

// AttachSummaries sets the Summary pointer on every ranked work that has
// one in the batch.
func AttachSummaries(ranked []work.RankedWork, summaries []work.PaperSummary) {
	byID := make(map[string]*work.PaperSummary, len(summaries))
	for i := range summaries {
		byID[summaries[i].PaperID] = &summaries[i]
	}
	for i := range ranked {
		if s, ok := byID[ranked[i].Identifier]; ok {
			ranked[i].Summary = s
		}
	}
}
