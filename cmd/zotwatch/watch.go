package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/embedding"
	"github.com/zotwatch/zotwatch/internal/index"
	"github.com/zotwatch/zotwatch/internal/llm"
	"github.com/zotwatch/zotwatch/internal/output"
	"github.com/zotwatch/zotwatch/internal/rank"
	"github.com/zotwatch/zotwatch/internal/source"
	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
	"github.com/zotwatch/zotwatch/internal/zotero"
)

var (
	flagWatchRSS       bool
	flagWatchReport    bool
	flagWatchBibTeX    bool
	flagWatchTop       int
	flagWatchSummarize bool
	flagWatchPush      bool
	flagWatchRefetch   bool
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&flagWatchRSS, "rss", false, "Generate RSS feed")
	watchCmd.Flags().BoolVar(&flagWatchReport, "report", false, "Generate HTML report")
	watchCmd.Flags().BoolVar(&flagWatchBibTeX, "bibtex", false, "Export recommendations as a BibTeX file")
	watchCmd.Flags().IntVar(&flagWatchTop, "top", 50, "Number of top results to keep")
	watchCmd.Flags().BoolVar(&flagWatchSummarize, "summarize", false, "Generate AI summaries for top papers")
	watchCmd.Flags().BoolVar(&flagWatchPush, "push", false, "Push must_read recommendations to Zotero")
	watchCmd.Flags().BoolVar(&flagWatchRefetch, "refetch", false, "Ignore the candidate cache and fetch fresh")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Fetch, score, and output paper recommendations",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	return executeWatch(cmd.Context(), a)
}

// executeWatch runs one full watch cycle: sync, fetch, rank, filter, and
// write outputs. The daemon invokes it on every scheduled tick.
func executeWatch(ctx context.Context, a *app) error {
	st, err := store.Open(a.paths.ProfileDB())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if a.settings.Zotero.UserID != "" {
		fmt.Println("Syncing with Zotero...")
		ingestor := zotero.NewIngestor(zotero.NewClient(a.settings.Zotero.UserID), st, a.logger)
		if _, err := ingestor.Run(ctx, false); err != nil {
			return fmt.Errorf("zotero sync: %w", err)
		}
	}

	candidates, err := fetchCandidates(ctx, a)
	if err != nil {
		return err
	}
	fmt.Printf("  Found %d candidates\n", len(candidates))

	ranked, err := rankCandidates(ctx, a, st, candidates)
	if err != nil {
		return err
	}

	ranked = rank.FilterRecent(ranked, a.settings.Filters.RecentDays, time.Now().UTC())
	ranked = rank.CapPreprints(ranked, a.settings.Filters.MaxPreprintRate)
	if flagWatchTop > 0 && len(ranked) > flagWatchTop {
		ranked = ranked[:flagWatchTop]
	}

	if len(ranked) == 0 {
		fmt.Println("No recommendations found")
	} else {
		show := len(ranked)
		if show > 10 {
			show = 10
		}
		fmt.Printf("\nTop %d recommendations:\n", show)
		for i, rw := range ranked[:show] {
			fmt.Printf("  %02d | %.3f | %s | %.60s\n", i+1, rw.Score, rw.Label, rw.Title)
		}
	}

	if flagWatchSummarize && a.settings.LLM.Enabled && len(ranked) > 0 {
		fmt.Println("\nGenerating AI summaries...")
		client := llm.NewClient(llm.WithModel(a.settings.LLM.Model))
		summarizer := llm.NewSummarizer(client, st, a.settings.LLM.Model, a.logger)

		topN := a.settings.LLM.TopN
		if topN > len(ranked) {
			topN = len(ranked)
		}
		summaries, err := summarizer.SummarizeBatch(ctx, ranked[:topN], false)
		if err != nil {
			return fmt.Errorf("summarizing: %w", err)
		}
		llm.AttachSummaries(ranked, summaries)
		fmt.Printf("  Generated %d summaries\n", len(summaries))
	}

	return writeOutputs(ctx, a, ranked)
}

// fetchCandidates returns the cached candidate list when fresh, otherwise
// fetches all enabled sources and refreshes the cache.
func fetchCandidates(ctx context.Context, a *app) ([]work.CandidateWork, error) {
	cache := source.NewResultsCache(a.paths.CandidateCache(), source.DefaultCacheTTL, a.logger)
	if !flagWatchRefetch {
		if cached, ok := cache.Load(); ok {
			fmt.Println("Using cached candidates...")
			return cached, nil
		}
	}

	fmt.Println("Fetching candidates from sources...")
	registry := newSourceRegistry(a)
	candidates, err := registry.FetchAll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	if _, err := cache.Save(candidates); err != nil {
		a.logger.Warn("could not write candidate cache", zap.Error(err))
	}
	return candidates, nil
}

// newSourceRegistry registers sources in dedup priority order: reviewed
// venues would go first, then the preprint servers.
func newSourceRegistry(a *app) *source.Registry {
	registry := source.NewRegistry(a.logger)
	registry.Register(source.NewBiorxiv(source.PreprintConfig{
		Enabled:  a.settings.Sources.Biorxiv.Enabled,
		DaysBack: a.settings.Sources.Biorxiv.DaysBack,
	}, a.logger))
	registry.Register(source.NewMedrxiv(source.PreprintConfig{
		Enabled:  a.settings.Sources.Medrxiv.Enabled,
		DaysBack: a.settings.Sources.Medrxiv.DaysBack,
	}, a.logger))
	registry.Register(source.NewArxiv(source.ArxivConfig{
		Enabled:    a.settings.Sources.Arxiv.Enabled,
		Categories: a.settings.Sources.Arxiv.Categories,
		MaxResults: a.settings.Sources.Arxiv.MaxResults,
		DaysBack:   a.settings.Sources.Arxiv.DaysBack,
	}, a.logger))
	return registry
}

// rankCandidates dedupes against the library and scores what remains.
func rankCandidates(ctx context.Context, a *app, st *store.Store, candidates []work.CandidateWork) ([]work.RankedWork, error) {
	items, err := st.AllItems()
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}

	dedupe := rank.NewDedupe(rank.NewLibraryKeys(items), newSourceRegistry(a).Priority(), a.logger)
	filtered := dedupe.Filter(candidates)
	fmt.Printf("  After dedup: %d candidates\n", len(filtered))

	idx, err := index.Load(a.paths.Index())
	if err != nil {
		if errors.Is(err, index.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w (run 'zotwatch profile' first)", err)
		}
		return nil, err
	}

	cache, err := embedding.OpenCache(a.paths.EmbeddingCache())
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	defer cache.Close()

	ttl := time.Duration(a.settings.Embedding.CandidateTTLDays) * 24 * time.Hour
	encoder := embedding.NewCachingProvider(newEmbeddingProvider(a), cache, "candidate", ttl, a.logger)

	journal, err := rank.LoadJournalScorer(a.paths.JournalTable())
	if err != nil {
		return nil, err
	}

	s := a.settings.Scoring
	ranker := rank.NewRanker(idx, encoder, rank.Options{
		Mode: rank.ModeFull,
		Weights: rank.Weights{
			Similarity:  s.Weights.Similarity,
			Recency:     s.Weights.Recency,
			Citations:   s.Weights.Citations,
			AuthorBonus: s.Weights.AuthorBonus,
			VenueBonus:  s.Weights.VenueBonus,
		},
		Thresholds: rank.Thresholds{MustRead: s.Thresholds.MustRead, Consider: s.Thresholds.Consider},
		Decay:      rank.DecayWindows{Fast: s.Decay.Fast, Medium: s.Decay.Medium, Slow: s.Decay.Slow},

		WhitelistAuthors: s.WhitelistAuthors,
		WhitelistVenues:  s.WhitelistVenues,
		Journal:          journal,
	}, a.logger)

	fmt.Println("Ranking candidates...")
	return ranker.Rank(ctx, filtered)
}

func writeOutputs(ctx context.Context, a *app, ranked []work.RankedWork) error {
	if flagWatchRSS {
		feedPath := filepath.Join(a.paths.ReportsDir(), "feed.xml")
		writer := output.NewRSSWriter(output.FeedInfo{
			Title:       a.settings.Output.RSSTitle,
			Link:        a.settings.Output.RSSLink,
			Description: a.settings.Output.RSSDescription,
		}, a.logger)
		if err := writer.Write(ranked, feedPath); err != nil {
			return err
		}
		fmt.Printf("RSS feed: %s\n", feedPath)
	}

	if flagWatchReport {
		name := "report.html"
		if len(ranked) > 0 && ranked[0].Published != nil {
			name = fmt.Sprintf("report-%s.html", ranked[0].Published.Format("20060102"))
		}
		reportPath := filepath.Join(a.paths.ReportsDir(), name)
		reporter := output.NewHTMLReporter(a.paths.TemplatesDir(), a.logger)
		if err := reporter.Render(ranked, reportPath); err != nil {
			return err
		}
		fmt.Printf("HTML report: %s\n", reportPath)
	}

	if flagWatchBibTeX {
		bibPath := filepath.Join(a.paths.ReportsDir(), "recommendations.bib")
		if err := output.NewBibTeXWriter(a.logger).Write(ranked, bibPath); err != nil {
			return err
		}
		fmt.Printf("BibTeX: %s\n", bibPath)
	}

	if flagWatchPush && len(ranked) > 0 {
		client := zotero.NewClient(a.settings.Zotero.UserID)
		pusher := zotero.NewPusher(client, a.settings.Zotero.PushCollection, a.logger)
		n, err := pusher.Push(ctx, ranked)
		if err != nil {
			return err
		}
		fmt.Printf("Pushed %d recommendations to Zotero\n", n)
	}
	return nil
}
