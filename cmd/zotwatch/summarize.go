package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zotwatch/zotwatch/internal/llm"
	"github.com/zotwatch/zotwatch/internal/source"
	"github.com/zotwatch/zotwatch/internal/store"
)

var (
	flagSummarizeTop   int
	flagSummarizeForce bool
	flagSummarizeModel string
)

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().IntVar(&flagSummarizeTop, "top", 0, "Number of papers to summarize (default: llm.top_n)")
	summarizeCmd.Flags().BoolVar(&flagSummarizeForce, "force", false, "Regenerate summaries even when cached")
	summarizeCmd.Flags().StringVar(&flagSummarizeModel, "model", "", "Override the configured LLM model")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Generate AI summaries for the latest recommendations",
	Long: `Re-rank the cached candidates from the last watch run and generate
summaries for the top papers. Summaries are cached in the profile store,
so repeat runs only hit the LLM for new papers.`,
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()
	ctx := cmd.Context()

	cache := source.NewResultsCache(a.paths.CandidateCache(), source.DefaultCacheTTL, a.logger)
	candidates, ok := cache.Load()
	if !ok {
		return fmt.Errorf("no cached candidates found (run 'zotwatch watch' first)")
	}
	fmt.Printf("Loaded %d cached candidates\n", len(candidates))

	st, err := store.Open(a.paths.ProfileDB())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ranked, err := rankCandidates(ctx, a, st, candidates)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Println("Nothing to summarize")
		return nil
	}

	topN := flagSummarizeTop
	if topN <= 0 {
		topN = a.settings.LLM.TopN
	}
	if topN > len(ranked) {
		topN = len(ranked)
	}

	model := a.settings.LLM.Model
	if flagSummarizeModel != "" {
		model = flagSummarizeModel
	}

	client := llm.NewClient(llm.WithModel(model))
	summarizer := llm.NewSummarizer(client, st, model, a.logger)

	fmt.Printf("Summarizing top %d papers with %s...\n", topN, model)
	summaries, err := summarizer.SummarizeBatch(ctx, ranked[:topN], flagSummarizeForce)
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}
	llm.AttachSummaries(ranked, summaries)

	for i, rw := range ranked[:topN] {
		fmt.Printf("\n%02d | %.3f | %s\n", i+1, rw.Score, rw.Title)
		if rw.Summary == nil {
			fmt.Println("   (no summary)")
			continue
		}
		for _, b := range rw.Summary.Bullets {
			fmt.Printf("   - %s\n", strings.TrimSpace(b))
		}
	}
	fmt.Printf("\nGenerated %d summaries\n", len(summaries))
	return nil
}
