package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zotwatch/zotwatch/internal/embedding"
	"github.com/zotwatch/zotwatch/internal/profile"
	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/zotero"
)

var flagProfileFull bool

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().BoolVar(&flagProfileFull, "full", false, "Recompute all embeddings and resync the whole library")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build or update the research profile",
	Long: `Sync the Zotero library and rebuild the similarity index.

By default only new or changed items get fresh embeddings (incremental
mode). Use --full to recompute everything.`,
	RunE: runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	st, err := store.Open(a.paths.ProfileDB())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if a.settings.Zotero.UserID != "" {
		fmt.Println("Syncing with Zotero...")
		client := zotero.NewClient(a.settings.Zotero.UserID)
		ingestor := zotero.NewIngestor(client, st, a.logger)
		stats, err := ingestor.Run(cmd.Context(), flagProfileFull)
		if err != nil {
			return fmt.Errorf("zotero sync: %w", err)
		}
		fmt.Printf("  Fetched: %d, Updated: %d, Removed: %d\n", stats.Fetched, stats.Updated, stats.Removed)
	} else {
		a.logger.Warn("zotero user_id not configured; skipping sync")
	}

	provider := newEmbeddingProvider(a)
	builder := profile.NewBuilder(st, provider, a.paths.Index(), a.paths.ProfileSummary(), a.logger)

	if flagProfileFull {
		fmt.Println("Building profile (full rebuild)...")
	} else {
		fmt.Println("Building profile...")
	}

	stats, err := builder.Run(cmd.Context(), flagProfileFull)
	if err != nil {
		return err
	}

	fmt.Println("Profile built successfully:")
	fmt.Printf("  Items: %d (%d embedded, %.1fs)\n", stats.Items, stats.Embedded, stats.Duration.Seconds())
	fmt.Printf("  Store: %s\n", a.paths.ProfileDB())
	fmt.Printf("  Index: %s\n", a.paths.Index())
	fmt.Printf("  Summary: %s\n", a.paths.ProfileSummary())
	return nil
}

// newEmbeddingProvider builds the configured Voyage provider.
func newEmbeddingProvider(a *app) *embedding.VoyageProvider {
	e := a.settings.Embedding
	opts := []embedding.VoyageOption{
		embedding.WithModel(e.Model),
		embedding.WithBatchSize(e.BatchSize),
	}
	if e.InputType != "" {
		opts = append(opts, embedding.WithInputType(e.InputType))
	}
	if e.Dimensions > 0 {
		opts = append(opts, embedding.WithDimensions(e.Dimensions))
	}
	return embedding.NewVoyageProvider(os.Getenv("VOYAGE_API_KEY"), opts...)
}
