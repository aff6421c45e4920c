package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/archive"
	"github.com/photokit/facetree/internal/config"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Mirror face prints into PostgreSQL",
}

var archivePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push face index prints to the PostgreSQL archive",
	Long: `Mirror every face identity's reference prints into the PostgreSQL
archive with pgvector, replacing the previously archived prints per identity.

Requires DATABASE_URL to be set.

Examples:
  # Push all prints
  facetree archive push

  # Push and build the similarity index
  facetree archive push --create-index`,
	RunE: runArchivePush,
}

var archiveStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show archive row counts",
	RunE:  runArchiveStats,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archivePushCmd)
	archiveCmd.AddCommand(archiveStatsCmd)

	archivePushCmd.Flags().Bool("create-index", false, "Create the IVFFlat similarity index after pushing")
	archivePushCmd.Flags().Bool("json", false, "Output as JSON")
}

// ArchivePushResult represents the result of an archive push operation.
type ArchivePushResult struct {
	Success      bool   `json:"success"`
	Identities   int    `json:"identities"`
	PrintsPushed int    `json:"prints_pushed"`
	IndexCreated bool   `json:"index_created"`
	DurationMs   int64  `json:"duration_ms"`
	Duration     string `json:"duration,omitempty"`
}

func runArchivePush(cmd *cobra.Command, args []string) error {
	createIndex := mustGetBool(cmd, "create-index")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if cfg.Archive.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	leaves := idx.LeafClusters(cfg.Index.MaxReferencePrints)
	if len(leaves) == 0 {
		fmt.Println("No face identities to archive.")
		return nil
	}

	// Embedding dimension comes from the first stored print.
	dim := 0
	for _, leaf := range leaves {
		for _, p := range leaf.Prints {
			if p.Count > 0 {
				dim = p.Count
				break
			}
		}
		if dim > 0 {
			break
		}
	}
	if dim == 0 {
		return errors.New("no decodable prints in the face index")
	}

	if !jsonOutput {
		fmt.Println("Connecting to PostgreSQL...")
	}
	arc, err := archive.Open(cfg.Archive.URL)
	if err != nil {
		return err
	}
	defer arc.Close()

	if err := arc.Migrate(ctx, dim); err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Printf("Pushing prints for %d identities (%d-dim embeddings)...\n", len(leaves), dim)
	}
	pushed, err := arc.PushAll(ctx, leaves)
	if err != nil {
		return err
	}

	if createIndex {
		if !jsonOutput {
			fmt.Println("Creating IVFFlat similarity index...")
		}
		if err := arc.CreateVectorIndex(ctx); err != nil {
			return err
		}
	}

	duration := time.Since(startTime)
	result := ArchivePushResult{
		Success:      true,
		Identities:   len(leaves),
		PrintsPushed: pushed,
		IndexCreated: createIndex,
		DurationMs:   duration.Milliseconds(),
		Duration:     formatDuration(duration),
	}

	if jsonOutput {
		result.Duration = ""
		return outputJSON(result)
	}

	fmt.Println("\nPush complete!")
	fmt.Printf("  Identities:     %d\n", result.Identities)
	fmt.Printf("  Prints pushed:  %d\n", result.PrintsPushed)
	fmt.Printf("  Duration:       %s\n", result.Duration)
	return nil
}

func runArchiveStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	if cfg.Archive.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	arc, err := archive.Open(cfg.Archive.URL)
	if err != nil {
		return err
	}
	defer arc.Close()

	count, err := arc.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Archived prints: %d\n", count)
	return nil
}
