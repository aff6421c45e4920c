package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/contacts"
	"github.com/photokit/facetree/internal/embedding"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Label face identities from an address book export",
}

var contactsSyncCmd = &cobra.Command{
	Use:   "sync <contacts.json>",
	Short: "Match contact photos against the face index and apply names",
	Long: `Read an address book export and label matching face identities with
contact names. A contact label never overwrites a manual name, and re-running
the sync is a no-op for already-labeled identities.

The export is a JSON array of objects with "id", "display_name" and
"photo_path" fields; photo paths are resolved relative to the export file.

Examples:
  # Apply contact names
  facetree contacts sync ~/exports/contacts.json

  # Tighten the match bound
  facetree contacts sync ~/exports/contacts.json --max-distance 0.35`,
	Args: cobra.ExactArgs(1),
	RunE: runContactsSync,
}

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsSyncCmd)

	contactsSyncCmd.Flags().Float64("max-distance", 0, "Maximum match distance (0 = index link threshold)")
	contactsSyncCmd.Flags().Bool("json", false, "Output summary as JSON")
}

// contactEntry is one record of the address book export file.
type contactEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoPath   string `json:"photo_path"`
}

// loadContactExport parses the export file and inlines the contact photos.
// Entries whose photo cannot be read keep an empty photo and are skipped by
// the sync pass.
func loadContactExport(path string) ([]contacts.Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contacts file: %w", err)
	}

	var entries []contactEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse contacts file: %w", err)
	}

	baseDir := filepath.Dir(path)
	list := make([]contacts.Contact, 0, len(entries))
	for _, e := range entries {
		c := contacts.Contact{ID: e.ID, DisplayName: e.DisplayName}
		if e.PhotoPath != "" {
			photoPath := e.PhotoPath
			if !filepath.IsAbs(photoPath) {
				photoPath = filepath.Join(baseDir, photoPath)
			}
			if photo, err := os.ReadFile(photoPath); err == nil {
				c.Photo = photo
			} else {
				fmt.Printf("Warning: contact %s: %v\n", e.ID, err)
			}
		}
		list = append(list, c)
	}
	return list, nil
}

func runContactsSync(cmd *cobra.Command, args []string) error {
	maxDistance := mustGetFloat64(cmd, "max-distance")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	if cfg.Embedding.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}

	list, err := loadContactExport(args[0])
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No contacts in export file.")
		return nil
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if !jsonOutput {
		fmt.Printf("Syncing %d contacts against %d face identities...\n", len(list), idx.Count())
	}

	labeler := contacts.NewLabeler(embedding.NewClient(cfg.Embedding.URL), idx, maxDistance)
	summary, err := labeler.Sync(context.Background(), list)
	if err != nil {
		return fmt.Errorf("contact sync failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(summary)
	}

	fmt.Println("\nSync complete!")
	fmt.Printf("  Labeled:  %d\n", summary.Labeled)
	fmt.Printf("  No match: %d\n", summary.NoMatch)
	fmt.Printf("  Skipped:  %d\n", summary.Skipped)
	if summary.Failed > 0 {
		fmt.Printf("  Failed:   %d\n", summary.Failed)
	}
	return nil
}
