package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/config"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Group face identities at one or more distance thresholds",
	Long: `Compute single-linkage groupings of face identities at the given
cosine distance thresholds. Two identities share a group when a chain of
identities connects them with every hop at or below the threshold.

Examples:
  # Group all identities at one threshold
  facetree groups --thresholds 0.45

  # Several thresholds at once, tighter to looser
  facetree groups --thresholds 0.3,0.45,0.6

  # Restrict to a subset of identities
  facetree groups --thresholds 0.45 --faces face-000001,face-000002`,
	RunE: runGroups,
}

func init() {
	rootCmd.AddCommand(groupsCmd)

	groupsCmd.Flags().Float64Slice("thresholds", []float64{0.45}, "Cosine distance thresholds")
	groupsCmd.Flags().StringSlice("faces", nil, "Face IDs to group (default: all)")
	groupsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGroups(cmd *cobra.Command, args []string) error {
	thresholds := mustGetFloat64Slice(cmd, "thresholds")
	faces := mustGetStringSlice(cmd, "faces")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if len(faces) == 0 {
		for _, c := range idx.Clusters() {
			faces = append(faces, c.FaceID)
		}
	}

	groupings, err := idx.FaceGroupings(context.Background(), faces, thresholds)
	if err != nil {
		return fmt.Errorf("grouping failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(groupings)
	}

	for _, g := range groupings {
		fmt.Printf("Threshold %.3f: %d groups\n", g.Threshold, len(g.Groups))
		for i, group := range g.Groups {
			fmt.Printf("  %3d: %s\n", i+1, strings.Join(group, ", "))
		}
		fmt.Println()
	}
	return nil
}
