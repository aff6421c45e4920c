package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/config"
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage face identities",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all face identities",
	Long: `List all face identities in the index in creation order, with their
labels and reference print counts.

Examples:
  # Human-readable listing
  facetree people list

  # JSON output
  facetree people list --json`,
	RunE: runPeopleList,
}

var peopleRenameCmd = &cobra.Command{
	Use:   "rename <face-id> <name>",
	Short: "Manually name a face identity",
	Long: `Apply a manual name to a face identity. Manual names take precedence
over contact-derived names and are never overwritten by contact syncs.`,
	Args: cobra.ExactArgs(2),
	RunE: runPeopleRename,
}

var peopleForgetCmd = &cobra.Command{
	Use:   "forget-name <face-id>",
	Short: "Remove a face identity's name",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleForget,
}

var peopleAssetsCmd = &cobra.Command{
	Use:   "assets <face-id>",
	Short: "List the assets a face identity appears in",
	Args:  cobra.ExactArgs(1),
	RunE:  runPeopleAssets,
}

func init() {
	rootCmd.AddCommand(peopleCmd)
	peopleCmd.AddCommand(peopleListCmd)
	peopleCmd.AddCommand(peopleRenameCmd)
	peopleCmd.AddCommand(peopleForgetCmd)
	peopleCmd.AddCommand(peopleAssetsCmd)

	peopleListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runPeopleList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	clusters := idx.Clusters()
	if jsonOutput {
		return outputJSON(clusters)
	}

	if len(clusters) == 0 {
		fmt.Println("No face identities yet. Run 'facetree process' first.")
		return nil
	}

	for _, c := range clusters {
		name := c.DisplayName
		if name == "" {
			name = "(unnamed)"
		}
		label := ""
		if c.LabelSource != "" && string(c.LabelSource) != "none" {
			label = fmt.Sprintf(" [%s]", c.LabelSource)
		}
		fmt.Printf("%s  %-24s%s  %d prints, %d assets\n",
			c.FaceID, name, label, len(c.ReferencePrints), len(idx.AssetsForFace(c.FaceID)))
	}
	fmt.Printf("\nTotal: %d identities\n", len(clusters))
	return nil
}

func runPeopleRename(cmd *cobra.Command, args []string) error {
	faceID, name := args[0], args[1]

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if !idx.SetManualLabel(faceID, name) {
		return fmt.Errorf("face %s not found or name empty", faceID)
	}
	fmt.Printf("Renamed %s to %q\n", faceID, name)
	return nil
}

func runPeopleForget(cmd *cobra.Command, args []string) error {
	faceID := args[0]

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if !idx.ClearLabel(faceID) {
		return fmt.Errorf("face %s not found", faceID)
	}
	fmt.Printf("Cleared name of %s\n", faceID)
	return nil
}

func runPeopleAssets(cmd *cobra.Command, args []string) error {
	faceID := args[0]

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if _, ok := idx.Cluster(faceID); !ok {
		return fmt.Errorf("face %s not found", faceID)
	}

	assets := idx.AssetsForFace(faceID)
	for _, a := range assets {
		fmt.Println(a)
	}
	fmt.Printf("\nTotal: %d assets\n", len(assets))
	return nil
}
