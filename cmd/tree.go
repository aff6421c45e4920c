package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/hierarchy"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Build and inspect the people tree",
}

var treeRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the people tree from the face index",
	Long: `Rebuild the multi-level people tree from the current face identities.
Level thresholds come from the built-in level table; pass --thresholds to
override them for this rebuild.

A rebuild is skipped when the committed tree already matches the current
index and parameters; pass --force to rebuild anyway.

Examples:
  # Rebuild with the configured level thresholds
  facetree tree rebuild

  # Custom thresholds, tightest first
  facetree tree rebuild --thresholds 0.0,0.4,0.55

  # Force a rebuild even when the tree is current
  facetree tree rebuild --force`,
	RunE: runTreeRebuild,
}

var treeShowCmd = &cobra.Command{
	Use:   "show [node-id]",
	Short: "Print the people tree",
	Long: `Print the people tree from the given node down, or from the root
when no node is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTreeShow,
}

var treeNameCmd = &cobra.Command{
	Use:   "name <node-id>",
	Short: "Resolve the preferred display name for a tree node",
	Args:  cobra.ExactArgs(1),
	RunE:  runTreeName,
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeRebuildCmd)
	treeCmd.AddCommand(treeShowCmd)
	treeCmd.AddCommand(treeNameCmd)

	treeRebuildCmd.Flags().Float64Slice("thresholds", nil, "Level thresholds (default: built-in level table)")
	treeRebuildCmd.Flags().Int("rep-cap", 0, "Representative prints per node (default: configured)")
	treeRebuildCmd.Flags().Bool("force", false, "Rebuild even when the tree is current")
}

func runTreeRebuild(cmd *cobra.Command, args []string) error {
	thresholds := mustGetFloat64Slice(cmd, "thresholds")
	repCap := mustGetInt(cmd, "rep-cap")
	force := mustGetBool(cmd, "force")

	cfg := config.Load()
	if len(thresholds) == 0 {
		thresholds = cfg.Hierarchy.Thresholds
	}
	if repCap <= 0 {
		repCap = cfg.Hierarchy.RepCap
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	builder, err := openBuilder(cfg, idx)
	if err != nil {
		return err
	}
	defer builder.Close()

	if !force && !builder.NeedsRebuild(thresholds, repCap) {
		fmt.Println("Tree is up to date, nothing to do.")
		return nil
	}

	fmt.Printf("Rebuilding people tree over %d identities (%d levels)...\n",
		idx.Count(), len(thresholds))
	startTime := time.Now()

	bar := progressbar.NewOptions64(1,
		progressbar.OptionSetDescription("Rebuilding tree"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	err = builder.Rebuild(context.Background(), thresholds, repCap, func(p hierarchy.Progress) {
		switch p.Stage {
		case hierarchy.StageMergingLevel:
			bar.Describe(fmt.Sprintf("Merging level %d", p.Level))
			if p.TotalPairs > 0 {
				bar.ChangeMax64(p.TotalPairs)
				bar.Set64(p.ProcessedPairs)
			}
		case hierarchy.StageFinalizing:
			bar.Describe("Finalizing")
		case hierarchy.StageDone:
			bar.Finish()
		}
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("\nRebuild complete: %d nodes in %s\n",
		builder.Count(), formatDuration(time.Since(startTime)))
	return nil
}

func runTreeShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	builder, err := openBuilder(cfg, idx)
	if err != nil {
		return err
	}
	defer builder.Close()

	var start hierarchy.Node
	if len(args) == 1 {
		n, ok := builder.Node(args[0])
		if !ok {
			return fmt.Errorf("node %s not found", args[0])
		}
		start = n
	} else {
		n, ok := builder.Root()
		if !ok {
			return fmt.Errorf("tree has not been built yet, run 'facetree tree rebuild'")
		}
		start = n
	}

	printNode(builder, start, 0)
	return nil
}

// printNode renders one node and recurses into its children in child-list order.
func printNode(builder *hierarchy.Builder, n hierarchy.Node, depth int) {
	name := n.DisplayName
	if name == "" {
		name = "(unnamed)"
	}
	label := ""
	if n.LabelSource != "" && string(n.LabelSource) != "none" {
		label = fmt.Sprintf(" [%s]", n.LabelSource)
	}
	fmt.Printf("%*s%s  %s%s\n", depth*2, "", n.ID, name, label)

	for _, child := range builder.Children(n.ID) {
		printNode(builder, child, depth+1)
	}
}

func runTreeName(cmd *cobra.Command, args []string) error {
	nodeID := args[0]

	cfg := config.Load()
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	builder, err := openBuilder(cfg, idx)
	if err != nil {
		return err
	}
	defer builder.Close()

	if _, ok := builder.Node(nodeID); !ok {
		return fmt.Errorf("node %s not found", nodeID)
	}

	name := builder.DisplayNamePreferred(nodeID)
	if name == "" {
		fmt.Println("(unnamed)")
		return nil
	}
	fmt.Println(name)
	return nil
}
