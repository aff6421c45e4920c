package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facetree",
	Short: "A CLI tool for clustering faces in a photo library into a people tree",
	Long: `Facetree groups the faces found in a photo library into persistent
identities and arranges those identities into a multi-level people tree,
from near-duplicate shots at the bottom to loose visual families at the top.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
