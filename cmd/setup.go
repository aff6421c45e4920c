package cmd

import (
	"fmt"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/faceindex"
	"github.com/photokit/facetree/internal/hierarchy"
)

// openIndex loads the face index from the configured store path.
func openIndex(cfg *config.Config) (*faceindex.Index, error) {
	idx, err := faceindex.New(faceindex.Config{
		SimilarityThreshold: cfg.Index.SimilarityThreshold,
		LinkThreshold:       cfg.Index.LinkThreshold,
		MaxReferencePrints:  cfg.Index.MaxReferencePrints,
		MaxMergesPerUpdate:  cfg.Index.MaxMergesPerUpdate,
		BootstrapPrints:     cfg.Index.BootstrapPrints,
		StorePath:           cfg.Index.StorePath,
		Debounce:            cfg.Index.Debounce,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open face index: %w", err)
	}
	return idx, nil
}

// openBuilder loads the people tree builder backed by the given index.
func openBuilder(cfg *config.Config, idx *faceindex.Index) (*hierarchy.Builder, error) {
	builder, err := hierarchy.New(idx, cfg.Hierarchy.StorePath, cfg.Index.Debounce)
	if err != nil {
		return nil, fmt.Errorf("failed to open people tree: %w", err)
	}
	return builder, nil
}
