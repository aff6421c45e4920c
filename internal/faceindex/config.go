package faceindex

import "time"

// Default thresholds in cosine distance units (smaller = more similar).
const (
	DefaultSimilarityThreshold = 0.35
	DefaultLinkThreshold       = 0.42
	DefaultMaxReferencePrints  = 5
	DefaultMaxMergesPerUpdate  = 2
	DefaultBootstrapPrints     = 3
)

// Config holds the tunables of the face index.
type Config struct {
	// SimilarityThreshold is the strong-match bound: a distance at or below
	// it appends the incoming print to the matched cluster.
	SimilarityThreshold float64

	// LinkThreshold is the loose bound: a distance above it always creates
	// a new cluster. Always >= SimilarityThreshold (clamped).
	LinkThreshold float64

	// MaxReferencePrints caps the representative set of one cluster.
	MaxReferencePrints int

	// MaxMergesPerUpdate bounds the opportunistic merge pass per match.
	MaxMergesPerUpdate int

	// BootstrapPrints lets a young cluster absorb linkable-but-not-strong
	// prints until it holds min(BootstrapPrints, MaxReferencePrints)
	// references. A heuristic allowance, deliberately tunable.
	BootstrapPrints int

	// StorePath is the face index document file. Empty disables persistence.
	StorePath string

	// Debounce is the write-coalescing window for the store.
	Debounce time.Duration
}

// normalize fills defaults and enforces the threshold ordering invariant
// SimilarityThreshold <= LinkThreshold.
func (c *Config) normalize() {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.LinkThreshold <= 0 {
		c.LinkThreshold = DefaultLinkThreshold
	}
	if c.SimilarityThreshold > c.LinkThreshold {
		c.SimilarityThreshold = c.LinkThreshold
	}
	if c.MaxReferencePrints <= 0 {
		c.MaxReferencePrints = DefaultMaxReferencePrints
	}
	if c.MaxMergesPerUpdate < 0 {
		c.MaxMergesPerUpdate = 0
	}
	if c.MaxMergesPerUpdate == 0 {
		c.MaxMergesPerUpdate = DefaultMaxMergesPerUpdate
	}
	if c.BootstrapPrints <= 0 {
		c.BootstrapPrints = DefaultBootstrapPrints
	}
}

// bootstrapCap returns the reference count below which a cluster is still
// learning and may absorb linkable-but-not-strong prints.
func (c *Config) bootstrapCap() int {
	if c.BootstrapPrints < c.MaxReferencePrints {
		return c.BootstrapPrints
	}
	return c.MaxReferencePrints
}
