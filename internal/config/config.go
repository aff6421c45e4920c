package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var levelsYAML []byte

// Config is the env-var driven application configuration. A .env file is
// loaded by the CLI before Load runs.
type Config struct {
	Embedding EmbeddingConfig
	Index     IndexConfig
	Hierarchy HierarchyConfig
	Archive   ArchiveConfig
}

type EmbeddingConfig struct {
	URL string // embedding service base URL, defaults to http://localhost:8000
}

type IndexConfig struct {
	SimilarityThreshold float64       // strong match bound (default 0.35)
	LinkThreshold       float64       // loose link bound (default 0.42)
	MaxReferencePrints  int           // reference prints per cluster (default 5)
	MaxMergesPerUpdate  int           // opportunistic merges per match (default 2)
	BootstrapPrints     int           // young-cluster growth allowance (default 3)
	StorePath           string        // face index document path
	Debounce            time.Duration // write coalescing window
}

type HierarchyConfig struct {
	StorePath  string    // hierarchy document path
	RepCap     int       // representative prints per tree node (default 4)
	Thresholds []float64 // level thresholds, from embedded levels.yaml
}

type ArchiveConfig struct {
	URL string // PostgreSQL connection URL for the optional print archive
}

// levelsFile mirrors the embedded levels.yaml.
type levelsFile struct {
	Levels struct {
		Thresholds []float64 `yaml:"thresholds"`
	} `yaml:"levels"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration string.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// dataDir returns the base directory for persisted documents.
func dataDir() string {
	if dir := os.Getenv("FACETREE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".facetree"
	}
	return filepath.Join(home, ".facetree")
}

func Load() *Config {
	var levels levelsFile
	if err := yaml.Unmarshal(levelsYAML, &levels); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded levels.yaml: " + err.Error())
	}

	dir := dataDir()

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Index: IndexConfig{
			SimilarityThreshold: envFloat("FACE_SIMILARITY_THRESHOLD", 0.35),
			LinkThreshold:       envFloat("FACE_LINK_THRESHOLD", 0.42),
			MaxReferencePrints:  envInt("FACE_MAX_REFERENCE_PRINTS", 5),
			MaxMergesPerUpdate:  envInt("FACE_MAX_MERGES_PER_UPDATE", 2),
			BootstrapPrints:     envInt("FACE_BOOTSTRAP_PRINTS", 3),
			StorePath:           filepath.Join(dir, "faceindex.json"),
			Debounce:            envDuration("FACE_STORE_DEBOUNCE", 500*time.Millisecond),
		},
		Hierarchy: HierarchyConfig{
			StorePath:  filepath.Join(dir, "hierarchy.json"),
			RepCap:     envInt("HIERARCHY_REP_CAP", 4),
			Thresholds: levels.Levels.Thresholds,
		},
		Archive: ArchiveConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
	}
}
