package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/photokit/facetree/internal/config"
	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

var processCmd = &cobra.Command{
	Use:   "process <directory>",
	Short: "Detect, embed and cluster faces in a photo directory",
	Long: `Walk a photo directory, detect faces in every image, embed each face
and match it into the face index. Each image becomes an asset keyed by its
path relative to the directory.

The process can be stopped and resumed - already processed images are skipped.

Examples:
  # Process a photo library
  facetree process ~/Pictures

  # Use different concurrency for detection and embedding
  facetree process ~/Pictures --concurrency 3

  # Reprocess images that previously failed or were already processed
  facetree process ~/Pictures --force

  # Limit number of images to process
  facetree process ~/Pictures --limit 100`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Int("concurrency", 5, "Number of parallel workers for detection and embedding")
	processCmd.Flags().Int("limit", 0, "Limit number of images to process (0 = no limit)")
	processCmd.Flags().Bool("force", false, "Reprocess images even if already processed")
	processCmd.Flags().Bool("ann", false, "Use an approximate shortlist for candidate matching")
}

// imageExtensions lists the file extensions treated as photos.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// collectImages walks root and returns image paths relative to it.
func collectImages(root string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		images = append(images, rel)
		return nil
	})
	return images, err
}

func runProcess(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	limit := mustGetInt(cmd, "limit")
	force := mustGetBool(cmd, "force")
	useANN := mustGetBool(cmd, "ann")

	root := args[0]
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if cfg.Embedding.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}
	provider := embedding.NewClient(cfg.Embedding.URL)

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if useANN {
		idx.EnableANN()
	}

	fmt.Printf("Face identities in index: %d\n", idx.Count())

	fmt.Println("Scanning directory...")
	images, err := collectImages(root)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	fmt.Printf("Images found: %d\n", len(images))

	// Filter out assets already processed
	var toProcess []string
	for _, rel := range images {
		if force || idx.NeedsProcessing(rel) {
			toProcess = append(toProcess, rel)
		}
	}
	if limit > 0 && len(toProcess) > limit {
		toProcess = toProcess[:limit]
	}

	if len(toProcess) == 0 {
		fmt.Println("All images already processed!")
		return nil
	}
	fmt.Printf("Images to process: %d (skipping %d already processed)\n\n",
		len(toProcess), len(images)-len(toProcess))

	bar := progressbar.NewOptions(len(toProcess),
		progressbar.OptionSetDescription("Clustering faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, errorCount, totalFaces, newIdentities int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, rel := range toProcess {
		wg.Add(1)
		go func(rel string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			faces, created, err := processImage(ctx, provider, idx, filepath.Join(root, rel), rel)

			mu.Lock()
			if err != nil {
				errorCount++
			} else {
				successCount++
				totalFaces += faces
				newIdentities += created
			}
			mu.Unlock()
			bar.Add(1)
		}(rel)
	}

	wg.Wait()
	fmt.Println()

	if err := idx.Flush(); err != nil {
		return fmt.Errorf("failed to persist face index: %w", err)
	}

	fmt.Printf("\nCompleted: %d images processed, %d errors\n", successCount, errorCount)
	fmt.Printf("Faces matched: %d (%d new identities)\n", totalFaces, newIdentities)
	fmt.Printf("Face identities in index: %d\n", idx.Count())
	fmt.Printf("Duration: %s\n", formatDuration(time.Since(startTime)))

	return nil
}

// processImage detects, crops, embeds and matches every face in one image,
// then records the asset-to-face mapping. Detection or embedding failures
// mark the asset failed so a later run retries it.
func processImage(ctx context.Context, provider embedding.Provider, idx *faceindex.Index, path, assetID string) (int, int, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		idx.MarkAssetFailed(assetID)
		return 0, 0, err
	}

	detections, err := provider.DetectFaces(ctx, imageData)
	if err != nil {
		idx.MarkAssetFailed(assetID)
		return 0, 0, err
	}

	var faceIDs []string
	created := 0
	for _, det := range detections {
		crop, err := embedding.CropFace(imageData, det.BBox)
		if err != nil {
			idx.MarkAssetFailed(assetID)
			return 0, 0, err
		}

		print, err := provider.Embed(ctx, crop)
		if err != nil {
			idx.MarkAssetFailed(assetID)
			return 0, 0, err
		}

		result := idx.MatchOrCreate(print)
		faceIDs = append(faceIDs, result.FaceID)
		if result.Created {
			created++
		}
	}

	idx.AssignFaces(assetID, faceIDs)
	idx.MarkAssetProcessed(assetID, len(faceIDs))
	return len(faceIDs), created, nil
}
