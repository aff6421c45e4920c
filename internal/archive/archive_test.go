//go:build integration

package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

func setupTestArchive(t *testing.T) (*Archive, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	arc, err := Open(dbURL)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open archive: %v", err)
	}
	if err := arc.Migrate(ctx, 4); err != nil {
		arc.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		arc.Close()
		container.Terminate(ctx)
	}
	return arc, cleanup
}

func testLeaf(faceID, name string, vecs ...[]float32) faceindex.LeafSnapshot {
	leaf := faceindex.LeafSnapshot{
		FaceID:      faceID,
		DisplayName: name,
		LabelSource: faceindex.LabelContact,
	}
	for _, v := range vecs {
		leaf.Prints = append(leaf.Prints, embedding.Encode(v))
	}
	return leaf
}

func TestArchivePushAndQuery(t *testing.T) {
	arc, cleanup := setupTestArchive(t)
	if arc == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("PushAndCount", func(t *testing.T) {
		leaves := []faceindex.LeafSnapshot{
			testLeaf("face-000001", "Alice", []float32{1, 0, 0, 0}, []float32{0.9, 0.1, 0, 0}),
			testLeaf("face-000002", "Bob", []float32{0, 1, 0, 0}),
		}
		pushed, err := arc.PushAll(ctx, leaves)
		if err != nil {
			t.Fatalf("PushAll failed: %v", err)
		}
		if pushed != 3 {
			t.Errorf("pushed = %d, want 3", pushed)
		}

		count, err := arc.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 3 {
			t.Errorf("count = %d, want 3", count)
		}
	})

	t.Run("PushReplacesPriorPrints", func(t *testing.T) {
		leaf := testLeaf("face-000001", "Alice", []float32{1, 0, 0, 0})
		if _, err := arc.Push(ctx, leaf); err != nil {
			t.Fatalf("Push failed: %v", err)
		}

		count, err := arc.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		// 1 for Alice, 1 for Bob from the previous subtest.
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}
	})

	t.Run("FindSimilar", func(t *testing.T) {
		matches, err := arc.FindSimilar(ctx, []float32{0.95, 0.05, 0, 0}, 1)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].FaceID != "face-000001" {
			t.Errorf("nearest = %s, want face-000001", matches[0].FaceID)
		}
		if matches[0].DisplayName != "Alice" {
			t.Errorf("display name = %s", matches[0].DisplayName)
		}
	})

	t.Run("CreateVectorIndex", func(t *testing.T) {
		if err := arc.CreateVectorIndex(ctx); err != nil {
			t.Fatalf("CreateVectorIndex failed: %v", err)
		}
	})

	t.Run("SkipsUndecodablePrints", func(t *testing.T) {
		leaf := faceindex.LeafSnapshot{
			FaceID: "face-000003",
			Prints: []embedding.Print{
				{Data: []byte{1, 2, 3}, Format: "f32le"}, // truncated
				embedding.Encode([]float32{0, 0, 1, 0}),
			},
		}
		pushed, err := arc.Push(ctx, leaf)
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if pushed != 1 {
			t.Errorf("pushed = %d, want 1", pushed)
		}
	})
}
