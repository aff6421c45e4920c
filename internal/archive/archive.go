// Package archive mirrors face index reference prints into PostgreSQL with
// pgvector, so other tools can run similarity queries against the library
// without loading the JSON documents.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/photokit/facetree/internal/embedding"
	"github.com/photokit/facetree/internal/faceindex"
)

// Archive is a PostgreSQL-backed mirror of the face index prints.
type Archive struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(url string) (*Archive, error) {
	if url == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Migrate creates the pgvector extension and the face_prints table for the
// given embedding dimension.
func (a *Archive) Migrate(ctx context.Context, dim int) error {
	if _, err := a.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS face_prints (
			face_id      VARCHAR(255) NOT NULL,
			print_index  INTEGER NOT NULL,
			embedding    vector(%d) NOT NULL,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			label_source VARCHAR(32) NOT NULL DEFAULT 'none',
			created_at   TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			PRIMARY KEY (face_id, print_index)
		)
	`, dim)
	if _, err := a.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create face_prints table: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for similarity search. Should
// be called after the table has some data for optimal performance.
func (a *Archive) CreateVectorIndex(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS face_prints_vector_idx
		ON face_prints USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// Push replaces a cluster's rows with its current reference prints.
// Undecodable prints are skipped.
func (a *Archive) Push(ctx context.Context, leaf faceindex.LeafSnapshot) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_prints WHERE face_id = $1", leaf.FaceID); err != nil {
		return 0, fmt.Errorf("failed to clear prints for %s: %w", leaf.FaceID, err)
	}

	pushed := 0
	for i, p := range leaf.Prints {
		vec, err := embedding.Decode(p)
		if err != nil {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO face_prints (face_id, print_index, embedding, display_name, label_source, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, leaf.FaceID, i, pgvector.NewVector(vec), leaf.DisplayName, string(leaf.LabelSource))
		if err != nil {
			return 0, fmt.Errorf("failed to insert print %d for %s: %w", i, leaf.FaceID, err)
		}
		pushed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return pushed, nil
}

// PushAll mirrors every leaf snapshot and returns the total prints written.
func (a *Archive) PushAll(ctx context.Context, leaves []faceindex.LeafSnapshot) (int, error) {
	total := 0
	for _, leaf := range leaves {
		n, err := a.Push(ctx, leaf)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Match is one nearest-print row from a similarity query.
type Match struct {
	FaceID      string
	PrintIndex  int
	DisplayName string
	LabelSource string
	Distance    float64
}

// FindSimilar returns the nearest archived prints to a query vector using
// cosine distance.
func (a *Archive) FindSimilar(ctx context.Context, vec []float32, limit int) ([]Match, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT face_id, print_index, display_name, label_source, embedding <=> $1 AS distance
		FROM face_prints
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar prints: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.FaceID, &m.PrintIndex, &m.DisplayName, &m.LabelSource, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of archived prints.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var count int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_prints").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prints: %w", err)
	}
	return count, nil
}
