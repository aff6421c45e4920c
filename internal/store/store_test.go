package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testDoc struct {
	Names []string `json:"names"`
}

func TestLoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.json"), 1, time.Minute, func() any { return testDoc{} })

	var doc testDoc
	loaded, err := s.Load(&doc)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded {
		t.Error("loaded = true for missing file")
	}
}

func TestFlushAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc := testDoc{Names: []string{"alpha", "beta"}}

	s := New(path, 3, time.Minute, func() any { return doc })
	s.MarkDirty()
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var got testDoc
	loaded, err := New(path, 3, time.Minute, nil).Load(&got)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded {
		t.Fatal("loaded = false after flush")
	}
	if len(got.Names) != 2 || got.Names[0] != "alpha" {
		t.Errorf("got %+v, want %+v", got, doc)
	}
}

func TestSchemaVersionMismatchStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	old := New(path, 1, time.Minute, func() any { return testDoc{Names: []string{"x"}} })
	old.MarkDirty()
	if err := old.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var got testDoc
	loaded, err := New(path, 2, time.Minute, nil).Load(&got)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded {
		t.Error("loaded = true across schema versions")
	}
	if len(got.Names) != 0 {
		t.Errorf("payload decoded despite version mismatch: %+v", got)
	}
}

func TestFlushWithoutDirtyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	s := New(path, 1, time.Minute, func() any { return testDoc{} })

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Flush wrote a file without MarkDirty")
	}
}

func TestDebouncedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	s := New(path, 1, 20*time.Millisecond, func() any { return testDoc{Names: []string{"debounced"}} })

	s.MarkDirty()
	s.MarkDirty()
	s.MarkDirty()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	var got testDoc
	loaded, err := New(path, 1, time.Minute, nil).Load(&got)
	if err != nil || !loaded {
		t.Fatalf("Load failed: loaded=%v err=%v", loaded, err)
	}
	if len(got.Names) != 1 || got.Names[0] != "debounced" {
		t.Errorf("got %+v", got)
	}
}

func TestEnvelopeFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	s := New(path, 7, time.Minute, func() any { return testDoc{Names: []string{"n"}} })
	s.MarkDirty()
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}

	var env struct {
		SchemaVersion int             `json:"schema_version"`
		SavedAt       time.Time       `json:"saved_at"`
		Payload       json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("document is not a valid envelope: %v", err)
	}
	if env.SchemaVersion != 7 {
		t.Errorf("schema_version = %d, want 7", env.SchemaVersion)
	}
	if env.SavedAt.IsZero() {
		t.Error("saved_at is zero")
	}
	if len(env.Payload) == 0 {
		t.Error("payload is empty")
	}
}
