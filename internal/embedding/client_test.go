package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// jpegMagic is a minimal JPEG header for MIME detection.
var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}

func TestDetectFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		file.Close()
		if ct := header.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part Content-Type = %q, want image/jpeg", ct)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"faces_count": 2,
			"faces": [
				{"bbox": [0.1, 0.1, 0.3, 0.4], "det_score": 0.99},
				{"bbox": [0.5, 0.2, 0.7, 0.5], "det_score": 0.87}
			],
			"model": "buffalo_l"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	faces, err := client.DetectFaces(context.Background(), jpegMagic)
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("got %d faces, want 2", len(faces))
	}
	if faces[0].Score != 0.99 {
		t.Errorf("face 0 score = %v, want 0.99", faces[0].Score)
	}
	if len(faces[1].BBox) != 4 || faces[1].BBox[0] != 0.5 {
		t.Errorf("face 1 bbox = %v", faces[1].BBox)
	}
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dim": 3, "embedding": [0.5, -0.25, 1.0], "model": "buffalo_l"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	print, err := client.Embed(context.Background(), jpegMagic)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	vec, err := Decode(print)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float32{0.5, -0.25, 1.0}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("element %d = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestEmbedNoEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"dim": 0, "embedding": [], "model": "buffalo_l"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Embed(context.Background(), jpegMagic)
	if !errors.Is(err, ErrNoEmbedding) {
		t.Errorf("err = %v, want ErrNoEmbedding", err)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.DetectFaces(context.Background(), jpegMagic); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpegMagic, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x00, 0x00}, "image/gif"},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46, 0, 0, 0, 0, 0x57, 0x45, 0x42, 0x50}, "image/webp"},
		{"unknown", []byte{0, 1, 2, 3, 4, 5, 6, 7}, "application/octet-stream"},
		{"too short", []byte{0xFF}, "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectMIMEType(tt.data); got != tt.want {
				t.Errorf("detectMIMEType = %q, want %q", got, tt.want)
			}
		})
	}
}
