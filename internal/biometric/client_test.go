package biometric

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientExtractFaceEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embeddingResponse{
			Dim:       3,
			Embedding: []float32{0.1, 0.2, 0.3},
			Model:     "facenet",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	emb, err := client.ExtractFaceEmbedding(context.Background(), []byte("fake image"))
	if err != nil {
		t.Fatalf("ExtractFaceEmbedding failed: %v", err)
	}
	if len(emb) != 3 {
		t.Errorf("expected 3-dim embedding, got %d", len(emb))
	}
}

func TestClientTypedErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected error
	}{
		{"no face", "no_face_detected", ErrNoFaceDetected},
		{"unsupported", "unsupported_format", ErrUnsupportedFormat},
		{"too short", "too_short", ErrTooShort},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(errorResponse{Error: tc.code})
			}))
			defer server.Close()

			client := NewClient(server.URL)
			_, err := client.ExtractVoiceEmbedding(context.Background(), []byte("clip"))
			if !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestClientUnknownError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.ExtractFaceEmbedding(context.Background(), []byte("img"))
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if errors.Is(err, ErrNoFaceDetected) || errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unexpected typed error: %v", err)
	}
}

func TestClientEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embeddingResponse{Dim: 0, Embedding: nil})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.ExtractFaceEmbedding(context.Background(), []byte("img")); err == nil {
		t.Error("expected error for empty embedding")
	}
}
