// Package mock provides embedder implementations for tests.
package mock

import (
	"context"
	"sync"
)

// Embedder is a configurable fake embedding service client. Embeddings can be
// fixed or keyed by media content, and errors injected per modality.
type Embedder struct {
	mu sync.Mutex

	FaceEmbedding  []float32
	VoiceEmbedding []float32

	// FaceByContent overrides FaceEmbedding for specific media payloads.
	FaceByContent map[string][]float32

	FaceErr  error
	VoiceErr error

	FaceCalls  int
	VoiceCalls int
}

// ExtractFaceEmbedding returns the configured face embedding or error.
func (e *Embedder) ExtractFaceEmbedding(ctx context.Context, media []byte) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.FaceCalls++
	if e.FaceErr != nil {
		return nil, e.FaceErr
	}
	if emb, ok := e.FaceByContent[string(media)]; ok {
		return emb, nil
	}
	return e.FaceEmbedding, nil
}

// ExtractVoiceEmbedding returns the configured voice embedding or error.
func (e *Embedder) ExtractVoiceEmbedding(ctx context.Context, audio []byte) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.VoiceCalls++
	if e.VoiceErr != nil {
		return nil, e.VoiceErr
	}
	return e.VoiceEmbedding, nil
}
