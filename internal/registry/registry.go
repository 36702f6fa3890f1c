// Package registry manages enrolled identities and face matching against
// the full registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/store"
)


// ErrInvalidInput is returned when required enrollment fields are missing.
var ErrInvalidInput = errors.New("name, phone and face media are required")

// Registry provides enrollment, credential lookup and face matching.
type Registry struct {
	store store.IdentityStore
	face  biometric.FaceEmbedder
	voice biometric.VoiceEmbedder
	index *faceIndex
}

// New creates a registry over the given identity store and embedders.
func New(st store.IdentityStore, face biometric.FaceEmbedder, voice biometric.VoiceEmbedder) *Registry {
	return &Registry{
		store: st,
		face:  face,
		voice: voice,
		index: newFaceIndex(),
	}
}

// BuildIndex loads all identities and (re)builds the in-memory face index.
// Called once at startup; enrollments extend the index incrementally.
func (r *Registry) BuildIndex(ctx context.Context) error {
	identities, err := r.store.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("loading identities for index: %w", err)
	}
	r.index.build(identities)
	return nil
}

// IndexSize returns the number of identities in the face index.
func (r *Registry) IndexSize() int {
	return r.index.size()
}

// EnrollRequest carries the raw enrollment inputs. Voice is optional.
type EnrollRequest struct {
	Name  string
	Phone string
	Face  []byte
	Voice []byte
}

// Enroll extracts embeddings and persists a new identity. Nothing is written
// when extraction fails, and a duplicate (name, phone) pair or normalized
// display name fails with store.ErrDuplicateIdentity.
func (r *Registry) Enroll(ctx context.Context, req EnrollRequest) (*store.Identity, error) {
	if req.Name == "" || req.Phone == "" || len(req.Face) == 0 {
		return nil, ErrInvalidInput
	}

	// Cheap pre-check so a duplicate does not pay for model inference.
	// The store's own uniqueness check closes the race.
	if _, err := r.store.FindIdentity(ctx, req.Name, req.Phone); err == nil {
		return nil, store.ErrDuplicateIdentity
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	faceEmbedding, err := r.face.ExtractFaceEmbedding(ctx, req.Face)
	if err != nil {
		return nil, fmt.Errorf("face enrollment: %w", err)
	}

	var voiceEmbedding []float32
	if len(req.Voice) > 0 {
		voiceEmbedding, err = r.voice.ExtractVoiceEmbedding(ctx, req.Voice)
		if err != nil {
			return nil, fmt.Errorf("voice enrollment: %w", err)
		}
	}

	identity := &store.Identity{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Phone:          req.Phone,
		FaceEmbedding:  faceEmbedding,
		VoiceEmbedding: voiceEmbedding,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.store.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	r.index.add(identity)
	return identity, nil
}

// Find looks up an identity by exact (name, phone) credentials.
func (r *Registry) Find(ctx context.Context, name, phone string) (*store.Identity, error) {
	return r.store.FindIdentity(ctx, name, phone)
}

// All returns every identity in enrollment order.
func (r *Registry) All(ctx context.Context) ([]store.Identity, error) {
	return r.store.ListIdentities(ctx)
}

// MatchFace returns the names of all identities whose face embedding matches
// the given embedding, in enrollment order. Every identity is scored with the
// exact cosine check: consent is required from each matched person, so an
// approximate shortcut that could miss one is not acceptable here. Ranked
// approximate lookup lives in Nearest.
func (r *Registry) MatchFace(ctx context.Context, embedding []float32, threshold float64) ([]string, error) {
	identities, err := r.store.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities for matching: %w", err)
	}

	var matched []string
	for i := range identities {
		identity := &identities[i]
		if biometric.Match(embedding, identity.FaceEmbedding, threshold) {
			matched = append(matched, identity.Name)
		}
	}
	return matched, nil
}

// Neighbor is one entry of a ranked similarity lookup.
type Neighbor struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Nearest returns the k identities most similar to the embedding, best first.
// The HNSW graph answers the lookup when built; similarities reported back
// are always exact cosine scores.
func (r *Registry) Nearest(ctx context.Context, embedding []float32, k int) ([]Neighbor, error) {
	identities, err := r.store.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities for lookup: %w", err)
	}

	byID := make(map[string]*store.Identity, len(identities))
	for i := range identities {
		byID[identities[i].ID] = &identities[i]
	}

	var neighbors []Neighbor
	if ids := r.index.nearest(embedding, k); ids != nil {
		for _, id := range ids {
			identity, ok := byID[id]
			if !ok {
				continue
			}
			neighbors = append(neighbors, Neighbor{
				Name:       identity.Name,
				Similarity: biometric.CosineSimilarity(embedding, identity.FaceEmbedding),
			})
		}
	} else {
		for i := range identities {
			neighbors = append(neighbors, Neighbor{
				Name:       identities[i].Name,
				Similarity: biometric.CosineSimilarity(embedding, identities[i].FaceEmbedding),
			})
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}
