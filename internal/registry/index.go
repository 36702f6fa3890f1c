package registry

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/unfaced/unfaced/internal/store"
)

// HNSW graph parameters; standard Ml formula.
const hnswMaxNeighbors = 16

// faceIndex is an in-memory HNSW index over enrolled face embeddings, keyed
// by identity ID. It serves ranked nearest-neighbor lookups; consent matching
// never consults it, since its recall is approximate.
type faceIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	idToName map[string]string
}

func newFaceIndex() *faceIndex {
	return &faceIndex{idToName: make(map[string]string)}
}

// build replaces the index contents with the given identities.
func (idx *faceIndex) build(identities []store.Identity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	idx.idToName = make(map[string]string, len(identities))
	for i := range identities {
		identity := &identities[i]
		if len(identity.FaceEmbedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(identity.ID, identity.FaceEmbedding))
		idx.idToName[identity.ID] = identity.Name
	}
	idx.graph = g
}

// add extends the index with a newly enrolled identity.
func (idx *faceIndex) add(identity *store.Identity) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph == nil {
		return
	}
	idx.graph.Add(hnsw.MakeNode(identity.ID, identity.FaceEmbedding))
	idx.idToName[identity.ID] = identity.Name
}

// size returns the number of indexed identities.
func (idx *faceIndex) size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idToName)
}

// nearest returns the IDs of the k closest identities in graph order, or nil
// when the index has not been built.
func (idx *faceIndex) nearest(embedding []float32, k int) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || len(idx.idToName) == 0 {
		return nil
	}
	if k > len(idx.idToName) {
		k = len(idx.idToName)
	}

	neighbors := idx.graph.Search(embedding, k)
	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.Key)
	}
	return ids
}
