package store

import (
	"sync"

	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// fuzzyIndex is the in-process simhash sidecar. Weaviate cannot compute
// Hamming distance server-side, so near-duplicate lookups scan this map;
// it is rebuilt from stored documents on startup and kept current on
// every write.
type fuzzyIndex struct {
	mu     sync.RWMutex
	hashes map[string]uint64 // docID -> simhash
}

func newFuzzyIndex() *fuzzyIndex {
	return &fuzzyIndex{hashes: map[string]uint64{}}
}

func (f *fuzzyIndex) add(docID string, hash uint64) {
	if docID == "" || hash == 0 {
		return
	}
	f.mu.Lock()
	f.hashes[docID] = hash
	f.mu.Unlock()
}

func (f *fuzzyIndex) remove(docID string) {
	f.mu.Lock()
	delete(f.hashes, docID)
	f.mu.Unlock()
}

// nearest returns the best-matching document and its similarity.
func (f *fuzzyIndex) nearest(hash uint64) (string, float64, bool) {
	if hash == 0 {
		return "", 0, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	bestID, bestSim := "", -1.0
	for docID, candidate := range f.hashes {
		if sim := triage.SimHashSimilarity(hash, candidate); sim > bestSim {
			bestID, bestSim = docID, sim
		}
	}
	if bestID == "" {
		return "", 0, false
	}
	return bestID, bestSim, true
}

func (f *fuzzyIndex) size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.hashes)
}
