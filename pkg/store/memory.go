package store

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed VectorStore for tests and local runs
// without Weaviate.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]DocumentRecord         // docID -> record
	chunks    map[string]map[string]ChunkRecord // docID -> chunkID -> record
	byHash    map[string]string                 // content hash -> docID
	byKey     map[string]string                 // format key -> docID
	fuzzy     *fuzzyIndex
}

var _ VectorStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		documents: map[string]DocumentRecord{},
		chunks:    map[string]map[string]ChunkRecord{},
		byHash:    map[string]string{},
		byKey:     map[string]string{},
		fuzzy:     newFuzzyIndex(),
	}
}

func (s *MemoryStore) EnsureSchemaExists(ctx context.Context) error { return nil }

func (s *MemoryStore) PutDocument(ctx context.Context, rec DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents[rec.DocID] = rec
	if rec.ContentSHA256 != "" {
		s.byHash[rec.ContentSHA256] = rec.DocID
	}
	if rec.FormatKey != "" {
		s.byKey[rec.FormatKey] = rec.DocID
	}
	s.fuzzy.add(rec.DocID, rec.SimHash)
	return nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, docID string) (*DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.documents[docID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.documents[docID]
	if !ok {
		return nil
	}
	delete(s.documents, docID)
	if rec.ContentSHA256 != "" && s.byHash[rec.ContentSHA256] == docID {
		delete(s.byHash, rec.ContentSHA256)
	}
	if rec.FormatKey != "" && s.byKey[rec.FormatKey] == docID {
		delete(s.byKey, rec.FormatKey)
	}
	s.fuzzy.remove(docID)
	return nil
}

func (s *MemoryStore) PutChunks(ctx context.Context, chunks []ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		byID, ok := s.chunks[chunk.DocID]
		if !ok {
			byID = map[string]ChunkRecord{}
			s.chunks[chunk.DocID] = byID
		}
		byID[chunk.ChunkID] = chunk
	}
	return nil
}

func (s *MemoryStore) DeleteDocumentChunks(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, docID)
	return nil
}

func (s *MemoryStore) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.byHash[hash]
	return docID, ok, nil
}

func (s *MemoryStore) FindByFormatKey(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.byKey[key]
	return docID, ok, nil
}

func (s *MemoryStore) NearestSimHash(ctx context.Context, hash uint64) (string, float64, bool, error) {
	docID, similarity, found := s.fuzzy.nearest(hash)
	return docID, similarity, found, nil
}

// ChunksFor returns the stored chunks of one document, test helper.
func (s *MemoryStore) ChunksFor(docID string) []ChunkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ChunkRecord
	for _, chunk := range s.chunks[docID] {
		out = append(out, chunk)
	}
	return out
}

// DocumentCount reports how many documents are stored, test helper.
func (s *MemoryStore) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}
