// Package store persists documents and chunk vectors. The Weaviate
// implementation is the store of record; the in-memory implementation
// backs tests.
package store

import (
	"context"
	"time"
)

// DocumentRecord is the per-document metadata row. It is written for
// every processed document, gated ones included, so triage sees past
// decisions on future passes.
type DocumentRecord struct {
	DocID             string
	Title             string
	DocumentType      string
	ContentSHA256     string
	FormatKey         string
	SimHash           uint64
	Gated             bool
	EnrichmentVersion string
	CreatedAt         time.Time
	IngestedAt        time.Time
	MetadataJSON      string
}

// ChunkRecord is one chunk plus its vector and flattened metadata.
// List-valued metadata is comma-joined; the store only holds scalars.
type ChunkRecord struct {
	ChunkID  string
	DocID    string
	Sequence int
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// VectorStore is the persistence surface the pipeline depends on. It
// doubles as the triage duplicate index.
type VectorStore interface {
	EnsureSchemaExists(ctx context.Context) error

	PutDocument(ctx context.Context, rec DocumentRecord) error
	GetDocument(ctx context.Context, docID string) (*DocumentRecord, error)
	DeleteDocument(ctx context.Context, docID string) error

	PutChunks(ctx context.Context, chunks []ChunkRecord) error
	DeleteDocumentChunks(ctx context.Context, docID string) error

	// Triage duplicate lookups (triage.Index).
	FindByContentHash(ctx context.Context, hash string) (string, bool, error)
	FindByFormatKey(ctx context.Context, key string) (string, bool, error)
	NearestSimHash(ctx context.Context, hash uint64) (string, float64, bool, error)
}
