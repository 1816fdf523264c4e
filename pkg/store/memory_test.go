package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/triage"
)

func TestMemoryStoreDocumentRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := DocumentRecord{
		DocID:         "doc-1",
		Title:         "Server notes",
		ContentSHA256: "abc123",
		FormatKey:     "<msg@example.org>",
		SimHash:       0xDEADBEEF,
	}
	require.NoError(t, s.PutDocument(ctx, rec))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Server notes", got.Title)

	missing, err := s.GetDocument(ctx, "doc-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreDuplicateLookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentRecord{
		DocID:         "doc-1",
		ContentSHA256: "hash-a",
		FormatKey:     "key-a",
		SimHash:       0xF0F0F0F0F0F0F0F0,
	}))

	docID, found, err := s.FindByContentHash(ctx, "hash-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "doc-1", docID)

	_, found, err = s.FindByContentHash(ctx, "hash-b")
	require.NoError(t, err)
	assert.False(t, found)

	docID, found, err = s.FindByFormatKey(ctx, "key-a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "doc-1", docID)

	_, found, err = s.FindByFormatKey(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreNearestSimHash(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := uint64(0xF0F0F0F0F0F0F0F0)
	require.NoError(t, s.PutDocument(ctx, DocumentRecord{DocID: "doc-1", SimHash: base}))

	// Two flipped bits: similarity 62/64.
	docID, similarity, found, err := s.NearestSimHash(ctx, base^0b11)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "doc-1", docID)
	assert.InDelta(t, triage.SimHashSimilarity(base, base^0b11), similarity, 1e-9)
}

func TestMemoryStoreChunkIdempotence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	chunks := []ChunkRecord{
		{ChunkID: "doc-1#0", DocID: "doc-1", Sequence: 0, Text: "first"},
		{ChunkID: "doc-1#1", DocID: "doc-1", Sequence: 1, Text: "second"},
	}
	require.NoError(t, s.PutChunks(ctx, chunks))
	// Re-ingestion overwrites by chunk ID instead of appending.
	require.NoError(t, s.PutChunks(ctx, chunks))

	assert.Len(t, s.ChunksFor("doc-1"), 2)
}

func TestMemoryStoreDeleteDocumentChunks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutChunks(ctx, []ChunkRecord{
		{ChunkID: "doc-1#0", DocID: "doc-1"},
		{ChunkID: "doc-2#0", DocID: "doc-2"},
	}))
	require.NoError(t, s.DeleteDocumentChunks(ctx, "doc-1"))

	assert.Empty(t, s.ChunksFor("doc-1"))
	assert.Len(t, s.ChunksFor("doc-2"), 1)
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentRecord{
		DocID:         "doc-1",
		ContentSHA256: "hash-a",
		FormatKey:     "key-a",
		SimHash:       0xF0F0F0F0F0F0F0F0,
	}))
	require.NoError(t, s.DeleteDocument(ctx, "doc-1"))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Every duplicate index forgets the document too.
	_, found, err := s.FindByContentHash(ctx, "hash-a")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.FindByFormatKey(ctx, "key-a")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, found, err = s.NearestSimHash(ctx, 0xF0F0F0F0F0F0F0F0)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing document is a no-op.
	require.NoError(t, s.DeleteDocument(ctx, "doc-nope"))
}

func TestFuzzyIndexNearestPicksClosest(t *testing.T) {
	idx := newFuzzyIndex()
	idx.add("far", 0x0000000000000001)
	idx.add("near", 0xFFFFFFFFFFFFFFF0)

	docID, similarity, found := idx.nearest(0xFFFFFFFFFFFFFFFF)
	require.True(t, found)
	assert.Equal(t, "near", docID)
	assert.Greater(t, similarity, 0.9)

	idx.remove("near")
	docID, _, found = idx.nearest(0xFFFFFFFFFFFFFFFF)
	require.True(t, found)
	assert.Equal(t, "far", docID)
}

func TestFuzzyIndexEmpty(t *testing.T) {
	idx := newFuzzyIndex()
	_, _, found := idx.nearest(42)
	assert.False(t, found)
}
