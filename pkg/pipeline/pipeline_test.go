package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/chunk"
	"github.com/inkwell-ai/inkwell/pkg/db"
	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/export"
	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/gate"
	"github.com/inkwell-ai/inkwell/pkg/store"
	"github.com/inkwell-ai/inkwell/pkg/triage"
	"github.com/inkwell-ai/inkwell/pkg/vocabulary"
)

const pipelineTestVocab = `
version: "1"
topics:
  - id: vocab:Linux
    prefLabel: Linux
    type: Topic
technologies:
  - id: vocab:QEMU
    prefLabel: QEMU
    type: Software
`

const pipelineEnvelope = `{
	"title": "Storage array rebuild notes from the homelab",
	"summary": "Disk replacement and rebuild progress.",
	"key_facts": ["Two disks replaced"],
	"topics": ["Linux"],
	"technologies": ["QEMU"],
	"people": ["Alice"],
	"actionability": 0.5
}`

type testPipeline struct {
	svc   *Service
	store *store.MemoryStore
	vault string
	llm   *ai.MockCompleter
}

func newTestPipeline(t *testing.T, responses []string) *testPipeline {
	t.Helper()
	logger := log.New(io.Discard)

	vocab := vocabulary.New(logger, "")
	require.NoError(t, vocab.LoadBytes([]byte(pipelineTestVocab)))

	llm := &ai.MockCompleter{Responses: responses}
	memStore := store.NewMemoryStore()
	vault := t.TempDir()

	results, err := db.NewStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = results.Close()
	})

	svc := NewService(
		logger,
		extract.New(logger, extract.Options{}),
		triage.New(logger, memStore, 0.92),
		enrich.New(logger, llm, vocab, enrich.Options{EnrichmentVersion: "3"}),
		gate.New(0.2, true),
		chunk.New(logger, 500, 800),
		memStore,
		export.New(logger, vault, export.LinkFirst),
		&ai.MockEmbedder{Dim: 8},
		results,
		nil,
		Options{Workers: 2, QueueSize: 16, DocBudget: time.Minute},
	)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	return &testPipeline{svc: svc, store: memStore, vault: vault, llm: llm}
}

func markdownRaw() extract.RawDocument {
	body := "# Rebuild\n\n## Plan\n\n" +
		strings.Repeat("The storage array rebuild continues with new disks and careful monitoring in place. ", 70)
	return extract.RawDocument{
		Content:  []byte(body),
		Filename: "rebuild-notes.md",
	}
}

func TestIngestIndexesDocument(t *testing.T) {
	p := newTestPipeline(t, []string{pipelineEnvelope})

	result, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)

	assert.Equal(t, StatusIndexed, result.Status)
	assert.Equal(t, "Storage array rebuild notes from the homelab", result.Title)
	assert.Greater(t, result.Chunks, 0)
	assert.Greater(t, result.Signalness, 0.2)
	assert.Greater(t, result.CostUSD, 0.0)
	assert.NotEmpty(t, result.NotePath)

	// Chunks and the document record are committed.
	assert.Len(t, p.store.ChunksFor(result.DocID), result.Chunks)
	rec, err := p.store.GetDocument(context.Background(), result.DocID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Gated)

	// The vault note exists.
	_, err = os.Stat(filepath.Join(p.vault, result.NotePath))
	assert.NoError(t, err)
}

func TestIngestDetectsDuplicate(t *testing.T) {
	p := newTestPipeline(t, []string{pipelineEnvelope})

	first, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)
	require.Equal(t, StatusIndexed, first.Status)

	second, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)

	assert.Equal(t, StatusDuplicate, second.Status)
	assert.Equal(t, triage.CategoryDuplicate, second.TriageCategory)
	assert.Equal(t, first.DocID, second.MatchedDocID)
	assert.Equal(t, 0, second.Chunks)
	// No second enrichment call happened.
	assert.Len(t, p.llm.Requests, 1)
}

func TestIngestGatesJunkWithoutVectors(t *testing.T) {
	p := newTestPipeline(t, nil)

	raw := extract.RawDocument{Content: []byte("ok thanks"), Filename: "note.txt"}
	result, err := p.svc.Ingest(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, StatusGated, result.Status)
	assert.Equal(t, triage.CategoryJunk, result.TriageCategory)
	assert.Equal(t, 0, result.Chunks)
	assert.Empty(t, p.llm.Requests)
	assert.Empty(t, p.store.ChunksFor(result.DocID))

	// The gated document is still persisted and exported.
	rec, err := p.store.GetDocument(context.Background(), result.DocID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Gated)

	require.NotEmpty(t, result.NotePath)
	note, err := os.ReadFile(filepath.Join(p.vault, result.NotePath))
	require.NoError(t, err)
	assert.Contains(t, string(note), "gated: true")
}

func TestIngestGatesFailedEnrichment(t *testing.T) {
	// Both the initial call and the re-ask return garbage.
	p := newTestPipeline(t, []string{"not json", "still not json"})

	result, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)

	assert.Equal(t, StatusGated, result.Status)
	assert.Equal(t, 0, result.Chunks)
	assert.Empty(t, p.store.ChunksFor(result.DocID))

	rec, err := p.store.GetDocument(context.Background(), result.DocID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Gated)
}

func TestIngestFailsOnEmptyInput(t *testing.T) {
	p := newTestPipeline(t, nil)

	result, err := p.svc.Ingest(context.Background(), extract.RawDocument{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, StageExtract, result.Stage)
	assert.Equal(t, ErrKindExtraction, result.ErrorKind)
}

func TestReingestBypassesDuplicateDetection(t *testing.T) {
	p := newTestPipeline(t, []string{pipelineEnvelope, pipelineEnvelope})

	first, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)
	require.Equal(t, StatusIndexed, first.Status)

	result, err := p.svc.Reingest(context.Background(), first.DocID, markdownRaw())
	require.NoError(t, err)

	assert.Equal(t, StatusIndexed, result.Status)
	assert.Equal(t, first.DocID, result.DocID)
	// Chunk writes overwrote in place instead of accumulating.
	assert.Len(t, p.store.ChunksFor(first.DocID), result.Chunks)
}

func TestReingestUnknownDocument(t *testing.T) {
	p := newTestPipeline(t, nil)

	_, err := p.svc.Reingest(context.Background(), "doc-unknown", markdownRaw())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStatsReflectOutcomes(t *testing.T) {
	p := newTestPipeline(t, []string{pipelineEnvelope})

	_, err := p.svc.Ingest(context.Background(), markdownRaw())
	require.NoError(t, err)
	_, err = p.svc.Ingest(context.Background(), extract.RawDocument{Content: []byte("ok"), Filename: "x.txt"})
	require.NoError(t, err)

	stats, err := p.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.Indexed)
	assert.Equal(t, 1, stats.Gated)
	assert.Greater(t, stats.TotalChunks, 0)
	assert.Equal(t, 2, stats.Workers)
}

func TestQueueFullRejects(t *testing.T) {
	logger := log.New(io.Discard)
	// One-slot queue, workers never started.
	svc := NewService(
		logger,
		extract.New(logger, extract.Options{}),
		triage.New(logger, nil, 0.92),
		nil, nil, nil,
		store.NewMemoryStore(),
		nil,
		&ai.MockEmbedder{},
		nil, nil,
		Options{Workers: 1, QueueSize: 1},
	)

	raws := []extract.RawDocument{
		{Content: []byte("first document body"), Filename: "a.txt"},
		{Content: []byte("second document body"), Filename: "b.txt"},
		{Content: []byte("third document body"), Filename: "c.txt"},
	}
	accepted, rejected := svc.BatchIngest(context.Background(), raws)

	assert.Len(t, accepted, 1)
	assert.Equal(t, 2, rejected)
}

func TestDeriveDocIDStable(t *testing.T) {
	a := DeriveDocID([]byte("same content"))
	b := DeriveDocID([]byte("same content"))
	c := DeriveDocID([]byte("different content"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}
