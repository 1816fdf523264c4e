// Package pipeline runs the six-stage ingestion flow: extract, triage,
// enrich, gate, chunk, store+export. Stages within a document run in
// order; documents run concurrently on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/chunk"
	"github.com/inkwell-ai/inkwell/pkg/db"
	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/export"
	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/gate"
	"github.com/inkwell-ai/inkwell/pkg/metrics"
	"github.com/inkwell-ai/inkwell/pkg/store"
	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// ErrQueueFull is returned when the bounded ingest queue cannot accept
// another document; HTTP callers translate it to 429.
var ErrQueueFull = errors.New("ingest queue full")

// Options tune the service.
type Options struct {
	Workers         int
	QueueSize       int
	DocBudget       time.Duration
	DocCostBudget   float64
	EmbeddingsModel string
	MaxChunkChars   int
}

// Service wires the stages together and owns the worker pool.
type Service struct {
	logger    *log.Logger
	extractor *extract.Extractor
	triager   *triage.Triager
	enricher  *enrich.Enricher
	gate      *gate.Gate
	chunker   *chunk.Chunker
	store     store.VectorStore
	exporter  *export.Exporter
	embedder  ai.Embedding
	results   *db.Store
	metrics   *metrics.Metrics
	opts      Options

	queue   chan *job
	wg      sync.WaitGroup
	stopped chan struct{}
}

// job is one queued document plus its completion channel.
type job struct {
	raw    extract.RawDocument
	docID  string
	force  bool
	depth  int
	result chan IngestResult
}

func NewService(
	logger *log.Logger,
	extractor *extract.Extractor,
	triager *triage.Triager,
	enricher *enrich.Enricher,
	qualityGate *gate.Gate,
	chunker *chunk.Chunker,
	vectorStore store.VectorStore,
	exporter *export.Exporter,
	embedder ai.Embedding,
	results *db.Store,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.DocBudget <= 0 {
		opts.DocBudget = 5 * time.Minute
	}
	return &Service{
		logger:    logger,
		extractor: extractor,
		triager:   triager,
		enricher:  enricher,
		gate:      qualityGate,
		chunker:   chunker,
		store:     vectorStore,
		exporter:  exporter,
		embedder:  embedder,
		results:   results,
		metrics:   m,
		opts:      opts,
		queue:     make(chan *job, opts.QueueSize),
		stopped:   make(chan struct{}),
	}
}

// Start launches the worker pool. Workers drain the queue until ctx is
// cancelled and Stop is called.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	s.logger.Info("pipeline started", "workers", s.opts.Workers, "queue", s.opts.QueueSize)
}

// Stop closes the queue and waits for in-flight documents.
func (s *Service) Stop() {
	close(s.queue)
	s.wg.Wait()
	close(s.stopped)
	s.logger.Info("pipeline stopped")
}

func (s *Service) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	for j := range s.queue {
		if s.metrics != nil {
			s.metrics.QueueDepth.Set(float64(len(s.queue)))
		}

		started := time.Now()
		result := s.processDocument(ctx, j)
		result.Duration = time.Since(started)

		if s.metrics != nil {
			s.metrics.DocumentSeconds.Observe(result.Duration.Seconds())
		}
		s.persistResult(result, j.raw.Filename)

		if j.result != nil {
			j.result <- result
		}

		s.logger.Debug("document processed",
			"worker", id, "doc_id", result.DocID, "status", result.Status,
			"duration", result.Duration)
	}
}

// Ingest queues one document and waits for its result. Returns
// ErrQueueFull rather than blocking when the queue is saturated.
func (s *Service) Ingest(ctx context.Context, raw extract.RawDocument) (IngestResult, error) {
	j := &job{
		raw:    raw,
		docID:  DeriveDocID(raw.Content),
		result: make(chan IngestResult, 1),
	}

	select {
	case s.queue <- j:
	default:
		return IngestResult{}, ErrQueueFull
	}

	select {
	case result := <-j.result:
		return result, nil
	case <-ctx.Done():
		return IngestResult{}, ctx.Err()
	}
}

// BatchIngest queues many documents without waiting. Returns the doc
// IDs accepted; documents that would overflow the queue are reported in
// rejected.
func (s *Service) BatchIngest(ctx context.Context, raws []extract.RawDocument) (accepted []string, rejected int) {
	for _, raw := range raws {
		j := &job{raw: raw, docID: DeriveDocID(raw.Content)}
		select {
		case s.queue <- j:
			accepted = append(accepted, j.docID)
		default:
			rejected++
		}
	}
	return accepted, rejected
}

// Reingest re-runs a document with triage bypassed: chunk writes
// overwrite by chunk ID. The stored record must exist.
func (s *Service) Reingest(ctx context.Context, docID string, raw extract.RawDocument) (IngestResult, error) {
	existing, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("looking up document %s: %w", docID, err)
	}
	if existing == nil {
		return IngestResult{}, fmt.Errorf("document %s not found", docID)
	}

	j := &job{
		raw:    raw,
		docID:  docID,
		force:  true,
		result: make(chan IngestResult, 1),
	}

	select {
	case s.queue <- j:
	default:
		return IngestResult{}, ErrQueueFull
	}

	select {
	case result := <-j.result:
		return result, nil
	case <-ctx.Done():
		return IngestResult{}, ctx.Err()
	}
}

// Stats merges persisted aggregates with live queue state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		QueueDepth: len(s.queue),
		Workers:    s.opts.Workers,
	}
	if s.results != nil {
		dbStats, err := s.results.GetStats(ctx)
		if err != nil {
			return stats, fmt.Errorf("loading stats: %w", err)
		}
		stats.Documents = dbStats.Documents
		stats.Indexed = dbStats.Indexed
		stats.Gated = dbStats.Gated
		stats.Duplicates = dbStats.Duplicates
		stats.Failed = dbStats.Failed
		stats.TotalChunks = dbStats.TotalChunks
		stats.TotalCostUSD = dbStats.TotalCostUSD
		stats.TokensIn = dbStats.TokensIn
		stats.TokensOut = dbStats.TokensOut
	}
	return stats, nil
}

// DeriveDocID derives the stable document ID from raw content, so the
// same bytes always map to the same document across retries.
func DeriveDocID(content []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, content).String()
}

// persistResult writes the outcome row; failures only log.
func (s *Service) persistResult(result IngestResult, filename string) {
	if s.results == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.results.RecordResult(ctx, db.ResultRow{
		DocID:          result.DocID,
		Status:         string(result.Status),
		Stage:          result.Stage,
		ErrorKind:      string(result.ErrorKind),
		Message:        result.Message,
		SourceFilename: filename,
		DocType:        result.DocType,
		TriageCategory: string(result.TriageCategory),
		MatchedDocID:   result.MatchedDocID,
		Signalness:     result.Signalness,
		Chunks:         result.Chunks,
		CostUSD:        result.CostUSD,
		TokensIn:       result.TokensIn,
		TokensOut:      result.TokensOut,
		DurationMS:     result.Duration.Milliseconds(),
		IngestedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("persisting ingest result failed", "doc_id", result.DocID, "error", err)
	}
}
