package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/chunk"
	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/export"
	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/store"
	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// maxAttachmentDepth bounds email attachment fan-out: attachments of
// attachments are not descended into.
const maxAttachmentDepth = 1

// processDocument runs the six stages for one document under the
// per-document budget. Partial writes are rolled back on timeout or
// cancellation.
func (s *Service) processDocument(parent context.Context, j *job) IngestResult {
	ctx, cancel := context.WithTimeout(parent, s.opts.DocBudget)
	defer cancel()

	tracker := ai.NewCostTracker()
	result := IngestResult{DocID: j.docID}

	finish := func(r IngestResult) IngestResult {
		r.CostUSD = tracker.TotalUSD()
		r.TokensIn, r.TokensOut = tracker.TotalTokens()
		if s.metrics != nil {
			s.metrics.RecordLLMUsage(r.CostUSD, r.TokensIn, r.TokensOut)
			if r.ErrorKind != "" {
				s.metrics.RecordError(string(r.ErrorKind))
			}
		}
		return r
	}

	// Stage 1: extract.
	doc, err := s.extractor.Extract(ctx, j.raw)
	if err != nil {
		s.recordStage(StageExtract, "fail")
		if interrupted, r := s.interruptionResult(parent, ctx, result, StageExtract); interrupted {
			return finish(r)
		}
		result.Status = StatusFailed
		result.Stage = StageExtract
		result.ErrorKind = ErrKindExtraction
		result.Message = err.Error()
		return finish(result)
	}
	s.recordStage(StageExtract, "continue")
	result.DocType = string(doc.DocumentType)

	// Stage 2: triage. Lookup errors fail open inside the triager; a
	// panic-free error path here still lets the document continue.
	// Forced re-ingestion keeps the fingerprint but skips the duplicate
	// ladder, so a stored document never stops on a match with itself.
	var decision triage.Decision
	if j.force {
		decision = triage.Decision{
			Action:      triage.ActionContinue,
			Category:    triage.CategoryArchival,
			Confidence:  1.0,
			Reason:      "reingest requested",
			Fingerprint: triage.NewFingerprint(doc, nil),
		}
	} else {
		decision = s.safeTriage(ctx, doc)
	}
	result.TriageCategory = decision.Category
	if decision.Action == triage.ActionStop {
		s.recordStage(StageTriage, "stop")
		if decision.Category == triage.CategoryJunk {
			return finish(s.finishGated(ctx, j, doc, decision, result))
		}
		result.Status = StatusDuplicate
		result.MatchedDocID = decision.MatchedDocID
		result.Message = decision.Reason
		return finish(result)
	}
	s.recordStage(StageTriage, "continue")

	// Stage 3: enrich. Never errors; failure is carried on the record.
	meta := s.enricher.Enrich(ctx, doc, decision, j.raw.Filename, tracker, s.opts.DocCostBudget)
	result.Title = meta.Title
	result.Signalness = meta.Scores.Signalness
	if meta.EnrichmentFailed {
		s.recordStage(StageEnrich, "fail")
		if interrupted, r := s.interruptionResult(parent, ctx, result, StageEnrich); interrupted {
			return finish(r)
		}
	} else {
		s.recordStage(StageEnrich, "continue")
	}

	// Stage 4: gate.
	verdict := s.gate.Evaluate(meta, decision)
	if verdict.DoIndex {
		s.recordStage(StageGate, "continue")
	} else {
		s.recordStage(StageGate, "stop")
	}

	// Stage 5: chunk + embed + store vectors, non-gated only.
	var chunks []chunk.Chunk
	if verdict.DoIndex {
		chunks = s.chunker.Split(j.docID, doc)
		s.recordStage(StageChunk, "continue")

		if err := s.storeChunks(ctx, j.docID, chunks, doc, meta, decision); err != nil {
			s.recordStage(StageStore, "fail")
			s.rollback(j.docID)
			if interrupted, r := s.interruptionResult(parent, ctx, result, StageStore); interrupted {
				return finish(r)
			}
			result.Status = StatusFailed
			result.Stage = StageStore
			result.ErrorKind = ErrKindStore
			result.Message = err.Error()
			return finish(result)
		}
		s.recordStage(StageStore, "continue")
		result.Chunks = len(chunks)
		if s.metrics != nil {
			s.metrics.ChunksStored.Add(float64(len(chunks)))
		}
	}

	// Stage 6: commit metadata, then export (fail-open).
	if err := s.putDocumentRecord(ctx, j.docID, doc, meta, decision, !verdict.DoIndex); err != nil {
		s.rollback(j.docID)
		if interrupted, r := s.interruptionResult(parent, ctx, result, StageStore); interrupted {
			return finish(r)
		}
		result.Status = StatusFailed
		result.Stage = StageStore
		result.ErrorKind = ErrKindStore
		result.Message = err.Error()
		return finish(result)
	}

	notePath, exportErr := s.exporter.Export(ctx, export.Input{
		DocID:          j.docID,
		SourceFilename: j.raw.Filename,
		SourcePath:     j.raw.Metadata["source_path"],
		ContentHash:    decision.Fingerprint.ContentSHA256,
		Doc:            doc,
		Meta:           meta,
		Gated:          !verdict.DoIndex,
		GateReason:     verdict.Reason,
		DoIndex:        verdict.DoIndex,
		IngestedAt:     time.Now().UTC(),
	})

	switch {
	case exportErr != nil && verdict.DoIndex:
		// Vectors are committed; the missing note is repairable.
		s.recordStage(StageExport, "fail")
		s.logger.Warn("export failed after store commit", "doc_id", j.docID, "error", exportErr)
		result.Status = StatusStoredUnexported
		result.ErrorKind = ErrKindExport
		result.Message = exportErr.Error()
	case exportErr != nil:
		s.recordStage(StageExport, "fail")
		result.Status = StatusGated
		result.ErrorKind = ErrKindExport
		result.Message = exportErr.Error()
	case verdict.DoIndex:
		s.recordStage(StageExport, "continue")
		result.Status = StatusIndexed
		result.NotePath = notePath
	default:
		s.recordStage(StageExport, "continue")
		result.Status = StatusGated
		result.Message = verdict.Reason
		result.NotePath = notePath
	}

	// Attachment fan-out, depth-bounded.
	if j.depth < maxAttachmentDepth {
		for _, attachment := range doc.Attachments {
			child := &job{
				raw:   attachment,
				docID: DeriveDocID(attachment.Content),
				depth: j.depth + 1,
			}
			select {
			case s.queue <- child:
				result.Attachments = append(result.Attachments, child.docID)
			default:
				s.logger.Warn("queue full, dropping attachment", "parent", j.docID, "filename", attachment.Filename)
			}
		}
	}

	return finish(result)
}

// finishGated persists and exports a junk-stopped document so future
// triage passes see it; it never gets vectors.
func (s *Service) finishGated(ctx context.Context, j *job, doc *extract.ExtractedDocument, decision triage.Decision, result IngestResult) IngestResult {
	meta := s.enricher.Shell(doc, j.raw.Filename, decision.Reason)

	if err := s.putDocumentRecord(ctx, j.docID, doc, meta, decision, true); err != nil {
		s.logger.Warn("persisting junk document failed", "doc_id", j.docID, "error", err)
	}
	notePath, err := s.exporter.Export(ctx, export.Input{
		DocID:          j.docID,
		SourceFilename: j.raw.Filename,
		ContentHash:    decision.Fingerprint.ContentSHA256,
		Doc:            doc,
		Meta:           meta,
		Gated:          true,
		GateReason:     decision.Reason,
		IngestedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("exporting junk document failed", "doc_id", j.docID, "error", err)
	}

	result.Status = StatusGated
	result.Title = meta.Title
	result.Message = decision.Reason
	result.NotePath = notePath
	return result
}

// safeTriage shields the pipeline from triage stage errors: any panic
// or failure yields the fail-open archival decision.
func (s *Service) safeTriage(ctx context.Context, doc *extract.ExtractedDocument) (decision triage.Decision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("triage panicked, failing open", "panic", r)
			decision = triage.FailOpen(nil)
		}
	}()
	return s.triager.Triage(ctx, doc)
}

// storeChunks embeds every chunk and batch-writes the vectors with
// flattened metadata.
func (s *Service) storeChunks(ctx context.Context, docID string, chunks []chunk.Chunk, doc *extract.ExtractedDocument, meta *enrich.EnrichedMetadata, decision triage.Decision) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		text := c.Text
		if s.opts.MaxChunkChars > 0 && len(text) > s.opts.MaxChunkChars {
			text = text[:s.opts.MaxChunkChars]
		}
		texts[i] = text
	}

	vectors, err := s.embedder.Embeddings(ctx, texts, s.opts.EmbeddingsModel)
	if err != nil {
		return err
	}

	ingestedAt := time.Now().UTC().Format(time.RFC3339)
	records := make([]store.ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		metadata := map[string]any{
			"chunkType":      string(c.Type),
			"sectionTitle":   c.SectionTitle,
			"parentSections": strings.Join(c.ParentSections, " > "),
			"topics":         strings.Join(meta.Topics, ","),
			"projects":       strings.Join(meta.Projects, ","),
			"places":         strings.Join(meta.Places, ","),
			"people":         strings.Join(meta.People, ","),
			"organizations":  strings.Join(meta.Organizations, ","),
			"technologies":   strings.Join(meta.Technologies, ","),
			"dates":          joinDates(meta),
			"ingestedAt":     ingestedAt,
			"signalness":     meta.Scores.Signalness,
			"recencyScore":   meta.Scores.RecencyScore,
			"contentHash":    decision.Fingerprint.ContentSHA256,
		}
		if !doc.CreatedAt.IsZero() {
			metadata["createdAt"] = doc.CreatedAt.Format(time.RFC3339)
		}
		records = append(records, store.ChunkRecord{
			ChunkID:  c.ID,
			DocID:    docID,
			Sequence: c.Sequence,
			Text:     c.Text,
			Vector:   toFloat32(vectors[i]),
			Metadata: metadata,
		})
	}

	return s.store.PutChunks(ctx, records)
}

func (s *Service) putDocumentRecord(ctx context.Context, docID string, doc *extract.ExtractedDocument, meta *enrich.EnrichedMetadata, decision triage.Decision, gated bool) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.store.PutDocument(ctx, store.DocumentRecord{
		DocID:             docID,
		Title:             meta.Title,
		DocumentType:      string(doc.DocumentType),
		ContentSHA256:     decision.Fingerprint.ContentSHA256,
		FormatKey:         decision.Fingerprint.FormatKey,
		SimHash:           decision.Fingerprint.SimHash,
		Gated:             gated,
		EnrichmentVersion: meta.EnrichmentVersion,
		CreatedAt:         doc.CreatedAt,
		IngestedAt:        time.Now().UTC(),
		MetadataJSON:      string(metaJSON),
	})
}

// rollback discards partial writes, chunks and the document row both,
// so an aborted document never registers as a duplicate on retry; used
// on store failure, timeout and cancellation.
func (s *Service) rollback(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.DeleteDocumentChunks(ctx, docID); err != nil {
		s.logger.Warn("rollback failed", "doc_id", docID, "error", err)
	}
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		s.logger.Warn("rollback failed", "doc_id", docID, "error", err)
	}
}

// interruptionResult distinguishes document-budget timeouts from
// external cancellation. Both roll back partial writes.
func (s *Service) interruptionResult(parent, ctx context.Context, result IngestResult, stage string) (bool, IngestResult) {
	if ctx.Err() == nil {
		return false, result
	}
	s.rollback(result.DocID)
	result.Stage = stage
	if parent.Err() != nil {
		result.Status = StatusCancelled
		result.ErrorKind = ErrKindCancelled
		result.Message = "processing cancelled"
	} else if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Status = StatusTimeout
		result.ErrorKind = ErrKindTimeout
		result.Message = "document budget exceeded"
	} else {
		result.Status = StatusCancelled
		result.ErrorKind = ErrKindCancelled
		result.Message = ctx.Err().Error()
	}
	return true, result
}

func (s *Service) recordStage(stage, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordStage(stage, outcome)
	}
}

// joinDates flattens date records to "raw|iso" pairs for scalar-only
// metadata stores.
func joinDates(meta *enrich.EnrichedMetadata) string {
	parts := make([]string, 0, len(meta.Dates))
	for _, d := range meta.Dates {
		if d.ISO != "" {
			parts = append(parts, d.Raw+"|"+d.ISO)
		} else {
			parts = append(parts, d.Raw)
		}
	}
	return strings.Join(parts, ",")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
