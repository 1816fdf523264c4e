package pipeline

import (
	"time"

	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// Status is the terminal state of one document's run.
type Status string

const (
	StatusIndexed          Status = "indexed"
	StatusGated            Status = "gated"
	StatusDuplicate        Status = "duplicate"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
	StatusTimeout          Status = "timeout"
	StatusStoredUnexported Status = "stored_unexported"
)

// Stage names, used in results and metrics labels.
const (
	StageExtract = "extract"
	StageTriage  = "triage"
	StageEnrich  = "enrich"
	StageGate    = "gate"
	StageChunk   = "chunk"
	StageStore   = "store"
	StageExport  = "export"
)

// ErrorKind classifies pipeline failures for callers and metrics.
type ErrorKind string

const (
	ErrKindExtraction ErrorKind = "extraction_error"
	ErrKindLLM        ErrorKind = "llm_error"
	ErrKindStore      ErrorKind = "store_error"
	ErrKindExport     ErrorKind = "export_error"
	ErrKindTimeout    ErrorKind = "timeout"
	ErrKindCancelled  ErrorKind = "cancelled"
)

// IngestResult is the outcome of one document's pipeline run.
type IngestResult struct {
	DocID          string          `json:"doc_id"`
	Status         Status          `json:"status"`
	Stage          string          `json:"stage,omitempty"`
	ErrorKind      ErrorKind       `json:"error_kind,omitempty"`
	Message        string          `json:"message,omitempty"`
	Title          string          `json:"title,omitempty"`
	DocType        string          `json:"doc_type,omitempty"`
	TriageCategory triage.Category `json:"triage_category,omitempty"`
	MatchedDocID   string          `json:"matched_doc_id,omitempty"`
	Signalness     float64         `json:"signalness,omitempty"`
	Chunks         int             `json:"chunks"`
	NotePath       string          `json:"note_path,omitempty"`
	CostUSD        float64         `json:"cost_usd"`
	TokensIn       int             `json:"tokens_in"`
	TokensOut      int             `json:"tokens_out"`
	Duration       time.Duration   `json:"duration_ns"`
	Attachments    []string        `json:"attachments,omitempty"`
}

// Stats is the service-level aggregate returned by Stats().
type Stats struct {
	Documents    int     `json:"documents"`
	Indexed      int     `json:"indexed"`
	Gated        int     `json:"gated"`
	Duplicates   int     `json:"duplicates"`
	Failed       int     `json:"failed"`
	TotalChunks  int     `json:"total_chunks"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	QueueDepth   int     `json:"queue_depth"`
	Workers      int     `json:"workers"`
}
