package extract

import (
	"fmt"
	"time"
)

// DocumentType is the canonical format classification after sniffing.
type DocumentType string

const (
	TypePDF      DocumentType = "pdf"
	TypeEmail    DocumentType = "email"
	TypeOffice   DocumentType = "office"
	TypeMarkdown DocumentType = "markdown"
	TypeText     DocumentType = "text"
	TypeImage    DocumentType = "image"
	TypeScanned  DocumentType = "scanned"
	TypeLLMChat  DocumentType = "llm_chat"
	TypeWhatsApp DocumentType = "whatsapp"
	TypeOther    DocumentType = "other"
)

// SectionType classifies a structural span of the extracted text.
type SectionType string

const (
	SectionHeading   SectionType = "heading"
	SectionParagraph SectionType = "paragraph"
	SectionTable     SectionType = "table"
	SectionCode      SectionType = "code"
	SectionList      SectionType = "list"
)

// Section is one structural span of ExtractedDocument.Text. The chunker
// consumes only this; extraction must preserve enough structure here for
// tables and code to survive as standalone chunks.
type Section struct {
	Type          SectionType
	HeadingLevel  int
	Title         string
	Start         int // byte offset into Text, inclusive
	End           int // byte offset into Text, exclusive
	TokenEstimate int
}

// ChatTurn is one turn of an LLM chat or messenger conversation.
type ChatTurn struct {
	Speaker string
	Text    string
	Time    time.Time
}

// RawDocument is the ingress artifact: bytes plus origin hints.
type RawDocument struct {
	Content      []byte
	Filename     string
	DeclaredType string            // MIME type or extension hint, may be empty
	Metadata     map[string]string // caller-provided; parent linkage for attachments
}

// ExtractedDocument is the canonicalized text plus structure. Immutable
// once produced.
type ExtractedDocument struct {
	Text         string
	DocumentType DocumentType
	Title        string
	// CreatedAt is the document's own creation date (email Date header,
	// chat start time); zero when the format carries none.
	CreatedAt        time.Time
	Sections         []Section
	SourceMetadata   map[string]string
	ExtractionMethod string // native, ocr, visual_llm
	Truncated        bool
	PageCostUSD      float64
	// Turns is populated for llm_chat and whatsapp documents; the
	// chunker uses it for turn-based chunking.
	Turns []ChatTurn
	// Attachments are sibling raw documents (email attachments) that
	// re-enter the pipeline linked by parent message-id.
	Attachments []RawDocument
}

// ExtractionError reports a failed extraction. Recoverable errors
// trigger the format's fallback chain; fatal ones fail the document.
type ExtractionError struct {
	Reason      string
	Recoverable bool
	Err         error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func fatal(reason string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Recoverable: false, Err: err}
}

func recoverable(reason string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, Recoverable: true, Err: err}
}
