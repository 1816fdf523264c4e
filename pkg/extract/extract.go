package extract

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwell-ai/inkwell/pkg/ai"
)

// Extractor converts RawDocuments into ExtractedDocuments, dispatching
// on declared or sniffed type. External services (OCR binary, vision
// model) are injected; image-heavy paths share a concurrency limit so
// page rasters cannot blow up memory.
type Extractor struct {
	logger      *log.Logger
	ocr         OCRClient
	vision      ai.Vision
	visionModel string

	maxContentChars int
	imageSlots      chan struct{}
}

// Options tunes the extractor. Zero values get defaults.
type Options struct {
	OCR                 OCRClient
	Vision              ai.Vision
	VisionModel         string
	MaxContentChars     int
	MaxImageExtractions int
}

func New(logger *log.Logger, opts Options) *Extractor {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 200000
	}
	if opts.MaxImageExtractions <= 0 {
		opts.MaxImageExtractions = 2
	}
	return &Extractor{
		logger:          logger,
		ocr:             opts.OCR,
		vision:          opts.Vision,
		visionModel:     opts.VisionModel,
		maxContentChars: opts.MaxContentChars,
		imageSlots:      make(chan struct{}, opts.MaxImageExtractions),
	}
}

// Extract dispatches on the document's declared or sniffed type.
func (e *Extractor) Extract(ctx context.Context, raw RawDocument) (*ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw.Content) == 0 {
		return nil, fatal("empty_input", nil)
	}

	switch SniffType(raw) {
	case TypePDF:
		return e.extractPDF(ctx, raw)
	case TypeEmail:
		return e.extractEmail(ctx, raw)
	case TypeOffice:
		return e.extractOffice(ctx, raw)
	case TypeMarkdown:
		return e.extractMarkdown(raw, TypeMarkdown)
	case TypeImage:
		return e.extractImage(ctx, raw)
	case TypeLLMChat:
		return e.extractChatLog(raw)
	case TypeWhatsApp:
		return e.extractWhatsApp(raw)
	default:
		return e.extractMarkdown(raw, TypeText)
	}
}

// SniffType resolves the document type from the declared MIME type,
// the filename extension, then content magic.
func SniffType(raw RawDocument) DocumentType {
	declared := strings.ToLower(strings.TrimSpace(raw.DeclaredType))
	switch {
	case strings.Contains(declared, "pdf"):
		return TypePDF
	case strings.Contains(declared, "message/rfc822"):
		return TypeEmail
	case strings.Contains(declared, "officedocument"), strings.Contains(declared, "msword"),
		strings.Contains(declared, "ms-excel"), strings.Contains(declared, "ms-powerpoint"):
		return TypeOffice
	case strings.Contains(declared, "markdown"):
		return TypeMarkdown
	case strings.HasPrefix(declared, "image/"):
		return TypeImage
	}

	switch strings.ToLower(filepath.Ext(raw.Filename)) {
	case ".pdf":
		return TypePDF
	case ".eml":
		return TypeEmail
	case ".docx", ".pptx", ".xlsx", ".doc", ".odt":
		return TypeOffice
	case ".md", ".markdown":
		return TypeMarkdown
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".tiff", ".bmp":
		return TypeImage
	case ".json":
		if looksLikeChatExport(raw.Content) {
			return TypeLLMChat
		}
		return TypeText
	case ".txt":
		if looksLikeWhatsAppExport(raw.Content) {
			return TypeWhatsApp
		}
		return TypeText
	}

	// Content magic for undeclared uploads.
	switch {
	case bytes.HasPrefix(raw.Content, []byte("%PDF")):
		return TypePDF
	case bytes.HasPrefix(raw.Content, []byte{0x89, 'P', 'N', 'G'}),
		bytes.HasPrefix(raw.Content, []byte{0xFF, 0xD8, 0xFF}):
		return TypeImage
	case bytes.HasPrefix(raw.Content, []byte("PK\x03\x04")):
		return TypeOffice
	case looksLikeChatExport(raw.Content):
		return TypeLLMChat
	case looksLikeWhatsAppExport(raw.Content):
		return TypeWhatsApp
	case looksLikeEmail(raw.Content):
		return TypeEmail
	}

	return TypeText
}

func looksLikeEmail(content []byte) bool {
	head := content
	if len(head) > 2048 {
		head = head[:2048]
	}
	s := string(head)
	return strings.Contains(s, "\nFrom:") && strings.Contains(s, "\nSubject:") ||
		strings.HasPrefix(s, "From:") && strings.Contains(s, "\nSubject:")
}

// boundContent truncates text at the configured limit, cutting at a
// line boundary where possible.
func (e *Extractor) boundContent(text string) (string, bool) {
	if len(text) <= e.maxContentChars {
		return text, false
	}
	cut := e.maxContentChars
	if idx := strings.LastIndexByte(text[:cut], '\n'); idx > cut/2 {
		cut = idx
	}
	return text[:cut], true
}

func filenameStem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (e *Extractor) acquireImageSlot(ctx context.Context) error {
	select {
	case e.imageSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Extractor) releaseImageSlot() {
	<-e.imageSlots
}
