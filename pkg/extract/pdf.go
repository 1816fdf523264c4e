package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/inkwell-ai/inkwell/pkg/ai"
)

// minTextDensity is the average characters per page below which a PDF is
// treated as scanned rather than digital.
const minTextDensity = 200

const visualExtractionPrompt = `Extract all text content from this document. Preserve the structure:
- For tables, format as markdown tables
- For headings, prefix with appropriate markdown heading levels
- For lists, use markdown list format
- For figures or diagrams, describe the content in [Figure: ...] blocks
After the content, add a line starting with "SUMMARY:" followed by a one-sentence summary.`

func (e *Extractor) extractPDF(ctx context.Context, raw RawDocument) (*ExtractedDocument, error) {
	text, pages, err := readPDFText(raw.Content)
	if err != nil {
		// Unparseable PDF container: try the visual path before giving up.
		return e.visualFallback(ctx, raw, TypeScanned, recoverable("pdf_parse", err))
	}

	density := 0.0
	if pages > 0 {
		density = float64(len(text)) / float64(pages)
	}

	if density < minTextDensity || ocrLooksGarbled(text) {
		// Scanned or garbled embedded text layer.
		return e.visualFallback(ctx, raw, TypeScanned, recoverable("pdf_low_density", nil))
	}

	text, truncated := e.boundContent(text)
	sections := ParseMarkdownStructure(text)

	title := FirstHeading(sections)
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	return &ExtractedDocument{
		Text:             text,
		DocumentType:     TypePDF,
		Title:            title,
		Sections:         sections,
		SourceMetadata:   map[string]string{"pages": fmt.Sprintf("%d", pages)},
		ExtractionMethod: "native",
		Truncated:        truncated,
	}, nil
}

// readPDFText pulls the embedded text layer, page by page. Pages whose
// extraction fails are skipped; a PDF with zero extractable pages is
// not an error here, the density check handles it.
func readPDFText(content []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, fmt.Errorf("opening PDF: %w", err)
	}

	totalPages := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), totalPages, nil
}

// visualFallback sends the document to the vision model and parses the
// structured markdown it returns. Rasterizing and per-page OCR happen
// upstream of this call for image inputs; for PDFs the vision model
// receives the document directly.
func (e *Extractor) visualFallback(ctx context.Context, raw RawDocument, docType DocumentType, cause *ExtractionError) (*ExtractedDocument, error) {
	if e.vision == nil {
		return nil, fatal(cause.Reason+"_no_vision", cause.Err)
	}

	if err := e.acquireImageSlot(ctx); err != nil {
		return nil, err
	}
	defer e.releaseImageSlot()

	e.logger.Info("falling back to visual extraction", "filename", raw.Filename, "reason", cause.Reason)

	result, err := e.vision.VisionComplete(ctx, ai.VisionRequest{
		Model:     e.visionModel,
		Prompt:    visualExtractionPrompt,
		Images:    [][]byte{raw.Content},
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, fatal("visual_llm", err)
	}

	text, summary := splitVisualSummary(result.Text)
	if strings.TrimSpace(text) == "" {
		return nil, fatal("visual_llm_empty", nil)
	}

	text, truncated := e.boundContent(text)
	sections := ParseMarkdownStructure(text)

	title := FirstHeading(sections)
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	meta := map[string]string{"fallback_reason": cause.Reason}
	if summary != "" {
		meta["visual_summary"] = summary
	}

	return &ExtractedDocument{
		Text:             text,
		DocumentType:     docType,
		Title:            title,
		Sections:         sections,
		SourceMetadata:   meta,
		ExtractionMethod: "visual_llm",
		Truncated:        truncated,
		PageCostUSD:      result.Usage.USD,
	}, nil
}

func splitVisualSummary(text string) (content, summary string) {
	idx := strings.LastIndex(text, "\nSUMMARY:")
	if idx < 0 {
		if strings.HasPrefix(text, "SUMMARY:") {
			return "", strings.TrimSpace(strings.TrimPrefix(text, "SUMMARY:"))
		}
		return text, ""
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+len("\nSUMMARY:"):])
}
