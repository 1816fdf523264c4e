package extract

import (
	"context"
	"fmt"
	"strings"
)

// ocrConfidenceThreshold is the minimum average OCR confidence before
// the visual-LLM fallback takes over.
const ocrConfidenceThreshold = 0.6

func (e *Extractor) extractImage(ctx context.Context, raw RawDocument) (*ExtractedDocument, error) {
	if e.ocr == nil {
		return e.visualFallback(ctx, raw, TypeImage, recoverable("no_ocr", nil))
	}

	if err := e.acquireImageSlot(ctx); err != nil {
		return nil, err
	}
	text, confidence, err := e.ocr.Recognize(ctx, raw.Content)
	e.releaseImageSlot()

	if err != nil {
		return e.visualFallback(ctx, raw, TypeImage, recoverable("ocr_error", err))
	}
	if confidence < ocrConfidenceThreshold || ocrLooksGarbled(text) {
		return e.visualFallback(ctx, raw, TypeImage, recoverable("ocr_low_confidence", nil))
	}

	text, truncated := e.boundContent(text)
	if strings.TrimSpace(text) == "" {
		return nil, fatal("empty_document", nil)
	}
	sections := ParseMarkdownStructure(text)

	title := FirstHeading(sections)
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	return &ExtractedDocument{
		Text:         text,
		DocumentType: TypeImage,
		Title:        title,
		Sections:     sections,
		SourceMetadata: map[string]string{
			"ocr_confidence": fmt.Sprintf("%.2f", confidence),
		},
		ExtractionMethod: "ocr",
		Truncated:        truncated,
	}, nil
}
