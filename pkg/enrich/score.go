package enrich

import (
	"math"
	"strings"
	"time"

	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// scoreWeights for the quality aggregate. Recency is deliberately the
// lightest component: an old document can still be high quality.
const (
	weightRecency    = 0.15
	weightEntities   = 0.30
	weightDepth      = 0.30
	weightExtraction = 0.25
)

// computeScores fills the Scores block from heuristics over the
// extraction and enrichment output.
func computeScores(meta *EnrichedMetadata, doc *extract.ExtractedDocument, decision triage.Decision, tauDays float64, now time.Time) {
	s := &meta.Scores

	s.RecencyScore = recencyScore(doc.CreatedAt, now, tauDays)
	s.EntityRichness = entityRichness(meta)
	s.ContentDepth = contentDepth(doc)
	s.ExtractionConfidence = extractionConfidence(doc)

	s.QualityScore = weightRecency*s.RecencyScore +
		weightEntities*s.EntityRichness +
		weightDepth*s.ContentDepth +
		weightExtraction*s.ExtractionConfidence

	// Novelty: duplicates never reach here, so the only discount applies
	// to near-duplicate similarity below the stop threshold.
	s.Novelty = 1.0 - clamp01(decision.Similarity)
	if s.Novelty < 0.1 {
		s.Novelty = 0.1
	}

	if s.Actionability == 0 {
		if triage.IsActionable(decision.Category) {
			s.Actionability = 0.7
		} else {
			s.Actionability = 0.3
		}
	}
	s.Actionability = clamp01(s.Actionability)

	s.Signalness = clamp01(s.QualityScore * s.Novelty * s.Actionability)
}

// recencyScore = exp(-age_days / tau). Undated documents score neutral.
func recencyScore(createdAt, now time.Time, tauDays float64) float64 {
	if createdAt.IsZero() {
		return 0.5
	}
	if tauDays <= 0 {
		tauDays = 180
	}
	age := now.Sub(createdAt).Hours() / 24
	if age < 0 {
		age = 0
	}
	return math.Exp(-age / tauDays)
}

func entityRichness(meta *EnrichedMetadata) float64 {
	count := len(meta.Topics) + len(meta.Projects) + len(meta.Places) +
		len(meta.Technologies) + len(meta.People) + len(meta.Organizations)
	// Saturates around a dozen distinct entities.
	return clamp01(float64(count) / 12.0)
}

func contentDepth(doc *extract.ExtractedDocument) float64 {
	words := len(strings.Fields(doc.Text))
	structural := 0
	for _, sec := range doc.Sections {
		if sec.Type == extract.SectionHeading || sec.Type == extract.SectionTable || sec.Type == extract.SectionCode {
			structural++
		}
	}
	depth := clamp01(float64(words)/1500.0)*0.8 + clamp01(float64(structural)/8.0)*0.2
	return clamp01(depth)
}

func extractionConfidence(doc *extract.ExtractedDocument) float64 {
	conf := 1.0
	switch doc.ExtractionMethod {
	case "ocr":
		conf = 0.7
	case "visual_llm":
		conf = 0.6
	}
	if doc.Truncated {
		conf -= 0.1
	}
	return clamp01(conf)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
