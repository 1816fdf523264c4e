package enrich

import "time"

// DateType classifies how a date appeared in the document.
type DateType string

const (
	DateAbsolute DateType = "absolute"
	DateRelative DateType = "relative"
	DateImplicit DateType = "implicit"
)

// DateRecord is one extracted date. ISO stays empty when resolution
// failed; the raw surface form is always retained.
type DateRecord struct {
	Raw              string   `json:"raw"`
	ISO              string   `json:"iso,omitempty"`
	Type             DateType `json:"type"`
	ContextReference string   `json:"context_reference,omitempty"`
}

// ConceptLink attaches a vocabulary concept to an extracted entity.
type ConceptLink struct {
	Label             string   `json:"label"`
	ConceptID         string   `json:"concept_id,omitempty"`
	PrefLabel         string   `json:"pref_label,omitempty"`
	Category          string   `json:"category,omitempty"`
	Broader           []string `json:"broader,omitempty"`
	SuggestedForVocab bool     `json:"suggested_for_vocab,omitempty"`
}

// Scores carries the heuristic and aggregate quality signals.
type Scores struct {
	RecencyScore         float64 `json:"recency_score"`
	EntityRichness       float64 `json:"entity_richness"`
	ContentDepth         float64 `json:"content_depth"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	QualityScore         float64 `json:"quality_score"`
	Novelty              float64 `json:"novelty"`
	Actionability        float64 `json:"actionability"`
	Signalness           float64 `json:"signalness"`
}

// CriticReport holds the optional second-pass rubric evaluation.
// Suggestions never block the pipeline.
type CriticReport struct {
	Scores      map[string]float64 `json:"scores"`
	Weighted    float64            `json:"weighted"`
	Suggestions []string           `json:"suggestions,omitempty"`
}

// EnrichedMetadata is the typed enrichment record. The schema is
// versioned: readers check EnrichmentVersion before trusting field
// semantics.
type EnrichedMetadata struct {
	EnrichmentVersion string `json:"enrichment_version"`

	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	KeyFacts []string `json:"key_facts,omitempty"`

	// Vocabulary-controlled fields.
	Topics       []string `json:"topics,omitempty"`
	Projects     []string `json:"projects,omitempty"`
	Places       []string `json:"places,omitempty"`
	Technologies []string `json:"technologies,omitempty"`

	// Free-form entity fields.
	People        []string `json:"people,omitempty"`
	Organizations []string `json:"organizations,omitempty"`

	Complexity string `json:"complexity,omitempty"`
	Domain     string `json:"domain,omitempty"`

	Dates        []DateRecord  `json:"dates,omitempty"`
	ConceptLinks []ConceptLink `json:"concept_links,omitempty"`

	SuggestedVocabularyAdditions []string `json:"suggested_vocabulary_additions,omitempty"`

	Scores Scores `json:"scores"`

	EnrichmentFailed bool          `json:"enrichment_failed,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	Critic           *CriticReport `json:"critic,omitempty"`

	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	EnrichedAt time.Time `json:"enriched_at"`
}

// llmEnvelope is the JSON shape the model is asked to emit. It is
// deliberately looser than EnrichedMetadata; post-validation shapes it.
type llmEnvelope struct {
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	KeyFacts      []string `json:"key_facts"`
	Topics        []string `json:"topics"`
	Projects      []string `json:"projects"`
	Places        []string `json:"places"`
	Technologies  []string `json:"technologies"`
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Complexity    string   `json:"complexity"`
	Domain        string   `json:"domain"`
	Dates         []struct {
		Raw              string `json:"raw"`
		Type             string `json:"type"`
		ContextReference string `json:"context_reference"`
	} `json:"dates"`
	Actionability float64 `json:"actionability"`
}
