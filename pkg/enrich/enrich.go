package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/triage"
	"github.com/inkwell-ai/inkwell/pkg/vocabulary"
)

// Options configure the enricher.
type Options struct {
	EnrichmentVersion string
	MaxContentChars   int
	RecencyTauDays    float64
	EnableCritic      bool
}

// Enricher produces EnrichedMetadata from an extracted document using
// the LLM fallback chain, constrained by the controlled vocabulary.
type Enricher struct {
	logger *log.Logger
	llm    ai.Completer
	vocab  *vocabulary.Vocabulary
	opts   Options
	now    func() time.Time
}

func New(logger *log.Logger, llm ai.Completer, vocab *vocabulary.Vocabulary, opts Options) *Enricher {
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 8000
	}
	if opts.RecencyTauDays <= 0 {
		opts.RecencyTauDays = 180
	}
	if opts.EnrichmentVersion == "" {
		opts.EnrichmentVersion = "1"
	}
	return &Enricher{
		logger: logger,
		llm:    llm,
		vocab:  vocab,
		opts:   opts,
		now:    time.Now,
	}
}

// Enrich never returns an error: on chain exhaustion or unrecoverable
// invalid output it returns a minimal shell with EnrichmentFailed set,
// and the gate stops the document. Cost accumulates on tracker.
func (e *Enricher) Enrich(ctx context.Context, doc *extract.ExtractedDocument, decision triage.Decision, filename string, tracker *ai.CostTracker, budgetUSD float64) *EnrichedMetadata {
	envelope, result, err := e.callLLM(ctx, doc, tracker, budgetUSD)
	if err != nil {
		e.logger.Error("enrichment failed", "error", err)
		return e.failedShell(doc, filename, err)
	}

	meta := &EnrichedMetadata{
		EnrichmentVersion: e.opts.EnrichmentVersion,
		Summary:           strings.TrimSpace(envelope.Summary),
		KeyFacts:          trimAll(envelope.KeyFacts),
		People:            trimAll(envelope.People),
		Organizations:     trimAll(envelope.Organizations),
		Complexity:        strings.ToLower(strings.TrimSpace(envelope.Complexity)),
		Domain:            strings.TrimSpace(envelope.Domain),
		Provider:          result.Provider,
		Model:             result.Model,
		EnrichedAt:        e.now().UTC(),
	}
	meta.Scores.Actionability = clamp01(envelope.Actionability)

	e.validateVocabularyFields(meta, envelope)
	e.attachWatchlistProjects(meta, doc)
	e.reclassifyPeople(meta)
	e.linkConcepts(meta)
	meta.Dates = e.collectDates(envelope, doc)
	meta.Title = e.finalizeTitle(ctx, envelope.Title, doc, filename, tracker, budgetUSD)

	computeScores(meta, doc, decision, e.opts.RecencyTauDays, e.now())

	if e.opts.EnableCritic {
		if report, err := e.critique(ctx, doc, meta, tracker, budgetUSD); err != nil {
			e.logger.Warn("critic call failed, continuing without report", "error", err)
		} else {
			meta.Critic = report
		}
	}

	return meta
}

// callLLM runs the main completion with one stricter re-ask on invalid
// JSON. Provider fallback and budget checks live in the chain.
func (e *Enricher) callLLM(ctx context.Context, doc *extract.ExtractedDocument, tracker *ai.CostTracker, budgetUSD float64) (*llmEnvelope, ai.CompletionResult, error) {
	userPrompt := buildUserPrompt(doc, e.vocab, e.opts.MaxContentChars)

	result, err := e.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			ai.SystemMessage(enrichSystemPrompt),
			ai.UserMessage(userPrompt),
		},
		Temperature: 0.2,
		JSONMode:    true,
	}, tracker, budgetUSD)
	if err != nil {
		return nil, ai.CompletionResult{}, fmt.Errorf("enrichment completion: %w", err)
	}

	envelope, parseErr := parseEnvelope(result.Text)
	if parseErr == nil {
		return envelope, result, nil
	}

	e.logger.Warn("invalid enrichment response, re-asking", "error", parseErr)
	result, err = e.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			ai.SystemMessage(enrichRetrySystemPrompt),
			ai.UserMessage(userPrompt),
		},
		Temperature: 0.0,
		JSONMode:    true,
	}, tracker, budgetUSD)
	if err != nil {
		return nil, ai.CompletionResult{}, fmt.Errorf("enrichment re-ask: %w", err)
	}

	envelope, parseErr = parseEnvelope(result.Text)
	if parseErr != nil {
		return nil, ai.CompletionResult{}, &ai.Error{Kind: ai.ErrInvalidResponse, Provider: result.Provider, Err: parseErr}
	}
	return envelope, result, nil
}

// parseEnvelope tolerates markdown fences around the JSON object but
// nothing else.
func parseEnvelope(text string) (*llmEnvelope, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var envelope llmEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, fmt.Errorf("parsing enrichment JSON: %w", err)
	}
	if envelope.Title == "" && envelope.Summary == "" {
		return nil, fmt.Errorf("enrichment JSON missing title and summary")
	}
	return &envelope, nil
}

// Shell builds minimal metadata without touching the LLM; the pipeline
// uses it for documents stopped before enrichment (junk triage).
func (e *Enricher) Shell(doc *extract.ExtractedDocument, filename, reason string) *EnrichedMetadata {
	meta := &EnrichedMetadata{
		EnrichmentVersion: e.opts.EnrichmentVersion,
		Title:             fallbackTitle(doc, filename),
		FailureReason:     reason,
		EnrichedAt:        e.now().UTC(),
	}
	computeScores(meta, doc, triage.Decision{}, e.opts.RecencyTauDays, e.now())
	return meta
}

// failedShell is the minimal metadata persisted when enrichment fails:
// extraction title, empty lists, no vectors downstream.
func (e *Enricher) failedShell(doc *extract.ExtractedDocument, filename string, cause error) *EnrichedMetadata {
	meta := &EnrichedMetadata{
		EnrichmentVersion: e.opts.EnrichmentVersion,
		Title:             fallbackTitle(doc, filename),
		EnrichmentFailed:  true,
		FailureReason:     cause.Error(),
		EnrichedAt:        e.now().UTC(),
	}
	computeScores(meta, doc, triage.Decision{}, e.opts.RecencyTauDays, e.now())
	meta.Scores.Signalness = 0
	return meta
}

// validateVocabularyFields enforces vocabulary closure: exact or synonym
// hits are canonicalized to the prefLabel, near misses (edit distance
// <= 2) are replaced, everything else moves to the suggestion list.
func (e *Enricher) validateVocabularyFields(meta *EnrichedMetadata, envelope *llmEnvelope) {
	var suggestions []string

	validate := func(field string, values []string) []string {
		var kept []string
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if e.vocab.IsAllowed(field, value) {
				if c, ok := e.vocab.MatchConcept(value); ok {
					kept = append(kept, c.PrefLabel)
				}
				continue
			}
			if nearest, ok := e.vocab.Nearest(field, value); ok {
				kept = append(kept, nearest)
				continue
			}
			suggestions = append(suggestions, field+"/"+value)
		}
		return lo.Uniq(kept)
	}

	meta.Topics = validate("topics", envelope.Topics)
	meta.Projects = validate("projects", envelope.Projects)
	meta.Places = validate("places", envelope.Places)
	meta.Technologies = validate("technologies", envelope.Technologies)
	meta.SuggestedVocabularyAdditions = lo.Uniq(suggestions)
}

// attachWatchlistProjects auto-attaches projects whose watchlist
// keywords appear in the document, regardless of the LLM output.
func (e *Enricher) attachWatchlistProjects(meta *EnrichedMetadata, doc *extract.ExtractedDocument) {
	hits := e.vocab.WatchlistProjects(doc.Text)
	if len(hits) == 0 {
		return
	}
	meta.Projects = lo.Uniq(append(meta.Projects, hits...))
}

// reclassifyPeople moves Software/Hardware concepts out of the people
// list into technologies.
func (e *Enricher) reclassifyPeople(meta *EnrichedMetadata) {
	var people []string
	for _, name := range meta.People {
		if e.vocab.IsTechnologyConcept(name) {
			if c, ok := e.vocab.MatchConcept(name); ok {
				meta.Technologies = append(meta.Technologies, c.PrefLabel)
			}
			continue
		}
		people = append(people, name)
	}
	meta.People = people
	meta.Technologies = lo.Uniq(meta.Technologies)
}

// linkConcepts attaches vocabulary concepts to technologies and
// organizations; misses keep the surface form flagged for vocabulary
// review.
func (e *Enricher) linkConcepts(meta *EnrichedMetadata) {
	link := func(label string) ConceptLink {
		if c, ok := e.vocab.MatchConcept(label); ok {
			return ConceptLink{
				Label:     label,
				ConceptID: c.ID,
				PrefLabel: c.PrefLabel,
				Category:  string(c.Type),
				Broader:   append([]string(nil), c.Broader...),
			}
		}
		return ConceptLink{Label: label, SuggestedForVocab: true}
	}

	for _, tech := range meta.Technologies {
		meta.ConceptLinks = append(meta.ConceptLinks, link(tech))
	}
	for _, org := range meta.Organizations {
		meta.ConceptLinks = append(meta.ConceptLinks, link(org))
	}
}

func (e *Enricher) collectDates(envelope *llmEnvelope, doc *extract.ExtractedDocument) []DateRecord {
	anchor := doc.CreatedAt
	if anchor.IsZero() {
		anchor = e.now().UTC()
	}

	records := make([]DateRecord, 0, len(envelope.Dates))
	for _, d := range envelope.Dates {
		kind := DateType(strings.ToLower(d.Type))
		switch kind {
		case DateAbsolute, DateRelative, DateImplicit:
		default:
			kind = DateImplicit
		}
		records = append(records, DateRecord{
			Raw:              d.Raw,
			Type:             kind,
			ContextReference: d.ContextReference,
		})
	}
	return resolveDates(records, anchor)
}

var genericTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^untitled`),
	regexp.MustCompile(`(?i)^(document|file|scan|image|img)[ _-]?\d*$`),
	regexp.MustCompile(`(?i)^here (are|is)\b`),
	regexp.MustCompile(`(?i)^(the )?key points\b`),
	regexp.MustCompile(`(?i)^summary( of.*)?$`),
	regexp.MustCompile(`\.(pdf|docx?|xlsx?|pptx?|eml|txt|md|png|jpe?g)$`),
}

// IsGenericTitle reports whether a title is too generic to keep:
// placeholder words, filename-shaped strings, or chatbot preambles.
func IsGenericTitle(title string) bool {
	title = strings.TrimSpace(title)
	if len(title) < 10 || len(title) > 80 {
		return true
	}
	for _, re := range genericTitlePatterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// finalizeTitle applies the title rules: accept a good LLM title,
// regenerate once on a generic one, then fall back to the dated
// filename stem.
func (e *Enricher) finalizeTitle(ctx context.Context, proposed string, doc *extract.ExtractedDocument, filename string, tracker *ai.CostTracker, budgetUSD float64) string {
	proposed = strings.TrimSpace(proposed)
	if !IsGenericTitle(proposed) {
		return proposed
	}

	result, err := e.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			ai.SystemMessage("Produce one descriptive document title of 10-80 characters. Respond with the title only, no quotes."),
			ai.UserMessage(firstChars(doc.Text, 2000)),
		},
		Temperature: 0.3,
		MaxTokens:   60,
	}, tracker, budgetUSD)
	if err == nil {
		if regenerated := strings.Trim(strings.TrimSpace(result.Text), `"`); !IsGenericTitle(regenerated) {
			return regenerated
		}
	} else {
		e.logger.Warn("title regeneration failed", "error", err)
	}

	return fallbackTitle(doc, filename)
}

// fallbackTitle is the dated filename stem.
func fallbackTitle(doc *extract.ExtractedDocument, filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	stem = strings.TrimSpace(stem)
	if stem == "" {
		stem = strings.TrimSpace(doc.Title)
	}
	if stem == "" {
		stem = "Untitled document"
	}

	date := doc.CreatedAt
	if date.IsZero() {
		return stem
	}
	return date.Format("2006-01-02") + " " + stem
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return lo.Uniq(out)
}
