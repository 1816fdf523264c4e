package triage

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// Action tells the pipeline whether to keep processing the document.
type Action string

const (
	ActionContinue Action = "CONTINUE"
	ActionStop     Action = "STOP"
)

// Category is the triage routing class.
type Category string

const (
	CategoryUnique        Category = "unique"
	CategoryDuplicate     Category = "duplicate"
	CategoryNearDuplicate Category = "near_duplicate"
	CategoryJunk          Category = "junk"
	CategoryFinancial     Category = "actionable_financial"
	CategoryLegal         Category = "actionable_legal"
	CategoryMedical       Category = "actionable_medical"
	CategoryScheduling    Category = "actionable_scheduling"
	CategoryArchival      Category = "archival"
)

// Decision is the triage verdict. Actionable categories are routing
// metadata only; they never change how later stages process the
// document.
type Decision struct {
	Action       Action      `json:"action"`
	Category     Category    `json:"category"`
	Confidence   float64     `json:"confidence"`
	Reason       string      `json:"reason"`
	MatchedDocID string      `json:"matched_doc_id,omitempty"`
	Similarity   float64     `json:"similarity,omitempty"`
	Fingerprint  Fingerprint `json:"-"`
}

// Index is the duplicate lookup surface the triager queries. The vector
// store satisfies it with metadata-equality filters plus an in-process
// simhash sidecar.
type Index interface {
	FindByContentHash(ctx context.Context, hash string) (docID string, found bool, err error)
	FindByFormatKey(ctx context.Context, key string) (docID string, found bool, err error)
	NearestSimHash(ctx context.Context, hash uint64) (docID string, similarity float64, found bool, err error)
}

// Triager classifies extracted documents before the expensive stages
// run. Lookup failures fail open: the document continues as archival.
type Triager struct {
	logger         *log.Logger
	index          Index
	fuzzyThreshold float64
}

func New(logger *log.Logger, index Index, fuzzyThreshold float64) *Triager {
	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		fuzzyThreshold = 0.92
	}
	return &Triager{
		logger:         logger,
		index:          index,
		fuzzyThreshold: fuzzyThreshold,
	}
}

// Triage runs the decision ladder: exact hash, format key, fuzzy hash,
// junk heuristics, pattern rules, then the archival default.
func (t *Triager) Triage(ctx context.Context, doc *extract.ExtractedDocument) Decision {
	fp := NewFingerprint(doc, nil)

	if d, done := t.lookupDuplicates(ctx, fp); done {
		d.Fingerprint = fp
		return d
	}

	if reason, junk := looksLikeJunk(doc); junk {
		return Decision{
			Action:      ActionStop,
			Category:    CategoryJunk,
			Confidence:  0.8,
			Reason:      reason,
			Fingerprint: fp,
		}
	}

	if cat, conf, reason := matchPatternRules(doc); cat != "" {
		return Decision{
			Action:      ActionContinue,
			Category:    cat,
			Confidence:  conf,
			Reason:      reason,
			Fingerprint: fp,
		}
	}

	return Decision{
		Action:      ActionContinue,
		Category:    CategoryArchival,
		Confidence:  0.5,
		Reason:      "no pattern matched",
		Fingerprint: fp,
	}
}

// lookupDuplicates consults the index. Errors are logged and swallowed;
// a broken index must not block ingestion.
func (t *Triager) lookupDuplicates(ctx context.Context, fp Fingerprint) (Decision, bool) {
	if t.index == nil {
		return Decision{}, false
	}

	if docID, found, err := t.index.FindByContentHash(ctx, fp.ContentSHA256); err != nil {
		t.logger.Warn("duplicate lookup failed, continuing", "key", "content_sha256", "error", err)
	} else if found {
		return Decision{
			Action:       ActionStop,
			Category:     CategoryDuplicate,
			Confidence:   1.0,
			Reason:       "exact content hash match",
			MatchedDocID: docID,
			Similarity:   1.0,
		}, true
	}

	if fp.FormatKey != "" {
		if docID, found, err := t.index.FindByFormatKey(ctx, fp.FormatKey); err != nil {
			t.logger.Warn("duplicate lookup failed, continuing", "key", "format_key", "error", err)
		} else if found {
			return Decision{
				Action:       ActionStop,
				Category:     CategoryDuplicate,
				Confidence:   1.0,
				Reason:       "format key match",
				MatchedDocID: docID,
				Similarity:   1.0,
			}, true
		}
	}

	if docID, similarity, found, err := t.index.NearestSimHash(ctx, fp.SimHash); err != nil {
		t.logger.Warn("fuzzy lookup failed, continuing", "error", err)
	} else if found && similarity >= t.fuzzyThreshold {
		return Decision{
			Action:       ActionStop,
			Category:     CategoryNearDuplicate,
			Confidence:   similarity,
			Reason:       fmt.Sprintf("fuzzy hash similarity %.3f", similarity),
			MatchedDocID: docID,
			Similarity:   similarity,
		}, true
	}

	return Decision{}, false
}

// FailOpen is the decision used when the triage stage itself errors:
// the document proceeds as archival with zero confidence.
func FailOpen(err error) Decision {
	reason := "triage_error"
	if err != nil {
		reason = "triage_error: " + err.Error()
	}
	return Decision{
		Action:     ActionContinue,
		Category:   CategoryArchival,
		Confidence: 0.0,
		Reason:     reason,
	}
}

const minSubstantiveChars = 100

var unsubscribeRe = regexp.MustCompile(`(?i)\b(unsubscribe|view (this email )?in (your )?browser|manage (your )?preferences)\b`)

var marketingPhrases = []string{
	"limited time offer", "act now", "don't miss out", "exclusive deal",
	"flash sale", "% off", "free shipping", "buy now",
}

// looksLikeJunk applies cheap negative heuristics. Only high-confidence
// junk stops here; borderline cases fall through to enrichment where
// signalness gating catches them.
func looksLikeJunk(doc *extract.ExtractedDocument) (string, bool) {
	body := strings.TrimSpace(doc.Text)

	if len(body) < minSubstantiveChars && doc.DocumentType != extract.TypeImage {
		return "content below substantive minimum", true
	}

	lower := strings.ToLower(body)
	hits := 0
	for _, phrase := range marketingPhrases {
		if strings.Contains(lower, phrase) {
			hits++
		}
	}
	if hits >= 2 && unsubscribeRe.MatchString(body) {
		return "marketing boilerplate", true
	}

	// Header-only emails: all metadata, no real body.
	if doc.DocumentType == extract.TypeEmail && len(body) < 2*minSubstantiveChars && unsubscribeRe.MatchString(body) {
		return "header-only marketing email", true
	}

	return "", false
}

type patternRule struct {
	category Category
	keywords []string
}

// Pattern rules run in priority order; the first rule with at least two
// keyword hits wins. Keywords cover English and German documents.
var patternRules = []patternRule{
	{CategoryFinancial, []string{
		"invoice", "rechnung", "iban", "payment due", "zahlung", "amount due",
		"überweisung", "billing", "receipt", "quittung", "steuer", "tax",
	}},
	{CategoryLegal, []string{
		"contract", "vertrag", "agreement", "terms and conditions", "clause",
		"kündigung", "notice period", "liability", "haftung", "paragraph",
	}},
	{CategoryMedical, []string{
		"diagnosis", "diagnose", "prescription", "rezept", "patient",
		"arzt", "doctor", "treatment", "behandlung", "befund", "lab result",
	}},
	{CategoryScheduling, []string{
		"appointment", "termin", "meeting invitation", "calendar", "rsvp",
		"reschedule", "confirmed for", "einladung",
	}},
}

func matchPatternRules(doc *extract.ExtractedDocument) (Category, float64, string) {
	lower := strings.ToLower(doc.Text)
	if title := doc.Title; title != "" {
		lower = strings.ToLower(title) + "\n" + lower
	}

	for _, rule := range patternRules {
		hits := 0
		var matched []string
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hits++
				if len(matched) < 3 {
					matched = append(matched, kw)
				}
			}
		}
		if hits >= 2 {
			conf := 0.6 + 0.1*float64(hits-2)
			if conf > 0.9 {
				conf = 0.9
			}
			return rule.category, conf, "matched keywords: " + strings.Join(matched, ", ")
		}
	}
	return "", 0, ""
}

// IsActionable reports whether the category is one of the actionable
// routing classes.
func IsActionable(c Category) bool {
	switch c {
	case CategoryFinancial, CategoryLegal, CategoryMedical, CategoryScheduling:
		return true
	}
	return false
}
