package triage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// fakeIndex is a scriptable duplicate index.
type fakeIndex struct {
	byHash    map[string]string
	byKey     map[string]string
	nearDocID string
	nearSim   float64
	err       error
}

func (f *fakeIndex) FindByContentHash(_ context.Context, hash string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.byHash[hash]
	return id, ok, nil
}

func (f *fakeIndex) FindByFormatKey(_ context.Context, key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.byKey[key]
	return id, ok, nil
}

func (f *fakeIndex) NearestSimHash(_ context.Context, _ uint64) (string, float64, bool, error) {
	if f.err != nil {
		return "", 0, false, f.err
	}
	if f.nearDocID == "" {
		return "", 0, false, nil
	}
	return f.nearDocID, f.nearSim, true, nil
}

func testDoc(text string) *extract.ExtractedDocument {
	return &extract.ExtractedDocument{
		Text:         text,
		DocumentType: extract.TypeText,
	}
}

var substantiveText = strings.Repeat("The quarterly report covers infrastructure changes in detail. ", 10)

func newTriager(index Index) *Triager {
	return New(log.New(io.Discard), index, 0.92)
}

func TestTriageExactDuplicate(t *testing.T) {
	doc := testDoc(substantiveText)
	fp := NewFingerprint(doc, nil)

	index := &fakeIndex{byHash: map[string]string{fp.ContentSHA256: "doc-1"}}
	d := newTriager(index).Triage(context.Background(), doc)

	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, CategoryDuplicate, d.Category)
	assert.Equal(t, "doc-1", d.MatchedDocID)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestTriageFormatKeyDuplicate(t *testing.T) {
	doc := testDoc(substantiveText)
	doc.DocumentType = extract.TypeEmail
	doc.SourceMetadata = map[string]string{"message_id": "<abc@example.org>"}

	index := &fakeIndex{byKey: map[string]string{"<abc@example.org>": "doc-2"}}
	d := newTriager(index).Triage(context.Background(), doc)

	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, CategoryDuplicate, d.Category)
	assert.Equal(t, "doc-2", d.MatchedDocID)
}

func TestTriageNearDuplicate(t *testing.T) {
	doc := testDoc(substantiveText)

	index := &fakeIndex{nearDocID: "doc-3", nearSim: 0.95}
	d := newTriager(index).Triage(context.Background(), doc)

	assert.Equal(t, ActionStop, d.Action)
	assert.Equal(t, CategoryNearDuplicate, d.Category)
	assert.Equal(t, "doc-3", d.MatchedDocID)
	assert.InDelta(t, 0.95, d.Similarity, 1e-9)
}

func TestTriageBelowFuzzyThresholdContinues(t *testing.T) {
	doc := testDoc(substantiveText)

	index := &fakeIndex{nearDocID: "doc-3", nearSim: 0.85}
	d := newTriager(index).Triage(context.Background(), doc)

	assert.Equal(t, ActionContinue, d.Action)
	assert.Equal(t, CategoryArchival, d.Category)
}

func TestTriageIndexErrorFailsOpen(t *testing.T) {
	doc := testDoc(substantiveText)

	index := &fakeIndex{err: errors.New("store down")}
	d := newTriager(index).Triage(context.Background(), doc)

	assert.Equal(t, ActionContinue, d.Action)
	assert.Equal(t, CategoryArchival, d.Category)
}

func TestTriageJunk(t *testing.T) {
	tests := []struct {
		name string
		doc  *extract.ExtractedDocument
		stop bool
	}{
		{
			name: "near-empty document",
			doc:  testDoc("ok thanks"),
			stop: true,
		},
		{
			name: "marketing blast",
			doc: testDoc("Limited time offer! Flash sale, everything 50% off. " +
				"Don't wait. Click here to unsubscribe from these emails at any time."),
			stop: true,
		},
		{
			name: "substantive content",
			doc:  testDoc(substantiveText),
			stop: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTriager(nil).Triage(context.Background(), tt.doc)
			if tt.stop {
				assert.Equal(t, ActionStop, d.Action)
				assert.Equal(t, CategoryJunk, d.Category)
			} else {
				assert.Equal(t, ActionContinue, d.Action)
			}
		})
	}
}

func TestTriagePatternRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Category
	}{
		{
			name: "financial english",
			text: "Please find the attached invoice. Payment due within 14 days to the IBAN below. " +
				strings.Repeat("Details follow. ", 10),
			want: CategoryFinancial,
		},
		{
			name: "financial german",
			text: "Ihre Rechnung über 120 EUR. Bitte Zahlung per Überweisung an unser Konto. " +
				strings.Repeat("Weitere Angaben unten. ", 10),
			want: CategoryFinancial,
		},
		{
			name: "legal",
			text: "This agreement sets out the terms and conditions. Liability is limited per clause 7. " +
				strings.Repeat("See the annex. ", 10),
			want: CategoryLegal,
		},
		{
			name: "scheduling",
			text: "Your appointment is confirmed for Tuesday. Use the calendar link to reschedule. " +
				strings.Repeat("Location details below. ", 10),
			want: CategoryScheduling,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTriager(nil).Triage(context.Background(), testDoc(tt.text))
			assert.Equal(t, ActionContinue, d.Action)
			assert.Equal(t, tt.want, d.Category)
			assert.GreaterOrEqual(t, d.Confidence, 0.6)
			assert.LessOrEqual(t, d.Confidence, 0.9)
			assert.True(t, IsActionable(d.Category))
		})
	}
}

func TestTriageArchivalDefault(t *testing.T) {
	d := newTriager(nil).Triage(context.Background(), testDoc(substantiveText))

	assert.Equal(t, ActionContinue, d.Action)
	assert.Equal(t, CategoryArchival, d.Category)
	assert.Equal(t, 0.5, d.Confidence)
	require.NotEmpty(t, d.Fingerprint.ContentSHA256)
}

func TestFailOpen(t *testing.T) {
	d := FailOpen(errors.New("panic: boom"))

	assert.Equal(t, ActionContinue, d.Action)
	assert.Equal(t, CategoryArchival, d.Category)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Contains(t, d.Reason, "triage_error")
}
