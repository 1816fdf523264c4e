package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/triage"
)

func metaWithSignalness(s float64) *enrich.EnrichedMetadata {
	m := &enrich.EnrichedMetadata{}
	m.Scores.Signalness = s
	return m
}

func TestEvaluate(t *testing.T) {
	g := New(0.2, true)

	tests := []struct {
		name    string
		meta    *enrich.EnrichedMetadata
		triage  triage.Decision
		doIndex bool
	}{
		{
			name:    "good document passes",
			meta:    metaWithSignalness(0.6),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: true,
		},
		{
			name:    "low signalness gated",
			meta:    metaWithSignalness(0.1),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: false,
		},
		{
			name:    "exactly at threshold passes",
			meta:    metaWithSignalness(0.2),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: true,
		},
		{
			name: "failed enrichment gated regardless of score",
			meta: func() *enrich.EnrichedMetadata {
				m := metaWithSignalness(0.9)
				m.EnrichmentFailed = true
				return m
			}(),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: false,
		},
		{
			name:    "junk triage gated",
			meta:    metaWithSignalness(0.9),
			triage:  triage.Decision{Category: triage.CategoryJunk},
			doIndex: false,
		},
		{
			name: "low critic score gated",
			meta: func() *enrich.EnrichedMetadata {
				m := metaWithSignalness(0.9)
				m.Critic = &enrich.CriticReport{Weighted: 1.5}
				return m
			}(),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: false,
		},
		{
			name: "acceptable critic score passes",
			meta: func() *enrich.EnrichedMetadata {
				m := metaWithSignalness(0.9)
				m.Critic = &enrich.CriticReport{Weighted: 3.8}
				return m
			}(),
			triage:  triage.Decision{Category: triage.CategoryArchival},
			doIndex: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Evaluate(tt.meta, tt.triage)
			assert.Equal(t, tt.doIndex, v.DoIndex)
			if !tt.doIndex {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestDisabledGateStillBlocksFailuresAndJunk(t *testing.T) {
	g := New(0.2, false)

	// Score thresholds are bypassed.
	v := g.Evaluate(metaWithSignalness(0.01), triage.Decision{Category: triage.CategoryArchival})
	assert.True(t, v.DoIndex)

	failed := metaWithSignalness(0.9)
	failed.EnrichmentFailed = true
	assert.False(t, g.Evaluate(failed, triage.Decision{}).DoIndex)

	assert.False(t, g.Evaluate(metaWithSignalness(0.9), triage.Decision{Category: triage.CategoryJunk}).DoIndex)
}
