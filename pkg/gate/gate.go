// Package gate decides whether an enriched document earns vectors.
// Gated documents are still persisted as metadata and exported with a
// gated marker; they just never reach the index.
package gate

import (
	"fmt"

	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/triage"
)

// minCriticScore is the weighted rubric floor when the critic ran.
const minCriticScore = 2.0

// Verdict is the gate outcome.
type Verdict struct {
	DoIndex bool   `json:"do_index"`
	Reason  string `json:"reason,omitempty"`
}

// Gate applies the indexing policy.
type Gate struct {
	sigmaMin float64
	enabled  bool
}

func New(sigmaMin float64, enabled bool) *Gate {
	if sigmaMin <= 0 {
		sigmaMin = 0.2
	}
	return &Gate{sigmaMin: sigmaMin, enabled: enabled}
}

// Evaluate runs the policy in order: failed enrichment, junk triage,
// low signalness, low critic score. Disabled gating only bypasses the
// score thresholds; failed enrichment never gets vectors.
func (g *Gate) Evaluate(meta *enrich.EnrichedMetadata, decision triage.Decision) Verdict {
	if meta.EnrichmentFailed {
		return Verdict{DoIndex: false, Reason: "enrichment_failed"}
	}

	if decision.Category == triage.CategoryJunk {
		return Verdict{DoIndex: false, Reason: "junk"}
	}

	if !g.enabled {
		return Verdict{DoIndex: true}
	}

	if meta.Scores.Signalness < g.sigmaMin {
		return Verdict{
			DoIndex: false,
			Reason:  fmt.Sprintf("signalness %.3f below threshold %.2f", meta.Scores.Signalness, g.sigmaMin),
		}
	}

	if meta.Critic != nil && meta.Critic.Weighted < minCriticScore {
		return Verdict{
			DoIndex: false,
			Reason:  fmt.Sprintf("critic score %.2f below %.1f", meta.Critic.Weighted, minCriticScore),
		}
	}

	return Verdict{DoIndex: true}
}
