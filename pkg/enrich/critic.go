package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/ai"
	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// The seven critic rubrics and their weights. Schema compliance and
// entity quality dominate because downstream consumers depend on them.
var criticRubrics = []struct {
	name   string
	weight float64
}{
	{"schema_compliance", 0.20},
	{"entity_quality", 0.20},
	{"topic_relevance", 0.15},
	{"summary_quality", 0.15},
	{"task_identification", 0.10},
	{"privacy", 0.10},
	{"chunking_suitability", 0.10},
}

const criticSystemPrompt = `You review document metadata produced by another model. Score each rubric from 0 to 5 and list concrete improvement suggestions.

Rubrics: schema_compliance, entity_quality, topic_relevance, summary_quality, task_identification, privacy, chunking_suitability.

Respond with only a JSON object: {"scores": {"<rubric>": <0-5>, ...}, "suggestions": ["...", ...]}`

// critique runs the optional second-pass evaluation. The weighted score
// feeds the gate; suggestions are recorded but never block.
func (e *Enricher) critique(ctx context.Context, doc *extract.ExtractedDocument, meta *EnrichedMetadata, tracker *ai.CostTracker, budgetUSD float64) (*CriticReport, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata for critic: %w", err)
	}

	var prompt strings.Builder
	prompt.WriteString("Document excerpt:\n\"\"\"\n")
	prompt.WriteString(firstChars(doc.Text, 3000))
	prompt.WriteString("\n\"\"\"\n\nMetadata under review:\n")
	prompt.Write(metaJSON)

	result, err := e.llm.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			ai.SystemMessage(criticSystemPrompt),
			ai.UserMessage(prompt.String()),
		},
		Temperature: 0.0,
		JSONMode:    true,
	}, tracker, budgetUSD)
	if err != nil {
		return nil, fmt.Errorf("critic completion: %w", err)
	}

	var parsed struct {
		Scores      map[string]float64 `json:"scores"`
		Suggestions []string           `json:"suggestions"`
	}
	trimmed := strings.TrimSpace(result.Text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing critic response: %w", err)
	}

	report := &CriticReport{
		Scores:      map[string]float64{},
		Suggestions: parsed.Suggestions,
	}
	var weighted, weightSum float64
	for _, rubric := range criticRubrics {
		score, ok := parsed.Scores[rubric.name]
		if !ok {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 5 {
			score = 5
		}
		report.Scores[rubric.name] = score
		weighted += score * rubric.weight
		weightSum += rubric.weight
	}
	if weightSum == 0 {
		return nil, fmt.Errorf("critic response carried no known rubrics")
	}
	report.Weighted = weighted / weightSum

	return report, nil
}
