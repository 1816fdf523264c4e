package export

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inkwell-ai/inkwell/pkg/chunk"
)

type dateEntry struct {
	Label string `yaml:"label"`
	ISO   string `yaml:"iso,omitempty"`
	Type  string `yaml:"type"`
}

type ragBlock struct {
	DoIndex              bool    `yaml:"do_index"`
	Gated                bool    `yaml:"gated,omitempty"`
	GateReason           string  `yaml:"gate_reason,omitempty"`
	EnrichmentVersion    string  `yaml:"enrichment_version"`
	Signalness           float64 `yaml:"signalness"`
	QualityScore         float64 `yaml:"quality_score"`
	RecencyScore         float64 `yaml:"recency_score"`
	EntityRichness       float64 `yaml:"entity_richness"`
	ContentDepth         float64 `yaml:"content_depth"`
	ExtractionConfidence float64 `yaml:"extraction_confidence"`
	Novelty              float64 `yaml:"novelty"`
	Actionability        float64 `yaml:"actionability"`
	SHA256               string  `yaml:"sha256"`
	OriginalPath         string  `yaml:"original_path,omitempty"`
}

type frontmatter struct {
	ID            string      `yaml:"id"`
	Title         string      `yaml:"title"`
	Source        string      `yaml:"source,omitempty"`
	DocType       string      `yaml:"doc_type"`
	CreatedAt     string      `yaml:"created_at,omitempty"`
	IngestedAt    string      `yaml:"ingested_at"`
	Topics        []string    `yaml:"topics,omitempty"`
	Projects      []string    `yaml:"projects,omitempty"`
	Places        []string    `yaml:"places,omitempty"`
	People        []string    `yaml:"people,omitempty"`
	Organizations []string    `yaml:"organizations,omitempty"`
	Technologies  []string    `yaml:"technologies,omitempty"`
	Dates         []dateEntry `yaml:"dates,omitempty"`
	Tags          []string    `yaml:"tags,omitempty"`
	Gated         bool        `yaml:"gated,omitempty"`
	RAG           ragBlock    `yaml:"rag"`
}

// renderNote assembles the full note: frontmatter, title, summary, key
// facts, linked content, entity lists and the ignore-wrapped xref block.
func renderNote(in Input, entities []Entity, linkMode LinkMode) string {
	meta := in.Meta

	fm := frontmatter{
		ID:            in.DocID,
		Title:         meta.Title,
		Source:        in.SourceFilename,
		DocType:       string(in.Doc.DocumentType),
		IngestedAt:    in.IngestedAt.Format("2006-01-02T15:04:05Z07:00"),
		Topics:        meta.Topics,
		Projects:      meta.Projects,
		Places:        meta.Places,
		People:        meta.People,
		Organizations: meta.Organizations,
		Technologies:  meta.Technologies,
		Tags:          buildTags(in),
		Gated:         in.Gated,
		RAG: ragBlock{
			DoIndex:              in.DoIndex,
			Gated:                in.Gated,
			GateReason:           in.GateReason,
			EnrichmentVersion:    meta.EnrichmentVersion,
			Signalness:           meta.Scores.Signalness,
			QualityScore:         meta.Scores.QualityScore,
			RecencyScore:         meta.Scores.RecencyScore,
			EntityRichness:       meta.Scores.EntityRichness,
			ContentDepth:         meta.Scores.ContentDepth,
			ExtractionConfidence: meta.Scores.ExtractionConfidence,
			Novelty:              meta.Scores.Novelty,
			Actionability:        meta.Scores.Actionability,
			SHA256:               in.ContentHash,
			OriginalPath:         in.SourcePath,
		},
	}
	if !in.Doc.CreatedAt.IsZero() {
		fm.CreatedAt = in.Doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, d := range meta.Dates {
		fm.Dates = append(fm.Dates, dateEntry{Label: d.Raw, ISO: d.ISO, Type: string(d.Type)})
	}

	fmYAML, err := yaml.Marshal(fm)
	if err != nil {
		// Marshalling a plain struct cannot realistically fail; keep the
		// note rather than losing it.
		fmYAML = []byte("id: " + in.DocID + "\n")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fmYAML)
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	if meta.Summary != "" {
		b.WriteString("> " + strings.ReplaceAll(meta.Summary, "\n", "\n> ") + "\n\n")
	}

	if len(meta.KeyFacts) > 0 {
		b.WriteString("## Key Facts\n\n")
		for _, fact := range meta.KeyFacts {
			b.WriteString("- " + fact + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Content\n\n")
	b.WriteString(linkEntities(in.Doc.Text, entities, linkMode))
	b.WriteString("\n\n")

	if len(entities) > 0 {
		b.WriteString("## Entities\n\n")
		writeEntityGroup(&b, "People", entities, KindPerson)
		writeEntityGroup(&b, "Organizations", entities, KindOrg)
		writeEntityGroup(&b, "Technologies", entities, KindTech)
		writeEntityGroup(&b, "Projects", entities, KindProject)
		writeEntityGroup(&b, "Places", entities, KindPlace)
		writeEntityGroup(&b, "Topics", entities, KindTopic)
	}

	b.WriteString("## Related Notes\n\n")
	if len(meta.Projects) > 0 || len(meta.Topics) > 0 {
		for _, project := range meta.Projects {
			fmt.Fprintf(&b, "- [[refs/projects/%s|%s]]\n", Slugify(project, 40), project)
		}
		for _, topic := range meta.Topics {
			fmt.Fprintf(&b, "- [[refs/topics/%s|%s]]\n", Slugify(topic, 40), topic)
		}
	} else {
		b.WriteString("*(none)*\n")
	}
	b.WriteString("\n")

	// The xref block renders in the vault but never enters embeddings.
	b.WriteString(chunk.IgnoreStart + "\n\n## Xref\n\n")
	for _, entity := range entities {
		fmt.Fprintf(&b, "- [[%s|%s]]\n", entity.StubPath(), entity.Label)
	}
	b.WriteString("\n" + chunk.IgnoreEnd + "\n")

	return b.String()
}

func writeEntityGroup(b *strings.Builder, heading string, entities []Entity, kind Kind) {
	var members []Entity
	for _, entity := range entities {
		if entity.Kind == kind {
			members = append(members, entity)
		}
	}
	if len(members) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**: ", heading)
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, fmt.Sprintf("[[%s|%s]]", m.StubPath(), m.Label))
	}
	b.WriteString(strings.Join(parts, ", ") + "\n\n")
}

// buildTags derives namespaced tags from the controlled fields plus the
// document type.
func buildTags(in Input) []string {
	meta := in.Meta
	var tags []string
	add := func(prefix string, values []string) {
		for _, v := range values {
			tags = append(tags, prefix+"/"+Slugify(v, 40))
		}
	}
	add("topic", meta.Topics)
	add("project", meta.Projects)
	add("place", meta.Places)
	add("person", meta.People)
	add("org", meta.Organizations)
	add("tech", meta.Technologies)
	tags = append(tags, "doc/"+string(in.Doc.DocumentType))
	return tags
}
