package export

import (
	"sort"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/enrich"
)

// Kind is the entity stub namespace under refs/.
type Kind string

const (
	KindPerson  Kind = "persons"
	KindOrg     Kind = "orgs"
	KindTech    Kind = "technologies"
	KindProject Kind = "projects"
	KindPlace   Kind = "places"
	KindTopic   Kind = "topics"
	KindDate    Kind = "dates"
)

// Entity is one linkable label with its stub location.
type Entity struct {
	Label string
	Kind  Kind
}

func (e Entity) Slug() string { return Slugify(e.Label, 40) }

// StubPath is the vault-relative wiki-link target.
func (e Entity) StubPath() string {
	return "refs/" + string(e.Kind) + "/" + e.Slug()
}

// collectEntities gathers every linkable label, longest first so
// "Fedora Linux" links before "Fedora" can shadow it.
func collectEntities(meta *enrich.EnrichedMetadata) []Entity {
	var entities []Entity
	seen := map[string]bool{}
	add := func(kind Kind, labels []string) {
		for _, label := range labels {
			label = strings.TrimSpace(label)
			key := strings.ToLower(label)
			if label == "" || seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, Entity{Label: label, Kind: kind})
		}
	}
	add(KindPerson, meta.People)
	add(KindOrg, meta.Organizations)
	add(KindTech, meta.Technologies)
	add(KindProject, meta.Projects)
	add(KindPlace, meta.Places)
	add(KindTopic, meta.Topics)

	sort.SliceStable(entities, func(i, j int) bool {
		return len(entities[i].Label) > len(entities[j].Label)
	})
	return entities
}

// linkEntities converts entity mentions in the body into wiki-links.
// Code blocks and existing links are left alone. In LinkFirst mode only
// the first occurrence of each label links.
func linkEntities(body string, entities []Entity, mode LinkMode) string {
	if len(entities) == 0 {
		return body
	}

	linked := map[string]bool{}
	lines := strings.Split(body, "\n")
	inCode := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}

		for _, entity := range entities {
			if mode == LinkFirst && linked[entity.Slug()] {
				continue
			}
			replaced, ok := linkLine(line, entity, mode == LinkAll)
			if ok {
				line = replaced
				linked[entity.Slug()] = true
			}
		}
		lines[i] = line
	}

	return strings.Join(lines, "\n")
}

// linkLine links occurrences of the entity label within one line,
// skipping positions already inside a wiki-link. Matching is
// case-insensitive on word boundaries.
func linkLine(line string, entity Entity, all bool) (string, bool) {
	lower := strings.ToLower(line)
	target := strings.ToLower(entity.Label)

	var b strings.Builder
	pos := 0
	replaced := false
	for {
		idx := strings.Index(lower[pos:], target)
		if idx < 0 {
			break
		}
		start := pos + idx
		end := start + len(target)

		if !wordBoundary(line, start, end) || insideLink(line, start) {
			b.WriteString(line[pos:end])
			pos = end
			continue
		}

		b.WriteString(line[pos:start])
		b.WriteString("[[" + entity.StubPath() + "|" + line[start:end] + "]]")
		pos = end
		replaced = true
		if !all {
			break
		}
	}
	if !replaced {
		return line, false
	}
	b.WriteString(line[pos:])
	return b.String(), true
}

func wordBoundary(line string, start, end int) bool {
	if start > 0 && isWordChar(line[start-1]) {
		return false
	}
	if end < len(line) && isWordChar(line[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// insideLink reports whether the position sits inside [[...]].
func insideLink(line string, pos int) bool {
	open := strings.LastIndex(line[:pos], "[[")
	if open < 0 {
		return false
	}
	closing := strings.LastIndex(line[:pos], "]]")
	return closing < open
}
