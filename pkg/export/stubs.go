package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// stubTemplate carries a Dataview query so the stub lists every note
// mentioning the entity without ever being rewritten.
const stubTemplate = `---
type: %s
name: %q
aliases: []
---

# %s

` + "```dataview" + `
LIST FROM ""
WHERE contains(file.frontmatter.%s, %q)
SORT file.frontmatter.created_at DESC
` + "```" + `
`

// frontmatter field holding each entity kind in document notes.
var kindField = map[Kind]string{
	KindPerson:  "people",
	KindOrg:     "organizations",
	KindTech:    "technologies",
	KindProject: "projects",
	KindPlace:   "places",
	KindTopic:   "topics",
	KindDate:    "dates.iso",
}

// kindType is the singular frontmatter type of each stub.
var kindType = map[Kind]string{
	KindPerson:  "person",
	KindOrg:     "org",
	KindTech:    "technology",
	KindProject: "project",
	KindPlace:   "place",
	KindTopic:   "topic",
	KindDate:    "date",
}

// ensureStub creates refs/<kind>/<slug>.md once. Existing stubs are
// never touched: re-ingestion surfaces new documents through the query,
// not through stub rewrites.
func (e *Exporter) ensureStub(entity Entity) error {
	path := filepath.Join(e.vaultPath, "refs", string(entity.Kind), entity.Slug()+".md")

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking stub %s: %w", path, err)
	}

	field := kindField[entity.Kind]
	content := fmt.Sprintf(stubTemplate,
		kindType[entity.Kind], entity.Label, entity.Label, field, entity.Label)

	return writeFileAtomic(path, []byte(content))
}
