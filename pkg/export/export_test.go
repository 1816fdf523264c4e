package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/extract"
)

func newTestExporter(t *testing.T) (*Exporter, string) {
	t.Helper()
	vault := t.TempDir()
	return New(log.New(io.Discard), vault, LinkFirst), vault
}

func testInput() Input {
	meta := &enrich.EnrichedMetadata{
		EnrichmentVersion: "3",
		Title:             "Homelab disk upgrade plan",
		Summary:           "Replacing the array disks without downtime.",
		KeyFacts:          []string{"Eight disks total", "RAID-Z2 layout"},
		Topics:            []string{"Linux"},
		Projects:          []string{"Homelab"},
		Technologies:      []string{"QEMU"},
		People:            []string{"Alice"},
		Dates: []enrich.DateRecord{
			{Raw: "next Tuesday", ISO: "2025-03-11", Type: enrich.DateRelative},
		},
	}
	meta.Scores.Signalness = 0.61

	return Input{
		DocID:          "doc-abc",
		SourceFilename: "disk-plan.md",
		ContentHash:    "deadbeefcafe",
		Doc: &extract.ExtractedDocument{
			Text:         "Alice suggested moving the QEMU images before swapping disks.\n\nThe Homelab rack has space.",
			DocumentType: extract.TypeMarkdown,
			CreatedAt:    time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC),
		},
		Meta:       meta,
		DoIndex:    true,
		IngestedAt: time.Date(2025, 3, 6, 10, 0, 0, 0, time.UTC),
	}
}

func TestExportWritesNote(t *testing.T) {
	e, vault := newTestExporter(t)

	relPath, err := e.Export(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05__markdown__homelab-disk-upgrade-plan__dead.md", relPath)

	content, err := os.ReadFile(filepath.Join(vault, relPath))
	require.NoError(t, err)
	note := string(content)

	assert.True(t, strings.HasPrefix(note, "---\n"))
	assert.Contains(t, note, "id: doc-abc")
	assert.Contains(t, note, "signalness: 0.61")
	assert.Contains(t, note, "do_index: true")
	assert.Contains(t, note, "# Homelab disk upgrade plan")
	assert.Contains(t, note, "> Replacing the array disks without downtime.")
	assert.Contains(t, note, "## Key Facts")
	assert.Contains(t, note, "- Eight disks total")
	assert.Contains(t, note, "- topic/linux")
	assert.Contains(t, note, "- doc/markdown")

	// Auto-linked first occurrences.
	assert.Contains(t, note, "[[refs/persons/alice|Alice]]")
	assert.Contains(t, note, "[[refs/technologies/qemu|QEMU]]")

	// Xref block is wrapped so it never reaches the index.
	assert.Contains(t, note, "RAG:IGNORE-START")
	assert.Contains(t, note, "## Xref")
}

func TestExportIsIdempotent(t *testing.T) {
	e, vault := newTestExporter(t)
	in := testInput()

	relPath, err := e.Export(context.Background(), in)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(vault, relPath))
	require.NoError(t, err)

	relPath2, err := e.Export(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, relPath, relPath2)

	second, err := os.ReadFile(filepath.Join(vault, relPath))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestExportGatedNote(t *testing.T) {
	e, vault := newTestExporter(t)
	in := testInput()
	in.DoIndex = false
	in.Gated = true
	in.GateReason = "signalness 0.100 below threshold 0.20"

	relPath, err := e.Export(context.Background(), in)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(vault, relPath))
	require.NoError(t, err)
	note := string(content)

	assert.Contains(t, note, "gated: true")
	assert.Contains(t, note, "do_index: false")
	assert.Contains(t, note, "gate_reason: signalness 0.100 below threshold 0.20")
}

func TestExportEntityStubs(t *testing.T) {
	e, vault := newTestExporter(t)

	_, err := e.Export(context.Background(), testInput())
	require.NoError(t, err)

	stubPath := filepath.Join(vault, "refs", "persons", "alice.md")
	content, err := os.ReadFile(stubPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "```dataview")
	assert.Contains(t, string(content), `file.frontmatter.people, "Alice"`)

	// Stubs are never rewritten.
	require.NoError(t, os.WriteFile(stubPath, []byte("hand edited"), 0o644))
	_, err = e.Export(context.Background(), testInput())
	require.NoError(t, err)
	edited, err := os.ReadFile(stubPath)
	require.NoError(t, err)
	assert.Equal(t, "hand edited", string(edited))
}

func TestExportDateStubs(t *testing.T) {
	e, vault := newTestExporter(t)
	in := testInput()
	in.Meta.Dates = append(in.Meta.Dates, enrich.DateRecord{Raw: "someday", Type: enrich.DateRelative})

	_, err := e.Export(context.Background(), in)
	require.NoError(t, err)

	stubPath := filepath.Join(vault, "refs", "dates", "2025-03-11.md")
	content, err := os.ReadFile(stubPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "type: date")
	assert.Contains(t, string(content), `name: "2025-03-11"`)

	// Unresolved relative dates get no stub.
	entries, err := os.ReadDir(filepath.Join(vault, "refs", "dates"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCollectEntitiesLongestFirst(t *testing.T) {
	meta := &enrich.EnrichedMetadata{
		Topics:       []string{"Linux"},
		Technologies: []string{"Fedora", "Fedora Linux"},
	}

	entities := collectEntities(meta)
	require.Len(t, entities, 3)
	assert.Equal(t, "Fedora Linux", entities[0].Label)
}

func TestExportDailyNoteDedup(t *testing.T) {
	e, vault := newTestExporter(t)
	in := testInput()

	_, err := e.Export(context.Background(), in)
	require.NoError(t, err)
	_, err = e.Export(context.Background(), in)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(vault, "refs", "days", "2025-03-05.md"))
	require.NoError(t, err)
	daily := string(content)

	assert.Equal(t, 1, strings.Count(daily, "<!-- doc:doc-abc -->"))
	assert.Contains(t, daily, "## Documents")
	assert.Contains(t, daily, "Homelab disk upgrade plan")
}

func TestExportRollupNotes(t *testing.T) {
	e, vault := newTestExporter(t)

	_, err := e.Export(context.Background(), testInput())
	require.NoError(t, err)

	// 2025-03-05 is in ISO week 10.
	weekly, err := os.ReadFile(filepath.Join(vault, "refs", "weeks", "2025-W10.md"))
	require.NoError(t, err)
	assert.Contains(t, string(weekly), "## Days")
	assert.Contains(t, string(weekly), "[[refs/days/2025-03-05|2025-03-05]]")

	monthly, err := os.ReadFile(filepath.Join(vault, "refs", "months", "2025-03.md"))
	require.NoError(t, err)
	assert.Contains(t, string(monthly), "[[refs/days/2025-03-05|2025-03-05]]")
}

func TestExportUsesIngestionDateWhenUndated(t *testing.T) {
	e, _ := newTestExporter(t)
	in := testInput()
	in.Doc.CreatedAt = time.Time{}

	relPath, err := e.Export(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(relPath, "2025-03-06__"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "homelab-disk-upgrade-plan", Slugify("Homelab Disk Upgrade Plan!", 40))
	assert.Equal(t, "untitled", Slugify("???", 40))
	assert.Equal(t, "abc", Slugify("ABC", 40))
	long := Slugify(strings.Repeat("word ", 20), 40)
	assert.LessOrEqual(t, len(long), 40)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestLinkEntitiesFirstMode(t *testing.T) {
	entities := []Entity{{Label: "QEMU", Kind: KindTech}}
	body := "QEMU is fast. QEMU is also flexible."

	out := linkEntities(body, entities, LinkFirst)
	assert.Equal(t, 1, strings.Count(out, "[[refs/technologies/qemu|QEMU]]"))
}

func TestLinkEntitiesAllMode(t *testing.T) {
	entities := []Entity{{Label: "QEMU", Kind: KindTech}}
	body := "QEMU is fast. QEMU is also flexible."

	out := linkEntities(body, entities, LinkAll)
	assert.Equal(t, 2, strings.Count(out, "[[refs/technologies/qemu|QEMU]]"))
}

func TestLinkEntitiesSkipsCodeBlocks(t *testing.T) {
	entities := []Entity{{Label: "qemu-img", Kind: KindTech}}
	body := "Use qemu-img here.\n```\nqemu-img resize disk.qcow2 +10G\n```\n"

	out := linkEntities(body, entities, LinkAll)
	assert.Contains(t, out, "[[refs/technologies/qemu-img|qemu-img]] here")
	assert.Contains(t, out, "\nqemu-img resize disk.qcow2 +10G\n")
}

func TestLinkEntitiesWordBoundaries(t *testing.T) {
	entities := []Entity{{Label: "Go", Kind: KindTech}}
	body := "Going to rewrite it in Go soon."

	out := linkEntities(body, entities, LinkFirst)
	assert.Contains(t, out, "Going to rewrite it in [[refs/technologies/go|Go]] soon.")
}

func TestLinkEntitiesSkipsExistingLinks(t *testing.T) {
	entities := []Entity{{Label: "QEMU", Kind: KindTech}}
	body := "See [[refs/technologies/qemu|QEMU]] for details."

	out := linkEntities(body, entities, LinkFirst)
	assert.Equal(t, body, out)
}

func TestInsertUnderSection(t *testing.T) {
	text := "# 2025-03-05\n\n## Documents\n\n- existing\n\n## Emails\n\n- mail\n"
	out := insertUnderSection(text, "## Documents", "- added")

	docsIdx := strings.Index(out, "- added")
	emailsIdx := strings.Index(out, "## Emails")
	require.Greater(t, docsIdx, 0)
	assert.Less(t, docsIdx, emailsIdx)

	// Missing section is created at the end.
	out = insertUnderSection("# 2025-03-05\n", "## Conversations", "- chat")
	assert.Contains(t, out, "## Conversations\n\n- chat")
}
