package chunk

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

func newChunker() *Chunker {
	return New(log.New(io.Discard), 500, 800)
}

func markdownDoc(text string) *extract.ExtractedDocument {
	return &extract.ExtractedDocument{
		Text:         text,
		DocumentType: extract.TypeMarkdown,
		Sections:     extract.ParseMarkdownStructure(text),
	}
}

func TestSplitTableStandsAlone(t *testing.T) {
	text := `# Budget

Some introductory prose about the quarterly numbers.

| Item | Cost |
|------|------|
| Disk | 120  |
| RAM  | 80   |

Closing remarks after the table.
`
	chunks := newChunker().Split("doc-1", markdownDoc(text))
	require.NotEmpty(t, chunks)

	var tables, texts int
	for _, c := range chunks {
		switch c.Type {
		case TypeTable:
			tables++
			assert.Contains(t, c.Text, "| Disk | 120")
			assert.NotContains(t, c.Text, "introductory prose")
		case TypeParagraph:
			texts++
		}
	}
	assert.Equal(t, 1, tables)
	assert.GreaterOrEqual(t, texts, 1)
}

func TestSplitCodeStandsAlone(t *testing.T) {
	text := "# Setup\n\nInstall the tool first.\n\n```bash\nqemu-img resize disk.qcow2 +10G\n```\n\nThen reboot the guest.\n"
	chunks := newChunker().Split("doc-1", markdownDoc(text))

	var code *Chunk
	for i := range chunks {
		if chunks[i].Type == TypeCode {
			code = &chunks[i]
		}
	}
	require.NotNil(t, code)
	assert.Contains(t, code.Text, "qemu-img resize")
	assert.NotContains(t, code.Text, "Install the tool")
}

func TestSplitAnchorsHeadingPath(t *testing.T) {
	text := `# Infrastructure

## Storage

The array uses eight disks in RAID-Z2 configuration for redundancy.

## Network

The switch uplinks run at ten gigabit over fiber connections.
`
	chunks := newChunker().Split("doc-1", markdownDoc(text))
	require.Len(t, chunks, 2)

	assert.Equal(t, "Storage", chunks[0].SectionTitle)
	assert.Equal(t, []string{"Infrastructure"}, chunks[0].ParentSections)
	assert.Equal(t, "Network", chunks[1].SectionTitle)
	assert.Equal(t, []string{"Infrastructure"}, chunks[1].ParentSections)
}

func TestSplitSequencesAndIDsAreStable(t *testing.T) {
	text := "# Title\n\nFirst paragraph with enough words to matter.\n\n## Sub\n\nSecond paragraph under another heading.\n"
	a := newChunker().Split("doc-9", markdownDoc(text))
	b := newChunker().Split("doc-9", markdownDoc(text))

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, i, a[i].Sequence)
		assert.Equal(t, "doc-9", a[i].DocID)
	}
}

func TestSplitOversizedParagraphAtSentences(t *testing.T) {
	sentence := "This sentence pads the paragraph out to a very considerable length indeed. "
	text := "# Long\n\n" + strings.Repeat(sentence, 80) + "\n"

	chunks := newChunker().Split("doc-1", markdownDoc(text))
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenEstimate, 800+len(sentence)/4+1)
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	assert.Empty(t, newChunker().Split("doc-1", markdownDoc("   \n\n  ")))
}

func TestSplitUnstructuredText(t *testing.T) {
	doc := &extract.ExtractedDocument{
		Text:         "Plain text with no markdown structure at all, just words.",
		DocumentType: extract.TypeText,
	}
	chunks := newChunker().Split("doc-1", doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeParagraph, chunks[0].Type)
}

func TestSplitListTypes(t *testing.T) {
	listOnly := `# Checklist

- order replacement fans
- flash the new firmware
- rebalance the storage pool
`
	chunks := newChunker().Split("doc-1", markdownDoc(listOnly))
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeList, chunks[0].Type)

	mixed := `# Notes

A short paragraph setting context for the tasks below.

- order replacement fans
- flash the new firmware
`
	chunks = newChunker().Split("doc-1", markdownDoc(mixed))
	require.Len(t, chunks, 1)
	assert.Equal(t, TypeMixed, chunks[0].Type)
}

func TestStripIgnoreBlocks(t *testing.T) {
	text := "Keep this.\n" + IgnoreStart + "\nDrop this navigation boilerplate.\n" + IgnoreEnd + "\nKeep that too."
	out := StripIgnoreBlocks(text)

	assert.Contains(t, out, "Keep this.")
	assert.Contains(t, out, "Keep that too.")
	assert.NotContains(t, out, "navigation boilerplate")
	assert.NotContains(t, out, "RAG:IGNORE")
}

func TestStripIgnoreBlocksUnpairedLeftAlone(t *testing.T) {
	text := "Keep this.\n" + IgnoreStart + "\nNo closing marker here."
	assert.Equal(t, text, StripIgnoreBlocks(text))
}

func TestSplitSkipsIgnoredRegions(t *testing.T) {
	text := "# Note\n\nReal content worth keeping in the index.\n\n" +
		IgnoreStart + "\n## Xref\n\nMachine-written cross references.\n" + IgnoreEnd + "\n"
	chunks := newChunker().Split("doc-1", markdownDoc(text))

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotContains(t, c.Text, "cross references")
	}
}
