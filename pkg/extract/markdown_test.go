package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionTypes(sections []Section) []SectionType {
	out := make([]SectionType, len(sections))
	for i, s := range sections {
		out[i] = s.Type
	}
	return out
}

func TestParseMarkdownStructure(t *testing.T) {
	text := `# Title

Intro paragraph spanning
two lines.

## Numbers

| a | b |
|---|---|
| 1 | 2 |

- item one
- item two

` + "```go\nfmt.Println()\n```" + `

Closing paragraph.
`
	sections := ParseMarkdownStructure(text)

	assert.Equal(t, []SectionType{
		SectionHeading, SectionParagraph, SectionHeading,
		SectionTable, SectionList, SectionCode, SectionParagraph,
	}, sectionTypes(sections))

	assert.Equal(t, "Title", sections[0].Title)
	assert.Equal(t, 1, sections[0].HeadingLevel)
	assert.Equal(t, "Numbers", sections[2].Title)
	assert.Equal(t, 2, sections[2].HeadingLevel)

	// Offsets index the original text.
	for _, s := range sections {
		require.LessOrEqual(t, s.Start, s.End)
		require.LessOrEqual(t, s.End, len(text))
	}
	table := sections[3]
	assert.Contains(t, text[table.Start:table.End], "| 1 | 2 |")
}

func TestParseMarkdownStructureSetextHeadings(t *testing.T) {
	text := "Main Title\n==========\n\nSection\n-------\n\nBody text here.\n"
	sections := ParseMarkdownStructure(text)

	require.GreaterOrEqual(t, len(sections), 3)
	assert.Equal(t, SectionHeading, sections[0].Type)
	assert.Equal(t, "Main Title", sections[0].Title)
	assert.Equal(t, 1, sections[0].HeadingLevel)
	assert.Equal(t, "Section", sections[1].Title)
	assert.Equal(t, 2, sections[1].HeadingLevel)
}

func TestParseMarkdownStructureUnterminatedFence(t *testing.T) {
	text := "```\ncode without closing fence\n"
	sections := ParseMarkdownStructure(text)

	require.Len(t, sections, 1)
	assert.Equal(t, SectionCode, sections[0].Type)
}

func TestFirstHeading(t *testing.T) {
	sections := ParseMarkdownStructure("Plain text.\n\n## Later heading\n\nMore.\n")
	assert.Equal(t, "Later heading", FirstHeading(sections))

	assert.Equal(t, "", FirstHeading(ParseMarkdownStructure("no headings at all")))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}
