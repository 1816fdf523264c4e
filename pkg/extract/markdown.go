package extract

import (
	"regexp"
	"strings"
)

// EstimateTokens approximates token count as chars/4, the convention
// used everywhere a real tokenizer is unavailable.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}

var (
	atxHeadingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	setextUnderline  = regexp.MustCompile(`^(=+|-{2,})\s*$`)
	orderedItemRe    = regexp.MustCompile(`^\s*\d+[.)]\s+`)
	unorderedItemRe  = regexp.MustCompile(`^\s*[-*+]\s+`)
	tableSeparatorRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?\s*$`)
)

type mdLine struct {
	text  string
	start int // byte offset of line start
	end   int // byte offset past the line content (excluding newline)
}

func splitLines(text string) []mdLine {
	var lines []mdLine
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, mdLine{text: text[start:i], start: start, end: i})
			start = i + 1
		}
	}
	if start <= len(text) {
		lines = append(lines, mdLine{text: text[start:], start: start, end: len(text)})
	}
	return lines
}

// ParseMarkdownStructure walks text and produces the structural section
// list: ATX and setext headings, fenced code, pipe tables, list runs and
// paragraphs. Offsets index into the input text.
func ParseMarkdownStructure(text string) []Section {
	lines := splitLines(text)
	var sections []Section

	flushBlock := func(blockType SectionType, start, end int) {
		if end <= start {
			return
		}
		span := strings.TrimSpace(text[start:end])
		if span == "" {
			return
		}
		sections = append(sections, Section{
			Type:          blockType,
			Start:         start,
			End:           end,
			TokenEstimate: EstimateTokens(text[start:end]),
		})
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimSpace(line.text)

		// Blank line: nothing open at this level, just advance.
		if trimmed == "" {
			i++
			continue
		}

		// Fenced code block.
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fence := trimmed[:3]
			start := line.start
			end := line.end
			i++
			for i < len(lines) {
				end = lines[i].end
				if strings.HasPrefix(strings.TrimSpace(lines[i].text), fence) {
					i++
					break
				}
				i++
			}
			flushBlock(SectionCode, start, end)
			continue
		}

		// ATX heading.
		if m := atxHeadingRe.FindStringSubmatch(line.text); m != nil {
			sections = append(sections, Section{
				Type:          SectionHeading,
				HeadingLevel:  len(m[1]),
				Title:         m[2],
				Start:         line.start,
				End:           line.end,
				TokenEstimate: EstimateTokens(line.text),
			})
			i++
			continue
		}

		// Setext heading: a text line underlined by === or ---.
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1].text)
			if setextUnderline.MatchString(next) && !strings.Contains(trimmed, "|") {
				level := 1
				if strings.HasPrefix(next, "-") {
					level = 2
				}
				sections = append(sections, Section{
					Type:          SectionHeading,
					HeadingLevel:  level,
					Title:         trimmed,
					Start:         line.start,
					End:           lines[i+1].end,
					TokenEstimate: EstimateTokens(line.text),
				})
				i += 2
				continue
			}
		}

		// Pipe table: a header row followed by a separator row.
		if strings.Contains(trimmed, "|") && i+1 < len(lines) &&
			tableSeparatorRe.MatchString(lines[i+1].text) {
			start := line.start
			end := lines[i+1].end
			i += 2
			for i < len(lines) {
				rowTrim := strings.TrimSpace(lines[i].text)
				if rowTrim == "" || !strings.Contains(rowTrim, "|") {
					break
				}
				end = lines[i].end
				i++
			}
			flushBlock(SectionTable, start, end)
			continue
		}

		// List run: consecutive list items plus their continuations.
		if unorderedItemRe.MatchString(line.text) || orderedItemRe.MatchString(line.text) {
			start := line.start
			end := line.end
			i++
			for i < len(lines) {
				itemTrim := strings.TrimSpace(lines[i].text)
				if itemTrim == "" {
					break
				}
				if !unorderedItemRe.MatchString(lines[i].text) &&
					!orderedItemRe.MatchString(lines[i].text) &&
					!strings.HasPrefix(lines[i].text, "  ") {
					break
				}
				end = lines[i].end
				i++
			}
			flushBlock(SectionList, start, end)
			continue
		}

		// Paragraph: run of non-blank, non-structural lines.
		start := line.start
		end := line.end
		i++
		for i < len(lines) {
			t := strings.TrimSpace(lines[i].text)
			if t == "" || atxHeadingRe.MatchString(lines[i].text) ||
				strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") ||
				unorderedItemRe.MatchString(lines[i].text) || orderedItemRe.MatchString(lines[i].text) {
				break
			}
			if strings.Contains(t, "|") && i+1 < len(lines) && tableSeparatorRe.MatchString(lines[i+1].text) {
				break
			}
			end = lines[i].end
			i++
		}
		flushBlock(SectionParagraph, start, end)
	}

	return sections
}

// FirstHeading returns the first heading title, used as the extracted
// title candidate.
func FirstHeading(sections []Section) string {
	for _, s := range sections {
		if s.Type == SectionHeading && s.Title != "" {
			return s.Title
		}
	}
	return ""
}

func (e *Extractor) extractMarkdown(raw RawDocument, docType DocumentType) (*ExtractedDocument, error) {
	text := string(raw.Content)
	if strings.TrimSpace(text) == "" {
		return nil, fatal("empty_document", nil)
	}
	text, truncated := e.boundContent(text)
	sections := ParseMarkdownStructure(text)

	title := FirstHeading(sections)
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	return &ExtractedDocument{
		Text:             text,
		DocumentType:     docType,
		Title:            title,
		Sections:         sections,
		SourceMetadata:   map[string]string{},
		ExtractionMethod: "native",
		Truncated:        truncated,
	}, nil
}
