package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractOffice renders office documents into markdown text and reuses
// the markdown structure parser, so spreadsheets arrive as table
// sections and word-processor headings keep their levels.
func (e *Extractor) extractOffice(ctx context.Context, raw RawDocument) (*ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rendered string
	var err error

	switch strings.ToLower(filepath.Ext(raw.Filename)) {
	case ".xlsx":
		rendered, err = renderXLSX(raw.Content)
	case ".pptx":
		rendered, err = renderPPTX(raw.Content)
	case ".docx":
		rendered, err = renderDOCX(raw.Content)
	default:
		// Zip sniffing got us here without a known extension; try the
		// container kinds in order of likelihood.
		for _, render := range []func([]byte) (string, error){renderDOCX, renderXLSX, renderPPTX} {
			rendered, err = render(raw.Content)
			if err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, fatal("office_parse", err)
	}
	if strings.TrimSpace(rendered) == "" {
		return nil, fatal("empty_document", nil)
	}

	text, truncated := e.boundContent(rendered)
	sections := ParseMarkdownStructure(text)

	title := FirstHeading(sections)
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	return &ExtractedDocument{
		Text:             text,
		DocumentType:     TypeOffice,
		Title:            title,
		Sections:         sections,
		SourceMetadata:   map[string]string{},
		ExtractionMethod: "native",
		Truncated:        truncated,
	}, nil
}

// renderXLSX renders every sheet as a markdown table under a sheet
// heading.
func renderXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("opening xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}
		if width == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## " + sheet + "\n\n")
		for i, row := range rows {
			padded := make([]string, width)
			copy(padded, row)
			b.WriteString("| " + strings.Join(padded, " | ") + " |\n")
			if i == 0 {
				b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
			}
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no data found in workbook")
	}
	return b.String(), nil
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

type docxParagraph struct {
	Style docxStyle `xml:"pPr>pStyle"`
	Runs  []docxRun `xml:"r"`
}

type docxStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []string `xml:"t"`
}

// renderDOCX reads word/document.xml and maps HeadingN styles to
// markdown headings.
func renderDOCX(content []byte) (string, error) {
	data, err := readZipEntry(content, "word/document.xml")
	if err != nil {
		return "", err
	}

	var body docxBody
	if err := xml.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("parsing document.xml: %w", err)
	}

	var b strings.Builder
	for _, para := range body.Paragraphs {
		var text strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				text.WriteString(t)
			}
		}
		line := strings.TrimSpace(text.String())
		if line == "" {
			continue
		}

		if level := headingLevelFromStyle(para.Style.Val); level > 0 {
			b.WriteString(strings.Repeat("#", level) + " " + line + "\n\n")
		} else {
			b.WriteString(line + "\n\n")
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text found in document")
	}
	return b.String(), nil
}

func headingLevelFromStyle(style string) int {
	style = strings.ToLower(style)
	if !strings.HasPrefix(style, "heading") {
		if style == "title" {
			return 1
		}
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	default:
		return 5
	}
}

type pptxSlide struct {
	Texts []string `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

// renderPPTX emits one heading per slide followed by its text runs.
func renderPPTX(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("opening pptx: %w", err)
	}

	var slideNames []string
	for _, f := range reader.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slideNames = append(slideNames, f.Name)
		}
	}
	if len(slideNames) == 0 {
		return "", fmt.Errorf("no slides found")
	}
	sort.Strings(slideNames)

	var b strings.Builder
	for i, name := range slideNames {
		data, err := readZipEntry(content, name)
		if err != nil {
			continue
		}
		var slide pptxSlide
		if err := xml.Unmarshal(data, &slide); err != nil {
			continue
		}
		texts := make([]string, 0, len(slide.Texts))
		for _, t := range slide.Texts {
			if strings.TrimSpace(t) != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Slide %d\n\n", i+1)
		b.WriteString(strings.Join(texts, "\n") + "\n")
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("no text found in slides")
	}
	return b.String(), nil
}

func readZipEntry(content []byte, name string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer func() {
			_ = rc.Close()
		}()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in container", name)
}
