package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// Type classifies a chunk for retrieval display.
type Type string

const (
	TypeHeading   Type = "heading"
	TypeParagraph Type = "paragraph"
	TypeTable     Type = "table"
	TypeCode      Type = "code"
	TypeList      Type = "list"
	TypeMixed     Type = "mixed"
	TypeChatTurn  Type = "chat_turn"
)

// Chunk is one embedding-sized unit. ID is doc_id#sequence, stable for
// identical input.
type Chunk struct {
	ID             string   `json:"id"`
	DocID          string   `json:"doc_id"`
	Sequence       int      `json:"sequence"`
	Text           string   `json:"text"`
	Type           Type     `json:"type"`
	SectionTitle   string   `json:"section_title,omitempty"`
	ParentSections []string `json:"parent_sections,omitempty"`
	TokenEstimate  int      `json:"token_estimate"`
}

// Chunker splits extracted documents along their structural sections.
type Chunker struct {
	logger       *log.Logger
	targetTokens int
	maxTokens    int
}

func New(logger *log.Logger, targetTokens, maxTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = 500
	}
	if maxTokens <= targetTokens {
		maxTokens = targetTokens + 300
	}
	return &Chunker{logger: logger, targetTokens: targetTokens, maxTokens: maxTokens}
}

// Split chunks a document. Chat documents with parsed turns use
// turn-based chunking; everything else follows the structural rules:
// tables and code standalone, paragraph runs accumulated greedily.
func (c *Chunker) Split(docID string, doc *extract.ExtractedDocument) []Chunk {
	if (doc.DocumentType == extract.TypeLLMChat || doc.DocumentType == extract.TypeWhatsApp) && len(doc.Turns) > 0 {
		return c.splitTurns(docID, doc.Turns)
	}

	text := StripIgnoreBlocks(doc.Text)
	sections := doc.Sections
	if text != doc.Text {
		// Offsets shifted; re-derive structure from the cleaned text.
		sections = extract.ParseMarkdownStructure(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(sections) == 0 {
		sections = []extract.Section{{
			Type:          extract.SectionParagraph,
			Start:         0,
			End:           len(text),
			TokenEstimate: extract.EstimateTokens(text),
		}}
	}

	b := chunkBuilder{docID: docID, target: c.targetTokens, max: c.maxTokens}

	var headingPath []string
	for _, sec := range sections {
		body := strings.TrimSpace(text[sec.Start:sec.End])
		if body == "" {
			continue
		}

		switch sec.Type {
		case extract.SectionHeading:
			b.flush()
			// Truncate the path to the parent of this level, then descend.
			for len(headingPath) >= sec.HeadingLevel {
				headingPath = headingPath[:len(headingPath)-1]
			}
			headingPath = append(headingPath, sec.Title)

		case extract.SectionTable:
			b.flush()
			b.emit(body, TypeTable, headingPath)

		case extract.SectionCode:
			b.flush()
			b.emit(body, TypeCode, headingPath)

		default:
			b.accumulate(body, sec.Type, headingPath)
		}
	}
	b.flush()

	return b.chunks
}

// chunkBuilder accumulates paragraph runs and assigns sequences.
type chunkBuilder struct {
	docID  string
	target int
	max    int

	chunks []Chunk

	runParts    []string
	runTokens   int
	runPath     []string
	runHasList  bool
	runHasProse bool
}

func (b *chunkBuilder) accumulate(body string, secType extract.SectionType, headingPath []string) {
	tokens := extract.EstimateTokens(body)

	// A heading change starts a fresh run.
	if len(b.runParts) > 0 && !samePath(b.runPath, headingPath) {
		b.flush()
	}
	if len(b.runParts) > 0 && b.runTokens+tokens > b.target {
		b.flush()
	}

	b.runParts = append(b.runParts, body)
	b.runTokens += tokens
	b.runPath = append([]string(nil), headingPath...)
	if secType == extract.SectionList {
		b.runHasList = true
	} else {
		b.runHasProse = true
	}

	if b.runTokens > b.max {
		b.flush()
	}
}

// runKind classifies the pending run: standalone lists keep their own
// type, list-and-prose runs are mixed.
func (b *chunkBuilder) runKind() Type {
	switch {
	case b.runHasList && b.runHasProse:
		return TypeMixed
	case b.runHasList:
		return TypeList
	default:
		return TypeParagraph
	}
}

func (b *chunkBuilder) flush() {
	if len(b.runParts) == 0 {
		return
	}
	text := strings.Join(b.runParts, "\n\n")
	path := b.runPath
	kind := b.runKind()
	b.runParts, b.runTokens, b.runPath = nil, 0, nil
	b.runHasList, b.runHasProse = false, false

	if extract.EstimateTokens(text) <= b.max {
		b.emit(text, kind, path)
		return
	}
	for _, piece := range splitAtSentences(text, b.max) {
		b.emit(piece, kind, path)
	}
}

func (b *chunkBuilder) emit(text string, kind Type, headingPath []string) {
	seq := len(b.chunks)
	chunk := Chunk{
		ID:            fmt.Sprintf("%s#%d", b.docID, seq),
		DocID:         b.docID,
		Sequence:      seq,
		Text:          text,
		Type:          kind,
		TokenEstimate: extract.EstimateTokens(text),
	}
	if len(headingPath) > 0 {
		chunk.SectionTitle = headingPath[len(headingPath)-1]
		if len(headingPath) > 1 {
			chunk.ParentSections = append([]string(nil), headingPath[:len(headingPath)-1]...)
		}
	}
	b.chunks = append(b.chunks, chunk)
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// splitAtSentences cuts oversized text at sentence boundaries, keeping
// each piece at or under maxTokens where boundaries allow.
func splitAtSentences(text string, maxTokens int) []string {
	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var pieces []string
	var current strings.Builder
	currentTokens := 0
	for _, sentence := range sentences {
		tokens := extract.EstimateTokens(sentence)
		if currentTokens > 0 && currentTokens+tokens > maxTokens {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += tokens
	}
	if strings.TrimSpace(current.String()) != "" {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}
