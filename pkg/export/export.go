// Package export writes the markdown vault: one note per document,
// entity stubs, and daily/weekly/monthly roll-ups. Export is fail-open:
// the vector store is the store of record and export errors never undo
// committed writes.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/inkwell-ai/inkwell/pkg/enrich"
	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// LinkMode selects auto-linking behavior in note bodies.
type LinkMode string

const (
	LinkFirst LinkMode = "first"
	LinkAll   LinkMode = "all"
)

// Input is everything the exporter needs for one document.
type Input struct {
	DocID          string
	SourceFilename string
	SourcePath     string
	ContentHash    string
	Doc            *extract.ExtractedDocument
	Meta           *enrich.EnrichedMetadata
	Gated          bool
	GateReason     string
	DoIndex        bool
	IngestedAt     time.Time
}

// Exporter writes notes into an Obsidian-style vault directory.
type Exporter struct {
	logger    *log.Logger
	vaultPath string
	linkMode  LinkMode
	locks     *dateLocks
}

func New(logger *log.Logger, vaultPath string, linkMode LinkMode) *Exporter {
	if linkMode != LinkAll {
		linkMode = LinkFirst
	}
	return &Exporter{
		logger:    logger,
		vaultPath: vaultPath,
		linkMode:  linkMode,
		locks:     newDateLocks(),
	}
}

// Export writes the document note, entity stubs and calendar notes.
// Returns the note path relative to the vault root.
func (e *Exporter) Export(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	noteDate := in.Doc.CreatedAt
	if noteDate.IsZero() {
		noteDate = in.IngestedAt
	}

	relPath := noteFilename(noteDate, string(in.Doc.DocumentType), in.Meta.Title, in.ContentHash)
	fullPath := filepath.Join(e.vaultPath, relPath)

	entities := collectEntities(in.Meta)

	content := renderNote(in, entities, e.linkMode)
	if err := writeFileAtomic(fullPath, []byte(content)); err != nil {
		return "", fmt.Errorf("writing note %s: %w", relPath, err)
	}

	for _, entity := range entities {
		if err := e.ensureStub(entity); err != nil {
			e.logger.Warn("entity stub write failed", "entity", entity.Label, "error", err)
		}
	}

	for _, d := range in.Meta.Dates {
		if d.ISO == "" {
			continue
		}
		if err := e.ensureStub(Entity{Label: d.ISO, Kind: KindDate}); err != nil {
			e.logger.Warn("date stub write failed", "date", d.ISO, "error", err)
		}
	}

	if err := e.appendCalendarNotes(noteDate, in, relPath); err != nil {
		e.logger.Warn("calendar note update failed", "error", err)
	}

	return relPath, nil
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases and strips a label down to hyphenated ASCII,
// capped at maxLen.
func Slugify(s string, maxLen int) string {
	slug := slugCleanRe.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = slug[:maxLen]
		slug = strings.TrimRight(slug, "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// noteFilename builds YYYY-MM-DD__type__slug__shortid.md.
func noteFilename(date time.Time, docType, title, contentHash string) string {
	shortID := contentHash
	if len(shortID) > 4 {
		shortID = shortID[:4]
	}
	return fmt.Sprintf("%s__%s__%s__%s.md",
		date.Format("2006-01-02"), docType, Slugify(title, 40), shortID)
}

// writeFileAtomic writes via a temp file and rename so readers never see
// a partial note.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
