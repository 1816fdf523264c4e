package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

// dateLocks serializes calendar-note appends per date key so two
// documents from the same day cannot lose each other's update.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: map[string]*sync.Mutex{}}
}

func (d *dateLocks) forKey(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[key] = lock
	}
	return lock
}

// Section headings of the daily note, keyed by document type.
var dailySections = map[extract.DocumentType]string{
	extract.TypeEmail:    "## Emails",
	extract.TypeLLMChat:  "## Conversations",
	extract.TypeWhatsApp: "## Conversations",
}

const dailyDefaultSection = "## Documents"

// appendCalendarNotes updates the daily note and the weekly/monthly
// roll-ups for the document's date.
func (e *Exporter) appendCalendarNotes(date time.Time, in Input, notePath string) error {
	day := date.Format("2006-01-02")

	lock := e.locks.forKey(day)
	lock.Lock()
	err := e.appendDailyLink(day, in, notePath)
	lock.Unlock()
	if err != nil {
		return err
	}

	year, week := date.ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)
	if err := e.appendRollupLink("weeks", weekKey, day); err != nil {
		return err
	}

	monthKey := date.Format("2006-01")
	return e.appendRollupLink("months", monthKey, day)
}

// appendDailyLink adds the document under its type section in
// refs/days/<date>.md, deduplicated by doc ID.
func (e *Exporter) appendDailyLink(day string, in Input, notePath string) error {
	path := filepath.Join(e.vaultPath, "refs", "days", day+".md")

	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading daily note: %w", err)
	}
	text := string(content)
	if text == "" {
		text = "# " + day + "\n"
	}

	// Dedup on the doc id marker.
	marker := "<!-- doc:" + in.DocID + " -->"
	if strings.Contains(text, marker) {
		return nil
	}

	section := dailySections[in.Doc.DocumentType]
	if section == "" {
		section = dailyDefaultSection
	}
	link := fmt.Sprintf("- [[%s|%s]] %s", strings.TrimSuffix(notePath, ".md"), in.Meta.Title, marker)

	text = insertUnderSection(text, section, link)
	return writeFileAtomic(path, []byte(text))
}

// appendRollupLink links a daily note from its weekly or monthly note.
func (e *Exporter) appendRollupLink(folder, key, day string) error {
	lock := e.locks.forKey(folder + "/" + key)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(e.vaultPath, "refs", folder, key+".md")

	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading roll-up note: %w", err)
	}
	text := string(content)
	if text == "" {
		text = "# " + key + "\n"
	}

	link := fmt.Sprintf("- [[refs/days/%s|%s]]", day, day)
	if strings.Contains(text, link) {
		return nil
	}

	text = insertUnderSection(text, "## Days", link)
	return writeFileAtomic(path, []byte(text))
}

// insertUnderSection appends a line to the named section, creating the
// section at the end when absent.
func insertUnderSection(text, section, line string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	sectionIdx := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == section {
			sectionIdx = i
			break
		}
	}

	if sectionIdx < 0 {
		lines = append(lines, "", section, "", line)
		return strings.Join(lines, "\n") + "\n"
	}

	// Find the end of this section: the next heading or EOF.
	insertAt := len(lines)
	for i := sectionIdx + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "## ") {
			insertAt = i
			break
		}
	}
	// Back up over trailing blank lines inside the section.
	for insertAt > sectionIdx+1 && strings.TrimSpace(lines[insertAt-1]) == "" {
		insertAt--
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, line)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n") + "\n"
}
