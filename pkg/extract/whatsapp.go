package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// WhatsApp chat exports are line oriented with two common shapes:
//
//	[22.01.24, 10:30:15] Daniel: text
//	1/22/24, 10:30 - Daniel: text
var (
	waBracketRe = regexp.MustCompile(`^\[(\d{1,2}[./]\d{1,2}[./]\d{2,4}),? (\d{1,2}:\d{2}(?::\d{2})?)\] ([^:]+): (.*)$`)
	waDashRe    = regexp.MustCompile(`^(\d{1,2}[./]\d{1,2}[./]\d{2,4}),? (\d{1,2}:\d{2}(?::\d{2})?) - ([^:]+): (.*)$`)
)

func looksLikeWhatsAppExport(content []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	checked, matched := 0, 0
	for scanner.Scan() && checked < 20 {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		checked++
		if waBracketRe.MatchString(line) || waDashRe.MatchString(line) {
			matched++
		}
	}
	return checked > 0 && float64(matched)/float64(checked) >= 0.5
}

func (e *Extractor) extractWhatsApp(raw RawDocument) (*ExtractedDocument, error) {
	scanner := bufio.NewScanner(bytes.NewReader(raw.Content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var turns []ChatTurn
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		m := waBracketRe.FindStringSubmatch(line)
		if m == nil {
			m = waDashRe.FindStringSubmatch(line)
		}
		if m == nil {
			// Continuation of a multi-line message.
			if len(turns) > 0 {
				turns[len(turns)-1].Text += "\n" + line
			}
			continue
		}

		body := strings.TrimSpace(m[4])
		if body == "" || body == "<Media omitted>" || strings.Contains(body, "Messages and calls are end-to-end encrypted") {
			continue
		}

		turns = append(turns, ChatTurn{
			Speaker: strings.TrimSpace(m[3]),
			Text:    body,
			Time:    parseWhatsAppTimestamp(m[1], m[2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fatal("whatsapp_read", err)
	}
	if len(turns) == 0 {
		return nil, fatal("empty_document", nil)
	}

	text := renderTurns(turns)
	text, truncated := e.boundContent(text)

	participants := map[string]bool{}
	for _, t := range turns {
		participants[t.Speaker] = true
	}
	names := make([]string, 0, len(participants))
	for name := range participants {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := &ExtractedDocument{
		Text:             text,
		DocumentType:     TypeWhatsApp,
		Title:            fmt.Sprintf("WhatsApp chat (%s)", strings.Join(names, ", ")),
		Sections:         ParseMarkdownStructure(text),
		SourceMetadata:   map[string]string{"turns": fmt.Sprintf("%d", len(turns))},
		ExtractionMethod: "native",
		Truncated:        truncated,
		Turns:            turns,
	}
	if !turns[0].Time.IsZero() {
		doc.CreatedAt = turns[0].Time
	}
	return doc, nil
}

var waDateLayouts = []string{
	"2.1.06 15:04:05", "2.1.06 15:04",
	"2.1.2006 15:04:05", "2.1.2006 15:04",
	"1/2/06 15:04:05", "1/2/06 15:04",
	"1/2/2006 15:04:05", "1/2/2006 15:04",
}

func parseWhatsAppTimestamp(date, clock string) time.Time {
	raw := strings.ReplaceAll(date, "/", ".") + " " + clock
	for _, layout := range waDateLayouts {
		layout = strings.ReplaceAll(layout, "/", ".")
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	// Some exports use month-first with slashes; retry untouched.
	raw = date + " " + clock
	for _, layout := range waDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
