package enrich

import (
	"regexp"
	"strings"
	"time"
)

var absoluteDateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2. January 2006",
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
	"montag": time.Monday, "dienstag": time.Tuesday, "mittwoch": time.Wednesday,
	"donnerstag": time.Thursday, "freitag": time.Friday, "samstag": time.Saturday,
	"sonntag": time.Sunday,
}

var (
	nextWeekdayRe = regexp.MustCompile(`(?i)^(?:next|nächsten?|kommenden?)\s+(\w+)$`)
	inDaysRe      = regexp.MustCompile(`(?i)^in\s+(\d+)\s+(day|days|tag|tagen)$`)
	inWeeksRe     = regexp.MustCompile(`(?i)^in\s+(\d+)\s+(week|weeks|woche|wochen)$`)
)

// resolveDates fills in the ISO field of each record. Absolute forms are
// parsed directly; relative forms resolve against the anchor (the
// document's created_date, else ingestion time). Unresolvable records
// keep Raw only.
func resolveDates(records []DateRecord, anchor time.Time) []DateRecord {
	out := make([]DateRecord, 0, len(records))
	for _, r := range records {
		raw := strings.TrimSpace(r.Raw)
		if raw == "" {
			continue
		}
		r.Raw = raw
		if r.ISO == "" {
			if iso, ok := resolveDate(raw, r.Type, anchor); ok {
				r.ISO = iso
			}
		}
		out = append(out, r)
	}
	return out
}

func resolveDate(raw string, kind DateType, anchor time.Time) (string, bool) {
	for _, layout := range absoluteDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	if kind == DateAbsolute {
		return "", false
	}

	lower := strings.ToLower(raw)
	switch lower {
	case "today", "heute":
		return anchor.Format("2006-01-02"), true
	case "tomorrow", "morgen":
		return anchor.AddDate(0, 0, 1).Format("2006-01-02"), true
	case "yesterday", "gestern":
		return anchor.AddDate(0, 0, -1).Format("2006-01-02"), true
	case "next week", "nächste woche":
		return anchor.AddDate(0, 0, 7).Format("2006-01-02"), true
	case "next month", "nächsten monat":
		return anchor.AddDate(0, 1, 0).Format("2006-01-02"), true
	}

	if m := nextWeekdayRe.FindStringSubmatch(lower); m != nil {
		if wd, ok := weekdays[m[1]]; ok {
			return nextWeekday(anchor, wd).Format("2006-01-02"), true
		}
	}
	if m := inDaysRe.FindStringSubmatch(lower); m != nil {
		return anchor.AddDate(0, 0, atoiSafe(m[1])).Format("2006-01-02"), true
	}
	if m := inWeeksRe.FindStringSubmatch(lower); m != nil {
		return anchor.AddDate(0, 0, 7*atoiSafe(m[1])).Format("2006-01-02"), true
	}

	return "", false
}

// nextWeekday returns the first occurrence of wd strictly after anchor.
func nextWeekday(anchor time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(anchor.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return anchor.AddDate(0, 0, days)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
