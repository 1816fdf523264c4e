package vocabulary

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the process-wide controlled vocabulary. Reads take a
// consistent snapshot; Reload swaps the snapshot under the write lock so
// live pipelines never see a half-loaded vocabulary.
type Vocabulary struct {
	mu     sync.RWMutex
	logger *log.Logger
	path   string
	snap   *snapshot
}

type snapshot struct {
	version  string
	byID     map[string]*Concept
	byLabel  map[string]*Concept // normalized prefLabel and altLabels
	topics   []string
	projects []string
	places   []string
	techs    []string
	roles    []string
	// watchEntries pairs a normalized watchlist keyword with its project.
	watchEntries []watchEntry
}

type watchEntry struct {
	keyword string
	project string
}

func New(logger *log.Logger, path string) *Vocabulary {
	return &Vocabulary{logger: logger, path: path, snap: emptySnapshot()}
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byID:    map[string]*Concept{},
		byLabel: map[string]*Concept{},
	}
}

// Load reads and activates the vocabulary file.
func (v *Vocabulary) Load() error {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return fmt.Errorf("reading vocabulary %s: %w", v.path, err)
	}
	return v.LoadBytes(data)
}

// LoadBytes parses a vocabulary document and swaps it in atomically.
func (v *Vocabulary) LoadBytes(data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing vocabulary: %w", err)
	}

	snap := emptySnapshot()
	snap.version = file.Version

	index := func(concepts []Concept, labels *[]string) {
		for i := range concepts {
			c := concepts[i]
			if c.PrefLabel == "" {
				continue
			}
			snap.byID[c.ID] = &concepts[i]
			snap.byLabel[NormalizeLabel(c.PrefLabel)] = &concepts[i]
			for _, alt := range c.AltLabels {
				snap.byLabel[NormalizeLabel(alt)] = &concepts[i]
			}
			if labels != nil {
				*labels = append(*labels, c.PrefLabel)
			}
			if c.Type == TypeProject {
				for _, kw := range c.Watchlist {
					snap.watchEntries = append(snap.watchEntries, watchEntry{
						keyword: NormalizeLabel(kw),
						project: c.PrefLabel,
					})
				}
			}
		}
	}

	index(file.Topics, &snap.topics)
	index(file.Projects, &snap.projects)
	index(file.Places, &snap.places)
	index(file.Technologies, &snap.techs)
	index(file.PeopleRoles, &snap.roles)

	v.mu.Lock()
	v.snap = snap
	v.mu.Unlock()

	v.logger.Info("vocabulary loaded",
		"topics", len(snap.topics),
		"projects", len(snap.projects),
		"places", len(snap.places),
		"technologies", len(snap.techs))
	return nil
}

func (v *Vocabulary) read() *snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

func (v *Vocabulary) Version() string { return v.read().version }

func (v *Vocabulary) Topics() []string       { return append([]string(nil), v.read().topics...) }
func (v *Vocabulary) Projects() []string     { return append([]string(nil), v.read().projects...) }
func (v *Vocabulary) Places() []string       { return append([]string(nil), v.read().places...) }
func (v *Vocabulary) Technologies() []string { return append([]string(nil), v.read().techs...) }
func (v *Vocabulary) PeopleRoles() []string  { return append([]string(nil), v.read().roles...) }

// MatchConcept resolves a surface label to a concept by exact or
// alt-label match, case- and diacritic-insensitive.
func (v *Vocabulary) MatchConcept(label string) (*Concept, bool) {
	c, ok := v.read().byLabel[NormalizeLabel(label)]
	return c, ok
}

// ConceptByID looks a concept up by its vocabulary ID.
func (v *Vocabulary) ConceptByID(id string) (*Concept, bool) {
	c, ok := v.read().byID[id]
	return c, ok
}

// IsAllowed reports whether a label is a member of the named field's
// vocabulary (topics, projects, places, technologies).
func (v *Vocabulary) IsAllowed(field, label string) bool {
	c, ok := v.MatchConcept(label)
	if !ok {
		return false
	}
	switch field {
	case "topics":
		return c.Type == TypeTopic
	case "projects":
		return c.Type == TypeProject
	case "places":
		return c.Type == TypePlace
	case "technologies":
		return c.Type == TypeSoftware || c.Type == TypeHardware
	default:
		return false
	}
}

// Nearest finds the closest allowed label for a field within edit
// distance 2, preferring synonym hits (distance 0 via alt-labels).
func (v *Vocabulary) Nearest(field, label string) (string, bool) {
	if c, ok := v.MatchConcept(label); ok {
		return c.PrefLabel, true
	}

	var candidates []string
	switch field {
	case "topics":
		candidates = v.read().topics
	case "projects":
		candidates = v.read().projects
	case "places":
		candidates = v.read().places
	case "technologies":
		candidates = v.read().techs
	}

	norm := NormalizeLabel(label)
	best, bestDist := "", 3
	for _, candidate := range candidates {
		d := editDistance(norm, NormalizeLabel(candidate))
		if d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist <= 2 {
		return best, true
	}
	return "", false
}

// WatchlistProjects returns projects whose watchlist keywords appear in
// the text. Matching is on normalized whole text containment.
func (v *Vocabulary) WatchlistProjects(text string) []string {
	norm := NormalizeLabel(text)
	var hits []string
	for _, entry := range v.read().watchEntries {
		if entry.keyword != "" && strings.Contains(norm, entry.keyword) {
			hits = append(hits, entry.project)
		}
	}
	return lo.Uniq(hits)
}

// IsTechnologyConcept reports whether a label names a Software or
// Hardware concept. The enricher uses this to keep tools out of the
// people list.
func (v *Vocabulary) IsTechnologyConcept(label string) bool {
	c, ok := v.MatchConcept(label)
	return ok && (c.Type == TypeSoftware || c.Type == TypeHardware)
}

// NormalizeLabel lowercases, strips diacritics and collapses whitespace
// so "Fedora  Linux" and "fedora linux" compare equal.
func NormalizeLabel(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(stripDiacritic(r))
	}
	return b.String()
}

var diacriticMap = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ä': 'a', 'ã': 'a', 'å': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'ö': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ß': 's',
}

func stripDiacritic(r rune) rune {
	if mapped, ok := diacriticMap[r]; ok {
		return mapped
	}
	return r
}
