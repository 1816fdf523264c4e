package vocabulary

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabYAML = `
version: "3"
topics:
  - id: vocab:Linux
    prefLabel: Linux
    altLabels: [GNU/Linux]
    type: Topic
technologies:
  - id: vocab:Fedora
    prefLabel: Fedora
    altLabels: [Fedora Linux]
    type: Software
  - id: vocab:QEMU
    prefLabel: QEMU
    type: Software
    broader: [vocab:Linux]
  - id: vocab:ThinkPad
    prefLabel: ThinkPad
    type: Hardware
projects:
  - id: vocab:Homelab
    prefLabel: Homelab
    type: Project
    watchlist: [proxmox, "home server"]
places:
  - id: vocab:Berlin
    prefLabel: Berlin
    type: Place
`

func newTestVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v := New(log.New(io.Discard), "")
	require.NoError(t, v.LoadBytes([]byte(testVocabYAML)))
	return v
}

func TestMatchConcept(t *testing.T) {
	v := newTestVocabulary(t)

	c, ok := v.MatchConcept("fedora")
	require.True(t, ok)
	assert.Equal(t, "vocab:Fedora", c.ID)

	// Alt-label hit resolves to the same concept.
	c, ok = v.MatchConcept("Fedora Linux")
	require.True(t, ok)
	assert.Equal(t, "Fedora", c.PrefLabel)

	_, ok = v.MatchConcept("Windows")
	assert.False(t, ok)
}

func TestIsAllowedRespectsFieldTypes(t *testing.T) {
	v := newTestVocabulary(t)

	assert.True(t, v.IsAllowed("technologies", "QEMU"))
	assert.True(t, v.IsAllowed("technologies", "ThinkPad"))
	assert.True(t, v.IsAllowed("topics", "Linux"))
	assert.True(t, v.IsAllowed("places", "berlin"))

	// A technology is not a valid topic.
	assert.False(t, v.IsAllowed("topics", "QEMU"))
	assert.False(t, v.IsAllowed("projects", "Berlin"))
}

func TestNearest(t *testing.T) {
	v := newTestVocabulary(t)

	tests := []struct {
		name  string
		field string
		label string
		want  string
		found bool
	}{
		{"exact", "technologies", "QEMU", "QEMU", true},
		{"synonym", "technologies", "fedora linux", "Fedora", true},
		{"typo within distance", "technologies", "Fedoar", "Fedora", true},
		{"too far", "technologies", "Debian", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := v.Nearest(tt.field, tt.label)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatchlistProjects(t *testing.T) {
	v := newTestVocabulary(t)

	hits := v.WatchlistProjects("Migrated the Proxmox cluster to new disks yesterday.")
	assert.Equal(t, []string{"Homelab"}, hits)

	assert.Empty(t, v.WatchlistProjects("Nothing relevant here."))
}

func TestIsTechnologyConcept(t *testing.T) {
	v := newTestVocabulary(t)

	assert.True(t, v.IsTechnologyConcept("QEMU"))
	assert.True(t, v.IsTechnologyConcept("ThinkPad"))
	assert.False(t, v.IsTechnologyConcept("Berlin"))
	assert.False(t, v.IsTechnologyConcept("Alice"))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "fedora linux", NormalizeLabel("  Fedora   Linux "))
	assert.Equal(t, "uber", NormalizeLabel("Über"))
	assert.Equal(t, "cafe", NormalizeLabel("Café"))
}

func TestReloadSwapsAtomically(t *testing.T) {
	v := newTestVocabulary(t)
	require.True(t, v.IsAllowed("technologies", "QEMU"))

	// A broken reload keeps the previous snapshot.
	err := v.LoadBytes([]byte("not: [valid"))
	require.Error(t, err)
	assert.True(t, v.IsAllowed("technologies", "QEMU"))
}
