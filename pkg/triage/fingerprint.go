package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"math/bits"
	"sort"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/extract"
	"github.com/inkwell-ai/inkwell/pkg/vocabulary"
)

// shingleSize is the k in k-gram token shingles for the fuzzy hash.
const shingleSize = 5

// Fingerprint is the identity tuple used for exact and near-duplicate
// detection. All keys are cheap to compute.
type Fingerprint struct {
	ContentSHA256 string
	TitleSHA      string
	EntitySetSHA  string
	SimHash       uint64
	// FormatKey is format-specific: the email Message-ID, or for chats a
	// hash of the first two turns.
	FormatKey string
}

// NewFingerprint derives the full tuple from an extracted document.
// knownEntities may be empty on first pass; the entity-set hash is then
// empty too.
func NewFingerprint(doc *extract.ExtractedDocument, knownEntities []string) Fingerprint {
	normalized := NormalizeText(doc.Text)

	fp := Fingerprint{
		ContentSHA256: sha256Hex(normalized),
		SimHash:       SimHash(normalized),
	}

	if title := strings.TrimSpace(doc.Title); title != "" {
		fp.TitleSHA = sha256Hex(vocabulary.NormalizeLabel(title))
	}

	if len(knownEntities) > 0 {
		sorted := append([]string(nil), knownEntities...)
		for i := range sorted {
			sorted[i] = vocabulary.NormalizeLabel(sorted[i])
		}
		sort.Strings(sorted)
		fp.EntitySetSHA = sha256Hex(strings.Join(sorted, "\x1f"))
	}

	switch doc.DocumentType {
	case extract.TypeEmail:
		fp.FormatKey = doc.SourceMetadata["message_id"]
	case extract.TypeLLMChat, extract.TypeWhatsApp:
		if len(doc.Turns) >= 2 {
			fp.FormatKey = sha256Hex(NormalizeText(doc.Turns[0].Text + "\x1f" + doc.Turns[1].Text))
		}
	}

	return fp
}

// NormalizeText collapses whitespace, lowercases and strips diacritics
// so formatting changes do not defeat exact-duplicate detection.
func NormalizeText(text string) string {
	return vocabulary.NormalizeLabel(text)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SimHash computes a 64-bit similarity hash over token shingles.
// Near-duplicates land within a small Hamming distance of each other.
func SimHash(normalized string) uint64 {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return 0
	}

	var weights [64]int
	addShingle := func(shingle string) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(shingle))
		v := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if v&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	if len(tokens) < shingleSize {
		addShingle(strings.Join(tokens, " "))
	} else {
		for i := 0; i+shingleSize <= len(tokens); i++ {
			addShingle(strings.Join(tokens[i:i+shingleSize], " "))
		}
	}

	var out uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}
	return out
}

// SimHashSimilarity maps Hamming distance onto [0,1].
func SimHashSimilarity(a, b uint64) float64 {
	return 1.0 - float64(bits.OnesCount64(a^b))/64.0
}
