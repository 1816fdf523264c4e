package chunk

import (
	"fmt"
	"strings"

	"github.com/inkwell-ai/inkwell/pkg/extract"
)

const (
	maxPairsPerChunk  = 3
	termOverlapFloor  = 0.2
	topicHeaderPrefix = "### "
)

var topicShiftMarkers = []string{
	"next question", "changing topic", "change of topic", "new topic",
	"different question", "unrelated question", "on another note",
	"separate question", "switching gears",
}

var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"can", "could", "should", "would", "is", "are", "do", "does",
}

// turnPair is one user turn plus the assistant turns answering it.
type turnPair struct {
	user    extract.ChatTurn
	replies []extract.ChatTurn
}

// splitTurns chunks a conversation into groups of 1-3 turn-pairs,
// breaking on topic shifts. Each chunk opens with a synthesized topic
// header derived from its first user question.
func (c *Chunker) splitTurns(docID string, turns []extract.ChatTurn) []Chunk {
	pairs := pairTurns(turns)
	if len(pairs) == 0 {
		return nil
	}

	b := chunkBuilder{docID: docID, target: c.targetTokens, max: c.maxTokens}

	var group []turnPair
	groupTokens := 0
	flushGroup := func() {
		if len(group) == 0 {
			return
		}
		b.emit(renderPairGroup(group), TypeChatTurn, nil)
		group, groupTokens = nil, 0
	}

	for _, pair := range pairs {
		tokens := pairTokens(pair)
		if len(group) > 0 {
			shift := isTopicShift(group[len(group)-1].user, pair.user)
			full := len(group) >= maxPairsPerChunk || groupTokens+tokens > c.targetTokens
			if shift || full {
				flushGroup()
			}
		}
		group = append(group, pair)
		groupTokens += tokens
	}
	flushGroup()

	return b.chunks
}

// pairTurns groups consecutive turns into user-question/assistant-answer
// pairs. Leading assistant turns attach to a synthetic empty user turn.
func pairTurns(turns []extract.ChatTurn) []turnPair {
	var pairs []turnPair
	for _, turn := range turns {
		if isUserSpeaker(turn.Speaker) || len(pairs) == 0 {
			pairs = append(pairs, turnPair{user: turn})
			continue
		}
		last := &pairs[len(pairs)-1]
		last.replies = append(last.replies, turn)
	}
	return pairs
}

func isUserSpeaker(speaker string) bool {
	switch strings.ToLower(speaker) {
	case "assistant", "ai", "model", "system", "tool":
		return false
	}
	return true
}

func pairTokens(pair turnPair) int {
	total := extract.EstimateTokens(pair.user.Text)
	for _, r := range pair.replies {
		total += extract.EstimateTokens(r.Text)
	}
	return total
}

func renderPairGroup(group []turnPair) string {
	var b strings.Builder
	b.WriteString(topicHeaderPrefix + synthesizeTopic(group[0].user.Text) + "\n")
	for _, pair := range group {
		if strings.TrimSpace(pair.user.Text) != "" {
			fmt.Fprintf(&b, "\n**%s**: %s\n", pair.user.Speaker, pair.user.Text)
		}
		for _, reply := range pair.replies {
			fmt.Fprintf(&b, "\n**%s**: %s\n", reply.Speaker, reply.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// synthesizeTopic trims the first user question down to a short header.
func synthesizeTopic(question string) string {
	line := question
	if idx := strings.IndexByte(line, '\n'); idx > 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(strings.Trim(line, "?!. "))
	words := strings.Fields(line)
	if len(words) > 8 {
		words = words[:8]
		return strings.Join(words, " ") + "…"
	}
	if len(words) == 0 {
		return "Conversation"
	}
	return strings.Join(words, " ")
}

// isTopicShift reports whether the next user turn starts a new topic:
// an explicit marker, a changed question word, or low key-term overlap.
func isTopicShift(prev, next extract.ChatTurn) bool {
	nextLower := strings.ToLower(next.Text)
	for _, marker := range topicShiftMarkers {
		if strings.Contains(nextLower, marker) {
			return true
		}
	}

	prevQ, nextQ := questionWord(prev.Text), questionWord(next.Text)
	if prevQ != "" && nextQ != "" && prevQ != nextQ {
		return true
	}

	return termOverlap(prev.Text, next.Text) < termOverlapFloor
}

func questionWord(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return ""
	}
	first := strings.Trim(fields[0], ",.?!")
	for _, qw := range questionWords {
		if first == qw {
			return qw
		}
	}
	return ""
}

var chatStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"it": true, "this": true, "that": true, "i": true, "you": true, "we": true,
	"my": true, "your": true, "me": true, "do": true, "does": true, "can": true,
	"how": true, "what": true, "why": true, "when": true, "where": true,
}

// termOverlap measures shared key terms between two turns relative to
// the smaller term set.
func termOverlap(a, b string) float64 {
	setA, setB := keyTerms(a), keyTerms(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 1.0 // nothing to compare; do not force a split
	}
	small, large := setA, setB
	if len(setB) < len(setA) {
		small, large = setB, setA
	}
	shared := 0
	for term := range small {
		if large[term] {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

func keyTerms(text string) map[string]bool {
	terms := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		term := strings.Trim(field, ",.?!:;\"'()[]")
		if len(term) < 3 || chatStopwords[term] {
			continue
		}
		terms[term] = true
	}
	return terms
}
