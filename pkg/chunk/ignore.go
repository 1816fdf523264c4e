package chunk

import "regexp"

// Ignore markers wrap content that must render in exported markdown but
// never enter embeddings.
const (
	IgnoreStart = "<!-- RAG:IGNORE-START -->"
	IgnoreEnd   = "<!-- RAG:IGNORE-END -->"
)

var ignoreBlockRe = regexp.MustCompile(`(?s)<!--\s*RAG:IGNORE-START\s*-->.*?<!--\s*RAG:IGNORE-END\s*-->`)

// StripIgnoreBlocks removes paired ignore spans. An unpaired start
// marker is left alone rather than swallowing the rest of the document.
func StripIgnoreBlocks(text string) string {
	return ignoreBlockRe.ReplaceAllString(text, "")
}
