package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// looksLikeChatExport sniffs serialized LLM chat transcripts: ChatGPT
// exports carry a mapping graph, Claude exports a chat_messages list,
// and generic transcripts a role/content array.
func looksLikeChatExport(content []byte) bool {
	head := content
	if len(head) > 4096 {
		head = head[:4096]
	}
	if !bytes.HasPrefix(bytes.TrimSpace(head), []byte("[")) && !bytes.HasPrefix(bytes.TrimSpace(head), []byte("{")) {
		return false
	}
	s := string(head)
	return strings.Contains(s, `"mapping"`) ||
		strings.Contains(s, `"chat_messages"`) ||
		(strings.Contains(s, `"role"`) && strings.Contains(s, `"content"`))
}

// chatGPT export structures (conversations.json).
type chatGPTConversation struct {
	Title      string                        `json:"title"`
	CreateTime float64                       `json:"create_time"`
	Mapping    map[string]chatGPTMessageNode `json:"mapping"`
}

type chatGPTMessageNode struct {
	Message  *chatGPTMessage `json:"message"`
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
}

type chatGPTMessage struct {
	Author struct {
		Role string `json:"role"`
	} `json:"author"`
	CreateTime *float64 `json:"create_time"`
	Content    struct {
		ContentType string        `json:"content_type"`
		Parts       []interface{} `json:"parts"`
	} `json:"content"`
}

// claude export structures.
type claudeConversation struct {
	Name         string `json:"name"`
	CreatedAt    string `json:"created_at"`
	ChatMessages []struct {
		Sender    string `json:"sender"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"chat_messages"`
}

// generic transcript shape.
type plainMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (e *Extractor) extractChatLog(raw RawDocument) (*ExtractedDocument, error) {
	turns, title, createdAt, err := parseChatTranscript(raw.Content)
	if err != nil {
		return nil, fatal("chat_parse", err)
	}
	if len(turns) == 0 {
		return nil, fatal("empty_document", nil)
	}

	text := renderTurns(turns)
	text, truncated := e.boundContent(text)

	if title == "" {
		title = filenameStem(raw.Filename)
	}

	doc := &ExtractedDocument{
		Text:             text,
		DocumentType:     TypeLLMChat,
		Title:            title,
		Sections:         ParseMarkdownStructure(text),
		SourceMetadata:   map[string]string{"turns": fmt.Sprintf("%d", len(turns))},
		ExtractionMethod: "native",
		Truncated:        truncated,
		Turns:            turns,
		CreatedAt:        createdAt,
	}
	return doc, nil
}

func parseChatTranscript(content []byte) ([]ChatTurn, string, time.Time, error) {
	// ChatGPT: array of conversations with a mapping graph.
	var gptConvs []chatGPTConversation
	if err := json.Unmarshal(content, &gptConvs); err == nil && len(gptConvs) > 0 && gptConvs[0].Mapping != nil {
		return parseChatGPT(gptConvs[0])
	}
	var gptConv chatGPTConversation
	if err := json.Unmarshal(content, &gptConv); err == nil && gptConv.Mapping != nil {
		return parseChatGPT(gptConv)
	}

	// Claude: conversation object (or array) with chat_messages.
	var claudeConvs []claudeConversation
	if err := json.Unmarshal(content, &claudeConvs); err == nil && len(claudeConvs) > 0 && len(claudeConvs[0].ChatMessages) > 0 {
		return parseClaude(claudeConvs[0])
	}
	var claudeConv claudeConversation
	if err := json.Unmarshal(content, &claudeConv); err == nil && len(claudeConv.ChatMessages) > 0 {
		return parseClaude(claudeConv)
	}

	// Generic role/content array.
	var plain []plainMessage
	if err := json.Unmarshal(content, &plain); err == nil && len(plain) > 0 {
		var turns []ChatTurn
		for _, m := range plain {
			if m.Role == "" || strings.TrimSpace(m.Content) == "" {
				continue
			}
			turns = append(turns, ChatTurn{Speaker: m.Role, Text: m.Content})
		}
		return turns, "", time.Time{}, nil
	}

	return nil, "", time.Time{}, fmt.Errorf("unrecognized chat transcript format")
}

// parseChatGPT linearizes the mapping graph by following children from
// the root, skipping tool messages and non-text parts.
func parseChatGPT(conv chatGPTConversation) ([]ChatTurn, string, time.Time, error) {
	var createdAt time.Time
	if conv.CreateTime > 0 {
		createdAt = time.Unix(int64(conv.CreateTime), 0).UTC()
	}

	// Find the root node (nil parent).
	root := ""
	for id, node := range conv.Mapping {
		if node.Parent == nil {
			root = id
			break
		}
	}

	var turns []ChatTurn
	visit := root
	visited := map[string]bool{}
	for visit != "" && !visited[visit] {
		visited[visit] = true
		node, ok := conv.Mapping[visit]
		if !ok {
			break
		}
		if msg := node.Message; msg != nil && msg.Author.Role != "tool" && msg.Author.Role != "system" &&
			msg.Content.ContentType == "text" {
			var b strings.Builder
			for _, part := range msg.Content.Parts {
				if s, ok := part.(string); ok {
					b.WriteString(s)
				}
			}
			text := strings.TrimSpace(b.String())
			if text != "" {
				turn := ChatTurn{Speaker: msg.Author.Role, Text: text}
				if msg.CreateTime != nil {
					turn.Time = time.Unix(int64(*msg.CreateTime), 0).UTC()
				}
				turns = append(turns, turn)
			}
		}
		if len(node.Children) == 0 {
			break
		}
		visit = node.Children[0]
	}

	return turns, conv.Title, createdAt, nil
}

func parseClaude(conv claudeConversation) ([]ChatTurn, string, time.Time, error) {
	var createdAt time.Time
	if t, err := time.Parse(time.RFC3339, conv.CreatedAt); err == nil {
		createdAt = t.UTC()
	}

	var turns []ChatTurn
	for _, m := range conv.ChatMessages {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		speaker := m.Sender
		if speaker == "human" {
			speaker = "user"
		}
		turn := ChatTurn{Speaker: speaker, Text: text}
		if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
			turn.Time = t.UTC()
		}
		turns = append(turns, turn)
	}

	return turns, conv.Name, createdAt, nil
}

// renderTurns lays the conversation out with explicit speaker markers;
// the chunker relies on these boundaries for turn-based chunking.
func renderTurns(turns []ChatTurn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**%s**: %s", turn.Speaker, turn.Text)
	}
	return b.String()
}
