package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/mnako/letters"
)

func (e *Extractor) extractEmail(ctx context.Context, raw RawDocument) (*ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	email, err := letters.ParseEmail(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fatal("eml_parse", err)
	}

	headers := email.Headers

	// Plaintext alternative preferred; HTML-only messages go through
	// html2text so layout tables do not leak into the body.
	body := strings.TrimSpace(email.Text)
	if body == "" && email.HTML != "" {
		converted, convErr := html2text.FromString(email.HTML, html2text.Options{PrettyTables: true})
		if convErr != nil {
			e.logger.Warn("html body conversion failed", "error", convErr)
		} else {
			body = strings.TrimSpace(converted)
		}
	}
	if body == "" {
		return nil, fatal("empty_document", nil)
	}

	body, truncated := e.boundContent(body)
	sections := ParseMarkdownStructure(body)

	meta := map[string]string{
		"subject":    headers.Subject,
		"from":       formatAddresses(headers.From),
		"to":         formatAddresses(headers.To),
		"cc":         formatAddresses(headers.Cc),
		"message_id": string(headers.MessageID),
	}
	if len(headers.InReplyTo) > 0 {
		meta["in_reply_to"] = string(headers.InReplyTo[0])
	}
	if len(headers.References) > 0 {
		refs := make([]string, 0, len(headers.References))
		for _, r := range headers.References {
			refs = append(refs, string(r))
		}
		meta["references"] = strings.Join(refs, " ")
	}

	title := headers.Subject
	if title == "" {
		title = filenameStem(raw.Filename)
	}

	// Attachments re-enter the pipeline as sibling documents linked by
	// the parent message id. Nested message attachments are not
	// descended into.
	var attachments []RawDocument
	for i, af := range email.AttachedFiles {
		if len(af.Data) == 0 {
			continue
		}
		name := attachmentFilename(af)
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i+1)
		}
		attachments = append(attachments, RawDocument{
			Content:      af.Data,
			Filename:     name,
			DeclaredType: af.ContentType.ContentType,
			Metadata: map[string]string{
				"parent_message_id": string(headers.MessageID),
			},
		})
	}

	doc := &ExtractedDocument{
		Text:             body,
		DocumentType:     TypeEmail,
		Title:            title,
		Sections:         sections,
		SourceMetadata:   meta,
		ExtractionMethod: "native",
		Truncated:        truncated,
		Attachments:      attachments,
	}
	// created_date comes from the Date header, normalized to UTC; the
	// pipeline falls back to ingestion time only when absent.
	if !headers.Date.IsZero() {
		doc.CreatedAt = headers.Date.UTC()
	}
	return doc, nil
}

func formatAddresses(addrs []*mail.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		if a.Name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		} else {
			parts = append(parts, a.Address)
		}
	}
	return strings.Join(parts, ", ")
}

func attachmentFilename(af letters.AttachedFile) string {
	if name := af.ContentDisposition.Params["filename"]; name != "" {
		return name
	}
	return af.ContentType.Params["name"]
}
