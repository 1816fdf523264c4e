package extract

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainEmail = `From: Anna Schmidt <anna@example.org>
To: Ben <ben@example.org>
Cc: ops@example.org
Subject: Invoice for March hosting
Message-ID: <inv-2025-03@example.org>
Date: Wed, 05 Mar 2025 09:30:00 +0100
Content-Type: text/plain; charset=utf-8

Hi Ben,

please find the March invoice below. Total due is 120 EUR by 2025-03-20.

Anna
`

func TestExtractEmailPlainText(t *testing.T) {
	e := newTestExtractor(Options{})

	doc, err := e.Extract(context.Background(), RawDocument{
		Filename: "invoice.eml",
		Content:  []byte(plainEmail),
	})
	require.NoError(t, err)

	assert.Equal(t, TypeEmail, doc.DocumentType)
	assert.Equal(t, "Invoice for March hosting", doc.Title)
	assert.Contains(t, doc.Text, "Total due is 120 EUR")

	// The Date header becomes the document date, normalized to UTC.
	assert.Equal(t, time.Date(2025, 3, 5, 8, 30, 0, 0, time.UTC), doc.CreatedAt)

	assert.Equal(t, "Invoice for March hosting", doc.SourceMetadata["subject"])
	assert.Contains(t, doc.SourceMetadata["from"], "anna@example.org")
	assert.Contains(t, doc.SourceMetadata["from"], "Anna Schmidt")
	assert.Contains(t, doc.SourceMetadata["to"], "ben@example.org")
	assert.Contains(t, doc.SourceMetadata["message_id"], "inv-2025-03@example.org")
	assert.Empty(t, doc.Attachments)
}

func TestExtractEmailHTMLFallback(t *testing.T) {
	e := newTestExtractor(Options{})
	content := strings.Join([]string{
		"From: a@example.org",
		"To: b@example.org",
		"Subject: Server migration",
		"Date: Wed, 05 Mar 2025 09:30:00 +0000",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>We move the primary node on <b>Friday</b> evening.</p></body></html>",
		"",
	}, "\r\n")

	doc, err := e.Extract(context.Background(), RawDocument{
		Filename: "migration.eml",
		Content:  []byte(content),
	})
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "We move the primary node on Friday evening.")
	assert.NotContains(t, doc.Text, "<b>")
}

func TestExtractEmailAttachments(t *testing.T) {
	e := newTestExtractor(Options{})
	content := strings.Join([]string{
		"From: a@example.org",
		"To: b@example.org",
		"Subject: Logs attached",
		"Message-ID: <logs-1@example.org>",
		"Date: Wed, 05 Mar 2025 09:30:00 +0000",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See the attached boot log.",
		"--XYZ",
		`Content-Type: text/plain; charset=utf-8; name="boot.log"`,
		`Content-Disposition: attachment; filename="boot.log"`,
		"",
		"kernel: panic during early boot",
		"--XYZ--",
		"",
	}, "\r\n")

	doc, err := e.Extract(context.Background(), RawDocument{
		Filename: "logs.eml",
		Content:  []byte(content),
	})
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "See the attached boot log.")
	require.Len(t, doc.Attachments, 1)

	att := doc.Attachments[0]
	assert.Equal(t, "boot.log", att.Filename)
	assert.Contains(t, string(att.Content), "panic during early boot")
	// Attachments carry the parent message id so they can re-enter the
	// pipeline as linked sibling documents.
	assert.Contains(t, att.Metadata["parent_message_id"], "logs-1@example.org")
}

func TestFormatAddresses(t *testing.T) {
	addrs := []*mail.Address{
		{Name: "Anna Schmidt", Address: "anna@example.org"},
		{Address: "ops@example.org"},
		nil,
	}
	assert.Equal(t, "Anna Schmidt <anna@example.org>, ops@example.org", formatAddresses(addrs))
	assert.Equal(t, "", formatAddresses(nil))
}
