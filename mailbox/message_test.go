package mailbox

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailgate/models"
)

const multipartFixture = "From: =?UTF-8?B?0JjQstCw0L0=?= <ivan@example.com>\r\n" +
	"To: me@example.org\r\n" +
	"Subject: =?UTF-8?Q?Quarterly_report?=\r\n" +
	"Date: Mon, 02 Dec 2024 10:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain body https://example.com/report\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML body</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"second plain part\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQ=\r\n" +
	"--outer--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	msg, err := ParseMessage([]byte(multipartFixture))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "Иван <ivan@example.com>", msg.From)
	assert.Equal(t, "me@example.org", msg.To)
	assert.Equal(t, "Mon, 02 Dec 2024 10:00:00 +0000", msg.Date)
	assert.Equal(t, "Plain body https://example.com/report", strings.TrimSpace(msg.Text))
	assert.Equal(t, "<p>HTML body</p>", strings.TrimSpace(msg.HTML))

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, models.Attachment{Filename: "report.pdf", ContentType: "application/pdf", Size: 8}, msg.Attachments[0])
}

func TestParseMessageSinglePartHTML(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<b>bold</b>"

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.Text)
	assert.Equal(t, "<b>bold</b>", msg.HTML)
	assert.Empty(t, msg.Attachments)
}

func TestParseMessageWithoutContentType(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: bare\r\n\r\njust text"

	msg, err := ParseMessage([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "just text", msg.Text)
}

func TestFindAttachment(t *testing.T) {
	att, err := FindAttachment([]byte(multipartFixture), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(att.Data))
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, 8, att.Size)

	_, err = FindAttachment([]byte(multipartFixture), "missing.txt")
	assert.True(t, errors.Is(err, ErrAttachmentNotFound))
}

func TestParseHeaderFields(t *testing.T) {
	h, err := parseHeaderFields(strings.NewReader("Subject: =?UTF-8?B?0J/RgNC40LLQtdGC?=\r\nFrom: x@example.com\r\nDate: Tue, 03 Dec 2024 09:00:00 +0000"))
	require.NoError(t, err)
	assert.Equal(t, "Привет", h.Subject)
	assert.Equal(t, "x@example.com", h.From)
	assert.Equal(t, "Tue, 03 Dec 2024 09:00:00 +0000", h.Date)
}

func TestBuildMessagePlain(t *testing.T) {
	raw, err := BuildMessage(OutgoingMessage{
		From:    "me@example.org",
		To:      "Alice <alice@example.com>, bob@example.com",
		Cc:      "carol@example.com",
		Subject: "Status",
		Body:    "All good.",
		Date:    time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Subject: Status")
	assert.Contains(t, text, "alice@example.com")
	assert.Contains(t, text, "Cc: <carol@example.com>")
	assert.Contains(t, text, "@example.org>")
	assert.NotContains(t, text, "Bcc")

	parsed, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "Status", parsed.Subject)
	assert.Equal(t, "All good.", parsed.Text)
}

func TestBuildMessageHTML(t *testing.T) {
	raw, err := BuildMessage(OutgoingMessage{
		From:    "me@example.org",
		To:      "alice@example.com",
		Subject: "Newsletter",
		Body:    "<p>Hello <b>there</b></p>",
		HTML:    true,
	})
	require.NoError(t, err)

	parsed, err := ParseMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello <b>there</b></p>", parsed.HTML)
	assert.Equal(t, "Hello there", parsed.Text)
}
