package mailbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"

	"mailgate/models"
	"mailgate/utils"
)

// ErrAttachmentNotFound is returned by FindAttachment when no attachment
// part carries the requested filename.
var ErrAttachmentNotFound = errors.New("attachment not found")

// ParsedMessage is the decoded view of a raw RFC 5322 message
type ParsedMessage struct {
	Subject     string
	From        string
	To          string
	Date        string
	Text        string
	HTML        string
	Attachments []models.Attachment
}

// Attachment is an attachment with its decoded content
type Attachment struct {
	models.Attachment
	Data []byte
}

// ParseMessage decodes headers and walks the MIME tree. The first text/plain
// and first text/html inline parts win; later ones are ignored.
func ParseMessage(raw []byte) (*ParsedMessage, error) {
	parsed := &ParsedMessage{Attachments: []models.Attachment{}}

	takeBody := func(contentType string, body io.Reader) error {
		var dst *string
		switch {
		case contentType == "text/plain" && parsed.Text == "":
			dst = &parsed.Text
		case contentType == "text/html" && parsed.HTML == "":
			dst = &parsed.HTML
		default:
			return nil
		}
		b, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read %s part: %w", contentType, err)
		}
		*dst = string(b)
		return nil
	}

	header, err := walkParts(raw, func(p *mail.Part) (bool, error) {
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			return true, takeBody(contentType, p.Body)
		case *mail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			filename, _ := h.Filename()
			if filename == "" {
				// A bare body with no Content-Type at all is plain text.
				if contentType == "" {
					return true, takeBody("text/plain", p.Body)
				}
				return true, nil
			}
			size, err := io.Copy(io.Discard, p.Body)
			if err != nil {
				return false, fmt.Errorf("read attachment %s: %w", filename, err)
			}
			parsed.Attachments = append(parsed.Attachments, models.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        int(size),
			})
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	parsed.Subject, _ = header.Subject()
	parsed.From, _ = header.Text("From")
	parsed.To, _ = header.Text("To")
	parsed.Date = header.Get("Date")
	return parsed, nil
}

// FindAttachment returns the first attachment named filename.
func FindAttachment(raw []byte, filename string) (*Attachment, error) {
	var found *Attachment

	_, err := walkParts(raw, func(p *mail.Part) (bool, error) {
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			return true, nil
		}
		name, _ := h.Filename()
		if name == "" || name != filename {
			return true, nil
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return false, fmt.Errorf("read attachment %s: %w", filename, err)
		}
		contentType, _, _ := h.ContentType()
		found = &Attachment{
			Attachment: models.Attachment{Filename: name, ContentType: contentType, Size: len(data)},
			Data:       data,
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrAttachmentNotFound
	}
	return found, nil
}

// walkParts calls fn for every leaf part until fn returns false. Unknown
// charsets are tolerated; the part is passed through undecoded.
func walkParts(raw []byte, fn func(*mail.Part) (bool, error)) (mail.Header, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return mail.Header{}, fmt.Errorf("parse message: %w", err)
	}
	if mr == nil {
		return mail.Header{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return mr.Header, fmt.Errorf("read part: %w", err)
		}
		if p == nil {
			continue
		}

		more, err := fn(p)
		if err != nil {
			return mr.Header, err
		}
		if !more {
			break
		}
	}
	return mr.Header, nil
}

// parseHeaderFields reads a bare header block such as the answer to
// BODY.PEEK[HEADER.FIELDS (SUBJECT FROM DATE)].
func parseHeaderFields(r io.Reader) (MessageHeader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return MessageHeader{}, err
	}
	// Some servers omit the terminating blank line.
	b = append(b, "\r\n\r\n"...)

	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		return MessageHeader{}, fmt.Errorf("read header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	subject, _ := h.Subject()
	from, _ := h.Text("From")
	return MessageHeader{Subject: subject, From: from, Date: h.Get("Date")}, nil
}

// OutgoingMessage is a policy-cleared message ready to be composed
type OutgoingMessage struct {
	From    string
	To      string
	Cc      string
	Subject string
	Body    string
	HTML    bool
	Date    time.Time
}

// BuildMessage composes the RFC 5322 bytes for msg. Bcc recipients are only
// ever passed to the SMTP envelope, never written as a header.
func BuildMessage(msg OutgoingMessage) ([]byte, error) {
	var h mail.Header

	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})

	if err := setAddressHeader(&h, "To", msg.To); err != nil {
		return nil, err
	}
	if err := setAddressHeader(&h, "Cc", msg.Cc); err != nil {
		return nil, err
	}

	h.SetMessageID(uuid.NewString() + "@" + domainOf(msg.From))

	var buf bytes.Buffer
	if !msg.HTML {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("create message: %w", err)
		}
		if _, err := io.WriteString(w, msg.Body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	// HTML bodies go out as multipart/alternative with a stripped text part
	// for clients that do not render HTML.
	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := writeInlinePart(iw, "text/plain", utils.HTMLToText(msg.Body)); err != nil {
		return nil, err
	}
	if err := writeInlinePart(iw, "text/html", msg.Body); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeInlinePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

func setAddressHeader(h *mail.Header, key, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", key, err)
	}
	h.SetAddressList(key, addrs)
	return nil
}

// domainOf returns the part after the first "@" (or "localhost").
func domainOf(address string) string {
	if _, domain, ok := strings.Cut(address, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}
