package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"mailgate/gateway"
	"mailgate/utils"
)

type searchParams struct {
	Folder string `json:"folder"`
	Query  string `json:"query"`
	Limit  *int   `json:"limit"`
}

type readParams struct {
	Folder  string `json:"folder"`
	EmailID string `json:"email_id"`
}

type sendParams struct {
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Cc      *string `json:"cc"`
	Bcc     *string `json:"bcc"`
	HTML    bool    `json:"html"`
}

type downloadParams struct {
	Folder   string `json:"folder"`
	EmailID  string `json:"email_id"`
	Filename string `json:"filename"`
	SaveDir  string `json:"save_dir"`
}

type moveParams struct {
	Folder      string `json:"folder"`
	EmailID     string `json:"email_id"`
	Destination string `json:"destination"`
}

// decodeParams reads body into dst. An empty body means no parameters;
// unknown parameter names are rejected. Bodies that are not JSON at all
// are a bad request rather than a validation failure.
func decodeParams(body []byte, dst interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return utils.BadRequestError("malformed JSON parameters", err)
		}
		return utils.ValidationError("invalid parameters: " + utils.Preview(err.Error(), 120))
	}
	return nil
}

func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return utils.ValidationError(fmt.Sprintf("%s is required", pairs[i]))
		}
	}
	return nil
}

func (h *ToolHandler) listFolders(ctx context.Context, body []byte) (interface{}, error) {
	if err := decodeParams(body, &struct{}{}); err != nil {
		return nil, err
	}
	return h.mailbox.ListFolders(ctx)
}

func (h *ToolHandler) searchEmails(ctx context.Context, body []byte) (interface{}, error) {
	p := searchParams{Folder: gateway.DefaultFolder, Query: "ALL"}
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	limit := gateway.DefaultSearchLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	return h.mailbox.SearchEmails(ctx, p.Folder, p.Query, limit)
}

func (h *ToolHandler) readEmail(ctx context.Context, body []byte) (interface{}, error) {
	var p readParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if err := required("folder", p.Folder, "email_id", p.EmailID); err != nil {
		return nil, err
	}
	return h.mailbox.ReadEmail(ctx, p.Folder, p.EmailID)
}

func (h *ToolHandler) sendEmail(ctx context.Context, body []byte) (interface{}, error) {
	var p sendParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if err := required("to", p.To); err != nil {
		return nil, err
	}
	return h.mailbox.SendEmail(ctx, gateway.SendRequest{
		To:      p.To,
		Subject: p.Subject,
		Body:    p.Body,
		Cc:      p.Cc,
		Bcc:     p.Bcc,
		HTML:    p.HTML,
	})
}

func (h *ToolHandler) downloadAttachment(ctx context.Context, body []byte) (interface{}, error) {
	var p downloadParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if err := required("folder", p.Folder, "email_id", p.EmailID, "filename", p.Filename); err != nil {
		return nil, err
	}
	return h.mailbox.DownloadAttachment(ctx, p.Folder, p.EmailID, p.Filename, p.SaveDir)
}

func (h *ToolHandler) moveEmail(ctx context.Context, body []byte) (interface{}, error) {
	var p moveParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if err := required("folder", p.Folder, "email_id", p.EmailID, "destination", p.Destination); err != nil {
		return nil, err
	}
	return h.mailbox.MoveEmail(ctx, p.Folder, p.EmailID, p.Destination)
}

func (h *ToolHandler) deleteEmail(ctx context.Context, body []byte) (interface{}, error) {
	var p readParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if err := required("folder", p.Folder, "email_id", p.EmailID); err != nil {
		return nil, err
	}
	return h.mailbox.DeleteEmail(ctx, p.Folder, p.EmailID)
}
