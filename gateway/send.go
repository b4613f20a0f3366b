package gateway

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"mailgate/mailbox"
	"mailgate/models"
	"mailgate/policy"
	"mailgate/utils"
)

// SendRequest is an outbound message as the caller supplied it
type SendRequest struct {
	To      string
	Subject string
	Body    string
	Cc      *string
	Bcc     *string
	HTML    bool
}

// SendEmail submits req after every trust check passes. Checks run in a
// fixed order and nothing touches the network until all of them pass:
// header injection, body size, recipient syntax, allowlist, rate limit.
func (g *Gateway) SendEmail(ctx context.Context, req SendRequest) (*models.SendResult, error) {
	if g.opts.From == "" {
		return nil, utils.ValidationError("sender address is not configured")
	}

	cc, bcc := deref(req.Cc), deref(req.Bcc)

	for _, field := range []struct{ value, name string }{
		{req.Subject, "subject"},
		{req.To, "to"},
		{cc, "cc"},
		{bcc, "bcc"},
	} {
		if err := policy.RequireNoCRLF(field.value, field.name); err != nil {
			return nil, err
		}
	}

	if utf8.RuneCountInString(req.Body) > g.opts.MaxSendBodyChars {
		return nil, utils.PolicyError("email body too large by policy")
	}

	rec := models.SendRecord{Caller: Caller(ctx), Subject: utils.Preview(req.Subject, signalPreviewChars)}

	recipients, err := policy.ValidateAndParse(req.To, cc, bcc)
	if err != nil {
		return nil, err
	}
	rec.Recipients = recipients

	if err := g.policy.Enforce(recipients); err != nil {
		g.recordSend(rec, models.SendRejected, err)
		return nil, err
	}
	if err := g.limiter.Admit(); err != nil {
		g.recordSend(rec, models.SendRejected, err)
		return nil, err
	}

	raw, err := mailbox.BuildMessage(mailbox.OutgoingMessage{
		From:    g.opts.From,
		To:      req.To,
		Cc:      cc,
		Subject: req.Subject,
		Body:    req.Body,
		HTML:    req.HTML,
		Date:    time.Now(),
	})
	if err != nil {
		return nil, utils.ValidationError("failed to compose email: " + err.Error())
	}

	if g.sender == nil {
		return nil, utils.InternalServerError("mail submission is not configured", nil)
	}
	if err := g.sender.Send(ctx, g.opts.From, recipients, raw); err != nil {
		perr := utils.ProtocolError("failed to send email", err)
		g.recordSend(rec, models.SendFailed, perr)
		return nil, perr
	}
	g.recordSend(rec, models.SendAccepted, nil)

	return &models.SendResult{
		Status:  "sent",
		To:      req.To,
		Subject: req.Subject,
		Cc:      optional(cc),
		Bcc:     optional(bcc),
	}, nil
}

func (g *Gateway) recordSend(rec models.SendRecord, status string, cause error) {
	rec.Status = status
	var app *utils.AppError
	if errors.As(cause, &app) {
		rec.Reason = app.Public()
	}
	if err := g.audit.RecordSend(rec); err != nil {
		utils.Log.Error("failed to audit send: %v", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
