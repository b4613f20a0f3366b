package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mailgate/mailbox"
	"mailgate/models"
	"mailgate/utils"
)

const (
	DefaultFolder      = "INBOX"
	DefaultSearchLimit = 20

	signalPreviewChars = 200
)

// ListFolders returns every folder with its readable and raw names
func (g *Gateway) ListFolders(ctx context.Context) ([]models.Folder, error) {
	s, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release(s)

	folders, err := s.ListFolders()
	if err != nil {
		return nil, utils.ProtocolError("failed to list folders", err)
	}

	out := make([]models.Folder, 0, len(folders))
	for _, f := range folders {
		out = append(out, models.Folder{Name: f.Name, IMAPName: f.RawName})
	}
	return out, nil
}

// SearchEmails returns up to limit summaries matching query, most recent
// first.
func (g *Gateway) SearchEmails(ctx context.Context, folder, query string, limit int) ([]models.EmailSummary, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	criteria, err := mailbox.CriteriaFromTokens(mailbox.TranslateQuery(query))
	if err != nil {
		return nil, utils.ProtocolError("search failed: "+utils.Preview(query, 80), err)
	}

	s, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release(s)

	if err := selectFolder(s, folder, true); err != nil {
		return nil, err
	}

	uids, err := s.Search(criteria)
	if err != nil {
		return nil, utils.ProtocolError("search failed: "+utils.Preview(query, 80), err)
	}

	// UIDs grow with arrival, so the tail is the newest mail.
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	recent := make([]uint32, len(uids))
	for i, uid := range uids {
		recent[len(uids)-1-i] = uid
	}

	headers, err := s.FetchHeaders(recent)
	if err != nil {
		return nil, utils.ProtocolError("failed to fetch message headers", err)
	}

	out := make([]models.EmailSummary, 0, len(headers))
	for _, h := range headers {
		out = append(out, models.EmailSummary{
			ID:      strconv.FormatUint(uint64(h.UID), 10),
			Subject: h.Subject,
			From:    h.From,
			Date:    h.Date,
		})
	}
	return out, nil
}

// ReadEmail fetches one message and returns its sanitized content. When
// injection logging is on, detector hits are logged and audited but never
// change the result.
func (g *Gateway) ReadEmail(ctx context.Context, folder, emailID string) (*models.Email, error) {
	uid, err := parseID(emailID)
	if err != nil {
		return nil, err
	}

	raw, err := g.fetchRaw(ctx, folder, uid, emailID)
	if err != nil {
		return nil, err
	}

	msg, err := mailbox.ParseMessage(raw)
	if err != nil {
		return nil, utils.ProtocolError("failed to parse email: "+emailID, err)
	}

	text := msg.Text
	if text == "" && msg.HTML != "" {
		text = utils.HTMLToText(msg.HTML)
	}
	text, textCut := utils.Truncate(text, g.opts.MaxReadBodyChars)
	html, htmlCut := utils.Truncate(msg.HTML, g.opts.MaxReadBodyChars)

	email := &models.Email{
		ID:               emailID,
		Subject:          msg.Subject,
		From:             msg.From,
		To:               msg.To,
		Date:             msg.Date,
		BodyText:         text,
		BodyHTML:         html,
		Attachments:      msg.Attachments,
		URLs:             utils.ExtractURLs(text, utils.DefaultURLLimit),
		Truncated:        textCut || htmlCut,
		UntrustedContent: true,
	}

	if g.opts.EnableInjectionLogging {
		g.reportSignals(folder, email)
	}
	return email, nil
}

func (g *Gateway) reportSignals(folder string, email *models.Email) {
	var htmlText string
	if email.BodyHTML != "" {
		htmlText = utils.HTMLToText(email.BodyHTML)
	}

	signals := g.detector.Detect(email.Subject, email.From, email.To, email.BodyText, htmlText)
	if len(signals) == 0 {
		return
	}

	utils.Log.WithFields(map[string]interface{}{
		"folder":   utils.SingleLine(folder),
		"email_id": email.ID,
		"signals":  strings.Join(signals, ","),
		"from":     utils.Preview(email.From, signalPreviewChars),
		"subject":  utils.Preview(email.Subject, signalPreviewChars),
	}).Warn("possible prompt injection in email content")

	err := g.audit.RecordSignals(models.SignalRecord{
		Folder:  folder,
		EmailID: email.ID,
		Signals: signals,
		From:    utils.Preview(email.From, signalPreviewChars),
		Subject: utils.Preview(email.Subject, signalPreviewChars),
	})
	if err != nil {
		utils.Log.Error("failed to audit injection signals: %v", err)
	}
}

// DownloadAttachment writes the named attachment into saveDir, or the
// configured download directory when saveDir is empty. An existing file
// with the same name is replaced.
func (g *Gateway) DownloadAttachment(ctx context.Context, folder, emailID, filename, saveDir string) (*models.DownloadResult, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	uid, err := parseID(emailID)
	if err != nil {
		return nil, err
	}
	if strings.ContainsRune(saveDir, 0) {
		return nil, utils.ValidationError("save_dir must not contain null bytes")
	}
	if saveDir == "" {
		saveDir = g.opts.DownloadDir
	}

	raw, err := g.fetchRaw(ctx, folder, uid, emailID)
	if err != nil {
		return nil, err
	}

	att, err := mailbox.FindAttachment(raw, filename)
	if errors.Is(err, mailbox.ErrAttachmentNotFound) || (err == nil && len(att.Data) == 0) {
		return nil, utils.NotFoundError("attachment not found: "+filename, err)
	}
	if err != nil {
		return nil, utils.ProtocolError("failed to parse email: "+emailID, err)
	}

	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, utils.InternalServerError("failed to create download directory", err)
	}
	path := filepath.Join(saveDir, filename)
	if err := os.WriteFile(path, att.Data, 0o600); err != nil {
		return nil, utils.InternalServerError("failed to save attachment", err)
	}

	utils.Log.WithFields(map[string]interface{}{
		"email_id": emailID,
		"path":     path,
		"size":     len(att.Data),
	}).Info("attachment saved")

	return &models.DownloadResult{
		Status:      "downloaded",
		Filename:    filename,
		Path:        path,
		Size:        len(att.Data),
		ContentType: att.ContentType,
	}, nil
}

func (g *Gateway) fetchRaw(ctx context.Context, folder string, uid uint32, emailID string) ([]byte, error) {
	s, err := g.open(ctx)
	if err != nil {
		return nil, err
	}
	defer release(s)

	if err := selectFolder(s, folder, true); err != nil {
		return nil, err
	}

	raw, err := s.FetchRaw(uid)
	if errors.Is(err, mailbox.ErrMessageNotFound) {
		return nil, utils.NotFoundError("email not found: "+emailID, err)
	}
	if err != nil {
		return nil, utils.ProtocolError("failed to fetch email: "+emailID, err)
	}
	return raw, nil
}

// validateFilename accepts only a plain base name
func validateFilename(name string) error {
	if name == "" {
		return utils.ValidationError("filename is required")
	}
	if strings.ContainsRune(name, 0) {
		return utils.ValidationError("filename must not contain null bytes")
	}
	if strings.ContainsAny(name, "/\\") {
		return utils.ValidationError("filename must not contain path separators")
	}
	if name == "." || name == ".." {
		return utils.ValidationError("filename must not be '.' or '..'")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return utils.ValidationError("filename must not contain control characters")
		}
	}
	return nil
}
