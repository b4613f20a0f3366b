package gateway

import (
	"context"

	"github.com/emersion/go-imap"

	"mailgate/mailbox"
	"mailgate/models"
	"mailgate/policy"
	"mailgate/utils"
)

// Session is one authenticated IMAP connection. *mailbox.Client satisfies it.
type Session interface {
	ListFolders() ([]mailbox.Folder, error)
	Select(folder string, readOnly bool) error
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	FetchHeaders(uids []uint32) ([]mailbox.MessageHeader, error)
	FetchRaw(uid uint32) ([]byte, error)
	Copy(uid uint32, destination string) error
	MarkDeleted(uid uint32) error
	Expunge() error
	Close() error
}

// Dialer opens a fresh Session for each operation
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context) (Session, error)

func (f DialerFunc) Dial(ctx context.Context) (Session, error) { return f(ctx) }

// Sender submits a composed message. *mailbox.SMTPClient satisfies it.
type Sender interface {
	Send(ctx context.Context, from string, recipients []string, msg []byte) error
}

// Admitter gates outbound sends. *middleware.SendLimiter satisfies it.
type Admitter interface {
	Admit() error
}

// Auditor records sends and injection signals. *storage.AuditLog satisfies it.
type Auditor interface {
	RecordSend(rec models.SendRecord) error
	RecordSignals(rec models.SignalRecord) error
}

type noopAuditor struct{}

func (noopAuditor) RecordSend(models.SendRecord) error      { return nil }
func (noopAuditor) RecordSignals(models.SignalRecord) error { return nil }

type allowAll struct{}

func (allowAll) Admit() error { return nil }

// Options are the limits and feature settings the gateway applies
type Options struct {
	From                   string
	MaxReadBodyChars       int
	MaxSendBodyChars       int
	EnableInjectionLogging bool
	DownloadDir            string
	TrashFolder            string
}

// Config wires a Gateway. Limiter, Detector and Auditor may be nil.
type Config struct {
	Dialer   Dialer
	Sender   Sender
	Policy   policy.OutboundPolicy
	Limiter  Admitter
	Detector *utils.Detector
	Auditor  Auditor
	Options  Options
}

// Gateway runs mailbox operations behind the trust checks. Every call
// uses its own IMAP session.
type Gateway struct {
	dialer   Dialer
	sender   Sender
	policy   policy.OutboundPolicy
	limiter  Admitter
	detector *utils.Detector
	audit    Auditor
	opts     Options
}

// New builds a Gateway from cfg
func New(cfg Config) *Gateway {
	g := &Gateway{
		dialer:   cfg.Dialer,
		sender:   cfg.Sender,
		policy:   cfg.Policy,
		limiter:  cfg.Limiter,
		detector: cfg.Detector,
		audit:    cfg.Auditor,
		opts:     cfg.Options,
	}
	if g.limiter == nil {
		g.limiter = allowAll{}
	}
	if g.detector == nil {
		g.detector = utils.NewDetector(nil, utils.DefaultSignalsMax)
	}
	if g.audit == nil {
		g.audit = noopAuditor{}
	}
	if g.opts.TrashFolder == "" {
		g.opts.TrashFolder = "Trash"
	}
	return g
}

type callerKey struct{}

// WithCaller tags ctx with the authenticated caller for the audit log
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Caller returns the caller set by WithCaller, or ""
func Caller(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

func (g *Gateway) open(ctx context.Context) (Session, error) {
	if g.dialer == nil {
		return nil, utils.InternalServerError("mailbox is not configured", nil)
	}
	s, err := g.dialer.Dial(ctx)
	if err != nil {
		return nil, utils.ProtocolError("failed to connect to mailbox", err)
	}
	return s, nil
}

func release(s Session) {
	if err := s.Close(); err != nil {
		utils.Log.Debug("closing IMAP session: %v", err)
	}
}

func selectFolder(s Session, folder string, readOnly bool) error {
	if err := s.Select(folder, readOnly); err != nil {
		return utils.ProtocolError("failed to select folder: "+folder, err)
	}
	return nil
}

func parseID(emailID string) (uint32, error) {
	uid, err := mailbox.ParseUID(emailID)
	if err != nil {
		return 0, utils.ValidationError("invalid email id: " + utils.Preview(emailID, 40))
	}
	return uid, nil
}
