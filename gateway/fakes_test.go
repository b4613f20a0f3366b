package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/emersion/go-imap"

	"mailgate/mailbox"
	"mailgate/models"
)

type call struct {
	op  string
	arg interface{}
}

type fakeSession struct {
	folders  []mailbox.Folder
	uids     []uint32
	headers  map[uint32]mailbox.MessageHeader
	messages map[uint32][]byte

	selectErr  error
	copyErr    error
	markErr    error
	expungeErr error

	calls  []call
	closed bool
}

func (s *fakeSession) record(op string, arg interface{}) {
	s.calls = append(s.calls, call{op: op, arg: arg})
}

func (s *fakeSession) ops() []string {
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.op)
	}
	return out
}

func (s *fakeSession) ListFolders() ([]mailbox.Folder, error) {
	s.record("list", nil)
	return s.folders, nil
}

type selectArg struct {
	folder   string
	readOnly bool
}

func (s *fakeSession) Select(folder string, readOnly bool) error {
	s.record("select", selectArg{folder, readOnly})
	return s.selectErr
}

func (s *fakeSession) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	s.record("search", criteria)
	return append([]uint32(nil), s.uids...), nil
}

func (s *fakeSession) FetchHeaders(uids []uint32) ([]mailbox.MessageHeader, error) {
	s.record("headers", append([]uint32(nil), uids...))
	var out []mailbox.MessageHeader
	for _, uid := range uids {
		if h, ok := s.headers[uid]; ok {
			h.UID = uid
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeSession) FetchRaw(uid uint32) ([]byte, error) {
	s.record("fetch", uid)
	raw, ok := s.messages[uid]
	if !ok {
		return nil, mailbox.ErrMessageNotFound
	}
	return raw, nil
}

func (s *fakeSession) Copy(uid uint32, destination string) error {
	s.record("copy", destination)
	return s.copyErr
}

func (s *fakeSession) MarkDeleted(uid uint32) error {
	s.record("mark", uid)
	return s.markErr
}

func (s *fakeSession) Expunge() error {
	s.record("expunge", nil)
	return s.expungeErr
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	session *fakeSession
	err     error
	dials   int
}

func (d *fakeDialer) Dial(ctx context.Context) (Session, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

type sentMessage struct {
	from       string
	recipients []string
	raw        []byte
}

type fakeSender struct {
	err  error
	sent []sentMessage
}

func (s *fakeSender) Send(ctx context.Context, from string, recipients []string, msg []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{from: from, recipients: recipients, raw: msg})
	return nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	sends   []models.SendRecord
	signals []models.SignalRecord
}

func (a *fakeAuditor) RecordSend(rec models.SendRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sends = append(a.sends, rec)
	return nil
}

func (a *fakeAuditor) RecordSignals(rec models.SignalRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, rec)
	return nil
}

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Admit() error {
	l.calls++
	return l.err
}

var errRefused = errors.New("NO [TRYCREATE] mailbox does not exist")
