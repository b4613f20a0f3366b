package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"

	"mailgate/utils"
)

// ErrMessageNotFound is returned when a UID fetch yields no message
var ErrMessageNotFound = errors.New("message not found")

func init() {
	// Lets go-imap decode non-UTF-8 header words in envelopes and search.
	imap.CharsetReader = charset.Reader
}

// IMAPConfig holds what is needed to open an authenticated session
type IMAPConfig struct {
	Server   string
	Port     int
	Email    string
	Password string
	Timeout  time.Duration
}

// Client wraps a logged-in go-imap client
type Client struct {
	client   *client.Client
	username string
}

// Folder is a listed mailbox: Name is readable, RawName is what the
// server calls it on the wire.
type Folder struct {
	Name    string
	RawName string
}

// MessageHeader is the summary fetched for search results
type MessageHeader struct {
	UID     uint32
	Subject string
	From    string
	Date    string
}

// NewClient dials the server over TLS and logs in.
func NewClient(ctx context.Context, cfg IMAPConfig) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port))
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: timeout}, addr, nil)
	if err != nil {
		utils.Log.WithField("addr", addr).Error("IMAP dial failed: %v", err)
		return nil, fmt.Errorf("connection error: %w", err)
	}
	c.Timeout = cfg.Timeout

	if err := c.Login(cfg.Email, cfg.Password); err != nil {
		c.Logout()
		utils.Log.WithField("user", cfg.Email).Error("IMAP login failed: %v", err)
		return nil, fmt.Errorf("login error: %w", err)
	}

	return &Client{client: c, username: cfg.Email}, nil
}

// Close logs out and closes the connection
func (c *Client) Close() error {
	return c.client.Logout()
}

// ListFolders retrieves all mailbox folders
func (c *Client) ListFolders() ([]Folder, error) {
	mailboxChan := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.client.List("", "*", mailboxChan)
	}()

	var folders []Folder
	for mb := range mailboxChan {
		// go-imap hands back names already decoded from modified UTF-7.
		folders = append(folders, Folder{
			Name:    mb.Name,
			RawName: EncodeFolderName(mb.Name),
		})
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// Select opens a folder. The name may be readable or raw modified UTF-7;
// go-imap encodes it on the way out, so raw names are decoded first.
func (c *Client) Select(folder string, readOnly bool) error {
	if _, err := c.client.Select(DecodeFolderName(folder), readOnly); err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}
	return nil
}

// Search runs a UID SEARCH in the selected folder. go-imap tries the UTF-8
// charset first and falls back when the server rejects it.
func (c *Client) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	uids, err := c.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return uids, nil
}

var headerSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{
		Specifier: imap.HeaderSpecifier,
		Fields:    []string{"SUBJECT", "FROM", "DATE"},
	},
	Peek: true,
}

// FetchHeaders fetches subject, sender and date for each UID. Messages the
// server does not return are skipped.
func (c *Client) FetchHeaders(uids []uint32) ([]MessageHeader, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, headerSection.FetchItem()}, messages)
	}()

	byUID := make(map[uint32]MessageHeader, len(uids))
	for msg := range messages {
		body := firstLiteral(msg)
		if body == nil {
			continue
		}
		h, err := parseHeaderFields(body)
		if err != nil {
			utils.Log.WithField("uid", msg.Uid).Warn("skipping unreadable header: %v", err)
			continue
		}
		h.UID = msg.Uid
		byUID[msg.Uid] = h
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch headers: %w", err)
	}

	// Keep the caller's order; servers answer in their own.
	headers := make([]MessageHeader, 0, len(byUID))
	for _, uid := range uids {
		if h, ok := byUID[uid]; ok {
			headers = append(headers, h)
		}
	}
	return headers, nil
}

// FetchRaw returns the full RFC 5322 bytes of one message without setting
// \Seen.
func (c *Client) FetchRaw(uid uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.client.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	var raw []byte
	var readErr error
	for msg := range messages {
		body := firstLiteral(msg)
		if body == nil || raw != nil {
			continue
		}
		raw, readErr = io.ReadAll(body)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch %d: %w", uid, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read %d: %w", uid, readErr)
	}
	if raw == nil {
		return nil, ErrMessageNotFound
	}
	return raw, nil
}

// Copy copies one message to another folder
func (c *Client) Copy(uid uint32, destination string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	if err := c.client.UidCopy(seqset, DecodeFolderName(destination)); err != nil {
		return fmt.Errorf("copy %d to %s: %w", uid, destination, err)
	}
	return nil
}

// MarkDeleted sets \Deleted on one message
func (c *Client) MarkDeleted(uid uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.client.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("flag %d deleted: %w", uid, err)
	}
	return nil
}

// Expunge removes every \Deleted message from the selected folder
func (c *Client) Expunge() error {
	if err := c.client.Expunge(nil); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

// ParseUID converts a caller-supplied message id to a UID
func ParseUID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message id %q", id)
	}
	return uint32(n), nil
}

// firstLiteral returns the only body section requested. Servers echo
// HEADER.FIELDS names in their own case, so matching by section name is
// unreliable.
func firstLiteral(msg *imap.Message) imap.Literal {
	for _, l := range msg.Body {
		if l != nil {
			return l
		}
	}
	return nil
}
