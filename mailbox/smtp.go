package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"mailgate/utils"
)

// SMTPConfig holds submission server settings
type SMTPConfig struct {
	Server      string
	Port        int
	UseSTARTTLS bool // true for port 587, false for implicit TLS on 465
	Email       string
	Password    string
	Timeout     time.Duration

	// LocalName is sent in EHLO. Empty means the machine hostname.
	LocalName string
	// TLSConfig overrides the default of verifying against Server
	TLSConfig *tls.Config
}

// SMTPClient handles email sending
type SMTPClient struct {
	cfg SMTPConfig
}

// NewSMTPClient creates a new SMTP client
func NewSMTPClient(cfg SMTPConfig) *SMTPClient {
	return &SMTPClient{cfg: cfg}
}

// Send opens a session, authenticates and submits msg to every recipient.
// Recipients are the envelope list, Bcc included.
func (c *SMTPClient) Send(ctx context.Context, from string, recipients []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := utils.Log.WithFields(map[string]interface{}{
		"server":     c.cfg.Server,
		"port":       c.cfg.Port,
		"recipients": len(recipients),
	})
	log.Debug("Connecting to SMTP server")

	client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	auth := sasl.NewPlainClient("", c.cfg.Email, c.cfg.Password)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth failed: %w", err)
	}

	if err := client.SendMail(from, recipients, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}

	if err := client.Quit(); err != nil {
		log.Warn("SMTP quit failed: %v", err)
	}
	return nil
}

// dial connects and leaves the session encrypted and greeted. STARTTLS
// upgrades a plain connection; otherwise TLS starts with the handshake.
func (c *SMTPClient) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(c.cfg.Server, strconv.Itoa(c.cfg.Port))
	conn, err := (&net.Dialer{Timeout: c.cfg.Timeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	tlsCfg := c.tlsConfig()
	var client *smtp.Client
	if c.cfg.UseSTARTTLS {
		client, err = smtp.NewClientStartTLS(conn, tlsCfg)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("starttls failed: %w", err)
		}
	} else {
		client = smtp.NewClient(tls.Client(conn, tlsCfg))
	}

	if c.cfg.Timeout > 0 {
		client.CommandTimeout = c.cfg.Timeout
		client.SubmissionTimeout = c.cfg.Timeout
	}

	// After STARTTLS the session must be greeted again, so this is the
	// first EHLO on implicit TLS and the second on STARTTLS.
	if err := client.Hello(c.localName()); err != nil {
		client.Close()
		return nil, fmt.Errorf("hello failed: %w", err)
	}
	return client, nil
}

func (c *SMTPClient) tlsConfig() *tls.Config {
	if c.cfg.TLSConfig == nil {
		return &tls.Config{ServerName: c.cfg.Server}
	}
	cfg := c.cfg.TLSConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = c.cfg.Server
	}
	return cfg
}

func (c *SMTPClient) localName() string {
	if c.cfg.LocalName != "" {
		return c.cfg.LocalName
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "localhost"
}
