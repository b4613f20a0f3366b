package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mailgate/policy"
)

// DefaultConfigPath is used when MAILGATE_CONFIG is unset
const DefaultConfigPath = "config.toml"

type ServerConfig struct {
	Port              int `toml:"port"`
	RequestsPerMinute int `toml:"requests_per_minute"`
}

type AccountConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type IMAPConfig struct {
	Server  string `toml:"server"`
	Port    int    `toml:"port"`
	Timeout int    `toml:"timeout"` // seconds
}

type SMTPConfig struct {
	Server      string `toml:"server"`
	Port        int    `toml:"port"`
	UseSTARTTLS bool   `toml:"use_starttls"` // true for port 587, false for port 465
	Timeout     int    `toml:"timeout"`      // seconds
	HeloName    string `toml:"helo_name"`    // EHLO name; empty uses the hostname
}

type JWTConfig struct {
	Secret string `toml:"secret"` // Signs caller bearer tokens; empty disables auth
}

// LimitsConfig bounds what a single call can read or send
type LimitsConfig struct {
	MaxReadBodyChars       int  `toml:"max_read_body_chars"`
	MaxSendBodyChars       int  `toml:"max_send_body_chars"`
	SendRateLimitPerMinute int  `toml:"send_rate_limit_per_minute"`
	EnableInjectionLogging bool `toml:"enable_injection_logging"`
	InjectionSignalsMax    int  `toml:"injection_signals_max"`
}

// PolicyConfig is the outbound recipient allowlist
type PolicyConfig struct {
	AllowedRecipients       []string `toml:"allowed_recipients"`
	AllowedRecipientDomains []string `toml:"allowed_recipient_domains"`
	DenyWhenUnconfigured    bool     `toml:"deny_all_when_unconfigured"`
}

// FeaturesConfig gates the higher-risk tools
type FeaturesConfig struct {
	EnableFileDownload bool   `toml:"enable_file_download"`
	EnableMutations    bool   `toml:"enable_mutations"`
	DownloadDir        string `toml:"download_dir"`
	TrashFolder        string `toml:"trash_folder"`
}

type AuditConfig struct {
	DBPath string `toml:"db_path"` // empty disables the audit log
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type SSLConfig struct {
	Enabled    bool   `toml:"enabled"`
	CertFile   string `toml:"cert_file"` // Path to fullchain.pem
	KeyFile    string `toml:"key_file"`  // Path to privkey.pem
	Domain     string `toml:"domain"`    // Domain name for HSTS
	HSTSMaxAge int    `toml:"hsts_max_age"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Account  AccountConfig  `toml:"account"`
	IMAP     IMAPConfig     `toml:"imap"`
	SMTP     SMTPConfig     `toml:"smtp"`
	JWT      JWTConfig      `toml:"jwt"`
	Limits   LimitsConfig   `toml:"limits"`
	Policy   PolicyConfig   `toml:"policy"`
	Features FeaturesConfig `toml:"features"`
	Audit    AuditConfig    `toml:"audit"`
	Log      LogConfig      `toml:"log"`
	SSL      SSLConfig      `toml:"ssl"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	var config Config

	config.Server.Port = 3000
	config.Server.RequestsPerMinute = 120

	config.IMAP.Server = "imap.yandex.com"
	config.IMAP.Port = 993
	config.IMAP.Timeout = 30

	// Port stays 0 so GetPort can follow UseSTARTTLS
	config.SMTP.UseSTARTTLS = true
	config.SMTP.Timeout = 30

	config.Limits.MaxReadBodyChars = 20000
	config.Limits.MaxSendBodyChars = 10000
	config.Limits.SendRateLimitPerMinute = 5
	config.Limits.EnableInjectionLogging = true
	config.Limits.InjectionSignalsMax = 10

	config.Features.DownloadDir = "~/Downloads"
	config.Features.TrashFolder = "Trash"

	config.Log.Level = "info"

	config.SSL.HSTSMaxAge = 31536000 // 1 year

	return &config
}

// LoadConfig layers the TOML file at path (optional) and then environment
// variables over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	// Load config file
	if _, err := toml.DecodeFile(path, config); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyEnv(config)

	// If SMTP server is not specified, derive it from IMAP server
	if config.SMTP.Server == "" {
		config.SMTP.Server = config.IMAP.Server
		// Convert imap.server.com to smtp.server.com
		if strings.HasPrefix(config.SMTP.Server, "imap.") {
			config.SMTP.Server = "smtp" + config.SMTP.Server[4:]
		}
	}

	dir, err := expandHome(config.Features.DownloadDir)
	if err != nil {
		return nil, err
	}
	config.Features.DownloadDir = dir

	return config, nil
}

// Path returns the config file location from MAILGATE_CONFIG
func Path() string {
	return envOrDefault("MAILGATE_CONFIG", DefaultConfigPath)
}

func applyEnv(c *Config) {
	c.Account.Email = envOrDefault("MAIL_EMAIL", c.Account.Email)
	c.Account.Password = envOrDefault("MAIL_PASSWORD", c.Account.Password)

	c.IMAP.Server = envOrDefault("IMAP_SERVER", c.IMAP.Server)
	c.IMAP.Port = envOrDefaultInt("IMAP_PORT", c.IMAP.Port)
	c.SMTP.Server = envOrDefault("SMTP_SERVER", c.SMTP.Server)
	c.SMTP.Port = envOrDefaultInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.UseSTARTTLS = envOrDefaultBool("SMTP_USE_STARTTLS", c.SMTP.UseSTARTTLS)
	c.SMTP.HeloName = envOrDefault("SMTP_HELO_NAME", c.SMTP.HeloName)

	c.Limits.MaxReadBodyChars = envOrDefaultInt("MAX_READ_BODY_CHARS", c.Limits.MaxReadBodyChars)
	c.Limits.MaxSendBodyChars = envOrDefaultInt("MAX_SEND_BODY_CHARS", c.Limits.MaxSendBodyChars)
	c.Limits.SendRateLimitPerMinute = envOrDefaultInt("SEND_RATE_LIMIT_PER_MINUTE", c.Limits.SendRateLimitPerMinute)
	c.Limits.EnableInjectionLogging = envOrDefaultBool("ENABLE_INJECTION_LOGGING", c.Limits.EnableInjectionLogging)
	c.Limits.InjectionSignalsMax = envOrDefaultInt("INJECTION_SIGNALS_MAX", c.Limits.InjectionSignalsMax)

	c.Policy.AllowedRecipients = envOrDefaultList("ALLOWED_RECIPIENTS", c.Policy.AllowedRecipients)
	c.Policy.AllowedRecipientDomains = envOrDefaultList("ALLOWED_RECIPIENT_DOMAINS", c.Policy.AllowedRecipientDomains)
	c.Policy.DenyWhenUnconfigured = envOrDefaultBool("DENY_ALL_WHEN_UNCONFIGURED", c.Policy.DenyWhenUnconfigured)

	c.Features.EnableFileDownload = envOrDefaultBool("ENABLE_FILE_DOWNLOAD", c.Features.EnableFileDownload)
	c.Features.EnableMutations = envOrDefaultBool("ENABLE_MUTATIONS", c.Features.EnableMutations)
	c.Features.DownloadDir = envOrDefault("DOWNLOAD_DIR", c.Features.DownloadDir)
	c.Features.TrashFolder = envOrDefault("TRASH_FOLDER", c.Features.TrashFolder)

	c.Server.Port = envOrDefaultInt("SERVER_PORT", c.Server.Port)
	c.Server.RequestsPerMinute = envOrDefaultInt("REQUEST_RATE_PER_MINUTE", c.Server.RequestsPerMinute)
	c.JWT.Secret = envOrDefault("TOOL_AUTH_SECRET", c.JWT.Secret)

	c.Audit.DBPath = envOrDefault("AUDIT_DB_PATH", c.Audit.DBPath)
	c.Log.Level = envOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.File = envOrDefault("LOG_FILE", c.Log.File)
}

// Helper method to get the appropriate SMTP port based on encryption
func (c *SMTPConfig) GetPort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.UseSTARTTLS {
		return 587 // STARTTLS port
	}
	return 465 // SSL/TLS port
}

// IMAPTimeout returns the IMAP dial and command timeout
func (c *Config) IMAPTimeout() time.Duration {
	return time.Duration(c.IMAP.Timeout) * time.Second
}

// SMTPTimeout returns the SMTP command timeout
func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTP.Timeout) * time.Second
}

// Validate checks settings the server cannot start without
func (c *Config) Validate() error {
	if c.Account.Email == "" || c.Account.Password == "" {
		return errors.New("MAIL_EMAIL and MAIL_PASSWORD must be set")
	}
	if c.SSL.Enabled {
		if err := c.ValidateSSL(); err != nil {
			return fmt.Errorf("SSL configuration error: %w", err)
		}
	}
	return nil
}

// ValidateSSL checks if the SSL configuration is valid
func (c *Config) ValidateSSL() error {
	if !c.SSL.Enabled {
		return nil
	}

	if c.SSL.CertFile == "" {
		return fmt.Errorf("SSL certificate file path is required")
	}

	if c.SSL.KeyFile == "" {
		return fmt.Errorf("SSL key file path is required")
	}

	// Try loading the certificates to verify they're valid
	_, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load SSL certificates: %w", err)
	}

	return nil
}

// GetSecurityHeaders returns extra response headers for TLS deployments
func (c *Config) GetSecurityHeaders() map[string]string {
	headers := make(map[string]string)

	if c.SSL.Enabled && c.SSL.Domain != "" {
		headers["Strict-Transport-Security"] = fmt.Sprintf("max-age=%d; includeSubDomains", c.SSL.HSTSMaxAge)
	}

	return headers
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return policy.ParseCSV(v)
}
