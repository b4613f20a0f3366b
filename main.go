package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"mailgate/config"
	"mailgate/gateway"
	"mailgate/handlers/tools"
	"mailgate/mailbox"
	"mailgate/middleware"
	"mailgate/policy"
	"mailgate/storage"
	"mailgate/utils"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for this caller and exit")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of an issued token (0 means no expiry)")
	flag.Parse()

	// Load .env before config so it can feed the environment overrides
	if err := config.LoadEnv(".env"); err != nil {
		fatal("Failed to load .env: %v", err)
	}

	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	logFile, err := utils.Configure(cfg.Log.File, utils.ParseLogLevel(cfg.Log.Level))
	if err != nil {
		fatal("Failed to open log: %v", err)
	}
	defer logFile.Close()

	if *issueFor != "" {
		if cfg.JWT.Secret == "" {
			fatal("TOOL_AUTH_SECRET must be set to issue tokens")
		}
		token, err := middleware.IssueToken([]byte(cfg.JWT.Secret), *issueFor, *tokenTTL)
		if err != nil {
			fatal("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration: %v", err)
	}

	var auditor gateway.Auditor
	var auditReader tools.AuditReader
	if cfg.Audit.DBPath != "" {
		audit, err := storage.OpenAuditLog(cfg.Audit.DBPath)
		if err != nil {
			fatal("Failed to open audit log: %v", err)
		}
		defer audit.Close()
		auditor = audit
		auditReader = audit
	}

	gw := newGateway(cfg, auditor)
	handler := tools.NewToolHandler(gw, tools.Features{
		EnableFileDownload: cfg.Features.EnableFileDownload,
		EnableMutations:    cfg.Features.EnableMutations,
	})

	app := newApp(cfg, handler, auditReader)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	utils.Log.Info("Starting mailgate on %s for %s", addr, cfg.Account.Email)
	if cfg.SSL.Enabled {
		err = app.ListenTLS(addr, cfg.SSL.CertFile, cfg.SSL.KeyFile)
	} else {
		err = app.Listen(addr)
	}
	if err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}

func newGateway(cfg *config.Config, auditor gateway.Auditor) *gateway.Gateway {
	imapCfg := mailbox.IMAPConfig{
		Server:   cfg.IMAP.Server,
		Port:     cfg.IMAP.Port,
		Email:    cfg.Account.Email,
		Password: cfg.Account.Password,
		Timeout:  cfg.IMAPTimeout(),
	}

	outbound := policy.NewOutboundPolicy(cfg.Policy.AllowedRecipients, cfg.Policy.AllowedRecipientDomains)
	outbound.DenyWhenUnconfigured = cfg.Policy.DenyWhenUnconfigured
	if !outbound.Configured() {
		utils.Log.Warn("No recipient allowlist configured; deny when unconfigured is %v", outbound.DenyWhenUnconfigured)
	}

	return gateway.New(gateway.Config{
		Dialer: gateway.DialerFunc(func(ctx context.Context) (gateway.Session, error) {
			c, err := mailbox.NewClient(ctx, imapCfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}),
		Sender: mailbox.NewSMTPClient(mailbox.SMTPConfig{
			Server:      cfg.SMTP.Server,
			Port:        cfg.SMTP.GetPort(),
			UseSTARTTLS: cfg.SMTP.UseSTARTTLS,
			Email:       cfg.Account.Email,
			Password:    cfg.Account.Password,
			Timeout:     cfg.SMTPTimeout(),
			LocalName:   cfg.SMTP.HeloName,
		}),
		Policy:   outbound,
		Limiter:  middleware.NewSendLimiter(cfg.Limits.SendRateLimitPerMinute),
		Detector: utils.NewDetector(nil, cfg.Limits.InjectionSignalsMax),
		Auditor:  auditor,
		Options: gateway.Options{
			From:                   cfg.Account.Email,
			MaxReadBodyChars:       cfg.Limits.MaxReadBodyChars,
			MaxSendBodyChars:       cfg.Limits.MaxSendBodyChars,
			EnableInjectionLogging: cfg.Limits.EnableInjectionLogging,
			DownloadDir:            cfg.Features.DownloadDir,
			TrashFolder:            cfg.Features.TrashFolder,
		},
	})
}

func newApp(cfg *config.Config, handler *tools.ToolHandler, audit tools.AuditReader) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "mailgate",
		ErrorHandler: tools.ErrorHandler,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	}))

	securityHeaders := cfg.GetSecurityHeaders()
	if len(securityHeaders) > 0 {
		app.Use(func(c *fiber.Ctx) error {
			for k, v := range securityHeaders {
				c.Set(k, v)
			}
			return c.Next()
		})
	}

	app.Use(middleware.RequestThrottle(cfg.Server.RequestsPerMinute, time.Minute))
	app.Use(middleware.BearerAuth(middleware.AuthConfig{
		Secret:  []byte(cfg.JWT.Secret),
		Skipper: func(c *fiber.Ctx) bool { return c.Path() == "/health" },
	}))
	if cfg.JWT.Secret == "" {
		utils.Log.Warn("TOOL_AUTH_SECRET is empty; tool endpoints are unauthenticated")
	}

	handler.Routes(app)
	if audit != nil {
		tools.NewAuditHandler(audit).Routes(app)
	}

	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundError("no route for "+c.Method()+" "+c.Path(), nil)
	})
	return app
}

func fatal(format string, v ...interface{}) {
	utils.Log.Error(format, v...)
	os.Exit(1)
}
