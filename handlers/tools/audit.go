package tools

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"mailgate/models"
	"mailgate/utils"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditReader is the read side of the audit log. *storage.AuditLog
// satisfies it.
type AuditReader interface {
	RecentSends(n int) ([]models.SendRecord, error)
	RecentSignals(n int) ([]models.SignalRecord, error)
}

// AuditHandler serves read-only views of recorded sends and signals
type AuditHandler struct {
	audit AuditReader
}

// NewAuditHandler wraps audit for the HTTP surface
func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Routes mounts the endpoints on r
func (h *AuditHandler) Routes(r fiber.Router) {
	r.Get("/audit/sends", h.Sends)
	r.Get("/audit/signals", h.Signals)
}

// Sends returns the newest send records, newest first
func (h *AuditHandler) Sends(c *fiber.Ctx) error {
	n, err := auditLimit(c)
	if err != nil {
		return err
	}
	recs, err := h.audit.RecentSends(n)
	if err != nil {
		return utils.InternalServerError("failed to read audit log", err)
	}
	if recs == nil {
		recs = []models.SendRecord{}
	}
	return c.JSON(fiber.Map{"sends": recs})
}

// Signals returns the newest injection signal records, newest first
func (h *AuditHandler) Signals(c *fiber.Ctx) error {
	n, err := auditLimit(c)
	if err != nil {
		return err
	}
	recs, err := h.audit.RecentSignals(n)
	if err != nil {
		return utils.InternalServerError("failed to read audit log", err)
	}
	if recs == nil {
		recs = []models.SignalRecord{}
	}
	return c.JSON(fiber.Map{"signals": recs})
}

func auditLimit(c *fiber.Ctx) (int, error) {
	n := c.QueryInt("limit", defaultAuditLimit)
	if n < 1 || n > maxAuditLimit {
		return 0, utils.ValidationError(fmt.Sprintf("limit must be between 1 and %d", maxAuditLimit))
	}
	return n, nil
}
