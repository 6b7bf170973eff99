package handlers

import (
	"errors"
	"log"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/services"
	"token-vesting-service/vesting"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Ordered; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{vesting.ErrInvalidPolicy, fiber.StatusBadRequest, "invalid_policy"},
	{vesting.ErrInvalidPercent, fiber.StatusBadRequest, "invalid_percent"},
	{services.ErrInvalidAmount, fiber.StatusBadRequest, "invalid_amount"},
	{services.ErrPoolExhausted, fiber.StatusBadRequest, "pool_exhausted"},
	{services.ErrInvalidCampaign, fiber.StatusBadRequest, "invalid_campaign"},
	{services.ErrInvalidGrant, fiber.StatusBadRequest, "invalid_request"},
	{ledger.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{services.ErrAlreadyClaimed, fiber.StatusConflict, "already_claimed"},
	{services.ErrCampaignExpired, fiber.StatusGone, "campaign_expired"},
	{services.ErrCampaignInactive, fiber.StatusLocked, "campaign_inactive"},
	{services.ErrCampaignNotOpen, fiber.StatusConflict, "campaign_closed"},
	{services.ErrNotExpirable, fiber.StatusConflict, "not_expirable"},
	{ledger.ErrDuplicateGrant, fiber.StatusConflict, "duplicate_grant"},
	{ledger.ErrDuplicateCampaign, fiber.StatusConflict, "duplicate_campaign"},
	{ledger.ErrConflict, fiber.StatusConflict, "conflict"},
}

// classify returns the HTTP status and machine-readable code for err.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return fiber.StatusInternalServerError, "internal"
}

func respondError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s failed: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "code": code})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": code})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "invalid_request"})
}

// asOf reads an optional RFC3339 `as_of` query parameter, defaulting to now. It lets
// dashboards project balances at a future date.
func asOf(c *fiber.Ctx, now func() time.Time) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return now(), nil
	}
	return time.Parse(time.RFC3339, raw)
}
