// handlers/grant_routes.go
package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"token-vesting-service/ledger"
	"token-vesting-service/middleware"
	"token-vesting-service/models"
	"token-vesting-service/services"
	"token-vesting-service/vesting"

	"github.com/gofiber/fiber/v2"
)

type GrantHandler struct {
	Grants    *services.GrantService
	Claims    *services.ClaimService
	Campaigns *services.CampaignService
	Summaries *services.SummaryService
	Stream    *services.GrantStream
	Auth      middleware.TokenValidator
	Now       func() time.Time
}

func (h *GrantHandler) registerStream(app *fiber.App) {
	// 📡 SSE authenticates by query token, so it is registered ahead of the user group
	if h.Stream != nil && h.Auth != nil {
		app.Get("/user/grants/stream", middleware.SSEAuthMiddleware(h.Auth), h.Stream.StreamUserGrantsSSE)
	}
}

func (h *GrantHandler) register(user, admin fiber.Router) {
	user.Get("/grants", h.ListMyGrants)
	user.Get("/grants/summary", h.MySummary)
	user.Get("/grants/:id", h.GetMyGrant)
	user.Post("/grants/:id/claim", h.ClaimGrant)

	admin.Post("/grants", h.CreateGrant)
	admin.Get("/grants/:id", h.GetGrant)
	admin.Post("/grants/:id/expire", h.ExpireGrant)
	admin.Get("/beneficiaries/:user_id/grants", h.BeneficiaryGrants)
	admin.Get("/beneficiaries/:user_id/summary", h.BeneficiarySummary)
}

// ListMyGrants returns the caller's grants, optionally filtered by status or campaign
func (h *GrantHandler) ListMyGrants(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}

	status := models.GrantStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return badRequest(c, "Invalid status filter")
	}
	campaignID := c.Query("campaign_id")

	grants, err := h.Grants.ListByBeneficiary(c.UserContext(), userID, at)
	if err != nil {
		return respondError(c, err)
	}

	filtered := grants[:0]
	for _, g := range grants {
		// status filter applies to the read-time status (vesting grants may read as completed)
		if status != "" && g.Status != status {
			continue
		}
		if campaignID != "" && g.CampaignID != campaignID {
			continue
		}
		filtered = append(filtered, g)
	}
	return c.JSON(filtered)
}

func (h *GrantHandler) MySummary(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	summary, err := h.Summaries.ForBeneficiary(c.UserContext(), userID, at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

type grantDetail struct {
	*models.Grant
	Tranches []vesting.Tranche `json:"tranches"`
}

// GetMyGrant returns one of the caller's grants with its release schedule. Other
// users' grants are reported as not found.
func (h *GrantHandler) GetMyGrant(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	g, err := h.ownedGrant(c, userID, at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail(g))
}

// ClaimGrant executes the claim at the current instant. Failures carry enough context
// for the UI: the current grant for already_claimed, the deadline for campaign_expired.
func (h *GrantHandler) ClaimGrant(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	now := h.Now()

	g, err := h.ownedGrant(c, userID, now)
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.Claims.Claim(c.UserContext(), g.ID, now)
	switch {
	case err == nil:
		return c.JSON(result)
	case errors.Is(err, services.ErrAlreadyClaimed):
		current, getErr := h.Grants.Get(c.UserContext(), g.ID, now)
		if getErr != nil {
			return respondError(c, getErr)
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Grant already claimed",
			"code":  "already_claimed",
			"grant": current,
		})
	case errors.Is(err, services.ErrCampaignExpired):
		body := fiber.Map{
			"error":  "Campaign claim deadline has passed",
			"code":   "campaign_expired",
			"reason": "this grant was not claimed before its campaign closed",
		}
		if campaign, cErr := h.Campaigns.Get(c.UserContext(), g.CampaignID); cErr == nil && campaign.ClaimDeadline != nil {
			body["claim_deadline"] = campaign.ClaimDeadline
			body["reason"] = fmt.Sprintf("claims for %s closed at %s", campaign.Name, campaign.ClaimDeadline.Format(time.RFC3339))
		}
		return c.Status(fiber.StatusGone).JSON(body)
	default:
		return respondError(c, err)
	}
}

func (h *GrantHandler) ownedGrant(c *fiber.Ctx, userID string, at time.Time) (*models.Grant, error) {
	g, err := h.Grants.Get(c.UserContext(), c.Params("id"), at)
	if err != nil {
		return nil, err
	}
	if g.Beneficiary != userID {
		log.Printf("🚫 [GRANT] %s requested grant %s owned by someone else", userID, g.ID)
		return nil, ledger.ErrNotFound
	}
	return g, nil
}

func detail(g *models.Grant) grantDetail {
	tranches := vesting.Tranches(g)
	if tranches == nil {
		tranches = []vesting.Tranche{}
	}
	return grantDetail{Grant: g, Tranches: tranches}
}

// --- Admin Handlers ---

// CreateGrant issues a grant (Admin only)
func (h *GrantHandler) CreateGrant(c *fiber.Ctx) error {
	var req services.CreateGrantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	g, err := h.Grants.Create(c.UserContext(), req, h.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (h *GrantHandler) GetGrant(c *fiber.Ctx) error {
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	g, err := h.Grants.Get(c.UserContext(), c.Params("id"), at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail(g))
}

// ExpireGrant expires an unclaimed grant whose campaign deadline has passed (Admin only)
func (h *GrantHandler) ExpireGrant(c *fiber.Ctx) error {
	g, err := h.Grants.Expire(c.UserContext(), c.Params("id"), h.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(g)
}

func (h *GrantHandler) BeneficiaryGrants(c *fiber.Ctx) error {
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	grants, err := h.Grants.ListByBeneficiary(c.UserContext(), c.Params("user_id"), at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(grants)
}

func (h *GrantHandler) BeneficiarySummary(c *fiber.Ctx) error {
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	summary, err := h.Summaries.ForBeneficiary(c.UserContext(), c.Params("user_id"), at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
