// handlers/campaign_routes.go
package handlers

import (
	"time"

	"token-vesting-service/models"
	"token-vesting-service/services"

	"github.com/gofiber/fiber/v2"
)

type CampaignHandler struct {
	Campaigns *services.CampaignService
	Grants    *services.GrantService
	Summaries *services.SummaryService
	Now       func() time.Time
}

func (h *CampaignHandler) register(admin fiber.Router) {
	admin.Post("/campaigns", h.CreateCampaign)
	admin.Get("/campaigns", h.ListCampaigns)
	admin.Get("/campaigns/:id", h.GetCampaign)
	admin.Patch("/campaigns/:id/status", h.UpdateCampaignStatus)
	admin.Get("/campaigns/:id/summary", h.CampaignSummary)
	admin.Get("/campaigns/:id/grants", h.CampaignGrants)
}

// CreateCampaign creates a new campaign (Admin only)
func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req services.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	campaign, err := h.Campaigns.Create(c.UserContext(), req, h.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.Campaigns.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaigns)
}

// GetCampaign accepts the campaign id or slug
func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.Campaigns.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(campaign)
}

// UpdateCampaignStatus moves a campaign between draft, active and paused, or closes it for good
func (h *CampaignHandler) UpdateCampaignStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.CampaignStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	campaign, err := h.Campaigns.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	updated, err := h.Campaigns.SetStatus(c.UserContext(), campaign.ID, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

func (h *CampaignHandler) CampaignSummary(c *fiber.Ctx) error {
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	campaign, err := h.Campaigns.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	stats, err := h.Summaries.ForCampaign(c.UserContext(), campaign.ID, at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *CampaignHandler) CampaignGrants(c *fiber.Ctx) error {
	at, err := asOf(c, h.Now)
	if err != nil {
		return badRequest(c, "as_of must be RFC3339")
	}
	campaign, err := h.Campaigns.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	grants, err := h.Grants.ListByCampaign(c.UserContext(), campaign.ID, at)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(grants)
}
