package controller

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"clariphish/models"
)

// recipientTimeline is one row of the per-recipient campaign report.
type recipientTimeline struct {
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Position    string     `json:"position,omitempty"`
	Status      string     `json:"status"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	Opened      bool       `json:"opened"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	Clicked     bool       `json:"clicked"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Reported    bool       `json:"reported"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`
}

// GetCampaignReport returns one timeline row per recipient, ordered by
// email for stable output.
func (cc *CampaignController) GetCampaignReport(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var recipients []models.Recipient
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).
		Order("email ASC").Find(&recipients).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch recipients",
		})
	}

	rows := make([]recipientTimeline, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, recipientTimeline{
			Email:       r.Email,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Position:    r.Position,
			Status:      r.Status,
			SentAt:      r.SentAt,
			Opened:      r.Opened,
			OpenedAt:    r.OpenedAt,
			Clicked:     r.Clicked,
			ClickedAt:   r.ClickedAt,
			Submitted:   r.Submitted,
			SubmittedAt: r.SubmittedAt,
			Reported:    r.Reported,
			ReportedAt:  r.ReportedAt,
		})
	}

	return c.JSON(fiber.Map{
		"campaign":   campaign.Name,
		"status":     campaign.Status,
		"stats":      cc.campaignStats(&campaign),
		"recipients": rows,
	})
}

// GetSubmissions lists captured form payloads for a campaign, newest first.
func (cc *CampaignController) GetSubmissions(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var recipients []models.Recipient
	if err := cc.DB.Where("campaign_id = ? AND submitted = ?", campaign.ID, true).
		Order("submitted_at DESC").Find(&recipients).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch submissions",
		})
	}

	type submission struct {
		Email       string            `json:"email"`
		SubmittedAt *time.Time        `json:"submitted_at"`
		Payload     map[string]string `json:"payload"`
		IP          string            `json:"ip,omitempty"`
		UserAgent   string            `json:"user_agent,omitempty"`
	}

	out := make([]submission, 0, len(recipients))
	for _, r := range recipients {
		payload := map[string]string{}
		if r.SubmittedData != "" {
			_ = json.Unmarshal([]byte(r.SubmittedData), &payload)
		}
		out = append(out, submission{
			Email:       r.Email,
			SubmittedAt: r.SubmittedAt,
			Payload:     payload,
			IP:          r.LastIP,
			UserAgent:   r.LastUserAgent,
		})
	}

	return c.JSON(fiber.Map{"submissions": out})
}
