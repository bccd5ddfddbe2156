package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Mailer *utils.CampaignMailer
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{
		DB:     db,
		Logger: logger,
		Mailer: utils.NewCampaignMailer(db, logger),
	}
}

type createCampaignRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	TemplateID    uint   `json:"template_id" validate:"required"`
	PageID        uint   `json:"page_id" validate:"required"`
	SMTPProfileID uint   `json:"smtp_profile_id" validate:"required"`
	GroupID       uint   `json:"group_id" validate:"required"`
	URL           string `json:"url" validate:"required,url"`
}

// CreateCampaign creates a draft campaign and materializes one recipient
// per group target, each with a fresh tracking identifier.
func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input createCampaignRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Referenced collaborators must exist before the draft is accepted
	for _, ref := range []struct {
		model interface{}
		id    uint
		name  string
	}{
		{&models.Template{}, input.TemplateID, "template"},
		{&models.Page{}, input.PageID, "page"},
		{&models.SMTPProfile{}, input.SMTPProfileID, "smtp profile"},
	} {
		if err := cc.DB.First(ref.model, ref.id).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unknown " + ref.name,
			})
		}
	}

	var group models.Group
	if err := cc.DB.Preload("Targets").First(&group, input.GroupID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown group",
		})
	}

	tx := cc.DB.Begin()

	campaign := models.Campaign{
		UserID:        user.ID,
		Name:          input.Name,
		Status:        models.CampaignStatusDraft,
		TemplateID:    input.TemplateID,
		PageID:        input.PageID,
		SMTPProfileID: input.SMTPProfileID,
		GroupID:       input.GroupID,
		URL:           input.URL,
	}
	if err := tx.Create(&campaign).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	for _, target := range group.Targets {
		rcpt := models.Recipient{
			CampaignID: campaign.ID,
			TrackingID: utils.GenerateTrackingID(),
			FirstName:  target.FirstName,
			LastName:   target.LastName,
			Email:      target.Email,
			Position:   target.Position,
			Status:     "pending",
		}
		if err := tx.Create(&rcpt).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to materialize recipients",
			})
		}
	}

	tx.Commit()

	utils.LogEvent("campaign_created", map[string]interface{}{
		"campaign_id": campaign.ID,
		"recipients":  len(group.Targets),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Campaign created successfully",
		"campaign": campaign,
	})
}

// GetCampaigns returns all campaigns for the user, stats included.
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaigns []models.Campaign
	if err := cc.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}

	out := make([]fiber.Map, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, fiber.Map{
			"campaign": campaigns[i],
			"stats":    cc.campaignStats(&campaigns[i]),
		})
	}
	return c.JSON(out)
}

// GetCampaign returns a single campaign with stats.
func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	return c.JSON(fiber.Map{
		"campaign": campaign,
		"stats":    cc.campaignStats(&campaign),
	})
}

// UpdateCampaign edits draft campaign settings. Launched campaigns are
// immutable apart from the complete transition.
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only draft campaigns can be edited",
		})
	}

	var input struct {
		Name          string `json:"name"`
		TemplateID    uint   `json:"template_id"`
		PageID        uint   `json:"page_id"`
		SMTPProfileID uint   `json:"smtp_profile_id"`
		URL           string `json:"url"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if input.Name != "" {
		campaign.Name = input.Name
	}
	if input.TemplateID != 0 {
		campaign.TemplateID = input.TemplateID
	}
	if input.PageID != 0 {
		campaign.PageID = input.PageID
	}
	if input.SMTPProfileID != 0 {
		campaign.SMTPProfileID = input.SMTPProfileID
	}
	if input.URL != "" {
		campaign.URL = input.URL
	}

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}

	return c.JSON(fiber.Map{"campaign": campaign})
}

type scheduleCampaignRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// ScheduleCampaign queues a draft for a future launch. Rescheduling a
// not-yet-launched campaign just moves the time; launched campaigns are
// immutable.
func (cc *CampaignController) ScheduleCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var input scheduleCampaignRequest
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if !input.ScheduledAt.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Scheduled time must be in the future",
		})
	}

	res := cc.DB.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaign.ID,
			[]string{models.CampaignStatusDraft, models.CampaignStatusScheduled}).
		Updates(map[string]interface{}{
			"status":       models.CampaignStatusScheduled,
			"scheduled_at": input.ScheduledAt,
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to schedule campaign",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign is already launched",
		})
	}

	utils.LogEvent("campaign_scheduled", map[string]interface{}{
		"campaign_id":  campaign.ID,
		"scheduled_at": input.ScheduledAt,
	})

	return c.JSON(fiber.Map{
		"message": "Campaign scheduled successfully",
	})
}

// LaunchCampaign performs the one-way draft->launched transition and kicks
// off background sending. The transition is a conditional update so a
// double-launch race resolves to a single send run.
func (cc *CampaignController) LaunchCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	res := cc.DB.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaign.ID,
			[]string{models.CampaignStatusDraft, models.CampaignStatusScheduled}).
		Updates(map[string]interface{}{
			"status":      models.CampaignStatusLaunched,
			"launched_at": time.Now(),
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to launch campaign",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Campaign is already launched",
		})
	}

	go cc.Mailer.Run(campaign.ID)

	utils.LogEvent("campaign_launched", map[string]interface{}{
		"campaign_id": campaign.ID,
	})

	return c.JSON(fiber.Map{
		"message": "Campaign launched successfully",
	})
}

// CompleteCampaign is the explicit one-way terminal transition.
func (cc *CampaignController) CompleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	res := cc.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusLaunched).
		Updates(map[string]interface{}{
			"status":       models.CampaignStatusCompleted,
			"completed_at": time.Now(),
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete campaign",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only launched campaigns can be completed",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Campaign completed",
	})
}

// DeleteCampaign removes a campaign and, through the cascade, its recipients.
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	tx := cc.DB.Begin()
	if err := tx.Where("campaign_id = ?", campaign.ID).
		Delete(&models.Recipient{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete recipients",
		})
	}
	if err := tx.Delete(&campaign).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete campaign",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{"success": true})
}

// GetCampaignStats returns the derived aggregate view.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	return c.JSON(cc.campaignStats(&campaign))
}

func (cc *CampaignController) campaignStats(campaign *models.Campaign) models.CampaignStats {
	var total int64
	cc.DB.Model(&models.Recipient{}).Where("campaign_id = ?", campaign.ID).Count(&total)
	return campaign.BuildStats(int(total))
}
