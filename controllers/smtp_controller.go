package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type SMTPController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Mail   utils.MailService
}

func NewSMTPController(db *gorm.DB, logger *log.Logger, mail utils.MailService) *SMTPController {
	return &SMTPController{DB: db, Logger: logger, Mail: mail}
}

type smtpProfileRequest struct {
	Name             string `json:"name" validate:"required,max=200"`
	Host             string `json:"host" validate:"required"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	FromAddress      string `json:"from_address" validate:"required,email"`
	IgnoreCertErrors bool   `json:"ignore_cert_errors"`
}

func (sc *SMTPController) CreateProfile(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input smtpProfileRequest
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

	profile := models.SMTPProfile{
		UserID:           user.ID,
		Name:             input.Name,
		Host:             input.Host,
		Username:         input.Username,
		Password:         input.Password,
		FromAddress:      input.FromAddress,
		IgnoreCertErrors: input.IgnoreCertErrors,
	}
	if err := sc.DB.Create(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create SMTP profile",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"profile": profile})
}

func (sc *SMTPController) GetProfiles(c *fiber.Ctx) error {
	var profiles []models.SMTPProfile
	if err := sc.DB.Order("created_at DESC").Find(&profiles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch SMTP profiles",
		})
	}
	return c.JSON(fiber.Map{"profiles": profiles})
}

func (sc *SMTPController) GetProfile(c *fiber.Ctx) error {
	var profile models.SMTPProfile
	if err := sc.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "SMTP profile not found",
		})
	}
	return c.JSON(fiber.Map{"profile": profile})
}

func (sc *SMTPController) UpdateProfile(c *fiber.Ctx) error {
	var profile models.SMTPProfile
	if err := sc.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "SMTP profile not found",
		})
	}

	var input smtpProfileRequest
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

	profile.Name = input.Name
	profile.Host = input.Host
	profile.Username = input.Username
	// Blank password in the request keeps the stored credential
	if input.Password != "" {
		profile.Password = input.Password
	}
	profile.FromAddress = input.FromAddress
	profile.IgnoreCertErrors = input.IgnoreCertErrors

	if err := sc.DB.Save(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update SMTP profile",
		})
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (sc *SMTPController) DeleteProfile(c *fiber.Ctx) error {
	var profile models.SMTPProfile
	if err := sc.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "SMTP profile not found",
		})
	}

	var inUse int64
	sc.DB.Model(&models.Campaign{}).Where("smtp_profile_id = ?", profile.ID).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "SMTP profile is used by existing campaigns",
		})
	}

	if err := sc.DB.Delete(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete SMTP profile",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

type testSendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TestProfile sends a plain probe message through the profile so operators
// can verify credentials before a launch.
func (sc *SMTPController) TestProfile(c *fiber.Ctx) error {
	var profile models.SMTPProfile
	if err := sc.DB.First(&profile, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "SMTP profile not found",
		})
	}

	var input testSendRequest
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

	err := sc.Mail.Send(profile, utils.Email{
		From:    profile.FromAddress,
		To:      input.Email,
		Subject: "SMTP profile test",
		Text:    "This is a delivery test from your phishing simulation console.",
	})
	if err != nil {
		utils.LogError("smtp_test_failed", err, map[string]interface{}{"profile_id": profile.ID})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Test send failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{"message": "Test email sent"})
}
