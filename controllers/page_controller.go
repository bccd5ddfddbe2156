package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type PageController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPageController(db *gorm.DB, logger *log.Logger) *PageController {
	return &PageController{DB: db, Logger: logger}
}

type pageRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	HTML               string `json:"html" validate:"required"`
	CaptureCredentials bool   `json:"capture_credentials"`
	CapturePasswords   bool   `json:"capture_passwords"`
	RedirectURL        string `json:"redirect_url" validate:"omitempty,url"`
}

func (pc *PageController) CreatePage(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input pageRequest
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

	page := models.Page{
		UserID:             user.ID,
		Name:               input.Name,
		HTML:               input.HTML,
		CaptureCredentials: input.CaptureCredentials,
		CapturePasswords:   input.CapturePasswords,
		RedirectURL:        input.RedirectURL,
	}
	if err := pc.DB.Create(&page).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create page",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"page": page})
}

func (pc *PageController) GetPages(c *fiber.Ctx) error {
	var pages []models.Page
	if err := pc.DB.Order("created_at DESC").Find(&pages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch pages",
		})
	}
	return c.JSON(fiber.Map{"pages": pages})
}

func (pc *PageController) GetPage(c *fiber.Ctx) error {
	var page models.Page
	if err := pc.DB.First(&page, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Page not found",
		})
	}
	return c.JSON(fiber.Map{"page": page})
}

func (pc *PageController) UpdatePage(c *fiber.Ctx) error {
	var page models.Page
	if err := pc.DB.First(&page, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Page not found",
		})
	}

	var input pageRequest
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

	page.Name = input.Name
	page.HTML = input.HTML
	page.CaptureCredentials = input.CaptureCredentials
	page.CapturePasswords = input.CapturePasswords
	page.RedirectURL = input.RedirectURL
	if err := pc.DB.Save(&page).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update page",
		})
	}

	return c.JSON(fiber.Map{"page": page})
}

func (pc *PageController) DeletePage(c *fiber.Ctx) error {
	var page models.Page
	if err := pc.DB.First(&page, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Page not found",
		})
	}

	var inUse int64
	pc.DB.Model(&models.Campaign{}).Where("page_id = ?", page.ID).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Page is used by existing campaigns",
		})
	}

	if err := pc.DB.Delete(&page).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete page",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
