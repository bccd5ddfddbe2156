package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type TemplateController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Generator utils.TextGenerator
}

func NewTemplateController(db *gorm.DB, logger *log.Logger, gen utils.TextGenerator) *TemplateController {
	return &TemplateController{DB: db, Logger: logger, Generator: gen}
}

type templateRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Subject  string `json:"subject" validate:"required,max=500"`
	HTML     string `json:"html" validate:"required"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input templateRequest
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

	tmpl := models.Template{
		UserID:   user.ID,
		Name:     input.Name,
		Subject:  input.Subject,
		HTML:     input.HTML,
		Text:     input.Text,
		Category: input.Category,
	}
	if err := tc.DB.Create(&tmpl).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"template": tmpl})
}

func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	var templates []models.Template
	query := tc.DB.Order("created_at DESC")
	if cat := c.Query("category"); cat != "" {
		query = query.Where("category = ?", cat)
	}
	if err := query.Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}
	return c.JSON(fiber.Map{"templates": templates})
}

func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}
	return c.JSON(fiber.Map{"template": tmpl})
}

func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var input templateRequest
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

	tmpl.Name = input.Name
	tmpl.Subject = input.Subject
	tmpl.HTML = input.HTML
	tmpl.Text = input.Text
	tmpl.Category = input.Category
	if err := tc.DB.Save(&tmpl).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(fiber.Map{"template": tmpl})
}

func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	var tmpl models.Template
	if err := tc.DB.First(&tmpl, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	var inUse int64
	tc.DB.Model(&models.Campaign{}).Where("template_id = ?", tmpl.ID).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Template is used by existing campaigns",
		})
	}

	if err := tc.DB.Delete(&tmpl).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

type generateTemplateRequest struct {
	Scenario string `json:"scenario" validate:"required,max=500"`
	Tone     string `json:"tone"`
}

// GenerateTemplate drafts phishing email copy for a training scenario. The
// output is a draft only; nothing is stored until the operator saves it.
func (tc *TemplateController) GenerateTemplate(c *fiber.Ctx) error {
	if tc.Generator == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Text generation is not configured",
		})
	}

	var input generateTemplateRequest
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

	tone := input.Tone
	if tone == "" {
		tone = "urgent but professional"
	}

	prompt := strings.Join([]string{
		"Write an HTML email body for an authorized internal phishing awareness exercise.",
		"Scenario: " + input.Scenario + ".",
		"Tone: " + tone + ".",
		"Use {{.FirstName}} and {{.LastName}} placeholders for the recipient name",
		"and {{.URL}} as the href of the call-to-action link.",
		"Return only the HTML, no commentary.",
	}, " ")

	html, err := tc.Generator.GenerateText(c.Context(), prompt)
	if err != nil {
		utils.LogError("template_generation_failed", err, map[string]interface{}{"scenario": input.Scenario})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Generation failed",
		})
	}

	return c.JSON(fiber.Map{
		"html": utils.StripCodeFence(html),
	})
}
