package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"clariphish/utils"
)

// ChatController answers learner questions about phishing awareness through
// the text generation boundary. Stateless: every message stands alone.
type ChatController struct {
	Logger    *log.Logger
	Generator utils.TextGenerator
}

func NewChatController(logger *log.Logger, generator utils.TextGenerator) *ChatController {
	return &ChatController{Logger: logger, Generator: generator}
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

func (cc *ChatController) Chat(c *fiber.Ctx) error {
	if cc.Generator == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Chat is not configured",
		})
	}

	var input chatRequest
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

	prompt := strings.Join([]string{
		"You are a security-awareness tutor inside a corporate phishing",
		"training platform. Answer the employee's question about phishing,",
		"email security or safe browsing in plain language, under 200 words.",
		"Question: " + input.Message,
	}, " ")

	reply, err := cc.Generator.GenerateText(c.Context(), prompt)
	if err != nil {
		utils.LogError("chat_failed", err, map[string]interface{}{})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Chat is temporarily unavailable",
		})
	}

	return c.JSON(fiber.Map{
		"reply": strings.TrimSpace(reply),
	})
}
