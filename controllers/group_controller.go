package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type GroupController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewGroupController(db *gorm.DB, logger *log.Logger) *GroupController {
	return &GroupController{DB: db, Logger: logger}
}

type targetInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"required"`
	Position  string `json:"position"`
}

type groupRequest struct {
	Name    string        `json:"name" validate:"required,max=200"`
	Targets []targetInput `json:"targets" validate:"required,min=1,dive"`
}

// CreateGroup stores a target group. Every address is format-checked before
// anything is written.
func (gc *GroupController) CreateGroup(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input groupRequest
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

	for _, t := range input.Targets {
		if err := utils.ValidateTargetEmail(t.Email); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	group := models.Group{
		UserID: user.ID,
		Name:   input.Name,
	}
	for _, t := range input.Targets {
		group.Targets = append(group.Targets, models.Target{
			FirstName: t.FirstName,
			LastName:  t.LastName,
			Email:     t.Email,
			Position:  t.Position,
		})
	}

	if err := gc.DB.Create(&group).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create group",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"group": group})
}

func (gc *GroupController) GetGroups(c *fiber.Ctx) error {
	var groups []models.Group
	if err := gc.DB.Preload("Targets").Order("created_at DESC").
		Find(&groups).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch groups",
		})
	}
	return c.JSON(fiber.Map{"groups": groups})
}

func (gc *GroupController) GetGroup(c *fiber.Ctx) error {
	var group models.Group
	if err := gc.DB.Preload("Targets").First(&group, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}
	return c.JSON(fiber.Map{"group": group})
}

// UpdateGroup replaces the group's name and target roster. Existing
// campaigns keep their materialized recipients; edits only affect future
// launches.
func (gc *GroupController) UpdateGroup(c *fiber.Ctx) error {
	var group models.Group
	if err := gc.DB.First(&group, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	var input groupRequest
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
	for _, t := range input.Targets {
		if err := utils.ValidateTargetEmail(t.Email); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	tx := gc.DB.Begin()
	if err := tx.Model(&group).Update("name", input.Name).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update group",
		})
	}
	if err := tx.Where("group_id = ?", group.ID).
		Delete(&models.Target{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update targets",
		})
	}
	for _, t := range input.Targets {
		target := models.Target{
			GroupID:   group.ID,
			FirstName: t.FirstName,
			LastName:  t.LastName,
			Email:     t.Email,
			Position:  t.Position,
		}
		if err := tx.Create(&target).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update targets",
			})
		}
	}
	tx.Commit()

	gc.DB.Preload("Targets").First(&group, group.ID)
	return c.JSON(fiber.Map{"group": group})
}

func (gc *GroupController) DeleteGroup(c *fiber.Ctx) error {
	var group models.Group
	if err := gc.DB.First(&group, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	var inUse int64
	gc.DB.Model(&models.Campaign{}).Where("group_id = ?", group.ID).Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Group is used by existing campaigns",
		})
	}

	tx := gc.DB.Begin()
	if err := tx.Where("group_id = ?", group.ID).
		Delete(&models.Target{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete targets",
		})
	}
	if err := tx.Delete(&group).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete group",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{"success": true})
}
