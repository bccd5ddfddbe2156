package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type AssessmentController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAssessmentController(db *gorm.DB, logger *log.Logger) *AssessmentController {
	return &AssessmentController{DB: db, Logger: logger}
}

type optionInput struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type questionInput struct {
	Text    string        `json:"text" validate:"required"`
	Points  int           `json:"points" validate:"omitempty,min=1"`
	Options []optionInput `json:"options" validate:"required,min=2,dive"`
}

type assessmentRequest struct {
	Title       string          `json:"title" validate:"required,max=300"`
	Description string          `json:"description"`
	Deadline    *time.Time      `json:"deadline"`
	Questions   []questionInput `json:"questions" validate:"required,min=1,dive"`
}

// validateQuestions enforces exactly one correct option per question.
func validateQuestions(questions []questionInput) error {
	for i, q := range questions {
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("question %d must have exactly one correct option", i+1)
		}
	}
	return nil
}

// writeQuestions persists the question set for an assessment inside tx.
func writeQuestions(tx *gorm.DB, assessmentID uint, questions []questionInput) error {
	for qi, q := range questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		question := models.Question{
			AssessmentID: assessmentID,
			Text:         q.Text,
			Order:        qi + 1,
			Points:       points,
		}
		if err := tx.Create(&question).Error; err != nil {
			return err
		}
		for oi, o := range q.Options {
			option := models.AnswerOption{
				QuestionID: question.ID,
				Text:       o.Text,
				IsCorrect:  o.IsCorrect,
				Order:      oi + 1,
			}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateAssessment stores a draft quiz with its full question set.
func (ac *AssessmentController) CreateAssessment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input assessmentRequest
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
	if err := validateQuestions(input.Questions); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	assessment := models.Assessment{
		CreatedBy:   user.ID,
		Title:       input.Title,
		Description: input.Description,
		Deadline:    input.Deadline,
	}

	tx := ac.DB.Begin()
	if err := tx.Create(&assessment).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create assessment",
		})
	}
	if err := writeQuestions(tx, assessment.ID, input.Questions); err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store questions",
		})
	}
	tx.Commit()

	ac.DB.Preload("Questions.Options").First(&assessment, assessment.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"assessment": assessment})
}

// GetAssessments lists every assessment for the admin console.
func (ac *AssessmentController) GetAssessments(c *fiber.Ctx) error {
	var assessments []models.Assessment
	if err := ac.DB.Preload("Questions").Order("created_at DESC").
		Find(&assessments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch assessments",
		})
	}
	return c.JSON(fiber.Map{"assessments": assessments})
}

// GetAssessment returns one assessment with questions and options, answer
// keys included. Admin view.
func (ac *AssessmentController) GetAssessment(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.\"order\" ASC")
	}).Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
		return db.Order("answer_options.\"order\" ASC")
	}).First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}
	return c.JSON(fiber.Map{"assessment": assessment})
}

// UpdateAssessment replaces the metadata and the whole question set. The
// question rewrite is delete-and-recreate inside one transaction. Editing
// is blocked once anyone has an attempt on record.
func (ac *AssessmentController) UpdateAssessment(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	var attempts int64
	ac.DB.Model(&models.Attempt{}).Where("assessment_id = ?", assessment.ID).Count(&attempts)
	if attempts > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Assessment has recorded attempts and can no longer be edited",
		})
	}

	var input assessmentRequest
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
	if err := validateQuestions(input.Questions); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	tx := ac.DB.Begin()

	if err := tx.Model(&assessment).Updates(map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"deadline":    input.Deadline,
	}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update assessment",
		})
	}

	var questionIDs []uint
	tx.Model(&models.Question{}).Where("assessment_id = ?", assessment.ID).
		Pluck("id", &questionIDs)
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).
			Delete(&models.AnswerOption{}).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to rewrite questions",
			})
		}
	}
	if err := tx.Where("assessment_id = ?", assessment.ID).
		Delete(&models.Question{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rewrite questions",
		})
	}
	if err := writeQuestions(tx, assessment.ID, input.Questions); err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rewrite questions",
		})
	}

	tx.Commit()

	ac.DB.Preload("Questions.Options").First(&assessment, assessment.ID)
	return c.JSON(fiber.Map{"assessment": assessment})
}

// PublishAssessment is the one-way draft->published transition.
func (ac *AssessmentController) PublishAssessment(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	res := ac.DB.Model(&models.Assessment{}).
		Where("id = ? AND is_published = ?", assessment.ID, false).
		Update("is_published", true)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to publish assessment",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Assessment is already published",
		})
	}

	utils.LogEvent("assessment_published", map[string]interface{}{
		"assessment_id": assessment.ID,
	})
	return c.JSON(fiber.Map{"message": "Assessment published"})
}

// DeleteAssessment removes a quiz and all dependent rows. Refused once
// anyone has an attempt.
func (ac *AssessmentController) DeleteAssessment(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	var attempts int64
	ac.DB.Model(&models.Attempt{}).Where("assessment_id = ?", assessment.ID).Count(&attempts)
	if attempts > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Assessment has recorded attempts and cannot be deleted",
		})
	}

	tx := ac.DB.Begin()
	var questionIDs []uint
	tx.Model(&models.Question{}).Where("assessment_id = ?", assessment.ID).
		Pluck("id", &questionIDs)
	if len(questionIDs) > 0 {
		if err := tx.Where("question_id IN ?", questionIDs).
			Delete(&models.AnswerOption{}).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to delete assessment",
			})
		}
	}
	if err := tx.Where("assessment_id = ?", assessment.ID).
		Delete(&models.Question{}).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete assessment",
		})
	}
	if err := tx.Delete(&assessment).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete assessment",
		})
	}
	tx.Commit()

	return c.JSON(fiber.Map{"success": true})
}

// GetAssessmentStats aggregates completion and scoring across all active
// non-admin users.
func (ac *AssessmentController) GetAssessmentStats(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	var totalUsers int64
	ac.DB.Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleUser, true).
		Count(&totalUsers)

	var completed []models.Attempt
	if err := ac.DB.Where("assessment_id = ? AND completed_at IS NOT NULL", assessment.ID).
		Find(&completed).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute stats",
		})
	}

	stats := models.AssessmentStats{
		TotalUsers:     int(totalUsers),
		CompletedUsers: len(completed),
		PendingUsers:   int(totalUsers) - len(completed),
	}
	if stats.PendingUsers < 0 {
		stats.PendingUsers = 0
	}

	if len(completed) > 0 {
		var pctSum float64
		passed := 0
		for i := range completed {
			pctSum += completed[i].Percentage()
			if completed[i].Passed() {
				passed++
			}
		}
		stats.AverageScore = pctSum / float64(len(completed))
		stats.PassRate = float64(passed) / float64(len(completed)) * 100
	}

	return c.JSON(stats)
}

// GetAssessmentResults returns the per-user results matrix for one
// assessment: every completed attempt with score, percentage and pass flag.
func (ac *AssessmentController) GetAssessmentResults(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := ac.DB.First(&assessment, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	var attempts []models.Attempt
	if err := ac.DB.Where("assessment_id = ?", assessment.ID).
		Order("started_at ASC").Find(&attempts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch results",
		})
	}

	type resultRow struct {
		UserID      uint       `json:"user_id"`
		Username    string     `json:"username"`
		Status      string     `json:"status"`
		Score       int        `json:"score"`
		TotalPoints int        `json:"total_points"`
		Percentage  float64    `json:"percentage"`
		Passed      bool       `json:"passed"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
	}

	rows := make([]resultRow, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		var user models.User
		ac.DB.First(&user, a.UserID)
		rows = append(rows, resultRow{
			UserID:      a.UserID,
			Username:    user.Username,
			Status:      a.Status(),
			Score:       a.Score,
			TotalPoints: a.TotalPoints,
			Percentage:  a.Percentage(),
			Passed:      a.CompletedAt != nil && a.Passed(),
			CompletedAt: a.CompletedAt,
		})
	}

	return c.JSON(fiber.Map{
		"assessment": assessment.Title,
		"results":    rows,
	})
}
