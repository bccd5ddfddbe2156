package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type AttemptController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAttemptController(db *gorm.DB, logger *log.Logger) *AttemptController {
	return &AttemptController{DB: db, Logger: logger}
}

// ListAssessments shows published quizzes with the caller's derived status.
func (atc *AttemptController) ListAssessments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var assessments []models.Assessment
	if err := atc.DB.Where("is_published = ?", true).
		Order("created_at DESC").Find(&assessments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch assessments",
		})
	}

	type listRow struct {
		ID          uint       `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Deadline    *time.Time `json:"deadline,omitempty"`
		Status      string     `json:"status"`
	}

	rows := make([]listRow, 0, len(assessments))
	for _, a := range assessments {
		status := models.AttemptNotStarted
		var attempt models.Attempt
		err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, a.ID).
			First(&attempt).Error
		if err == nil {
			status = attempt.Status()
		}
		rows = append(rows, listRow{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Deadline:    a.Deadline,
			Status:      status,
		})
	}

	return c.JSON(fiber.Map{"assessments": rows})
}

// GetAssessment returns a published quiz for taking. Answer keys are
// stripped from the options.
func (atc *AttemptController) GetAssessment(c *fiber.Ctx) error {
	var assessment models.Assessment
	if err := atc.DB.Where("id = ? AND is_published = ?", c.Params("id"), true).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.\"order\" ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_options.\"order\" ASC")
		}).
		First(&assessment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	type optionView struct {
		ID    uint   `json:"id"`
		Text  string `json:"text"`
		Order int    `json:"order"`
	}
	type questionView struct {
		ID      uint         `json:"id"`
		Text    string       `json:"text"`
		Order   int          `json:"order"`
		Points  int          `json:"points"`
		Options []optionView `json:"options"`
	}

	questions := make([]questionView, 0, len(assessment.Questions))
	for _, q := range assessment.Questions {
		qv := questionView{ID: q.ID, Text: q.Text, Order: q.Order, Points: q.Points}
		for _, o := range q.Options {
			qv.Options = append(qv.Options, optionView{ID: o.ID, Text: o.Text, Order: o.Order})
		}
		questions = append(questions, qv)
	}

	return c.JSON(fiber.Map{
		"id":          assessment.ID,
		"title":       assessment.Title,
		"description": assessment.Description,
		"deadline":    assessment.Deadline,
		"questions":   questions,
	})
}

// StartAttempt creates the caller's attempt. Restarting an in-progress
// attempt just returns it; a completed attempt cannot be restarted.
func (atc *AttemptController) StartAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var assessment models.Assessment
	if err := atc.DB.Where("id = ? AND is_published = ?", c.Params("id"), true).
		First(&assessment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assessment not found",
		})
	}

	if assessment.Deadline != nil && time.Now().After(*assessment.Deadline) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "The deadline for this assessment has passed",
		})
	}

	var attempt models.Attempt
	err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, assessment.ID).
		First(&attempt).Error
	if err == nil {
		if attempt.CompletedAt != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Assessment already completed",
			})
		}
		return c.JSON(fiber.Map{"attempt": attempt})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start attempt",
		})
	}

	attempt = models.Attempt{
		UserID:       user.ID,
		AssessmentID: assessment.ID,
		StartedAt:    time.Now(),
	}
	if err := atc.DB.Create(&attempt).Error; err != nil {
		// Unique index on (user, assessment): a concurrent start already won
		if err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, assessment.ID).
			First(&attempt).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to start attempt",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"attempt": attempt})
}

type answerRequest struct {
	QuestionID       uint `json:"question_id" validate:"required"`
	SelectedOptionID uint `json:"selected_option_id" validate:"required"`
}

// SubmitAnswer records the selected option for one question. Re-answering
// the same question before completion replaces the previous choice.
func (atc *AttemptController) SubmitAnswer(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var attempt models.Attempt
	if err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, c.Params("id")).
		First(&attempt).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Attempt not found",
		})
	}
	if attempt.CompletedAt != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Attempt is already completed",
		})
	}

	var input answerRequest
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

	// The question must belong to this assessment and the option to the
	// question, otherwise crafted ids could score foreign answers.
	var question models.Question
	if err := atc.DB.Where("id = ? AND assessment_id = ?",
		input.QuestionID, attempt.AssessmentID).First(&question).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question does not belong to this assessment",
		})
	}
	var option models.AnswerOption
	if err := atc.DB.Where("id = ? AND question_id = ?",
		input.SelectedOptionID, question.ID).First(&option).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Option does not belong to this question",
		})
	}

	points := 0
	if option.IsCorrect {
		points = question.Points
	}

	var response models.Response
	err := atc.DB.Where("attempt_id = ? AND question_id = ?",
		attempt.ID, question.ID).First(&response).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response = models.Response{
			AttemptID:        attempt.ID,
			QuestionID:       question.ID,
			SelectedOptionID: option.ID,
			IsCorrect:        option.IsCorrect,
			PointsEarned:     points,
			AnsweredAt:       time.Now(),
		}
		if err := atc.DB.Create(&response).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to record answer",
			})
		}
	} else if err == nil {
		if err := atc.DB.Model(&response).Updates(map[string]interface{}{
			"selected_option_id": option.ID,
			"is_correct":         option.IsCorrect,
			"points_earned":      points,
			"answered_at":        time.Now(),
		}).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to record answer",
			})
		}
	} else {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record answer",
		})
	}

	return c.JSON(fiber.Map{"message": "Answer recorded"})
}

// CompleteAttempt freezes the attempt. The completion itself is a
// conditional update on CompletedAt so a double submit scores only once.
func (atc *AttemptController) CompleteAttempt(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var attempt models.Attempt
	if err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, c.Params("id")).
		First(&attempt).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Attempt not found",
		})
	}

	var score int64
	atc.DB.Model(&models.Response{}).Where("attempt_id = ?", attempt.ID).
		Select("COALESCE(SUM(points_earned), 0)").Scan(&score)

	var total int64
	atc.DB.Model(&models.Question{}).Where("assessment_id = ?", attempt.AssessmentID).
		Select("COALESCE(SUM(points), 0)").Scan(&total)

	res := atc.DB.Model(&models.Attempt{}).
		Where("id = ? AND completed_at IS NULL", attempt.ID).
		Updates(map[string]interface{}{
			"completed_at": time.Now(),
			"score":        score,
			"total_points": total,
		})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to complete attempt",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Attempt is already completed",
		})
	}

	atc.DB.First(&attempt, attempt.ID)

	utils.LogEvent("attempt_completed", map[string]interface{}{
		"user_id":       user.ID,
		"assessment_id": attempt.AssessmentID,
		"score":         attempt.Score,
		"total_points":  attempt.TotalPoints,
	})

	return c.JSON(fiber.Map{
		"score":        attempt.Score,
		"total_points": attempt.TotalPoints,
		"percentage":   attempt.Percentage(),
		"passed":       attempt.Passed(),
	})
}

// GetResult returns the caller's completed attempt with per-question
// review. The correct option is revealed only for questions answered
// incorrectly.
func (atc *AttemptController) GetResult(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var attempt models.Attempt
	if err := atc.DB.Where("user_id = ? AND assessment_id = ?", user.ID, c.Params("id")).
		First(&attempt).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No attempt on record",
		})
	}
	if attempt.CompletedAt == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Attempt is not completed yet",
		})
	}

	var responses []models.Response
	atc.DB.Where("attempt_id = ?", attempt.ID).Find(&responses)
	byQuestion := make(map[uint]*models.Response, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	var questions []models.Question
	atc.DB.Where("assessment_id = ?", attempt.AssessmentID).
		Order("\"order\" ASC").Preload("Options").Find(&questions)

	type reviewRow struct {
		QuestionID    uint   `json:"question_id"`
		Text          string `json:"text"`
		Points        int    `json:"points"`
		Answered      bool   `json:"answered"`
		SelectedText  string `json:"selected_text,omitempty"`
		IsCorrect     bool   `json:"is_correct"`
		PointsEarned  int    `json:"points_earned"`
		CorrectAnswer string `json:"correct_answer,omitempty"`
	}

	rows := make([]reviewRow, 0, len(questions))
	for _, q := range questions {
		row := reviewRow{QuestionID: q.ID, Text: q.Text, Points: q.Points}

		var correctText string
		optionText := map[uint]string{}
		for _, o := range q.Options {
			optionText[o.ID] = o.Text
			if o.IsCorrect {
				correctText = o.Text
			}
		}

		if r, ok := byQuestion[q.ID]; ok {
			row.Answered = true
			row.SelectedText = optionText[r.SelectedOptionID]
			row.IsCorrect = r.IsCorrect
			row.PointsEarned = r.PointsEarned
		}
		// The correct label is revealed only for questions answered wrong
		if row.Answered && !row.IsCorrect {
			row.CorrectAnswer = correctText
		}
		rows = append(rows, row)
	}

	return c.JSON(fiber.Map{
		"score":        attempt.Score,
		"total_points": attempt.TotalPoints,
		"percentage":   attempt.Percentage(),
		"passed":       attempt.Passed(),
		"completed_at": attempt.CompletedAt,
		"review":       rows,
	})
}

// GetMyResults lists all of the caller's attempts across assessments.
func (atc *AttemptController) GetMyResults(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var attempts []models.Attempt
	if err := atc.DB.Where("user_id = ?", user.ID).
		Order("started_at DESC").Find(&attempts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch results",
		})
	}

	type resultRow struct {
		AssessmentID uint       `json:"assessment_id"`
		Title        string     `json:"title"`
		Status       string     `json:"status"`
		Score        int        `json:"score"`
		TotalPoints  int        `json:"total_points"`
		Percentage   float64    `json:"percentage"`
		Passed       bool       `json:"passed"`
		CompletedAt  *time.Time `json:"completed_at,omitempty"`
	}

	rows := make([]resultRow, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		var assessment models.Assessment
		atc.DB.First(&assessment, a.AssessmentID)
		rows = append(rows, resultRow{
			AssessmentID: a.AssessmentID,
			Title:        assessment.Title,
			Status:       a.Status(),
			Score:        a.Score,
			TotalPoints:  a.TotalPoints,
			Percentage:   a.Percentage(),
			Passed:       a.CompletedAt != nil && a.Passed(),
			CompletedAt:  a.CompletedAt,
		})
	}

	return c.JSON(fiber.Map{"results": rows})
}
