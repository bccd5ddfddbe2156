package models

import (
	"time"

	"gorm.io/gorm"
)

// Attempt statuses derived from the attempt row. There is no stored status
// column: a missing row is NotStarted, a nil CompletedAt is InProgress.
const (
	AttemptNotStarted = "not_started"
	AttemptInProgress = "in_progress"
	AttemptCompleted  = "completed"
)

// PassThreshold is the display-only pass mark in percent.
const PassThreshold = 70.0

// Assessment is a security-awareness quiz. Draft until published;
// publishing is one-way.
type Assessment struct {
	gorm.Model
	CreatedBy uint `gorm:"not null;index" json:"created_by"`

	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	IsPublished bool       `gorm:"default:false" json:"is_published"`

	Questions []Question `gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// Question carries a point value and 2+ options, exactly one correct.
type Question struct {
	gorm.Model
	AssessmentID uint `gorm:"not null;index" json:"assessment_id"`

	Text   string `gorm:"not null" json:"text"`
	Order  int    `gorm:"not null" json:"order"`
	Points int    `gorm:"default:1" json:"points"`

	Options []AnswerOption `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

// AnswerOption is one choice for a question.
type AnswerOption struct {
	gorm.Model
	QuestionID uint `gorm:"not null;index" json:"question_id"`

	Text      string `gorm:"not null" json:"text"`
	IsCorrect bool   `gorm:"default:false" json:"is_correct,omitempty"`
	Order     int    `gorm:"not null" json:"order"`
}

// Attempt is one user's single run through an assessment. At most one
// attempt exists per (user, assessment).
type Attempt struct {
	gorm.Model
	UserID       uint `gorm:"not null;uniqueIndex:idx_attempt_user_assessment" json:"user_id"`
	AssessmentID uint `gorm:"not null;uniqueIndex:idx_attempt_user_assessment" json:"assessment_id"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Frozen at completion, immutable afterwards
	Score       int `gorm:"default:0" json:"score"`
	TotalPoints int `gorm:"default:0" json:"total_points"`

	Responses []Response `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// Status derives the attempt state from CompletedAt.
func (a *Attempt) Status() string {
	if a.CompletedAt != nil {
		return AttemptCompleted
	}
	return AttemptInProgress
}

// Percentage returns 100*score/total, 0 when the assessment carries no points.
func (a *Attempt) Percentage() float64 {
	if a.TotalPoints <= 0 {
		return 0
	}
	return float64(a.Score) / float64(a.TotalPoints) * 100
}

// Passed applies the display-only pass threshold.
func (a *Attempt) Passed() bool {
	return a.Percentage() >= PassThreshold
}

// Response records the selected option for one question of an attempt.
// (attempt_id, question_id) is unique: re-answering upserts.
type Response struct {
	gorm.Model
	AttemptID  uint `gorm:"not null;uniqueIndex:idx_response_attempt_question" json:"attempt_id"`
	QuestionID uint `gorm:"not null;uniqueIndex:idx_response_attempt_question" json:"question_id"`

	SelectedOptionID uint      `gorm:"not null" json:"selected_option_id"`
	IsCorrect        bool      `gorm:"default:false" json:"is_correct"`
	PointsEarned     int       `gorm:"default:0" json:"points_earned"`
	AnsweredAt       time.Time `gorm:"not null" json:"answered_at"`
}

// AssessmentStats is the cross-user aggregate for one assessment.
type AssessmentStats struct {
	TotalUsers     int     `json:"total_users"`
	CompletedUsers int     `json:"completed_users"`
	PendingUsers   int     `json:"pending_users"`
	AverageScore   float64 `json:"average_score"`
	PassRate       float64 `json:"pass_rate"`
}
