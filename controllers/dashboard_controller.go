package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{DB: db, Logger: logger}
}

// GetOverview aggregates campaign and assessment activity for the admin
// landing view.
func (dc *DashboardController) GetOverview(c *fiber.Ctx) error {
	var (
		totalCampaigns    int64
		activeCampaigns   int64
		totalAssessments  int64
		publishedQuizzes  int64
		totalUsers        int64
		completedAttempts int64
	)

	dc.DB.Model(&models.Campaign{}).Count(&totalCampaigns)
	dc.DB.Model(&models.Campaign{}).
		Where("status = ?", models.CampaignStatusLaunched).Count(&activeCampaigns)
	dc.DB.Model(&models.Assessment{}).Count(&totalAssessments)
	dc.DB.Model(&models.Assessment{}).
		Where("is_published = ?", true).Count(&publishedQuizzes)
	dc.DB.Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleUser, true).Count(&totalUsers)
	dc.DB.Model(&models.Attempt{}).
		Where("completed_at IS NOT NULL").Count(&completedAttempts)

	// Counter totals across every campaign give the org-wide event picture
	type counterSums struct {
		Sent      int
		Opened    int
		Clicked   int
		Submitted int
		Reported  int
	}
	var sums counterSums
	dc.DB.Model(&models.Campaign{}).
		Select("COALESCE(SUM(sent_count), 0) AS sent," +
			" COALESCE(SUM(opened_count), 0) AS opened," +
			" COALESCE(SUM(clicked_count), 0) AS clicked," +
			" COALESCE(SUM(submitted_count), 0) AS submitted," +
			" COALESCE(SUM(reported_count), 0) AS reported").
		Scan(&sums)

	return c.JSON(fiber.Map{
		"campaigns": fiber.Map{
			"total":  totalCampaigns,
			"active": activeCampaigns,
			"events": fiber.Map{
				"sent":        sums.Sent,
				"opened":      sums.Opened,
				"clicked":     sums.Clicked,
				"submitted":   sums.Submitted,
				"reported":    sums.Reported,
				"open_rate":   models.Rate(sums.Opened, sums.Sent),
				"click_rate":  models.Rate(sums.Clicked, sums.Sent),
				"submit_rate": models.Rate(sums.Submitted, sums.Sent),
				"report_rate": models.Rate(sums.Reported, sums.Sent),
			},
		},
		"assessments": fiber.Map{
			"total":              totalAssessments,
			"published":          publishedQuizzes,
			"completed_attempts": completedAttempts,
		},
		"users": fiber.Map{
			"active": totalUsers,
		},
	})
}
