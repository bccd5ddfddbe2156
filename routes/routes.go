package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"clariphish/config"
	controller "clariphish/controllers"
	"clariphish/middleware"
	"clariphish/utils"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)
	authController := controller.NewAuthController(db, authLogger)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.Refresh)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Post("/change-password", authController.ChangePassword)
	protectedAuth.Get("/me", authController.Me)

	// User administration (admin only, no open registration)
	users := app.Group("/api/v1/users", middleware.Protected(), middleware.AdminOnly())
	users.Post("/", authController.CreateUser)
	users.Get("/", authController.GetUsers)
	users.Put("/:id/active", authController.SetUserActive)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	var generator utils.TextGenerator
	if config.AppConfig.GeminiAPIKey != "" {
		generator = utils.NewGeminiClient(config.AppConfig.GeminiAPIKey)
	}

	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	templateController := controller.NewTemplateController(db, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags), generator)
	pageController := controller.NewPageController(db, log.New(os.Stdout, "PAGE: ", log.LstdFlags))
	groupController := controller.NewGroupController(db, log.New(os.Stdout, "GROUP: ", log.LstdFlags))
	smtpController := controller.NewSMTPController(db, log.New(os.Stdout, "SMTP: ", log.LstdFlags), utils.GomailService{})
	assessmentController := controller.NewAssessmentController(db, log.New(os.Stdout, "ASSESSMENT: ", log.LstdFlags))
	attemptController := controller.NewAttemptController(db, log.New(os.Stdout, "ATTEMPT: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))
	chatController := controller.NewChatController(log.New(os.Stdout, "CHAT: ", log.LstdFlags), generator)

	// Launch progress fans out over websockets
	progressHub := controller.NewProgressHub()
	campaignController.Mailer.Progress = progressHub.Broadcast

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Dashboard
	api.Get("/dashboard", middleware.AdminOnly(), dashboardController.GetOverview)

	// Campaign routes (admin console)
	campaign := api.Group("/campaigns", middleware.AdminOnly())
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Post("/:id/schedule", campaignController.ScheduleCampaign)
	campaign.Post("/:id/launch", campaignController.LaunchCampaign)
	campaign.Post("/:id/complete", campaignController.CompleteCampaign)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)
	campaign.Get("/:id/report", campaignController.GetCampaignReport)
	campaign.Get("/:id/submissions", campaignController.GetSubmissions)
	campaign.Delete("/:id", campaignController.DeleteCampaign)

	// WebSocket feed of send progress. Registered inside the campaign group
	// so the upgrade request passes the same JWT and role checks as every
	// other admin campaign view.
	campaign.Get("/:id/progress",
		websocket.New(campaignController.HandleCampaignProgressWS(progressHub)))

	// Template routes
	template := api.Group("/templates", middleware.AdminOnly())
	template.Post("/", templateController.CreateTemplate)
	template.Get("/", templateController.GetTemplates)
	template.Post("/generate", templateController.GenerateTemplate)
	template.Get("/:id", templateController.GetTemplate)
	template.Put("/:id", templateController.UpdateTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)

	// Landing page routes
	page := api.Group("/pages", middleware.AdminOnly())
	page.Post("/", pageController.CreatePage)
	page.Get("/", pageController.GetPages)
	page.Get("/:id", pageController.GetPage)
	page.Put("/:id", pageController.UpdatePage)
	page.Delete("/:id", pageController.DeletePage)

	// Target group routes
	group := api.Group("/groups", middleware.AdminOnly())
	group.Post("/", groupController.CreateGroup)
	group.Get("/", groupController.GetGroups)
	group.Get("/:id", groupController.GetGroup)
	group.Put("/:id", groupController.UpdateGroup)
	group.Delete("/:id", groupController.DeleteGroup)

	// SMTP profile routes
	smtp := api.Group("/smtp-profiles", middleware.AdminOnly())
	smtp.Post("/", smtpController.CreateProfile)
	smtp.Get("/", smtpController.GetProfiles)
	smtp.Get("/:id", smtpController.GetProfile)
	smtp.Put("/:id", smtpController.UpdateProfile)
	smtp.Delete("/:id", smtpController.DeleteProfile)
	smtp.Post("/:id/test", smtpController.TestProfile)

	// Assessment administration
	assessment := api.Group("/assessments", middleware.AdminOnly())
	assessment.Post("/", assessmentController.CreateAssessment)
	assessment.Get("/", assessmentController.GetAssessments)
	assessment.Get("/:id", assessmentController.GetAssessment)
	assessment.Put("/:id", assessmentController.UpdateAssessment)
	assessment.Post("/:id/publish", assessmentController.PublishAssessment)
	assessment.Get("/:id/stats", assessmentController.GetAssessmentStats)
	assessment.Get("/:id/results", assessmentController.GetAssessmentResults)
	assessment.Delete("/:id", assessmentController.DeleteAssessment)

	// Assessment taking (any authenticated user)
	quiz := api.Group("/quizzes")
	quiz.Get("/", attemptController.ListAssessments)
	quiz.Get("/results", attemptController.GetMyResults)
	quiz.Get("/:id", attemptController.GetAssessment)
	quiz.Post("/:id/start", attemptController.StartAttempt)
	quiz.Post("/:id/answer", attemptController.SubmitAnswer)
	quiz.Post("/:id/complete", attemptController.CompleteAttempt)
	quiz.Get("/:id/result", attemptController.GetResult)

	// Security-awareness chat (any authenticated user)
	api.Post("/chat", chatController.Chat)

	log.Println("API routes initialized successfully")
}

// SetupTrackingRoutes wires the public tracking surface. No authentication:
// the tracking id is the credential. Rate limited per client IP.
func SetupTrackingRoutes(app *fiber.App, db *gorm.DB) {
	trackingController := controller.NewTrackingController(db, log.New(os.Stdout, "TRACK: ", log.LstdFlags))

	track := app.Group("/track", middleware.TrackingRateLimiter())
	track.Get("/open/:trackingID", trackingController.TrackOpen)
	track.Get("/click/:trackingID", trackingController.TrackClick)
	track.Post("/submit/:trackingID", trackingController.TrackSubmit)
	track.Get("/report/:trackingID", trackingController.TrackReport)
	track.Post("/report/:trackingID", trackingController.TrackReport)

	// Landing page served after the click redirect
	app.Get("/lp/:trackingID", middleware.TrackingRateLimiter(), trackingController.LandingPage)
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)
	SetupTrackingRoutes(app, db)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
