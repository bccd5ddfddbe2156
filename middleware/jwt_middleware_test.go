package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clariphish/config"
	"clariphish/models"
	"clariphish/utils"
)

func setupAuthTest(t *testing.T) *models.User {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret-do-not-use"

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	config.DB = db

	user := &models.User{
		Username:     "ada",
		PasswordHash: "x",
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/private", Protected(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/admin", Protected(), AdminOnly(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})
	return app
}

func TestProtected(t *testing.T) {
	user := setupAuthTest(t)
	app := protectedApp()

	access, _, err := utils.GenerateJWTToken(user)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	t.Run("no token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest("GET", "/private", nil))
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Authorization", "Token "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("stale token version", func(t *testing.T) {
		config.DB.Model(user).UpdateColumn("token_version", gorm.Expr("token_version + 1"))
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		// Restore for later subtests
		config.DB.Model(user).UpdateColumn("token_version", 0)
	})

	t.Run("disabled account", func(t *testing.T) {
		config.DB.Model(user).Update("is_active", false)
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
		config.DB.Model(user).Update("is_active", true)
	})

	t.Run("non-admin blocked from admin route", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusForbidden {
			t.Errorf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("admin allowed", func(t *testing.T) {
		config.DB.Model(user).Update("role", models.RoleAdmin)
		// Token carries the old role claim but authorization reads the DB row
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, _ := app.Test(req)
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})
}
