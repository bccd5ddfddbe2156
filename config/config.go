package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"clariphish/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// ReportInboxConfig points at the mailbox that receives "report phishing"
// forwards from recipients.
type ReportInboxConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"` // host:port, IMAP over TLS
	Username string `json:"username"`
	Password string `json:"-"`
	Folder   string `json:"folder"`
}

type Config struct {
	Environment    string            `json:"environment"`
	ServerPort     string            `json:"server_port"`
	BaseURL        string            `json:"base_url"` // default public URL for tracking links
	JWTSecret      string            `json:"-"`
	SentryDSN      string            `json:"-"`
	GeminiAPIKey   string            `json:"-"`
	DBHost         string            `json:"db_host"`
	DBPort         string            `json:"db_port"`
	DBUser         string            `json:"db_user"`
	DBPassword     string            `json:"-"`
	DBName         string            `json:"db_name"`
	DBSSLMode      string            `json:"db_ssl_mode"`
	DBMaxIdleConns int               `json:"db_max_idle_conns"`
	DBMaxOpenConns int               `json:"db_max_open_conns"`
	RateLimitTrack int               `json:"rate_limit_track"`
	Redis          RedisConfig       `json:"redis"`
	ReportInbox    ReportInboxConfig `json:"report_inbox"`
	AdminUsername  string            `json:"admin_username"`
	AdminPassword  string            `json:"-"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "3333"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:3333"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "clariphish"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		RateLimitTrack: getEnvAsInt("RATE_LIMIT_TRACKING", 120),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ADDRESS", "") != "",
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		ReportInbox: ReportInboxConfig{
			Enabled:  getEnv("REPORT_IMAP_HOST", "") != "",
			Host:     getEnv("REPORT_IMAP_HOST", ""),
			Username: getEnv("REPORT_IMAP_USERNAME", ""),
			Password: getEnv("REPORT_IMAP_PASSWORD", ""),
			Folder:   getEnv("REPORT_IMAP_FOLDER", "INBOX"),
		},
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}

	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if AppConfig.Environment == "production" && AppConfig.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required in production")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Connected to the database")
	log.Println("Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed")

	return seedAdmin(DB)
}

// MigrateDB creates or updates the schema for every entity.
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Template{},
		&models.Page{},
		&models.Group{},
		&models.Target{},
		&models.SMTPProfile{},
		&models.Campaign{},
		&models.Recipient{},
		&models.Assessment{},
		&models.Question{},
		&models.AnswerOption{},
		&models.Attempt{},
		&models.Response{},
	)
}

// seedAdmin creates the initial admin account on first boot.
func seedAdmin(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := AppConfig.AdminPassword
	if password == "" {
		password = "changeme"
		log.Println("ADMIN_PASSWORD not set, seeding admin with default password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     AppConfig.AdminUsername,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		APIKey:       uuid.NewString(),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	log.Printf("Seeded admin account %q", admin.Username)
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Base URL: %s", AppConfig.BaseURL)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Report inbox enabled: %t", AppConfig.ReportInbox.Enabled)
}
