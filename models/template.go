package models

import "gorm.io/gorm"

// Template is a reusable phishing email body. Referenced by id from
// campaigns; deleting a template does not touch past campaigns.
type Template struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name     string `gorm:"not null" json:"name"`
	Subject  string `gorm:"not null" json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
	Category string `json:"category"` // e.g. credential, invoice, delivery
}

// Page is a landing page served after a tracked click.
type Page struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name               string `gorm:"not null" json:"name"`
	HTML               string `gorm:"not null" json:"html"`
	CaptureCredentials bool   `gorm:"default:true" json:"capture_credentials"`
	CapturePasswords   bool   `gorm:"default:true" json:"capture_passwords"`
	RedirectURL        string `json:"redirect_url"`
}
