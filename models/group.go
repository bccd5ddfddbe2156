package models

import "gorm.io/gorm"

// Group is a named collection of targets. Member count is derived from the
// target slice, never stored.
type Group struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name    string   `gorm:"not null" json:"name"`
	Targets []Target `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"targets,omitempty"`
}

// Target is one person inside a group.
type Target struct {
	gorm.Model
	GroupID uint `gorm:"not null;index" json:"group_id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `gorm:"not null" json:"email"`
	Position  string `json:"position"`
}

// SMTPProfile holds the sending configuration for a campaign.
type SMTPProfile struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name             string `gorm:"not null" json:"name"`
	Host             string `gorm:"not null" json:"host"` // host:port
	Username         string `json:"username"`
	Password         string `json:"-"`
	FromAddress      string `gorm:"not null" json:"from_address"`
	IgnoreCertErrors bool   `gorm:"default:false" json:"ignore_cert_errors"`
}
