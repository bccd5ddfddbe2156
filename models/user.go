package models

import (
	"gorm.io/gorm"
)

// Role values gate admin-console access server-side.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a console account. Admins manage campaigns and
// assessments; regular users take assessments.
type User struct {
	gorm.Model

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'user'" json:"role"` // admin, user
	APIKey       string `gorm:"uniqueIndex" json:"api_key,omitempty"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	TokenVersion int    `gorm:"default:0" json:"-"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:UserID" json:"campaigns,omitempty"`
	Attempts  []Attempt  `gorm:"foreignKey:UserID" json:"attempts,omitempty"`
}

// IsAdmin reports whether the user may reach admin-only endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
