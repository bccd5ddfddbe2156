package models

import (
	"time"

	"gorm.io/gorm"
)

// Campaign lifecycle states. Launch and completion are one-way.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusLaunched  = "launched"
	CampaignStatusCompleted = "completed"
)

// Campaign represents one phishing simulation run against a group.
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name   string `gorm:"not null" json:"name"`
	Status string `gorm:"default:'draft'" json:"status"` // draft, scheduled, launched, completed

	// Collaborators referenced by id
	TemplateID    uint `gorm:"not null" json:"template_id"`
	PageID        uint `gorm:"not null" json:"page_id"`
	SMTPProfileID uint `gorm:"not null" json:"smtp_profile_id"`
	GroupID       uint `gorm:"not null" json:"group_id"`

	// Public base URL embedded into sent emails (tracking links resolve here)
	URL string `gorm:"not null" json:"url"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	LaunchedAt  *time.Time `json:"launched_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Statistics (denormalized for performance). Each counter moves at most
	// once per recipient, guarded by the recipient's event flag.
	SentCount      int `gorm:"default:0" json:"sent_count"`
	OpenedCount    int `gorm:"default:0" json:"opened_count"`
	ClickedCount   int `gorm:"default:0" json:"clicked_count"`
	SubmittedCount int `gorm:"default:0" json:"submitted_count"`
	ReportedCount  int `gorm:"default:0" json:"reported_count"`

	// Relations
	Recipients []Recipient `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE" json:"recipients,omitempty"`
}

// Recipient is one target materialized into a campaign. The TrackingID is
// the bearer credential correlating pixel, link and form requests.
type Recipient struct {
	gorm.Model
	CampaignID uint   `gorm:"not null;index" json:"campaign_id"`
	TrackingID string `gorm:"uniqueIndex;not null" json:"tracking_id"`

	// Contact snapshot taken from the group target at materialization time
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `gorm:"not null" json:"email"`
	Position  string `json:"position"`

	Status string     `gorm:"default:'pending'" json:"status"` // pending, sent, error
	SentAt *time.Time `json:"sent_at,omitempty"`

	// First-event-wins pairs: each flag flips 0->1 at most once and the
	// parent campaign counter increments exactly once per flip.
	Opened      bool       `gorm:"default:false" json:"opened"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	Clicked     bool       `gorm:"default:false" json:"clicked"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	Submitted   bool       `gorm:"default:false" json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Reported    bool       `gorm:"default:false" json:"reported"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`

	// Raw form payload from the first submission, kept verbatim for review
	SubmittedData string `gorm:"type:text" json:"submitted_data,omitempty"`

	LastIP        string `json:"last_ip,omitempty"`
	LastUserAgent string `json:"last_user_agent,omitempty"`

	// Relations
	Campaign Campaign `json:"-"`
}

// CampaignStats is the derived aggregate view. Rates are computed on read
// and never stored.
type CampaignStats struct {
	Total       int     `json:"total"`
	Sent        int     `json:"sent"`
	Opened      int     `json:"opened"`
	Clicked     int     `json:"clicked"`
	Submitted   int     `json:"submitted"`
	Reported    int     `json:"reported"`
	OpenRate    float64 `json:"open_rate"`
	ClickRate   float64 `json:"click_rate"`
	SubmitRate  float64 `json:"submit_rate"`
	ReportRate  float64 `json:"report_rate"`
}

// Rate returns 100*count/sent rounded to one decimal place, 0 when nothing
// was sent.
func Rate(count, sent int) float64 {
	if sent <= 0 {
		return 0
	}
	return float64(int(float64(count)/float64(sent)*1000+0.5)) / 10
}

// BuildStats derives the aggregate view from a campaign's counters.
func (c *Campaign) BuildStats(total int) CampaignStats {
	return CampaignStats{
		Total:      total,
		Sent:       c.SentCount,
		Opened:     c.OpenedCount,
		Clicked:    c.ClickedCount,
		Submitted:  c.SubmittedCount,
		Reported:   c.ReportedCount,
		OpenRate:   Rate(c.OpenedCount, c.SentCount),
		ClickRate:  Rate(c.ClickedCount, c.SentCount),
		SubmitRate: Rate(c.SubmittedCount, c.SentCount),
		ReportRate: Rate(c.ReportedCount, c.SentCount),
	}
}
