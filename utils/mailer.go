package utils

import (
	"crypto/tls"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"clariphish/models"
)

// Email is one composed message ready for delivery.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// MailService delivers composed emails. Implemented by GomailService in
// production and by fakes in tests.
type MailService interface {
	Send(profile models.SMTPProfile, email Email) error
}

// GomailService sends through the campaign's SMTP profile.
type GomailService struct{}

func (GomailService) Send(profile models.SMTPProfile, email Email) error {
	host, port, err := splitHostPort(profile.Host)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", email.From)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetBody("text/plain", email.Text)
	m.AddAlternative("text/html", email.HTML)

	d := gomail.NewDialer(host, port, profile.Username, profile.Password)
	if profile.IgnoreCertErrors {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: host}
	}

	return d.DialAndSend(m)
}

func splitHostPort(hostport string) (string, int, error) {
	parts := strings.Split(hostport, ":")
	if len(parts) == 1 {
		return parts[0], 587, nil
	}
	port, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return "", 0, fmt.Errorf("invalid SMTP host %q", hostport)
	}
	return strings.Join(parts[:len(parts)-1], ":"), port, nil
}

// SendProgress is published after every recipient while a launch runs.
type SendProgress struct {
	CampaignID uint   `json:"campaign_id"`
	Email      string `json:"email"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
	Done       bool   `json:"done"`
}

// CampaignMailer walks a launched campaign's pending recipients and hands
// each composed message to the mail service.
type CampaignMailer struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Service MailService

	// Progress, when set, receives per-recipient updates (websocket feed)
	Progress func(p SendProgress)
}

func NewCampaignMailer(db *gorm.DB, logger *log.Logger) *CampaignMailer {
	return &CampaignMailer{
		DB:      db,
		Logger:  logger,
		Service: GomailService{},
	}
}

// ComposeEmail merges the template for one recipient and injects the open
// pixel into the HTML part.
func (cm *CampaignMailer) ComposeEmail(tmpl models.Template, profile models.SMTPProfile,
	rcpt models.Recipient, baseURL string) Email {

	vars := TemplateVars{
		FirstName:  rcpt.FirstName,
		LastName:   rcpt.LastName,
		Email:      rcpt.Email,
		Position:   rcpt.Position,
		TrackingID: rcpt.TrackingID,
		BaseURL:    baseURL,
	}

	htmlBody := MergeTemplate(tmpl.HTML, vars)
	htmlBody = InjectTrackingPixel(htmlBody, baseURL, rcpt.TrackingID)

	return Email{
		From:    profile.FromAddress,
		To:      rcpt.Email,
		Subject: MergeTemplate(tmpl.Subject, vars),
		HTML:    htmlBody,
		Text:    MergeTemplate(tmpl.Text, vars),
	}
}

// Run delivers a launched campaign. Each recipient flips pending->sent (or
// pending->error) exactly once; the campaign SentCount increments only when
// that conditional update lands.
func (cm *CampaignMailer) Run(campaignID uint) {
	var campaign models.Campaign
	if err := cm.DB.First(&campaign, campaignID).Error; err != nil {
		cm.Logger.Printf("campaign %d not found: %v", campaignID, err)
		return
	}

	var tmpl models.Template
	if err := cm.DB.First(&tmpl, campaign.TemplateID).Error; err != nil {
		cm.Logger.Printf("template %d not found: %v", campaign.TemplateID, err)
		return
	}

	var profile models.SMTPProfile
	if err := cm.DB.First(&profile, campaign.SMTPProfileID).Error; err != nil {
		cm.Logger.Printf("smtp profile %d not found: %v", campaign.SMTPProfileID, err)
		return
	}

	var recipients []models.Recipient
	if err := cm.DB.Where("campaign_id = ? AND status = ?", campaignID, "pending").
		Find(&recipients).Error; err != nil {
		cm.Logger.Printf("failed to load recipients: %v", err)
		return
	}

	sent, failed := 0, 0
	for _, rcpt := range recipients {
		email := cm.ComposeEmail(tmpl, profile, rcpt, campaign.URL)

		if err := cm.Service.Send(profile, email); err != nil {
			failed++
			cm.Logger.Printf("failed to send to %s: %v", rcpt.Email, err)
			LogError("campaign_send_failed", err, map[string]interface{}{
				"campaign_id":  campaignID,
				"recipient_id": rcpt.ID,
			})
			cm.DB.Model(&models.Recipient{}).
				Where("id = ? AND status = ?", rcpt.ID, "pending").
				Update("status", "error")
		} else {
			res := cm.DB.Model(&models.Recipient{}).
				Where("id = ? AND status = ?", rcpt.ID, "pending").
				Updates(map[string]interface{}{
					"status":  "sent",
					"sent_at": time.Now(),
				})
			if res.Error == nil && res.RowsAffected == 1 {
				sent++
				cm.DB.Model(&models.Campaign{}).Where("id = ?", campaignID).
					UpdateColumn("sent_count", gorm.Expr("sent_count + 1"))
			}
		}

		if cm.Progress != nil {
			cm.Progress(SendProgress{
				CampaignID: campaignID,
				Email:      rcpt.Email,
				Sent:       sent,
				Failed:     failed,
				Total:      len(recipients),
			})
		}

		// Small delay between emails
		time.Sleep(100 * time.Millisecond)
	}

	if cm.Progress != nil {
		cm.Progress(SendProgress{
			CampaignID: campaignID,
			Sent:       sent,
			Failed:     failed,
			Total:      len(recipients),
			Done:       true,
		})
	}

	LogEvent("campaign_send_completed", map[string]interface{}{
		"campaign_id": campaignID,
		"sent":        sent,
		"failed":      failed,
	})
	cm.Logger.Printf("campaign %d send completed: %d sent, %d failed", campaignID, sent, failed)
}
