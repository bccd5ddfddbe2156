package worker

import (
	"io"
	"log"
	"testing"
	"time"

	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

type noopSendService struct{}

func (noopSendService) Send(_ models.SMTPProfile, _ utils.Email) error { return nil }

func seedScheduledCampaign(t *testing.T, db *gorm.DB, at time.Time) models.Campaign {
	t.Helper()

	tmpl := models.Template{Name: "t", Subject: "s", HTML: "<p>{{.URL}}</p>"}
	profile := models.SMTPProfile{Name: "relay", Host: "smtp.example.com:587", FromAddress: "it@example.com"}
	for _, m := range []interface{}{&tmpl, &profile} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("failed to seed dependency: %v", err)
		}
	}

	campaign := models.Campaign{
		UserID:        1,
		Name:          "scheduled run",
		Status:        models.CampaignStatusScheduled,
		TemplateID:    tmpl.ID,
		PageID:        1,
		SMTPProfileID: profile.ID,
		GroupID:       1,
		URL:           "https://phish.example.com/lp",
		ScheduledAt:   &at,
	}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	return campaign
}

func TestScheduleSweepLaunchesDueCampaign(t *testing.T) {
	db := newWorkerDB(t)
	campaign := seedScheduledCampaign(t, db, time.Now().Add(-time.Minute))

	sw := NewScheduleWorker(db, log.New(io.Discard, "", 0))
	sw.mailer.Service = noopSendService{}
	sw.sweep()

	var got models.Campaign
	if err := db.First(&got, campaign.ID).Error; err != nil {
		t.Fatalf("failed to reload campaign: %v", err)
	}
	if got.Status != models.CampaignStatusLaunched || got.LaunchedAt == nil {
		t.Errorf("campaign not launched: status=%q launchedAt=%v", got.Status, got.LaunchedAt)
	}

	// A second sweep finds nothing left to launch
	first := *got.LaunchedAt
	sw.sweep()
	db.First(&got, campaign.ID)
	if !got.LaunchedAt.Equal(first) {
		t.Errorf("launch time moved on repeat sweep: %v -> %v", first, got.LaunchedAt)
	}
}

func TestScheduleSweepSkipsFutureCampaign(t *testing.T) {
	db := newWorkerDB(t)
	campaign := seedScheduledCampaign(t, db, time.Now().Add(time.Hour))

	sw := NewScheduleWorker(db, log.New(io.Discard, "", 0))
	sw.mailer.Service = noopSendService{}
	sw.sweep()

	var got models.Campaign
	db.First(&got, campaign.ID)
	if got.Status != models.CampaignStatusScheduled {
		t.Errorf("future campaign launched early: status=%q", got.Status)
	}
}
