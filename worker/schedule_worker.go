package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

// ScheduleWorker launches scheduled campaigns once their time arrives.
type ScheduleWorker struct {
	db     *gorm.DB
	logger *log.Logger
	mailer *utils.CampaignMailer
}

func NewScheduleWorker(db *gorm.DB, logger *log.Logger) *ScheduleWorker {
	return &ScheduleWorker{
		db:     db,
		logger: logger,
		mailer: utils.NewCampaignMailer(db, logger),
	}
}

func (sw *ScheduleWorker) Start(ctx context.Context) {
	sw.logger.Println("Starting campaign scheduler...")
	ticker := time.NewTicker(30 * time.Second)

	for {
		select {
		case <-ticker.C:
			sw.sweep()
		case <-ctx.Done():
			sw.logger.Println("Stopping campaign scheduler...")
			ticker.Stop()
			return
		}
	}
}

// sweep launches every scheduled campaign whose time has passed. The status
// transition is the same conditional update the launch endpoint performs, so
// an operator launching by hand at the same moment cannot double-send.
func (sw *ScheduleWorker) sweep() {
	var due []models.Campaign
	if err := sw.db.Where("status = ? AND scheduled_at <= ?",
		models.CampaignStatusScheduled, time.Now()).Find(&due).Error; err != nil {
		sw.logger.Printf("failed to load due campaigns: %v", err)
		return
	}

	for _, campaign := range due {
		res := sw.db.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusScheduled).
			Updates(map[string]interface{}{
				"status":      models.CampaignStatusLaunched,
				"launched_at": time.Now(),
			})
		if res.Error != nil {
			sw.logger.Printf("failed to launch scheduled campaign %d: %v", campaign.ID, res.Error)
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		go sw.mailer.Run(campaign.ID)

		utils.LogEvent("campaign_launched_by_schedule", map[string]interface{}{
			"campaign_id": campaign.ID,
		})
		sw.logger.Printf("launched scheduled campaign %d", campaign.ID)
	}
}
