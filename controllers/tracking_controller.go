package controller

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"clariphish/models"
	"clariphish/utils"
)

// 1x1 transparent PNG served by the open pixel
var trackingPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{DB: db, Logger: logger}
}

// recordEvent flips one first-event-wins flag. The update is a single
// conditional write gated on the flag's prior value, so concurrent
// duplicate requests cannot flip twice; the campaign counter increments
// only when this update actually changed a row.
func (tc *TrackingController) recordEvent(trackingID, flag, counter, ip, userAgent string,
	extra map[string]interface{}) (bool, error) {

	values := map[string]interface{}{
		flag:              true,
		flag + "_at":      time.Now(),
		"last_ip":         ip,
		"last_user_agent": userAgent,
	}
	for k, v := range extra {
		values[k] = v
	}

	res := tc.DB.Model(&models.Recipient{}).
		Where("tracking_id = ? AND "+flag+" = ?", trackingID, false).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		// Either the id is unknown or the event already happened: no-op
		return false, nil
	}

	err := tc.DB.Model(&models.Campaign{}).
		Where("id = (?)", tc.DB.Model(&models.Recipient{}).
			Select("campaign_id").Where("tracking_id = ?", trackingID)).
		UpdateColumn(counter, gorm.Expr(counter+" + 1")).Error
	return true, err
}

// RecordOpen marks the recipient opened. Unknown ids and repeats are no-ops.
func (tc *TrackingController) RecordOpen(trackingID, ip, userAgent string) (bool, error) {
	return tc.recordEvent(trackingID, "opened", "opened_count", ip, userAgent, nil)
}

// RecordClick marks the recipient clicked and returns the redirect target,
// or a NotFound error for unknown ids.
func (tc *TrackingController) RecordClick(trackingID, ip, userAgent string) (string, error) {
	var rcpt models.Recipient
	if err := tc.DB.Where("tracking_id = ?", trackingID).First(&rcpt).Error; err != nil {
		return "", err
	}

	if _, err := tc.recordEvent(trackingID, "clicked", "clicked_count", ip, userAgent, nil); err != nil {
		return "", err
	}

	var campaign models.Campaign
	if err := tc.DB.First(&campaign, rcpt.CampaignID).Error; err != nil {
		return "", err
	}

	return utils.BuildClickURL(campaign.URL, trackingID), nil
}

// RecordSubmit captures the submitted payload. Only the first submission is
// retained; later ones are ignored entirely, payload included.
func (tc *TrackingController) RecordSubmit(trackingID string, payload map[string]string,
	ip, userAgent string) (string, error) {

	var rcpt models.Recipient
	if err := tc.DB.Where("tracking_id = ?", trackingID).First(&rcpt).Error; err != nil {
		return "", err
	}

	raw, _ := json.Marshal(payload)
	if _, err := tc.recordEvent(trackingID, "submitted", "submitted_count", ip, userAgent,
		map[string]interface{}{"submitted_data": string(raw)}); err != nil {
		return "", err
	}

	// Resolve the post-submit redirect from the campaign's landing page
	var campaign models.Campaign
	if err := tc.DB.First(&campaign, rcpt.CampaignID).Error; err != nil {
		return "", err
	}
	var page models.Page
	if err := tc.DB.First(&page, campaign.PageID).Error; err != nil {
		// The submission is already recorded; a missing page is an operator
		// misconfiguration, not a learner-facing failure
		tc.Logger.Printf("landing page %d missing for campaign %d: %v", campaign.PageID, campaign.ID, err)
		utils.LogError("landing_page_missing", err, map[string]interface{}{
			"campaign_id": campaign.ID,
			"page_id":     campaign.PageID,
		})
		return "", nil
	}
	return page.RedirectURL, nil
}

// RecordReport marks the recipient as having reported the email.
func (tc *TrackingController) RecordReport(trackingID, ip, userAgent string) (bool, error) {
	return tc.recordEvent(trackingID, "reported", "reported_count", ip, userAgent, nil)
}

// TrackOpen serves the open pixel. The image comes back no matter what the
// lookup found, so scanners learn nothing about id validity.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	if _, err := tc.RecordOpen(trackingID, c.IP(), c.Get("User-Agent")); err != nil {
		tc.Logger.Printf("open tracking failed for %s: %v", trackingID, err)
	}

	c.Set("Content-Type", "image/png")
	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	return c.Send(trackingPixel)
}

// TrackClick records the click and redirects to the campaign landing URL
// with the tracking id appended. Unknown ids get a 404; the caller already
// holds the link, so invalidity is not a secret here.
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	target, err := tc.RecordClick(trackingID, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid link",
		})
	}

	return c.Redirect(target, fiber.StatusFound)
}

// TrackSubmit captures a landing-page form post.
func (tc *TrackingController) TrackSubmit(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	payload := map[string]string{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		payload[string(key)] = string(value)
	})
	if len(payload) == 0 {
		// JSON bodies are accepted too
		_ = json.Unmarshal(c.Body(), &payload)
	}
	delete(payload, "tid")

	redirectURL, err := tc.RecordSubmit(trackingID, payload, c.IP(), c.Get("User-Agent"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid id",
		})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"redirect_url": redirectURL,
	})
}

// TrackReport handles a recipient reporting the email as phishing.
func (tc *TrackingController) TrackReport(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	if _, err := tc.RecordReport(trackingID, c.IP(), c.Get("User-Agent")); err != nil {
		tc.Logger.Printf("report tracking failed for %s: %v", trackingID, err)
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(reportThanksPage)
}

// LandingPage serves the campaign landing page for a clicked link. Lookup
// only; the click itself was already recorded by the redirect hop.
func (tc *TrackingController) LandingPage(c *fiber.Ctx) error {
	trackingID := c.Params("trackingID")

	var rcpt models.Recipient
	if err := tc.DB.Where("tracking_id = ?", trackingID).First(&rcpt).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid link",
		})
	}

	var campaign models.Campaign
	if err := tc.DB.First(&campaign, rcpt.CampaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid link",
		})
	}

	var page models.Page
	if err := tc.DB.First(&page, campaign.PageID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid link",
		})
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(page.HTML)
}

const reportThanksPage = `<!DOCTYPE html>
<html>
<head><title>Thank You for Reporting</title></head>
<body>
	<h1>Thank you!</h1>
	<p>Your report has been recorded. Staying suspicious of unexpected emails
	is exactly the right instinct.</p>
</body>
</html>`
