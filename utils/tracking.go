package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateTrackingID returns a 128-bit random identifier encoded as 32 hex
// characters. It is a bearer credential: anyone holding it can replay the
// recipient's tracking actions, so it must be unguessable.
func GenerateTrackingID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken
		panic(fmt.Sprintf("tracking id generation: %v", err))
	}
	return hex.EncodeToString(buf)
}

// BuildClickURL appends the tracking id to a landing URL, using ? or &
// depending on whether the URL already carries a query string.
func BuildClickURL(landingURL, trackingID string) string {
	sep := "?"
	if strings.Contains(landingURL, "?") {
		sep = "&"
	}
	return landingURL + sep + "tid=" + trackingID
}

// TrackingPixelURL is the image URL embedded into outgoing email bodies.
func TrackingPixelURL(baseURL, trackingID string) string {
	return fmt.Sprintf("%s/track/open/%s", baseURL, trackingID)
}

// InjectTrackingPixel appends the open pixel to an HTML body, before the
// closing body tag when one exists.
func InjectTrackingPixel(htmlBody, baseURL, trackingID string) string {
	pixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`,
		TrackingPixelURL(baseURL, trackingID))
	if strings.Contains(htmlBody, "</body>") {
		return strings.Replace(htmlBody, "</body>", pixel+"</body>", 1)
	}
	return htmlBody + pixel
}

// TemplateVars is the merge context for one recipient.
type TemplateVars struct {
	FirstName  string
	LastName   string
	Email      string
	Position   string
	TrackingID string
	BaseURL    string
}

// MergeTemplate substitutes recipient variables into a template body.
// {{.URL}} resolves to the tracked click endpoint so every link in the
// email attributes back to the recipient.
func MergeTemplate(text string, vars TemplateVars) string {
	text = strings.ReplaceAll(text, "{{.FirstName}}", vars.FirstName)
	text = strings.ReplaceAll(text, "{{.LastName}}", vars.LastName)
	text = strings.ReplaceAll(text, "{{.Email}}", vars.Email)
	text = strings.ReplaceAll(text, "{{.Position}}", vars.Position)
	text = strings.ReplaceAll(text, "{{.TrackingID}}", vars.TrackingID)
	text = strings.ReplaceAll(text, "{{.URL}}",
		fmt.Sprintf("%s/track/click/%s", vars.BaseURL, vars.TrackingID))
	return text
}
