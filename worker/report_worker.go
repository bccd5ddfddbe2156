package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"gorm.io/gorm"

	"clariphish/config"
	controller "clariphish/controllers"
	"clariphish/utils"
)

// trackingIDPattern matches the hex tracking id embedded in forwarded
// simulation emails, either bare or inside a tracking URL.
var trackingIDPattern = regexp.MustCompile(`/track/(?:open|click|report)/([0-9a-f]{32})|\b([0-9a-f]{32})\b`)

// ReportWorker polls a shared report mailbox. Employees forward suspected
// phishing there; when a forwarded message carries one of our tracking ids
// the report is credited to the recipient.
type ReportWorker struct {
	db       *gorm.DB
	logger   *log.Logger
	tracking *controller.TrackingController
	inbox    config.ReportInboxConfig
}

func NewReportWorker(db *gorm.DB, logger *log.Logger) *ReportWorker {
	return &ReportWorker{
		db:       db,
		logger:   logger,
		tracking: controller.NewTrackingController(db, logger),
		inbox:    config.AppConfig.ReportInbox,
	}
}

func (rw *ReportWorker) Start(ctx context.Context) {
	rw.logger.Println("Starting report inbox worker...")
	ticker := time.NewTicker(2 * time.Minute)

	for {
		select {
		case <-ticker.C:
			if err := rw.poll(); err != nil {
				rw.logger.Printf("report inbox poll failed: %v", err)
			}
		case <-ctx.Done():
			rw.logger.Println("Stopping report inbox worker...")
			ticker.Stop()
			return
		}
	}
}

func (rw *ReportWorker) poll() error {
	imapClient, err := client.DialTLS(rw.inbox.Host, &tls.Config{
		ServerName: strings.Split(rw.inbox.Host, ":")[0],
	})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(rw.inbox.Username, rw.inbox.Password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	folder := rw.inbox.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := imapClient.Select(folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %v", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset,
			[]imap.FetchItem{imap.FetchEnvelope, imap.FetchRFC822}, messages)
	}()

	for msg := range messages {
		if err := rw.processMessage(msg); err != nil {
			rw.logger.Printf("failed to process report message %d: %v", msg.SeqNum, err)
		}
	}

	return <-done
}

func (rw *ReportWorker) processMessage(msg *imap.Message) error {
	section := imap.BodySectionName{}
	literal := msg.GetBody(&section)
	if literal == nil {
		return fmt.Errorf("message body not found")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return fmt.Errorf("failed to create message reader: %v", err)
	}

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed to read next part: %v", err)
		}

		if _, ok := p.Header.(*mail.InlineHeader); ok {
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return fmt.Errorf("failed to read body: %v", err)
			}
			body.Write(b)
		}
	}

	trackingID := extractTrackingID(body.String())
	if trackingID == "" {
		// A report without one of our ids is real mail, leave it alone
		return nil
	}

	recorded, err := rw.tracking.RecordReport(trackingID, "", "report-inbox")
	if err != nil {
		return fmt.Errorf("failed to record report: %v", err)
	}
	if recorded {
		utils.LogEvent("phishing_reported_by_email", map[string]interface{}{
			"tracking_id": trackingID,
			"reporter":    formatAddresses(msg.Envelope.From),
		})
	}
	return nil
}

// extractTrackingID pulls the first tracking id out of a forwarded body.
func extractTrackingID(body string) string {
	m := trackingIDPattern.FindStringSubmatch(strings.ToLower(body))
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func formatAddresses(addrs []*imap.Address) string {
	var result []string
	for _, addr := range addrs {
		result = append(result, addr.MailboxName+"@"+addr.HostName)
	}
	return strings.Join(result, ", ")
}
