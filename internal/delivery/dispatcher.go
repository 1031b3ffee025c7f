package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reportflow/internal/mail"
	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
)

// Request carries everything needed to deliver one rendered report.
type Request struct {
	TenantID        string
	TenantName      string
	ReportType      report.Type
	Period          string
	Recipients      []string
	SubjectTemplate string
	MessageTemplate string
	Attachment      *mail.Attachment
	DownloadLink    string
}

// Dispatcher sends a rendered report to each recipient independently.
// A recipient failing, even terminally, never blocks the others.
type Dispatcher struct {
	transport  mail.Transport
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewDispatcher(transport mail.Transport, maxRetries int, backoff time.Duration, logger *zap.Logger) *Dispatcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Dispatcher{
		transport:  transport,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Dispatch fans the request out per recipient with bounded retries and
// exponential backoff. Every recipient gets an outcome row regardless of the
// others; the returned error is non-nil only when no recipient succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, executionID string, req *Request) ([]models.DeliveryResult, error) {
	subject := d.expand(req.SubjectTemplate, req)
	if subject == "" {
		subject = fmt.Sprintf("%s - %s", req.ReportType.Title(), time.Now().Format("2006-01-02"))
	}
	body := d.expand(req.MessageTemplate, req)
	if body == "" {
		body = fmt.Sprintf("Your scheduled %s is attached.", req.ReportType.Title())
	}
	if req.DownloadLink != "" {
		body += "\n\nDownload: " + req.DownloadLink
	}

	results := make([]models.DeliveryResult, 0, len(req.Recipients))
	anySent := false
	for _, recipient := range req.Recipients {
		res := models.DeliveryResult{
			ExecutionID: executionID,
			Recipient:   recipient,
		}

		err := d.sendWithRetry(ctx, &res, &mail.Message{
			To:         recipient,
			Subject:    subject,
			Body:       body,
			Attachment: req.Attachment,
		})
		if err != nil {
			res.Outcome = models.DeliveryOutcomeFailed
			res.LastError = utils.TrimErr(err.Error(), 900)
			d.logger.Warn("delivery failed",
				zap.String("recipient", recipient),
				zap.Int("attempts", res.Attempts),
				zap.Error(err))
		} else {
			res.Outcome = models.DeliveryOutcomeSent
			anySent = true
		}
		results = append(results, res)
	}

	if len(req.Recipients) > 0 && !anySent {
		return results, fmt.Errorf("all %d deliveries failed", len(req.Recipients))
	}
	return results, nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, res *models.DeliveryResult, msg *mail.Message) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		res.Attempts = attempt
		lastErr = d.transport.Send(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if attempt < d.maxRetries {
			select {
			case <-time.After(d.backoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return &report.DeliveryError{Recipient: msg.To, Attempts: res.Attempts, Err: ctx.Err()}
			}
		}
	}
	return &report.DeliveryError{Recipient: msg.To, Attempts: res.Attempts, Err: lastErr}
}

// NotifyFailure emails the schedule creator after a failed run. Best effort,
// single attempt; a notification failure is only logged.
func (d *Dispatcher) NotifyFailure(ctx context.Context, toEmail, scheduleName string, runErr error) {
	if toEmail == "" {
		return
	}
	err := d.transport.Send(ctx, &mail.Message{
		To:      toEmail,
		Subject: fmt.Sprintf("Scheduled report %q failed", scheduleName),
		Body: fmt.Sprintf("Your scheduled report %q failed to generate.\n\nError: %v\n\nThe schedule will pause automatically after repeated failures.",
			scheduleName, runErr),
	})
	if err != nil {
		d.logger.Warn("failure notification not sent", zap.String("to", toEmail), zap.Error(err))
	}
}

// expand substitutes the supported template variables. Unknown placeholders
// pass through untouched.
func (d *Dispatcher) expand(template string, req *Request) string {
	if template == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{{date}}", time.Now().Format("2006-01-02"),
		"{{reportType}}", req.ReportType.Title(),
		"{{tenant}}", req.TenantName,
		"{{period}}", req.Period,
	)
	return r.Replace(template)
}
