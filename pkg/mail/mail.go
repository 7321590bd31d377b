// Package mail sends the end-of-run summary by email through Resend. The
// feature is optional: without an API key and a recipient every send is a
// no-op.
package mail

import (
	"fmt"
	"html"
	"log/slog"
	"path/filepath"

	"github.com/resend/resend-go/v2"

	"github.com/widia-io/investiment-scrapper-v2/internal/pipeline"
)

// Mailer sends run summaries.
type Mailer struct {
	client *resend.Client
	from   string
	to     string
	logger *slog.Logger
}

// NewMailer builds a mailer. An empty API key or recipient leaves the
// client nil and SendRunSummary silently skips.
func NewMailer(apiKey, from, to string, logger *slog.Logger) *Mailer {
	var client *resend.Client
	if apiKey != "" && to != "" {
		client = resend.NewClient(apiKey)
	}

	return &Mailer{client: client, from: from, to: to, logger: logger}
}

// SendRunSummary mails the report's summary block.
func (m *Mailer) SendRunSummary(report *pipeline.RunReport) error {
	if m.client == nil {
		m.logger.Debug("resend client not configured, skipping run summary email")
		return nil
	}

	_, err := m.client.Emails.Send(&resend.SendEmailRequest{
		From:    m.from,
		To:      []string{m.to},
		Subject: summarySubject(report),
		Html:    summaryHTML(report),
	})
	if err != nil {
		return fmt.Errorf("failed to send run summary email: %w", err)
	}

	m.logger.Info("run summary emailed", slog.String("to", m.to))
	return nil
}

func summarySubject(report *pipeline.RunReport) string {
	subject := fmt.Sprintf("Extração %s: %d posições", filepath.Base(report.SourceFile), report.CompleteCount)
	if report.Snapshot != nil {
		subject += fmt.Sprintf(" (%s)", report.Snapshot.Totals.Gross.Display())
	}
	if len(report.Issues) > 0 {
		subject += fmt.Sprintf(", %d avisos", len(report.Issues))
	}
	return subject
}

func summaryHTML(report *pipeline.RunReport) string {
	return fmt.Sprintf(`<pre style="font-family: monospace">%s</pre>`, html.EscapeString(report.Summary()))
}
