package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"sitequill/config"
	"sitequill/workflow"
)

type Mailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
	to       string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		to:       cfg.NotifyEmail,
		send:     smtp.SendMail,
	}
}

// SendBatchReport mails a summary of a bulk run to the notification address.
func (m *Mailer) SendBatchReport(title string, batch workflow.BatchResult) error {
	subject := fmt.Sprintf("%s: %d ok, %d failed", title, batch.Succeeded(), batch.Failed())
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", m.from, m.to, subject, reportBody(title, batch, time.Now()))

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	if err := m.send(addr, auth, m.from, []string{m.to}, []byte(message)); err != nil {
		return fmt.Errorf("send batch report to %s: %w", m.to, err)
	}
	return nil
}

func reportBody(title string, batch workflow.BatchResult, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s finished at %s\n\n", title, at.Format("2006-01-02 15:04 MST"))
	if len(batch.Items) == 0 {
		b.WriteString("Nothing to do.\n")
		return b.String()
	}
	for _, o := range batch.Items {
		fmt.Fprintf(&b, "- [%s] #%d %s", o.Status, o.ID, o.Label)
		if o.Created > 0 {
			fmt.Fprintf(&b, " (%d drafts)", o.Created)
		}
		if o.Error != "" {
			fmt.Fprintf(&b, ": %s", o.Error)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n%d succeeded, %d failed\n", batch.Succeeded(), batch.Failed())
	return b.String()
}
