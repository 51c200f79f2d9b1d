package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends operator alerts by email.
type NotificationService struct {
	config *config.EmailConfig
}

// Alert describes a failed sync run.
type Alert struct {
	RunID        uint
	RunKey       string
	StartedAt    time.Time
	FailedAt     time.Time
	ErrorMessage string
	Hostname     string
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig) *NotificationService {
	return &NotificationService{
		config: cfg,
	}
}

// Enabled reports whether alerts are sent.
func (n *NotificationService) Enabled() bool {
	return n.config != nil && n.config.Enabled
}

// SendFailureAlert mails a run failure to the configured alert address.
func (n *NotificationService) SendFailureAlert(ctx context.Context, alert Alert) error {
	if !n.Enabled() {
		log.Debug("Email alerts are disabled, skipping alert")
		return nil
	}
	if n.config.AlertEmail == "" {
		log.Warn("Alert email is empty, skipping alert", "run", alert.RunID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[catalogsync] Sync run %d failed", alert.RunID)

	body, err := n.generateEmailBody(alert)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return n.sendEmail(n.config.AlertEmail, subject, body)
}

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC1123)
	},
}).ParseFS(templatesFS, "templates/*.html"))

// generateEmailBody creates the HTML email body.
func (n *NotificationService) generateEmailBody(alert Alert) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "alert.html", alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "catalogsync"
	}

	msg := mail.NewMSG().
		SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail)).
		AddTo(to).
		SetSubject(subject)
	msg.SetBody(mail.TextHTML, body)

	if msg.Error != nil {
		return fmt.Errorf("failed to build email: %w", msg.Error)
	}
	if err := msg.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Alert email sent", "to", to, "subject", subject)
	return nil
}
