// Package email sends complaint notifications via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain-text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	for _, value := range append([]string{subject}, to...) {
		if strings.ContainsAny(value, "\r\n") {
			return fmt.Errorf("header value contains a line break")
		}
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "cleanstreet-boundary"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// StatusChangeData fills the status notification sent to a complaint owner.
type StatusChangeData struct {
	UserName   string
	Title      string
	OldStatus  string
	NewStatus  string
	AssignedTo string
}

// SendStatusChange tells the complaint owner that triage moved their complaint.
func (s *Service) SendStatusChange(to string, data StatusChangeData) error {
	subject := fmt.Sprintf("Your complaint %q is now %s", data.Title, statusLabel(data.NewStatus))
	text := fmt.Sprintf("Hi %s, the status of %q changed from %s to %s.",
		data.UserName, data.Title, statusLabel(data.OldStatus), statusLabel(data.NewStatus))

	html, err := renderStatusChange(struct {
		StatusChangeData
		OldLabel string
		NewLabel string
	}{data, statusLabel(data.OldStatus), statusLabel(data.NewStatus)})
	if err != nil {
		return fmt.Errorf("render status template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

func statusLabel(status string) string {
	switch status {
	case "received":
		return "Received"
	case "in_review":
		return "In review"
	case "resolved":
		return "Resolved"
	default:
		return status
	}
}

var statusChangeTmpl = template.Must(template.New("status").Parse(statusChangeTemplate))

func renderStatusChange(data any) (string, error) {
	var buf bytes.Buffer
	if err := statusChangeTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const statusChangeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>CleanStreet complaint update</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #2e7d32; padding-bottom: 10px; margin-bottom: 20px; }
        .status { display: inline-block; padding: 4px 10px; background: #e8f5e9; color: #2e7d32; border-radius: 4px; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>CleanStreet</h1>
    </div>

    <p>Hi {{.UserName}},</p>

    <p>Your complaint <strong>{{.Title}}</strong> moved from {{.OldLabel}} to <span class="status">{{.NewLabel}}</span>.</p>
    {{if .AssignedTo}}
    <p>It is assigned to {{.AssignedTo}}.</p>
    {{end}}

    <div class="footer">
        <p>You receive this email because you reported the issue on CleanStreet.</p>
    </div>
</body>
</html>`
