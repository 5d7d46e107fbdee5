// Package email sends invite mail over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/hugh/nerlude/pkg/config"
)

var ErrNotConfigured = errors.New("email not configured")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg    config.SMTPConfig
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(cfg config.SMTPConfig) *Service {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &Service{
		cfg:    cfg,
		server: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if a host and sender address are set.
func (s *Service) IsConfigured() bool {
	return s.cfg.Enabled()
}

// SendHTML sends an HTML message with a plain text fallback part.
func (s *Service) SendHTML(to []string, subject, text, html string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	msg := buildMessage(s.cfg.From, to, subject, text, html)
	if err := s.send(s.server, s.auth, s.cfg.From, to, msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, text, html string) []byte {
	boundary := "nerlude-alt"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", text)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", html)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return msg.Bytes()
}

// InviteData fills the invite template.
type InviteData struct {
	InviterName string
	TargetName  string
	TargetType  string
	Role        string
	AcceptURL   string
	ExpiresAt   time.Time
}

func (s *Service) SendInviteEmail(to string, data InviteData) error {
	html, err := renderTemplate(inviteTemplate, data)
	if err != nil {
		return fmt.Errorf("render invite template: %w", err)
	}

	subject := fmt.Sprintf("You're invited to %s on Nerlude", data.TargetName)
	text := fmt.Sprintf("%s invited you to join the %s %s as %s.\n\nAccept the invite: %s\n\nThis link expires %s.",
		data.InviterName, data.TargetType, data.TargetName, data.Role, data.AcceptURL,
		data.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"))

	return s.SendHTML([]string{to}, subject, text, html)
}

var inviteTemplate = template.Must(template.New("invite").Parse(inviteEmailTemplate))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const inviteEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Join {{.TargetName}} on Nerlude</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #222; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #111; color: white; text-decoration: none; border-radius: 6px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; }
    </style>
</head>
<body>
    <h2>You're invited</h2>

    <p>{{.InviterName}} invited you to join the {{.TargetType}} <strong>{{.TargetName}}</strong> as <strong>{{.Role}}</strong>.</p>

    <p>
        <a href="{{.AcceptURL}}" class="button">Accept invite</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.AcceptURL}}</p>

    <div class="footer">
        <p>This invite expires {{.ExpiresAt.UTC.Format "Jan 2, 2006 15:04 MST"}}. If you weren't expecting it, you can ignore this email.</p>
    </div>
</body>
</html>`
