// Package email sends review notifications via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain text fallback part
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	boundary := "boundary-ankicollab"

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
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// CommitReviewedData holds data for the review outcome notification
type CommitReviewedData struct {
	AppName   string
	UserName  string
	DeckName  string
	CommitID  int64
	Approved  bool
	Rationale string
}

// NewCommitData holds data for the pending review notification
type NewCommitData struct {
	AppName   string
	DeckName  string
	CommitID  int64
	Rationale string
	ReviewURL string
}

// SendCommitReviewedEmail tells a suggester their commit was reviewed.
func (s *Service) SendCommitReviewedEmail(to, userName, deckName string, commitID int64, approved bool, rationale string) error {
	data := CommitReviewedData{
		AppName:   "AnkiCollab",
		UserName:  userName,
		DeckName:  deckName,
		CommitID:  commitID,
		Approved:  approved,
		Rationale: rationale,
	}

	outcome := "approved"
	if !approved {
		outcome = "denied"
	}
	subject := fmt.Sprintf("Your suggestions for %s were %s", deckName, outcome)
	html, err := renderTemplate(commitReviewedEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render commit reviewed template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendNewCommitEmail tells deck maintainers a commit awaits review.
func (s *Service) SendNewCommitEmail(to []string, deckName string, commitID int64, rationale, reviewURL string) error {
	data := NewCommitData{
		AppName:   "AnkiCollab",
		DeckName:  deckName,
		CommitID:  commitID,
		Rationale: rationale,
		ReviewURL: reviewURL,
	}

	subject := fmt.Sprintf("New suggestions await review in %s", deckName)
	html, err := renderTemplate(newCommitEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render new commit template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const commitReviewedEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your suggestions were reviewed</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .approved { background: #d4edda; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .denied { background: #f8d7da; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    {{if .Approved}}
    <div class="approved">
        Your suggestions (commit #{{.CommitID}}) for <strong>{{.DeckName}}</strong> were <strong>approved</strong>. Thank you for contributing!
    </div>
    {{else}}
    <div class="denied">
        Your suggestions (commit #{{.CommitID}}) for <strong>{{.DeckName}}</strong> were <strong>denied</strong> by a maintainer.
    </div>
    {{end}}

    {{if .Rationale}}<p>Original rationale: {{.Rationale}}</p>{{end}}

    <div class="footer">
        <p>You are receiving this because you submitted suggestions to {{.DeckName}} on {{.AppName}}.</p>
    </div>
</body>
</html>`

const newCommitEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New suggestions await review</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #0066cc; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>New suggestions for {{.DeckName}}</h2>

    <p>Commit #{{.CommitID}} is waiting for review.</p>

    {{if .Rationale}}<p>Rationale: {{.Rationale}}</p>{{end}}

    {{if .ReviewURL}}
    <p>
        <a href="{{.ReviewURL}}" class="button">Review Suggestions</a>
    </p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.ReviewURL}}</p>
    {{end}}

    <div class="footer">
        <p>You are receiving this because you maintain {{.DeckName}} on {{.AppName}}.</p>
    </div>
</body>
</html>`
