// Package notify tells question authors about new answers, both in-app and
// by email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/hasker/hasker/internal/models"
	"github.com/hasker/hasker/internal/utils"
	"github.com/rs/zerolog"
)

const subjectTitleLen = 15

var emailTmpl = template.Must(template.New("answer_email").Parse(
	`Hi,

{{.AuthorName}} answered your question "{{.QuestionTitle}}":

{{.Answer.Message}}

Read it at {{.QuestionURL.String}}
`))

type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// Hook implements models.AnswerHook.
type Hook struct {
	notifs models.NotificationService
	mailer Mailer
}

// NewHook returns a hook storing notifications in notifs. mailer may be nil,
// in which case no email is sent.
func NewHook(notifs models.NotificationService, mailer Mailer) *Hook {
	return &Hook{notifs: notifs, mailer: mailer}
}

func (h *Hook) AnswerCreated(ctx context.Context, ev models.AnswerCreated) error {
	// Don't notify yourself
	if ev.Answer.AuthorID == ev.QuestionAuthorID {
		return nil
	}

	notif := &models.Notification{
		UserID:    ev.QuestionAuthorID,
		NotifType: models.NotifTypeAnswer,
		Title:     fmt.Sprintf("%s answered your question", ev.AuthorName),
		Text:      utils.Truncate(ev.Answer.Message, 140),
		ActionURL: ev.QuestionURL,
	}
	if err := h.notifs.Send(ctx, notif, ev.QuestionAuthorID); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}

	if h.mailer == nil || ev.QuestionAuthorEmail == "" {
		return nil
	}
	body, err := renderEmail(ev)
	if err != nil {
		return err
	}
	if err := h.mailer.Send(ctx, ev.QuestionAuthorEmail, Subject(ev.QuestionTitle), body); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	zerolog.Ctx(ctx).Debug().
		Int("question_author", ev.QuestionAuthorID).
		Int("answer", ev.Answer.ID).
		Msg("Answer email sent")
	return nil
}

func Subject(questionTitle string) string {
	return "New answer: " + utils.Truncate(questionTitle, subjectTitleLen)
}

func renderEmail(ev models.AnswerCreated) (string, error) {
	var b bytes.Buffer
	if err := emailTmpl.Execute(&b, ev); err != nil {
		return "", fmt.Errorf("rendering email: %w", err)
	}
	return b.String(), nil
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPMailer returns nil when no relay is configured.
func NewSMTPMailer(config *models.EnvConfig) *SMTPMailer {
	if config.SMTPAddr == "" {
		return nil
	}
	m := &SMTPMailer{addr: config.SMTPAddr, from: config.MailFrom}
	if config.SMTPUser != "" {
		host := config.SMTPAddr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		m.auth = smtp.PlainAuth("", config.SMTPUser, config.SMTPPassword, host)
	}
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, to string, subject string, body string) error {
	msg := buildMessage(m.from, to, subject, body)
	// net/smtp takes no context: stop waiting on cancellation.
	errc := make(chan error, 1)
	go func() {
		errc <- smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
