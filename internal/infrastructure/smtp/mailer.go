package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"regexp"

	"github.com/auth-api-nosql/internal/config"
	"github.com/auth-api-nosql/internal/domain"
)

// Mailer sends transactional emails rendered from stored templates.
type Mailer interface {
	SendBySlug(ctx context.Context, to, slug string, data map[string]string) error
}

type templateStore interface {
	GetBySlug(ctx context.Context, slug string) (*domain.EmailTemplate, error)
}

type mailer struct {
	host      string
	port      string
	from      string
	username  string
	password  string
	templates templateStore
}

func NewMailer(cfg *config.Config, templates templateStore) Mailer {
	return &mailer{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		from:      cfg.SMTPFrom,
		username:  cfg.SMTPUsername,
		password:  cfg.SMTPPassword,
		templates: templates,
	}
}

func (m *mailer) SendBySlug(ctx context.Context, to, slug string, data map[string]string) error {
	tpl, err := m.templates.GetBySlug(ctx, slug)
	if err != nil {
		return fmt.Errorf("load template %s: %w", slug, err)
	}
	return m.send(to, Render(tpl.Subject, data), Render(tpl.HTML, data))
}

func (m *mailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n"+
		"MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Render substitutes {name}-style placeholders with values from data.
// Unknown placeholders are left untouched so a missing value is visible
// in the delivered mail rather than silently blanked.
func Render(tpl string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := data[key]; ok {
			return v
		}
		return match
	})
}
