package email

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipients = errors.New("email has no recipients")

// sender - то, что нужно от gomail.Dialer. В тестах подменяется.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPProvider реализует Provider поверх gomail
type SMTPProvider struct {
	config   *SMTPConfig
	dialer   sender
	renderer TemplateRenderer
}

// NewSMTPProvider создает новый SMTP провайдер
func NewSMTPProvider(config *SMTPConfig, renderer TemplateRenderer) *SMTPProvider {
	d := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	d.SSL = config.UseTLS

	return &SMTPProvider{
		config:   config,
		dialer:   d,
		renderer: renderer,
	}
}

// Send отправляет email сообщение
func (p *SMTPProvider) Send(ctx context.Context, email *Email) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(email.To) == 0 {
		return ErrNoRecipients
	}
	// gomail не умеет в context, поэтому проверяем его хотя бы перед соединением
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.dialer.DialAndSend(p.buildMessage(email)); err != nil {
		return fmt.Errorf("smtp send to %v: %w", email.To, err)
	}
	return nil
}

// SendTemplate рендерит шаблон в текстовое тело и отправляет письмо.
func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, data TemplateData) error {
	if p.renderer == nil {
		return fmt.Errorf("template renderer is not configured")
	}

	body, err := p.renderer.Render(templateName, data)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.Send(ctx, &Email{To: to, Subject: subject, Body: body})
}

// Validate проверяет конфигурацию SMTP
func (p *SMTPProvider) Validate() error {
	if p.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if p.config.Port <= 0 || p.config.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", p.config.Port)
	}
	if p.config.FromEmail == "" {
		return fmt.Errorf("sender address is required")
	}
	return nil
}

// Close - gomail открывает соединение на каждую отправку, закрывать нечего.
func (p *SMTPProvider) Close() error {
	return nil
}

func (p *SMTPProvider) buildMessage(email *Email) *gomail.Message {
	m := gomail.NewMessage()

	from := email.From
	if from == "" {
		from = p.config.FromEmail
	}
	if p.config.FromName != "" && email.From == "" {
		m.SetAddressHeader("From", from, p.config.FromName)
	} else {
		m.SetHeader("From", from)
	}

	m.SetHeader("To", email.To...)
	if len(email.Cc) > 0 {
		m.SetHeader("Cc", email.Cc...)
	}
	if len(email.Bcc) > 0 {
		m.SetHeader("Bcc", email.Bcc...)
	}
	m.SetHeader("Subject", email.Subject)

	switch {
	case email.Body != "" && email.HTMLBody != "":
		m.SetBody("text/plain", email.Body)
		m.AddAlternative("text/html", email.HTMLBody)
	case email.HTMLBody != "":
		m.SetBody("text/html", email.HTMLBody)
	default:
		m.SetBody("text/plain", email.Body)
	}

	for _, a := range email.Attachments {
		content := a.Content
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	return m
}
