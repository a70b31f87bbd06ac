package app

import (
	"context"
	"strings"

	"travelwild_backend/internal/email"
	"travelwild_backend/internal/logger"
)

// LogEmailProvider пишет письма в лог вместо SMTP. Для локальной разработки, когда email.enabled=false.
type LogEmailProvider struct{}

func (p *LogEmailProvider) Send(ctx context.Context, msg *email.Email) error {
	logger.CtxInfo(ctx, "Email (not sent, SMTP disabled)",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)
	return nil
}

func (p *LogEmailProvider) SendTemplate(ctx context.Context, to []string, subject string, templateName string, _ email.TemplateData) error {
	logger.CtxInfo(ctx, "Template email (not sent, SMTP disabled)",
		"to", strings.Join(to, ","),
		"subject", subject,
		"template", templateName,
	)
	return nil
}

func (p *LogEmailProvider) Validate() error { return nil }
func (p *LogEmailProvider) Close() error    { return nil }
