package notifications

import (
	"context"

	"travelwild_backend/internal/email"
)

// Mailer - внешний канал уведомлений: (получатель, тема, текст) -> успех/ошибка.
// Повторы делает воркер outbox, не сам Mailer.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// EmailMailer отправляет уведомления через email.Provider.
type EmailMailer struct {
	provider email.Provider
}

func NewEmailMailer(provider email.Provider) *EmailMailer {
	return &EmailMailer{provider: provider}
}

func (m *EmailMailer) Send(ctx context.Context, recipient, subject, body string) error {
	return m.provider.Send(ctx, &email.Email{
		To:      []string{recipient},
		Subject: subject,
		Body:    body,
	})
}
