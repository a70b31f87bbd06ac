package email

import "context"

// Provider определяет интерфейс для отправки email
type Provider interface {
	// Send отправляет простое email сообщение
	Send(ctx context.Context, email *Email) error

	// SendTemplate рендерит шаблон в тело письма и отправляет его
	SendTemplate(ctx context.Context, to []string, subject string, templateName string, data TemplateData) error

	// Validate проверяет конфигурацию провайдера
	Validate() error

	Close() error
}

// TemplateRenderer определяет интерфейс для рендеринга шаблонов
type TemplateRenderer interface {
	Render(templateName string, data TemplateData) (string, error)
	AddTemplate(name string, template string) error
}
