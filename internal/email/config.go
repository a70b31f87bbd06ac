package email

import "travelwild_backend/internal/config"

// SMTPConfig содержит конфигурацию SMTP сервера
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	// UseTLS - неявный TLS (обычно порт 465). Без него gomail сам делает STARTTLS, если сервер умеет.
	UseTLS bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *SMTPConfig {
	return &SMTPConfig{
		Host: "localhost",
		Port: 587,
	}
}

// ConfigFromApp собирает SMTPConfig из секции email конфига приложения.
func ConfigFromApp(cfg *config.Config) *SMTPConfig {
	return &SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		UseTLS:    cfg.Email.UseTLS,
	}
}
