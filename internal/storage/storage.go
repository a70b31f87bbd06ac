package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage - хранилище документов (выписки о выплатах школам).
type Storage interface {
	// Save сохраняет объект по ключу, существующий перезаписывается
	Save(ctx context.Context, path string, reader io.Reader, contentType string) error

	Get(ctx context.Context, path string) (io.ReadCloser, error)

	Exists(ctx context.Context, path string) (bool, error)

	// GetURL возвращает ссылку, которую можно отдать в ответе API
	GetURL(ctx context.Context, path string) (string, error)
}

// Config - секция storage конфига.
type Config struct {
	Type      string // local, cloudflare_r2; пусто - архив отключён
	BasePath  string // для local
	BaseURL   string
	Bucket    string // для R2
	AccessKey string
	SecretKey string
	Endpoint  string
}

// NewStorage создаёт хранилище по типу из конфига.
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg)
	case "cloudflare_r2":
		return NewCloudflareR2Storage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
