package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"travelwild_backend/internal/logger"
)

var ErrLockNotOwned = errors.New("lock not owned by this client")

// unlockScript удаляет ключ, только если значение совпадает с токеном владельца.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// Locker - короткая распределённая блокировка. Нужна, чтобы две реплики
// не обрабатывали одну доставку вебхука одновременно. Источник истины
// по идемпотентности остаётся в БД.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (acquired bool, token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type redisCommands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type RedisLocker struct {
	client redisCommands
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		logger.CtxWithError(ctx, "Redis SETNX failed", err, "key", l.prefix+key)
		return false, "", err
	}
	if !acquired {
		logger.CtxDebug(ctx, "Lock is held by another worker", "key", l.prefix+key)
		return false, "", nil
	}
	return true, token, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	deleted, err := l.client.Eval(ctx, unlockScript, []string{l.prefix + key}, token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotOwned
	}
	return nil
}

// NoopLocker - Redis не настроен, каждый захват успешен.
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string, time.Duration) (bool, string, error) {
	return true, "", nil
}

func (NoopLocker) Unlock(context.Context, string, string) error { return nil }
