package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/services"
)

const expiryBatchSize = 100

type SubscriptionWorker struct {
	db       *gorm.DB
	service  services.SubscriptionService
	interval time.Duration
}

func NewSubscriptionWorker(db *gorm.DB, service services.SubscriptionService, interval time.Duration) *SubscriptionWorker {
	return &SubscriptionWorker{db: db, service: service, interval: interval}
}

// Start запускает проверку истёкших подписок
func (w *SubscriptionWorker) Start(ctx context.Context) {
	go w.checkExpiredSubscriptions(ctx)
}

// checkExpiredSubscriptions гасит подписки с прошедшим ends_at и пересчитывает публикацию школ
func (w *SubscriptionWorker) checkExpiredSubscriptions(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Subscription worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce обрабатывает истёкшие подписки пачками, пока они не кончатся.
func (w *SubscriptionWorker) RunOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := w.service.ProcessExpiredSubscriptions(ctx, w.db, expiryBatchSize)
		total += n
		if err != nil {
			logger.WorkerLog("subscription", "expire", err, "processed", total)
			return total
		}
		if n < expiryBatchSize {
			break
		}
	}
	if total > 0 {
		logger.Info("Expired subscriptions processed", "count", total)
	}
	return total
}
