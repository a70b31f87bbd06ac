package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"travelwild_backend/internal/logger"
	"travelwild_backend/internal/services"
)

// OutboxWorker досылает уведомления о выплатах, которые не ушли сразу после расчёта.
type OutboxWorker struct {
	db          *gorm.DB
	settlement  services.SettlementService
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewOutboxWorker(db *gorm.DB, settlement services.SettlementService, interval time.Duration, batchSize, maxAttempts int) *OutboxWorker {
	return &OutboxWorker{
		db:          db,
		settlement:  settlement,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	go w.deliverPending(ctx)
}

func (w *OutboxWorker) deliverPending(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Outbox worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce - одна пачка. Возвращает число отправленных и упавших писем.
func (w *OutboxWorker) RunOnce(ctx context.Context) (sent, failed int) {
	sent, failed, err := w.settlement.DeliverPending(ctx, w.db, w.maxAttempts, w.batchSize)
	logger.WorkerLog("outbox", "deliver", err, "sent", sent, "failed", failed)
	if failed > 0 {
		logger.Warn("Payout notifications not delivered", "failed", failed)
	}
	return sent, failed
}
