package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"travelwild_backend/internal/services"
)

type stubSubscriptions struct {
	services.SubscriptionService
	batches []int
	err     error
	calls   int
}

func (s *stubSubscriptions) ProcessExpiredSubscriptions(_ context.Context, _ *gorm.DB, limit int) (int, error) {
	if s.calls >= len(s.batches) {
		return 0, s.err
	}
	n := s.batches[s.calls]
	s.calls++
	if n > limit {
		n = limit
	}
	return n, nil
}

type stubSettlement struct {
	services.SettlementService
	gotAttempts, gotLimit int
	sent, failed          int
	err                   error
}

func (s *stubSettlement) DeliverPending(_ context.Context, _ *gorm.DB, maxAttempts, limit int) (int, int, error) {
	s.gotAttempts, s.gotLimit = maxAttempts, limit
	return s.sent, s.failed, s.err
}

func TestSubscriptionWorker_DrainsFullBatches(t *testing.T) {
	svc := &stubSubscriptions{batches: []int{expiryBatchSize, expiryBatchSize, 3}}
	w := NewSubscriptionWorker(&gorm.DB{}, svc, time.Hour)

	assert.Equal(t, 2*expiryBatchSize+3, w.RunOnce(context.Background()))
	assert.Equal(t, 3, svc.calls)
}

func TestSubscriptionWorker_StopsOnError(t *testing.T) {
	svc := &stubSubscriptions{batches: []int{expiryBatchSize}, err: errors.New("db down")}
	w := NewSubscriptionWorker(&gorm.DB{}, svc, time.Hour)

	assert.Equal(t, expiryBatchSize, w.RunOnce(context.Background()))
	assert.Equal(t, 1, svc.calls)
}

func TestSubscriptionWorker_CanceledContext(t *testing.T) {
	svc := &stubSubscriptions{batches: []int{5}}
	w := NewSubscriptionWorker(&gorm.DB{}, svc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, w.RunOnce(ctx))
	assert.Zero(t, svc.calls)
}

func TestOutboxWorker_RunOnce(t *testing.T) {
	svc := &stubSettlement{sent: 4, failed: 1}
	w := NewOutboxWorker(&gorm.DB{}, svc, time.Minute, 50, 5)

	sent, failed := w.RunOnce(context.Background())
	assert.Equal(t, 4, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 5, svc.gotAttempts)
	assert.Equal(t, 50, svc.gotLimit)
}

func TestOutboxWorker_StopsWithContext(t *testing.T) {
	svc := &stubSettlement{}
	w := NewOutboxWorker(&gorm.DB{}, svc, time.Millisecond, 10, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.deliverPending(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outbox worker did not stop")
	}
}
