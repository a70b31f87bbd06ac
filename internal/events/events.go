package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travelwild_backend/internal/logger"
)

// Типы доменных событий (routing key в exchange).
const (
	BookingConfirmed      = "booking.confirmed"
	BookingCanceled       = "booking.canceled"
	BookingSettled        = "booking.settled"
	TransactionReleased   = "transaction.released"
	SchoolPublicationSync = "school.publication_changed"
)

// Event - конверт доменного события.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func New(eventType string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher публикует события после коммита. Ошибка публикации
// не откатывает бизнес-операцию, вызывающий только логирует её.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e Event) error {
	logger.CtxDebug(ctx, "Event not published, broker disabled", "event_type", e.Type, "event_id", e.ID)
	return nil
}

func (NoopPublisher) Close() error { return nil }

// PublishBestEffort публикует событие и только логирует ошибку.
func PublishBestEffort(ctx context.Context, p Publisher, eventType string, data any) {
	if p == nil {
		return
	}
	e := New(eventType, data)
	if err := p.Publish(ctx, e); err != nil {
		logger.CtxWithError(ctx, "Failed to publish event", err, "event_type", eventType, "event_id", e.ID)
	}
}
