package stripe

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeader - заголовок с подписью вебхука.
const SignatureHeader = "Stripe-Signature"

var (
	ErrMissingSignature = webhook.ErrNotSigned
	ErrInvalidHeader    = webhook.ErrInvalidHeader
	ErrNoValidSignature = webhook.ErrNoValidSignature
	ErrTooOld           = webhook.ErrTooOld
)

var ErrMalformedEvent = errors.New("malformed event payload")

// ConstructEvent проверяет подпись и разбирает событие.
// tolerance <= 0 отключает проверку возраста подписи.
// Версию API события не сверяем: читаются только стабильные поля объектов.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	e, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreTolerance:          tolerance <= 0,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if e.ID == "" || e.Type == "" || e.Data == nil {
		return nil, fmt.Errorf("%w: id, type and data are required", ErrMalformedEvent)
	}
	return &Event{Event: e}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// SignHeader собирает значение заголовка "t=...,v1=...". Нужен тестам и локальной отладке.
func SignHeader(t time.Time, payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: t,
	}).Header
}
