package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"travelwild_backend/internal/events"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/repositories"
)

// newMockDB - gorm поверх sqlmock: в сервисах проверяются только границы транзакций,
// данные живут в fakeStore.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var errStoreDown = errors.New("store is down")

// fakeStore - общее in-memory хранилище для фейковых репозиториев.
type fakeStore struct {
	mu sync.Mutex
	id int

	bookings      map[string]*models.Booking
	schools       map[string]*models.School
	finances      map[string]*models.SchoolFinance
	transactions  []*models.SchoolTransaction
	notifications []*models.PayoutNotification
	payments      map[string]*models.BookingPayment
	subscriptions map[string]*models.SchoolSubscription
	events        map[string]*models.WebhookEvent

	clock time.Time

	failTransactionCreate bool
	failFindDeliverable   bool
	failMarkNotified      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings:      map[string]*models.Booking{},
		schools:       map[string]*models.School{},
		finances:      map[string]*models.SchoolFinance{},
		payments:      map[string]*models.BookingPayment{},
		subscriptions: map[string]*models.SchoolSubscription{},
		events:        map[string]*models.WebhookEvent{},
		clock:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.id++
	return fmt.Sprintf("%s-%d", prefix, s.id)
}

// tick - монотонное время создания записей.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) addSchool(id, name, email string, plan models.SchoolPlan) *models.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	school := &models.School{BaseModel: models.BaseModel{ID: id}, Name: name, Email: email, Status: models.SchoolStatusDraft}
	s.schools[id] = school
	if plan != "" {
		s.finances[id] = &models.SchoolFinance{BaseModel: models.BaseModel{ID: "fin-" + id}, SchoolID: id, Plan: plan}
	}
	return school
}

func (s *fakeStore) addBooking(b *models.Booking) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Currency == "" {
		b.Currency = "EUR"
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = models.PaymentStatusUnpaid
	}
	s.bookings[b.ID] = b
	return b
}

func (s *fakeStore) booking(id string) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.bookings[id]
}

func (s *fakeStore) transactionsFor(bookingID string) []models.SchoolTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SchoolTransaction
	for _, t := range s.transactions {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *fakeStore) outbox() []models.PayoutNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PayoutNotification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, *n)
	}
	return out
}

// ---- bookings ----

type fakeBookingRepo struct{ s *fakeStore }

func (r *fakeBookingRepo) FindByID(_ *gorm.DB, id string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, repositories.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) FindByPaymentReference(_ *gorm.DB, ref string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.PaymentReference != nil && *b.PaymentReference == ref {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repositories.ErrBookingNotFound
}

func (r *fakeBookingRepo) LockForUpdate(db *gorm.DB, id string) (*models.Booking, error) {
	return r.FindByID(db, id)
}

func (r *fakeBookingRepo) UpdateState(_ *gorm.DB, b *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.bookings[b.ID]
	if !ok {
		return repositories.ErrBookingNotFound
	}
	stored.Status = b.Status
	stored.PaymentStatus = b.PaymentStatus
	stored.RefundPercent = b.RefundPercent
	stored.PartialPercent = b.PartialPercent
	stored.CanceledAt = b.CanceledAt
	return nil
}

func (r *fakeBookingRepo) SetPaymentReference(_ *gorm.DB, id, ref string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bookings[id].PaymentReference = &ref
	return nil
}

func (r *fakeBookingRepo) MarkPayoutNotified(_ *gorm.DB, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMarkNotified {
		return false, errStoreDown
	}
	b := r.s.bookings[id]
	if b.PayoutNotificationSent {
		return false, nil
	}
	b.PayoutNotificationSent = true
	return true, nil
}

func (r *fakeBookingRepo) ResetPayoutNotified(_ *gorm.DB, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b := r.s.bookings[id]; !b.PayoutReleased {
		b.PayoutNotificationSent = false
	}
	return nil
}

func (r *fakeBookingRepo) SetPayoutReleased(_ *gorm.DB, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bookings[id].PayoutReleased = true
	return nil
}

// ---- payments ----

type fakePaymentRepo struct{ s *fakeStore }

func (r *fakePaymentRepo) Create(_ *gorm.DB, p *models.BookingPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ExternalPaymentRef]; ok {
		return repositories.ErrDuplicatePaymentRef
	}
	p.ID = r.s.nextID("pay")
	cp := *p
	r.s.payments[p.ExternalPaymentRef] = &cp
	return nil
}

func (r *fakePaymentRepo) FindByExternalRef(_ *gorm.DB, ref string) (*models.BookingPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[ref]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

// ---- schools ----

type fakeSchoolRepo struct{ s *fakeStore }

func (r *fakeSchoolRepo) FindByID(_ *gorm.DB, id string) (*models.School, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	school, ok := r.s.schools[id]
	if !ok {
		return nil, repositories.ErrSchoolNotFound
	}
	cp := *school
	return &cp, nil
}

func (r *fakeSchoolRepo) UpdateStatus(_ *gorm.DB, id string, status models.SchoolStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	school, ok := r.s.schools[id]
	if !ok {
		return repositories.ErrSchoolNotFound
	}
	school.Status = status
	return nil
}

func (r *fakeSchoolRepo) SetVerified(_ *gorm.DB, id string, verified bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	school, ok := r.s.schools[id]
	if !ok {
		return repositories.ErrSchoolNotFound
	}
	school.IsVerified = verified
	return nil
}

func (r *fakeSchoolRepo) GetOrCreateFinance(_ *gorm.DB, schoolID string) (*models.SchoolFinance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.finances[schoolID]
	if !ok {
		f = &models.SchoolFinance{BaseModel: models.BaseModel{ID: r.s.nextID("fin")}, SchoolID: schoolID, Plan: models.PlanBasic}
		r.s.finances[schoolID] = f
	}
	cp := *f
	return &cp, nil
}

func (r *fakeSchoolRepo) UpdateFinance(_ *gorm.DB, f *models.SchoolFinance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *f
	r.s.finances[f.SchoolID] = &cp
	return nil
}

// ---- ledger ----

type fakeTransactionRepo struct{ s *fakeStore }

func (r *fakeTransactionRepo) Create(_ *gorm.DB, tx *models.SchoolTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTransactionCreate {
		return errStoreDown
	}
	for _, t := range r.s.transactions {
		if t.ExternalPaymentRef == tx.ExternalPaymentRef {
			return repositories.ErrDuplicateTransactionRef
		}
	}
	tx.ID = r.s.nextID("tx")
	tx.CreatedAt = r.s.tick()
	cp := *tx
	r.s.transactions = append(r.s.transactions, &cp)
	return nil
}

func (r *fakeTransactionRepo) CountByBooking(_ *gorm.DB, bookingID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.transactions {
		if t.BookingID == bookingID {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactionRepo) find(id string) (*models.SchoolTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) FindByID(_ *gorm.DB, id string) (*models.SchoolTransaction, error) {
	return r.find(id)
}

func (r *fakeTransactionRepo) LockByID(_ *gorm.DB, id string) (*models.SchoolTransaction, error) {
	return r.find(id)
}

func (r *fakeTransactionRepo) FindLatestByBooking(_ *gorm.DB, bookingID string) (*models.SchoolTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.SchoolTransaction
	for _, t := range r.s.transactions {
		if t.BookingID == bookingID && (latest == nil || t.CreatedAt.After(latest.CreatedAt)) {
			latest = t
		}
	}
	if latest == nil {
		return nil, repositories.ErrTransactionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeTransactionRepo) ListBySchool(_ *gorm.DB, schoolID string, released *bool, page, pageSize int) ([]models.SchoolTransaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []models.SchoolTransaction
	for _, t := range r.s.transactions {
		if t.SchoolID != schoolID || (released != nil && t.IsReleased != *released) {
			continue
		}
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.SchoolTransaction{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakeTransactionRepo) TotalsBySchool(_ *gorm.DB, schoolID string) (*repositories.TransactionTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	totals := &repositories.TransactionTotals{}
	for _, t := range r.s.transactions {
		if t.SchoolID != schoolID {
			continue
		}
		totals.Count++
		totals.Gross = totals.Gross.Add(t.Amount)
		totals.Fees = totals.Fees.Add(t.FeeAmount)
		totals.Net = totals.Net.Add(t.NetAmount)
		if t.IsReleased {
			totals.ReleasedNet = totals.ReleasedNet.Add(t.NetAmount)
		}
	}
	return totals, nil
}

func (r *fakeTransactionRepo) MarkReleased(_ *gorm.DB, id string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			if t.IsReleased {
				return false, nil
			}
			t.IsReleased = true
			t.ReleasedAt = &at
			return true, nil
		}
	}
	return false, nil
}

// ---- outbox ----

type fakeNotificationRepo struct{ s *fakeStore }

func (r *fakeNotificationRepo) Create(_ *gorm.DB, n *models.PayoutNotification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.nextID("ntf")
	n.Status = models.NotificationStatusPending
	cp := *n
	r.s.notifications = append(r.s.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) FindByID(_ *gorm.DB, id string) (*models.PayoutNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotificationNotFound
}

func claimable(n *models.PayoutNotification, maxAttempts int, staleBefore time.Time) bool {
	if n.Attempts >= maxAttempts {
		return false
	}
	switch n.Status {
	case models.NotificationStatusPending, models.NotificationStatusFailed:
		return true
	case models.NotificationStatusSending:
		return n.ClaimedAt != nil && n.ClaimedAt.Before(staleBefore)
	}
	return false
}

func (r *fakeNotificationRepo) FindDeliverable(_ *gorm.DB, maxAttempts, limit int, staleBefore time.Time) ([]models.PayoutNotification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failFindDeliverable {
		return nil, errStoreDown
	}
	var out []models.PayoutNotification
	for _, n := range r.s.notifications {
		if claimable(n, maxAttempts, staleBefore) && len(out) < limit {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) Claim(_ *gorm.DB, id string, maxAttempts int, at, staleBefore time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id {
			if !claimable(n, maxAttempts, staleBefore) {
				return false, nil
			}
			n.Status = models.NotificationStatusSending
			n.ClaimedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeNotificationRepo) MarkSent(_ *gorm.DB, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id {
			n.Status = models.NotificationStatusSent
			n.Attempts++
			n.SentAt = &at
		}
	}
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(_ *gorm.DB, id string, lastErr string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.ID == id {
			n.Status = models.NotificationStatusFailed
			n.Attempts++
			n.LastError = lastErr
		}
	}
	return nil
}

// ---- subscriptions ----

type fakeSubscriptionRepo struct{ s *fakeStore }

func (r *fakeSubscriptionRepo) FindByExternalID(_ *gorm.DB, externalID string) (*models.SchoolSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subscriptions[externalID]
	if !ok {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubscriptionRepo) FindLatestForSchool(_ *gorm.DB, schoolID string) (*models.SchoolSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.SchoolSubscription
	for _, sub := range r.s.subscriptions {
		if sub.SchoolID == schoolID && (latest == nil || sub.CreatedAt.After(latest.CreatedAt)) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeSubscriptionRepo) CancelOtherActive(_ *gorm.DB, schoolID, exceptExternalID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sub := range r.s.subscriptions {
		if sub.SchoolID == schoolID && sub.Status == models.SubscriptionStatusActive && sub.ExternalSubscriptionID != exceptExternalID {
			sub.Status = models.SubscriptionStatusCanceled
			n++
		}
	}
	return n, nil
}

func (r *fakeSubscriptionRepo) Upsert(_ *gorm.DB, sub *models.SchoolSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.subscriptions[sub.ExternalSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = r.s.nextID("sub")
		sub.CreatedAt = r.s.tick()
	}
	cp := *sub
	r.s.subscriptions[sub.ExternalSubscriptionID] = &cp
	return nil
}

func (r *fakeSubscriptionRepo) FindExpired(_ *gorm.DB, now time.Time, limit int) ([]models.SchoolSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.SchoolSubscription
	for _, sub := range r.s.subscriptions {
		if sub.Status == models.SubscriptionStatusActive && sub.EndsAt != nil && sub.EndsAt.Before(now) && len(out) < limit {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) UpdateStatus(_ *gorm.DB, id string, status models.SubscriptionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subscriptions {
		if sub.ID == id {
			sub.Status = status
			return nil
		}
	}
	return repositories.ErrSubscriptionNotFound
}

// ---- webhook events ----

type fakeWebhookRepo struct{ s *fakeStore }

func (r *fakeWebhookRepo) Create(_ *gorm.DB, e *models.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[e.EventID]; ok {
		return repositories.ErrDuplicateWebhookEvent
	}
	cp := *e
	r.s.events[e.EventID] = &cp
	return nil
}

func (r *fakeWebhookRepo) MarkProcessed(_ *gorm.DB, eventID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.events[eventID]; ok {
		e.ProcessedAt = &at
	}
	return nil
}

// ---- mailer / publisher ----

type sentMail struct {
	Recipient, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func datePtr(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
