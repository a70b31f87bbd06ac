package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"travelwild_backend/internal/auth"
	"travelwild_backend/internal/booking"
	"travelwild_backend/internal/middleware"
	"travelwild_backend/internal/models"
	"travelwild_backend/internal/payments/stripe"
	"travelwild_backend/internal/services"
	"travelwild_backend/internal/services/dto"
	"travelwild_backend/internal/validator"
	"travelwild_backend/pkg/apperrors"
)

const testSecret = "handler-test-secret"

// stubBookings реализует services.BookingService для хэндлеров.
type stubBookings struct {
	services.BookingService
	gotActor   booking.Actor
	gotID      string
	gotOutcome *dto.OutcomeRequest
	err        error
}

func (s *stubBookings) GetBooking(_ context.Context, _ *gorm.DB, actor booking.Actor, id string) (*dto.BookingResponse, error) {
	s.gotActor, s.gotID = actor, id
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BookingResponse{ID: id}, nil
}

func (s *stubBookings) RecordOutcome(_ context.Context, _ *gorm.DB, actor booking.Actor, id string, req *dto.OutcomeRequest) (*dto.OutcomeResponse, error) {
	s.gotActor, s.gotID, s.gotOutcome = actor, id, req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.OutcomeResponse{Booking: &dto.BookingResponse{ID: id, Status: req.Status}}, nil
}

type stubFinance struct {
	services.FinanceService
	gotSchool string
	gotQuery  *dto.TransactionListQuery
}

func (s *stubFinance) GetSchoolSummary(_ context.Context, _ *gorm.DB, schoolID string) (*dto.FinanceSummaryResponse, error) {
	s.gotSchool = schoolID
	return &dto.FinanceSummaryResponse{SchoolID: schoolID}, nil
}

func (s *stubFinance) ListSchoolTransactions(_ context.Context, _ *gorm.DB, schoolID string, q *dto.TransactionListQuery) (*dto.TransactionListResponse, error) {
	s.gotSchool, s.gotQuery = schoolID, q
	return &dto.TransactionListResponse{Page: q.Page, PageSize: q.PageSize}, nil
}

func (s *stubFinance) ReleaseTransaction(_ context.Context, _ *gorm.DB, adminID, txID string) (*dto.ReleaseResponse, error) {
	s.gotSchool = adminID
	return &dto.ReleaseResponse{Transaction: &dto.TransactionResponse{ID: txID, IsReleased: true}}, nil
}

type stubWebhooks struct {
	payload   []byte
	signature string
	err       error
}

func (s *stubWebhooks) HandleStripeEvent(_ context.Context, _ *gorm.DB, payload []byte, signature string) (*dto.WebhookResponse, error) {
	s.payload, s.signature = payload, signature
	if s.err != nil {
		return nil, s.err
	}
	return &dto.WebhookResponse{EventID: "evt_1", Status: dto.WebhookProcessed}, nil
}

func newTestRouter(register func(r *gin.RouterGroup, authMW gin.HandlerFunc)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.DBMiddleware(&gorm.DB{}))
	register(r.Group("/api/v1"), middleware.AuthMiddleware(testSecret))
	return r
}

func token(t *testing.T, userID string, role models.UserRole, schoolID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, userID, string(role), schoolID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(r http.Handler, method, path, authHeader string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestBookingHandler_GetBookingRequiresToken(t *testing.T) {
	svc := &stubBookings{}
	h := NewBookingHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodGet, "/api/v1/bookings/b-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/api/v1/bookings/b-1", "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.gotID)
}

func TestBookingHandler_GetBookingPassesActor(t *testing.T) {
	svc := &stubBookings{}
	h := NewBookingHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodGet, "/api/v1/bookings/b-1", token(t, "u-1", models.UserRoleTraveler, ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-1", svc.gotID)
	assert.Equal(t, booking.ActorTraveler, svc.gotActor.Kind)
	assert.Equal(t, "u-1", svc.gotActor.UserID)
}

func TestBookingHandler_ServiceErrorMapsToStatus(t *testing.T) {
	svc := &stubBookings{err: apperrors.ErrNotBookingOwner}
	h := NewBookingHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodGet, "/api/v1/bookings/b-1", token(t, "u-2", models.UserRoleTraveler, ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(apperrors.CodeForbidden), errorCode(t, w))
}

func TestBookingHandler_RecordOutcome(t *testing.T) {
	svc := &stubBookings{}
	h := NewBookingHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)
	schoolToken := token(t, "u-1", models.UserRoleSchool, "s-1")

	w := do(r, http.MethodPost, "/api/v1/school/bookings/b-1/outcome", schoolToken,
		bytes.NewBufferString(`{"status":"completed"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, booking.ActorSchool, svc.gotActor.Kind)
	assert.Equal(t, "s-1", svc.gotActor.SchoolID)
	assert.Equal(t, "completed", svc.gotOutcome.Status)
}

func TestBookingHandler_RecordOutcomeRejects(t *testing.T) {
	cases := []struct {
		name   string
		auth   func(t *testing.T) string
		body   string
		status int
	}{
		{"traveler role", func(t *testing.T) string { return token(t, "u-1", models.UserRoleTraveler, "") }, `{"status":"completed"}`, http.StatusForbidden},
		{"school not linked", func(t *testing.T) string { return token(t, "u-1", models.UserRoleSchool, "") }, `{"status":"completed"}`, http.StatusForbidden},
		{"not an outcome", func(t *testing.T) string { return token(t, "u-1", models.UserRoleSchool, "s-1") }, `{"status":"confirmed"}`, http.StatusBadRequest},
		{"broken json", func(t *testing.T) string { return token(t, "u-1", models.UserRoleSchool, "s-1") }, `{"status":`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubBookings{}
			h := NewBookingHandler(NewBaseHandler(validator.New()), svc)
			r := newTestRouter(h.RegisterRoutes)

			w := do(r, http.MethodPost, "/api/v1/school/bookings/b-1/outcome", tc.auth(t), bytes.NewBufferString(tc.body))
			assert.Equal(t, tc.status, w.Code)
			assert.Nil(t, svc.gotOutcome)
		})
	}
}

func TestSchoolHandler_UsesSchoolFromToken(t *testing.T) {
	svc := &stubFinance{}
	h := NewSchoolHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)
	schoolToken := token(t, "u-1", models.UserRoleSchool, "s-1")

	w := do(r, http.MethodGet, "/api/v1/school/finance", schoolToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", svc.gotSchool)

	w = do(r, http.MethodGet, "/api/v1/school/transactions?released=false&page=2&page_size=50", schoolToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, svc.gotQuery.Released)
	assert.False(t, *svc.gotQuery.Released)
	assert.Equal(t, 2, svc.gotQuery.Page)
	assert.Equal(t, 50, svc.gotQuery.PageSize)
}

func TestSchoolHandler_AdminIsRejected(t *testing.T) {
	svc := &stubFinance{}
	h := NewSchoolHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodGet, "/api/v1/school/finance", token(t, "a-1", models.UserRoleAdmin, ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.gotSchool)
}

func TestWebhookHandler_PassesRawBodyAndSignature(t *testing.T) {
	svc := &stubWebhooks{}
	h := NewWebhookHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(func(g *gin.RouterGroup, _ gin.HandlerFunc) { h.RegisterRoutes(g) })

	body := `{"id":"evt_1",  "type":"payment_intent.succeeded"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBufferString(body))
	req.Header.Set(stripe.SignatureHeader, "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, string(svc.payload))
	assert.Equal(t, "t=1,v1=abc", svc.signature)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	svc := &stubWebhooks{err: apperrors.ErrInvalidSignature}
	h := NewWebhookHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(func(g *gin.RouterGroup, _ gin.HandlerFunc) { h.RegisterRoutes(g) })

	w := do(r, http.MethodPost, "/api/v1/webhooks/stripe", "", bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeInvalidSignature), errorCode(t, w))
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	svc := &stubWebhooks{}
	h := NewWebhookHandler(NewBaseHandler(validator.New()), svc)
	r := newTestRouter(func(g *gin.RouterGroup, _ gin.HandlerFunc) { h.RegisterRoutes(g) })

	w := do(r, http.MethodPost, "/api/v1/webhooks/stripe", "", bytes.NewReader(make([]byte, maxWebhookBody+1)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.payload)
}

func TestAdminHandler_ReleaseRequiresAdmin(t *testing.T) {
	finance := &stubFinance{}
	h := NewAdminHandler(NewBaseHandler(validator.New()), &stubBookings{}, finance, nil)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodPost, "/api/v1/admin/transactions/tx-1/release", token(t, "u-1", models.UserRoleSchool, "s-1"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, finance.gotSchool)

	w = do(r, http.MethodPost, "/api/v1/admin/transactions/tx-1/release", token(t, "a-1", models.UserRoleAdmin, ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a-1", finance.gotSchool)

	var resp dto.ReleaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tx-1", resp.Transaction.ID)
}

func TestAdminHandler_VerificationNeedsFlag(t *testing.T) {
	h := NewAdminHandler(NewBaseHandler(validator.New()), &stubBookings{}, &stubFinance{}, nil)
	r := newTestRouter(h.RegisterRoutes)

	w := do(r, http.MethodPut, "/api/v1/admin/schools/s-1/verification", token(t, "a-1", models.UserRoleAdmin, ""), bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeValidationFailed), errorCode(t, w))
}
