package server_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
	"trustpay/internal/server"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/middlewarex"
	"trustpay/pkg/rest"
	"trustpay/pkg/tests"
)

type fakeEscrow struct {
	deal *entity.Deal
	err  error

	payments  []paymentCall
	transfers []transferCall
}

type paymentCall struct {
	dealID    string
	reference string
	amount    int64
}

type transferCall struct {
	dealID    string
	reference string
}

func (f *fakeEscrow) Create(_ context.Context, p escrow.CreateParams) (*entity.Deal, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &entity.Deal{
		DealID:      "ESC-NEW",
		Buyer:       p.Buyer,
		Seller:      p.Seller,
		Amount:      p.Amount,
		Fee:         500,
		Description: p.Description,
		Status:      entity.StatusPending,
		CreatedAt:   time.Now(),
	}, nil
}

func (f *fakeEscrow) GetByID(context.Context, string) (*entity.Deal, error) {
	if f.deal == nil {
		return nil, domain.NewError(errcodes.DealNotFound, "deal not found")
	}

	return f.deal, nil
}

func (f *fakeEscrow) transition(context.Context) (*entity.Deal, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.deal, nil
}

func (f *fakeEscrow) Accept(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) Decline(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) Cancel(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) CancelWithinWindow(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) MarkDelivered(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) ConfirmReceived(ctx context.Context, _ string, _ value.Identity) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) OpenDispute(ctx context.Context, _ string, _ value.Identity, _ string) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) Resolve(ctx context.Context, _ string, _ value.Identity, _ value.Resolution) (*entity.Deal, error) {
	return f.transition(ctx)
}

func (f *fakeEscrow) OnPaymentConfirmed(_ context.Context, dealID, reference string, amount int64) error {
	f.payments = append(f.payments, paymentCall{dealID, reference, amount})
	return f.err
}

func (f *fakeEscrow) OnTransferCompleted(_ context.Context, dealID, reference string) error {
	f.transfers = append(f.transfers, transferCall{dealID, reference})
	return f.err
}

type fakeAudit struct{}

func (fakeAudit) ListByDeal(context.Context, string) ([]entity.AuditEvent, error) {
	return nil, nil
}

type fakeCheckout struct{}

func (fakeCheckout) InitializeCharge(context.Context, string, value.Identity, string) (string, string, error) {
	return "https://checkout.paystack.com/abc", "ESC-NEW", nil
}

func (fakeCheckout) RegisterDestination(context.Context, value.Identity, checkout.DestinationParams) error {
	return nil
}

type fakeVerifier struct {
	valid string
}

func (f fakeVerifier) VerifySignature(_ []byte, signature string) bool {
	return signature == f.valid
}

type fakeDeduper struct {
	seen   bool
	err    error
	marked []string
}

func (f *fakeDeduper) Seen(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}

	return f.seen || slices.Contains(f.marked, key), nil
}

func (f *fakeDeduper) MarkSeen(_ context.Context, key string) error {
	f.marked = append(f.marked, key)
	return nil
}

type testEnv struct {
	escrow  *fakeEscrow
	deduper *fakeDeduper
	router  chi.Router
}

func newTestEnv() *testEnv {
	escrowFake := &fakeEscrow{}
	deduper := &fakeDeduper{}

	co := fakeCheckout{}
	srv := server.NewServer(
		server.NewEscrowServer(escrowFake, fakeAudit{}, co, co),
		server.NewWebhookServer(escrowFake, fakeVerifier{valid: "good"}, deduper),
	)

	router := chi.NewRouter()
	router.Use(middlewarex.UserID)
	srv.RegisterRoutes(router)

	return &testEnv{escrow: escrowFake, deduper: deduper, router: router}
}

func (e *testEnv) do(method, target, user, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	return w
}

func TestCreateDeal(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	w := env.do(http.MethodPost, "/v1/deals", "@buyer",
		`{"seller":"@seller","amount":10000,"description":"phone"}`, nil)

	rq.Equal(http.StatusCreated, w.Code)
	rq.Contains(w.Body.String(), `"dealId":"ESC-NEW"`)
	rq.Contains(w.Body.String(), `"status":"pending"`)
}

func TestCreateDealRequiresIdentity(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	w := env.do(http.MethodPost, "/v1/deals", "",
		`{"seller":"@seller","amount":10000,"description":"phone"}`, nil)

	rq.Equal(http.StatusBadRequest, w.Code)
	rq.Contains(w.Body.String(), "InvalidIdentity")
}

func TestGetDealNotFound(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	w := env.do(http.MethodGet, "/v1/deals/ESC-MISSING", "@buyer", "", nil)

	rq.Equal(http.StatusNotFound, w.Code)
	rq.Contains(w.Body.String(), "DealNotFound")
}

func TestTransitionConflict(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()
	env.escrow.deal = &entity.Deal{DealID: "ESC-1", Status: entity.StatusAccepted}
	env.escrow.err = domain.NewError(errcodes.InvalidStateTransition, "status changed")

	w := env.do(http.MethodPost, "/v1/deals/ESC-1/accept", "@seller", "", nil)

	rq.Equal(http.StatusConflict, w.Code)
}

func TestForbiddenTransition(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()
	env.escrow.deal = &entity.Deal{DealID: "ESC-1", Status: entity.StatusPending}
	env.escrow.err = domain.NewError(errcodes.Forbidden, "only the seller may accept")

	w := env.do(http.MethodPost, "/v1/deals/ESC-1/accept", "@stranger", "", nil)

	rq.Equal(http.StatusForbidden, w.Code)
}

func TestPayReturnsCheckout(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	w := env.do(http.MethodPost, "/v1/deals/ESC-1/pay", "@buyer", `{"email":"buyer@mail.com"}`, nil)

	rq.Equal(http.StatusOK, w.Code)
	rq.Contains(w.Body.String(), "https://checkout.paystack.com/abc")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		`{"event":"charge.success"}`, map[string]string{"X-Paystack-Signature": "forged"})

	rq.Equal(http.StatusUnauthorized, w.Code)
	rq.Empty(env.escrow.payments)
}

func TestWebhookChargeSuccess(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	body := `{"event":"charge.success","data":{"reference":"ESC-1","amount":10000,"metadata":{"deal_id":"ESC-1"}}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	rq.Equal(http.StatusOK, w.Code)
	rq.Equal([]paymentCall{{dealID: "ESC-1", reference: "ESC-1", amount: 10000}}, env.escrow.payments)
}

func TestWebhookChargeFallsBackToReference(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	body := `{"event":"charge.success","data":{"reference":"ESC-2","amount":5000}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	rq.Equal(http.StatusOK, w.Code)
	rq.Equal("ESC-2", env.escrow.payments[0].dealID)
}

func TestWebhookTransferStripsResolutionSuffix(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	body := `{"event":"transfer.success","data":{"reference":"ESC-3:release_to_seller"}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	rq.Equal(http.StatusOK, w.Code)
	rq.Equal([]transferCall{{dealID: "ESC-3", reference: "ESC-3:release_to_seller"}}, env.escrow.transfers)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()
	env.deduper.seen = true

	body := `{"event":"charge.success","data":{"reference":"ESC-1","amount":10000}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	// Повтор подтверждаем 200-м без побочных эффектов
	rq.Equal(http.StatusOK, w.Code)
	rq.Empty(env.escrow.payments)
}

func TestWebhookDedupUnavailable(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()
	env.deduper.err = errors.New("redis: connection refused")

	body := `{"event":"charge.success","data":{"reference":"ESC-1","amount":10000}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	// Redis лёг — событие всё равно обработано, обработчики идемпотентны
	rq.Equal(http.StatusOK, w.Code)
	rq.Len(env.escrow.payments, 1)
}

func TestWebhookRetryAfterFailure(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	body := `{"event":"charge.success","data":{"reference":"ESC-1","amount":10000}}`
	headers := map[string]string{"X-Paystack-Signature": "good"}

	// Первая доставка падает (база недоступна) — провайдеру отвечаем 5xx,
	// и событие НЕ помечается виденным.
	env.escrow.err = errors.New("db down")
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "", body, headers)
	rq.Equal(http.StatusInternalServerError, w.Code)
	rq.Len(env.escrow.payments, 1)
	rq.Empty(env.deduper.marked)

	// Повторная доставка проходит полный путь обработки
	env.escrow.err = nil
	w = env.do(http.MethodPost, "/v1/paystack/webhook", "", body, headers)
	rq.Equal(http.StatusOK, w.Code)
	rq.Len(env.escrow.payments, 2)
	rq.Equal([]string{"charge.success:ESC-1"}, env.deduper.marked)

	// Третья доставка отсечена дедупликацией
	w = env.do(http.MethodPost, "/v1/paystack/webhook", "", body, headers)
	rq.Equal(http.StatusOK, w.Code)
	rq.Len(env.escrow.payments, 2)
}

func TestWebhookIgnoresUnknownEvent(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	body := `{"event":"subscription.create","data":{"reference":"whatever"}}`
	w := env.do(http.MethodPost, "/v1/paystack/webhook", "",
		body, map[string]string{"X-Paystack-Signature": "good"})

	rq.Equal(http.StatusOK, w.Code)
	rq.Empty(env.escrow.payments)
	rq.Empty(env.escrow.transfers)
}

// TestAPIRoundTrip гоняет запросы через реальный HTTP-слой: сериализация,
// маршрутизация и формат ошибок видны так, как их видит клиент.
func TestAPIRoundTrip(t *testing.T) {
	rq := require.New(t)
	env := newTestEnv()

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	client := tests.NewAPIClient(srv.URL, srv.Client())
	ctx := context.Background()

	var deal rest.Deal
	resp, err := client.Post(ctx, "/v1/deals",
		http.Header{"X-User": []string{"@buyer"}},
		rest.CreateDealRequest{Seller: "@seller", Amount: 10_000, Description: "phone"},
		&deal, nil)
	rq.NoError(err)
	rq.Equal(http.StatusCreated, resp.StatusCode)
	rq.Equal("ESC-NEW", deal.DealID)
	rq.Equal("@buyer", deal.Buyer)

	var restErr rest.Error
	resp, err = client.Get(ctx, "/v1/deals/ESC-MISSING",
		http.Header{"X-User": []string{"@buyer"}}, nil, &restErr)
	rq.NoError(err)
	rq.Equal(http.StatusNotFound, resp.StatusCode)
	rq.EqualValues("DealNotFound", restErr.Code)
}
