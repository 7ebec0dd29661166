package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"trustpay/internal/domain"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/httpx/reply"
	"trustpay/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const signatureHeader = "X-Paystack-Signature"

type escrowWebhooks interface {
	OnPaymentConfirmed(ctx context.Context, dealID, reference string, amount int64) error
	OnTransferCompleted(ctx context.Context, dealID, reference string) error
}

type signatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type eventDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// WebhookServer принимает события платёжного провайдера. Провайдер доставляет
// их минимум один раз, поэтому любой повтор должен закончиться 200 без
// побочных эффектов.
type WebhookServer struct {
	webhooks escrowWebhooks
	verifier signatureVerifier
	deduper  eventDeduper
}

func NewWebhookServer(
	webhooks escrowWebhooks,
	verifier signatureVerifier,
	deduper eventDeduper,
) WebhookServer {
	return WebhookServer{
		webhooks: webhooks,
		verifier: verifier,
		deduper:  deduper,
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Metadata  struct {
			DealID string `json:"deal_id"`
		} `json:"metadata"`
	} `json:"data"`
}

func (s WebhookServer) postV1PaystackWebhook(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return domain.WrapError(err, errcodes.ValidationError, "failed to read webhook body")
	}

	if !s.verifier.VerifySignature(body, r.Header.Get(signatureHeader)) {
		return domain.NewError(errcodes.InvalidSignature, "webhook signature mismatch")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.WrapError(err, errcodes.ValidationError, "failed to decode webhook body")
	}

	// Повторная доставка того же события — штатная ситуация, отвечаем 200.
	dedupKey := event.Event + ":" + event.Data.Reference

	seen, err := s.deduper.Seen(ctx, dedupKey)
	if err != nil {
		// Redis недоступен — обрабатываем без дедупликации, обработчики
		// идемпотентны.
		logger(ctx).Warn("webhook dedup unavailable", logx.Error(err))
	} else if seen {
		reply.OK(w)
		return nil
	}

	switch event.Event {
	case "charge.success":
		err = s.webhooks.OnPaymentConfirmed(ctx, chargeDealID(event), event.Data.Reference, event.Data.Amount)
	case "transfer.success":
		err = s.webhooks.OnTransferCompleted(ctx, transferDealID(event.Data.Reference), event.Data.Reference)
	default:
		// Неинтересные события подтверждаем, чтобы провайдер их не повторял.
		logger(ctx).Info("ignoring webhook event", "event", event.Event)
	}

	if err != nil {
		return fmt.Errorf("webhook %s: %w", event.Event, err)
	}

	// Ключ пишем только после успешной обработки: упавшее событие провайдер
	// доставит повторно, и повтор не должен быть отсечён как уже виденный.
	if err := s.deduper.MarkSeen(ctx, dedupKey); err != nil {
		logger(ctx).Warn("webhook dedup mark failed", logx.Error(err))
	}

	reply.OK(w)

	return nil
}

// chargeDealID: идентификатор сделки приходит в metadata, а reference
// дублирует его для платежей, созданных этой системой.
func chargeDealID(event webhookEvent) string {
	if event.Data.Metadata.DealID != "" {
		return event.Data.Metadata.DealID
	}

	return event.Data.Reference
}

// transferDealID срезает суффикс исхода спора из ключа идемпотентности.
func transferDealID(reference string) string {
	dealID, _, _ := strings.Cut(reference, ":")
	return dealID
}
