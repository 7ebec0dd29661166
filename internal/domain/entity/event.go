package entity

import (
	"time"

	"trustpay/internal/domain/value"
)

// Действия, попадающие в аудит-лог. Один успешный переход — одно событие.
const (
	ActionDealCreated        = "deal_created"
	ActionDealAccepted       = "deal_accepted"
	ActionDealDeclined       = "deal_declined"
	ActionDealCancelled      = "deal_cancelled"
	ActionDealCancelledFund  = "deal_cancelled_refund"
	ActionPaymentConfirmed   = "payment_confirmed"
	ActionDeliveryMarked     = "delivery_marked"
	ActionDeliveryConfirmed  = "delivery_confirmed"
	ActionDisputeOpened      = "dispute_opened"
	ActionDisputeResolved    = "dispute_resolved"
	ActionAutoReleased       = "auto_released"
	ActionTransferInitiated  = "transfer_initiated"
	ActionTransferCompleted  = "transfer_completed"
	ActionRefundInitiated    = "refund_initiated"
)

// ActorSystem и ActorProvider — служебные акторы аудита: шедулер и канал
// платёжного провайдера не являются участниками сделки.
const (
	ActorSystem   = "system"
	ActorProvider = "paystack"
)

// AuditEvent — запись append-only аудита и одновременно доменное событие для
// нотификатора. Никогда не изменяется и не удаляется.
type AuditEvent struct {
	ID         int64
	DealID     string
	Action     string
	Actor      string
	FromStatus Status
	ToStatus   Status
	Details    map[string]any
	CreatedAt  time.Time
}

// NewTransitionEvent собирает событие перехода. Details копируются, чтобы
// подписчики не могли повлиять на запись в аудите.
func NewTransitionEvent(deal *Deal, action string, actor value.Identity, from, to Status, details map[string]any) AuditEvent {
	d := make(map[string]any, len(details)+1)
	for k, v := range details {
		d[k] = v
	}

	d["amount"] = deal.Amount

	return AuditEvent{
		DealID:     deal.DealID,
		Action:     action,
		Actor:      actor.String(),
		FromStatus: from,
		ToStatus:   to,
		Details:    d,
	}
}
