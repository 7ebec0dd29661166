package settlement

import (
	"context"
	"fmt"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

// TransferRequest — запрос на выплату продавцу. Reference — ключ
// идемпотентности: провайдер не проведёт два трансфера с одним ключом.
type TransferRequest struct {
	Amount    int64
	Recipient string
	Reason    string
	Reference string
	DealID    string
}

// Provider — платёжный провайдер (списание уже произошло снаружи,
// диспетчеру остаются выплаты и возвраты).
type Provider interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (reference string, err error)
	CreateRefund(ctx context.Context, paymentRef string) (status string, err error)
}

type ProfileRepository interface {
	GetByIdentity(ctx context.Context, identity value.Identity) (*entity.UserProfile, error)
}

// Recorder фиксирует исход расчёта на сделке вместе с аудит-событием.
type Recorder interface {
	RecordSettlement(ctx context.Context, dealID string, rec entity.SettlementRecord, event entity.AuditEvent) error
}

// Dispatcher превращает «нужно заплатить/вернуть» в ровно один вызов
// провайдера и идемпотентно записывает результат. Не трогает статус сделки:
// к моменту диспатча она уже в терминальном состоянии.
type Dispatcher struct {
	provider Provider
	profiles ProfileRepository
	recorder Recorder
}

func NewDispatcher(provider Provider, profiles ProfileRepository, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		profiles: profiles,
		recorder: recorder,
	}
}

// Payout выплачивает продавцу amount − fee.
//   - выплата уже проведена — no-op;
//   - у продавца нет счёта — сделка помечается pending_manual, это не сбой,
//     а зафиксированная отложенная выплата;
//   - отказ провайдера — pending_manual, нужен оператор;
//   - провайдер недоступен — поля не трогаем, ретрай подберёт воркер.
func (d *Dispatcher) Payout(ctx context.Context, deal *entity.Deal, reason string) error {
	if deal.TransferRef != "" || deal.SettlementState == entity.SettlementSettled {
		return nil
	}

	profile, err := d.profiles.GetByIdentity(ctx, deal.Seller)
	if err != nil && !domain.HasCode(err, errcodes.NotFound) {
		return fmt.Errorf("profiles.GetByIdentity: %w", err)
	}

	if !profile.HasPayoutDestination() {
		if err := d.markPendingManual(ctx, deal, "seller has no payout destination"); err != nil {
			return err
		}

		return domain.NewError(errcodes.MissingDestination, "seller has no payout destination")
	}

	ref, err := d.provider.CreateTransfer(ctx, TransferRequest{
		Amount:    deal.SellerAmount(),
		Recipient: profile.RecipientCode,
		Reason:    reason,
		Reference: idempotencyKey(deal),
		DealID:    deal.DealID,
	})
	if err != nil {
		if domain.HasCode(err, errcodes.ProviderRejected) {
			if mErr := d.markPendingManual(ctx, deal, "provider rejected transfer"); mErr != nil {
				return mErr
			}
		}

		return fmt.Errorf("provider.CreateTransfer: %w", err)
	}

	// Референс провайдера фиксируем до того, как считать выплату
	// состоявшейся: без него сверка невозможна.
	settled := entity.SettlementSettled
	rec := entity.SettlementRecord{
		TransferRef:     &ref,
		SettlementState: &settled,
	}
	event := entity.NewTransitionEvent(deal, entity.ActionTransferInitiated,
		value.Identity(entity.ActorSystem), deal.Status, deal.Status, map[string]any{
			"reference": ref,
			"payout":    deal.SellerAmount(),
			"seller":    deal.Seller.String(),
		})

	if err := d.recorder.RecordSettlement(ctx, deal.DealID, rec, event); err != nil {
		return fmt.Errorf("recorder.RecordSettlement: %w", err)
	}

	deal.TransferRef = ref
	deal.SettlementState = settled

	return nil
}

// Refund возвращает платёж покупателю по исходному payment_ref.
// Сбой провайдера оставляет refund_status = initiated на ручную сверку.
func (d *Dispatcher) Refund(ctx context.Context, deal *entity.Deal) error {
	switch deal.RefundStatus {
	case entity.RefundProcessing, entity.RefundCompleted:
		return nil
	case entity.RefundNone, entity.RefundInitiated:
	}

	if deal.PaymentRef == "" {
		return domain.NewError(errcodes.ProviderRejected, "deal has no payment reference to refund")
	}

	if _, err := d.provider.CreateRefund(ctx, deal.PaymentRef); err != nil {
		return fmt.Errorf("provider.CreateRefund: %w", err)
	}

	processing := entity.RefundProcessing
	rec := entity.SettlementRecord{RefundStatus: &processing}
	event := entity.NewTransitionEvent(deal, entity.ActionRefundInitiated,
		value.Identity(entity.ActorSystem), deal.Status, deal.Status, map[string]any{
			"payment_ref": deal.PaymentRef,
			"buyer":       deal.Buyer.String(),
		})

	if err := d.recorder.RecordSettlement(ctx, deal.DealID, rec, event); err != nil {
		return fmt.Errorf("recorder.RecordSettlement: %w", err)
	}

	deal.RefundStatus = processing

	return nil
}

func (d *Dispatcher) markPendingManual(ctx context.Context, deal *entity.Deal, why string) error {
	pending := entity.SettlementPendingManual
	rec := entity.SettlementRecord{SettlementState: &pending}
	event := entity.NewTransitionEvent(deal, entity.ActionTransferInitiated,
		value.Identity(entity.ActorSystem), deal.Status, deal.Status, map[string]any{
			"pending_manual": true,
			"why":            why,
		})

	if err := d.recorder.RecordSettlement(ctx, deal.DealID, rec, event); err != nil {
		return fmt.Errorf("recorder.RecordSettlement: %w", err)
	}

	deal.SettlementState = pending

	return nil
}

// idempotencyKey — deal id, для споров с суффиксом исхода: повторный диспатч
// с тем же ключом не приведёт ко второму трансферу.
func idempotencyKey(deal *entity.Deal) string {
	if deal.DisputeResolution == value.ResolutionReleaseToSeller ||
		deal.DisputeResolution == value.ResolutionRefundBuyer {
		return deal.DealID + ":" + deal.DisputeResolution.String()
	}

	return deal.DealID
}
