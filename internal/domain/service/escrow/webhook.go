package escrow

import (
	"context"
	"fmt"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/pkg/errcodes"
)

// OnPaymentConfirmed — вход вебхука charge.success. Провайдер доставляет
// событие at-least-once, поэтому метод идемпотентен: повторная доставка по
// уже профинансированной сделке — тихий no-op, чтобы не провоцировать
// ретрай-шторм у провайдера.
func (s *Service) OnPaymentConfirmed(ctx context.Context, dealID, reference string, amount int64) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if domain.HasCode(err, errcodes.DealNotFound) {
			logger(ctx).Warn("payment for unknown deal", "deal_id", dealID, "reference", reference)
			return nil
		}

		return fmt.Errorf("deals.GetByID: %w", err)
	}

	if deal.Status != entity.StatusAccepted {
		// Уже funded (дубль вебхука) либо сделка ушла дальше — игнорируем.
		logger(ctx).Info("payment ignored, deal not in accepted state",
			"deal_id", dealID, "status", deal.Status.String())
		return nil
	}

	if amount != deal.Amount {
		logger(ctx).Warn("payment amount mismatch",
			"deal_id", dealID, "expected", deal.Amount, "got", amount)
	}

	now := s.now()
	patch := Patch{
		Status:     entity.StatusFunded,
		PaymentRef: &reference,
		FundedAt:   &now,
	}
	event := entity.NewTransitionEvent(deal, entity.ActionPaymentConfirmed, actorProvider,
		deal.Status, patch.Status, map[string]any{"reference": reference})
	event.CreatedAt = now

	if err = s.deals.Transition(ctx, deal.DealID, entity.StatusAccepted, patch, event); err != nil {
		if domain.HasCode(err, errcodes.InvalidStateTransition) {
			// Гонка двух доставок: первая уже закоммитила funded.
			return nil
		}

		return fmt.Errorf("deals.Transition: %w", err)
	}

	observeTransition(TransitionPaymentConfirmed, nil)
	s.publisher.Publish(event)

	return nil
}

// OnTransferCompleted — вход вебхука transfer.success: провайдер подтвердил,
// что выплата дошла до продавца. Статус сделки не меняется, фиксируется
// только референс трансфера (один раз).
func (s *Service) OnTransferCompleted(ctx context.Context, dealID, reference string) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if domain.HasCode(err, errcodes.DealNotFound) {
			logger(ctx).Warn("transfer for unknown deal", "deal_id", dealID, "reference", reference)
			return nil
		}

		return fmt.Errorf("deals.GetByID: %w", err)
	}

	if deal.TransferRef == reference && deal.SettlementState == entity.SettlementSettled {
		return nil // Дубль вебхука
	}

	settled := entity.SettlementSettled
	rec := entity.SettlementRecord{
		TransferRef:     &reference,
		SettlementState: &settled,
	}
	event := entity.NewTransitionEvent(deal, entity.ActionTransferCompleted, actorProvider,
		deal.Status, deal.Status, map[string]any{"reference": reference})
	event.CreatedAt = s.now()

	if err = s.deals.RecordSettlement(ctx, deal.DealID, rec, event); err != nil {
		return fmt.Errorf("deals.RecordSettlement: %w", err)
	}

	s.publisher.Publish(event)

	return nil
}
