package escrow

import (
	"context"

	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/logx"
)

// Accept: продавец соглашается на сделку. pending -> accepted.
func (s *Service) Accept(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	return s.apply(ctx, dealID, actor, TransitionAccept, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusPending {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is no longer pending")
		}

		patch := Patch{Status: entity.StatusAccepted}
		event := entity.NewTransitionEvent(deal, entity.ActionDealAccepted, actor,
			deal.Status, patch.Status, map[string]any{"buyer": deal.Buyer.String()})

		return patch, event, nil
	})
}

// Decline: продавец отказывается. pending -> completed [declined_by_seller].
func (s *Service) Decline(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	return s.apply(ctx, dealID, actor, TransitionDecline, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusPending {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is no longer pending")
		}

		now := s.now()
		resolution := value.ResolutionDeclinedBySeller
		patch := Patch{
			Status:            entity.StatusCompleted,
			DisputeResolution: &resolution,
			CompletedAt:       &now,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDealDeclined, actor,
			deal.Status, patch.Status, map[string]any{"buyer": deal.Buyer.String()})

		return patch, event, nil
	})
}

// Cancel: покупатель отменяет до оплаты. pending -> completed [cancelled_by_buyer].
func (s *Service) Cancel(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	return s.apply(ctx, dealID, actor, TransitionCancel, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusPending {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is no longer pending")
		}

		now := s.now()
		resolution := value.ResolutionCancelledByBuyer
		patch := Patch{
			Status:            entity.StatusCompleted,
			DisputeResolution: &resolution,
			CompletedAt:       &now,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDealCancelled, actor,
			deal.Status, patch.Status, map[string]any{"reason": "buyer cancelled before payment"})

		return patch, event, nil
	})
}

// MarkDelivered: продавец отметил доставку. Статус не меняется (funded),
// ставится только delivered_at — не более одного раза.
func (s *Service) MarkDelivered(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	return s.apply(ctx, dealID, actor, TransitionMarkDelivered, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusFunded {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is not funded")
		}

		if deal.DeliveredAt != nil {
			return Patch{}, entity.AuditEvent{}, invalidState("delivery already marked")
		}

		now := s.now()
		patch := Patch{
			Status:                entity.StatusFunded,
			DeliveredAt:           &now,
			RequireDeliveredUnset: true,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDeliveryMarked, actor,
			deal.Status, patch.Status, map[string]any{"buyer": deal.Buyer.String()})

		return patch, event, nil
	})
}

// ConfirmReceived: покупатель подтвердил получение. funded -> completed,
// затем диспатч выплаты продавцу.
func (s *Service) ConfirmReceived(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	deal, err := s.apply(ctx, dealID, actor, TransitionConfirmReceived, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusFunded {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is not funded")
		}

		if deal.DeliveredAt == nil {
			return Patch{}, entity.AuditEvent{}, preconditionNotMet("seller has not marked delivery yet")
		}

		now := s.now()
		patch := Patch{
			Status:      entity.StatusCompleted,
			CompletedAt: &now,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDeliveryConfirmed, actor,
			deal.Status, patch.Status, map[string]any{"fee": deal.Fee})

		return patch, event, nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchPayout(ctx, deal, "escrow payout for "+deal.DealID)

	return deal, nil
}

// OpenDispute: покупатель открывает спор. funded -> disputed.
// Гонка с CancelWithinWindow разрешается CAS-ом: выигрывает первый коммит.
func (s *Service) OpenDispute(ctx context.Context, dealID string, actor value.Identity, reason string) (*entity.Deal, error) {
	return s.apply(ctx, dealID, actor, TransitionOpenDispute, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusFunded {
			return Patch{}, entity.AuditEvent{}, invalidState("only funded deals can be disputed")
		}

		now := s.now()
		patch := Patch{
			Status:          entity.StatusDisputed,
			DisputeReason:   &reason,
			DisputeOpenedAt: &now,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDisputeOpened, actor,
			deal.Status, patch.Status, map[string]any{
				"reason": reason,
				"seller": deal.Seller.String(),
			})

		return patch, event, nil
	})
}

// CancelWithinWindow: покупатель отменяет в течение окна после фандинга.
// funded -> refunded, затем диспатч возврата.
func (s *Service) CancelWithinWindow(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error) {
	policy := s.policy.Policy(ctx)

	deal, err := s.apply(ctx, dealID, actor, TransitionCancelWithinWindow, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusFunded {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is not funded")
		}

		if deal.DeliveredAt != nil {
			return Patch{}, entity.AuditEvent{}, preconditionNotMet("already delivered, open a dispute instead")
		}

		if !deal.WithinCancelWindow(s.now(), policy.CancelWindow) {
			return Patch{}, entity.AuditEvent{}, preconditionNotMet("cancel window expired, open a dispute instead")
		}

		now := s.now()
		resolution := value.ResolutionRefundedAuto
		refund := entity.RefundInitiated
		patch := Patch{
			Status:            entity.StatusRefunded,
			DisputeResolution: &resolution,
			RefundStatus:      &refund,
			CompletedAt:       &now,
			// Гонка с MarkDelivered: доставка не меняет статус, поэтому
			// отмена дополнительно требует delivered_at IS NULL на коммите.
			RequireDeliveredUnset: true,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionDealCancelledFund, actor,
			deal.Status, patch.Status, map[string]any{"reason": "buyer cancelled within window"})

		return patch, event, nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchRefund(ctx, deal)

	return deal, nil
}

// dispatchPayout и dispatchRefund вызываются после коммита терминального
// статуса. Ошибка расчётов логируется и остаётся в полях сделки на
// асинхронную сверку — сам переход уже необратим.
func (s *Service) dispatchPayout(ctx context.Context, deal *entity.Deal, reason string) {
	if err := s.dispatcher.Payout(ctx, deal, reason); err != nil {
		logger(ctx).Warn("settlement payout deferred",
			"deal_id", deal.DealID, logx.Error(err))
	}
}

func (s *Service) dispatchRefund(ctx context.Context, deal *entity.Deal) {
	if err := s.dispatcher.Refund(ctx, deal); err != nil {
		logger(ctx).Warn("settlement refund deferred",
			"deal_id", deal.DealID, logx.Error(err))
	}
}
