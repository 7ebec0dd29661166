package escrow

import (
	"context"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

// Resolve: арбитр закрывает спор. Доступны ровно два исхода:
// release_to_seller и refund_buyer, оба ведут в completed.
// Повторное разрешение упирается в CAS (статус уже не disputed).
func (s *Service) Resolve(ctx context.Context, dealID string, actor value.Identity, resolution value.Resolution) (*entity.Deal, error) {
	if !resolution.ValidForArbiter() {
		return nil, domain.NewError(errcodes.InvalidResolution,
			"unsupported resolution "+resolution.String())
	}

	policy := s.policy.Policy(ctx)
	if !policy.IsArbiter(actor) {
		return nil, forbidden("only a platform arbiter may resolve disputes")
	}

	deal, err := s.apply(ctx, dealID, actor, TransitionResolve, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusDisputed {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is not disputed")
		}

		now := s.now()
		patch := Patch{
			Status:            entity.StatusCompleted,
			DisputeResolution: &resolution,
			DisputeResolvedAt: &now,
			CompletedAt:       &now,
		}

		if resolution == value.ResolutionRefundBuyer {
			refund := entity.RefundInitiated
			patch.RefundStatus = &refund
		}

		event := entity.NewTransitionEvent(deal, entity.ActionDisputeResolved, actor,
			deal.Status, patch.Status, map[string]any{
				"resolution": resolution.String(),
				"buyer":      deal.Buyer.String(),
				"seller":     deal.Seller.String(),
			})

		return patch, event, nil
	})
	if err != nil {
		return nil, err
	}

	switch resolution {
	case value.ResolutionReleaseToSeller:
		s.dispatchPayout(ctx, deal, "dispute resolved: "+deal.DealID)
	case value.ResolutionRefundBuyer:
		s.dispatchRefund(ctx, deal)
	}

	return deal, nil
}
