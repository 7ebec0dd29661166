package escrow

import (
	"context"
	"fmt"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/logx"
)

// SweepResult — итог одного прохода авто-релиза.
type SweepResult struct {
	Checked  int
	Released int
	Failed   int
}

const sweepBatchSize = 100

// AutoReleaseSweep находит все funded-сделки старше окна авто-релиза и
// завершает их в пользу продавца. Ошибка по одной сделке не прерывает проход.
// Сделка, которую успел увести участник, отсекается CAS-ом и пропускается.
func (s *Service) AutoReleaseSweep(ctx context.Context) (SweepResult, error) {
	policy := s.policy.Policy(ctx)
	cutoff := s.now().Add(-policy.AutoReleaseWindow)

	deals, err := s.deals.ListFundedBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("deals.ListFundedBefore: %w", err)
	}

	result := SweepResult{Checked: len(deals)}

	for _, deal := range deals {
		if err := s.AutoRelease(ctx, deal.DealID); err != nil {
			if domain.HasCode(err, errcodes.InvalidStateTransition) {
				continue // Участник успел раньше свипа
			}

			result.Failed++

			logger(ctx).Error("auto release failed",
				"deal_id", deal.DealID, logx.Error(err))

			continue
		}

		result.Released++
		sweepReleasedTotal.Inc()
	}

	return result, nil
}

// AutoRelease: принудительное завершение funded-сделки по таймауту в пользу
// продавца. Вызывается только шедулером; окно считается по wall-clock от
// funded_at.
func (s *Service) AutoRelease(ctx context.Context, dealID string) error {
	policy := s.policy.Policy(ctx)

	deal, err := s.apply(ctx, dealID, actorScheduler, TransitionAutoRelease, func(deal *entity.Deal) (Patch, entity.AuditEvent, error) {
		if deal.Status != entity.StatusFunded {
			return Patch{}, entity.AuditEvent{}, invalidState("deal is not funded")
		}

		if !deal.AutoReleaseDue(s.now(), policy.AutoReleaseWindow) {
			return Patch{}, entity.AuditEvent{}, preconditionNotMet("auto release window has not elapsed")
		}

		now := s.now()
		resolution := value.ResolutionAutoReleased
		patch := Patch{
			Status:            entity.StatusCompleted,
			DisputeResolution: &resolution,
			CompletedAt:       &now,
		}
		event := entity.NewTransitionEvent(deal, entity.ActionAutoReleased, actorScheduler,
			deal.Status, patch.Status, map[string]any{
				"seller":    deal.Seller.String(),
				"funded_at": deal.FundedAt,
			})

		return patch, event, nil
	})
	if err != nil {
		return err
	}

	s.dispatchPayout(ctx, deal, "auto-release for "+deal.DealID)

	return nil
}
