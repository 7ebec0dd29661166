package worker

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/logx"
)

// TaskSettlementRetry добирает расчёты, не прошедшие с первого раза:
// выплаты без трансфера и возвраты, не принятые провайдером.
const TaskSettlementRetry = "settlement:retry"

const retryBatchSize = 50

type pendingLister interface {
	ListPendingPayouts(ctx context.Context, limit int) ([]*entity.Deal, error)
	ListPendingRefunds(ctx context.Context, limit int) ([]*entity.Deal, error)
}

type dispatcher interface {
	Payout(ctx context.Context, deal *entity.Deal, reason string) error
	Refund(ctx context.Context, deal *entity.Deal) error
}

type SettlementRetry struct {
	deals      pendingLister
	dispatcher dispatcher
}

func NewSettlementRetry(deals pendingLister, dispatcher dispatcher) *SettlementRetry {
	return &SettlementRetry{
		deals:      deals,
		dispatcher: dispatcher,
	}
}

// Handle обрабатывает сделки по одной: сбой на одной не мешает остальным,
// а сами диспатчи идемпотентны.
func (w *SettlementRetry) Handle(ctx context.Context, _ *asynq.Task) error {
	payouts, err := w.deals.ListPendingPayouts(ctx, retryBatchSize)
	if err != nil {
		logger(ctx).Error("failed to list pending payouts", logx.Error(err))
	}

	for _, deal := range payouts {
		if err := w.dispatcher.Payout(ctx, deal, "escrow payout"); err != nil {
			// Продавец всё ещё без счёта — ждём дальше, это не сбой ретрая.
			if domain.HasCode(err, errcodes.MissingDestination) {
				continue
			}

			logger(ctx).Warn("payout retry failed",
				slog.String("deal_id", deal.DealID), logx.Error(err))
		}
	}

	refunds, err := w.deals.ListPendingRefunds(ctx, retryBatchSize)
	if err != nil {
		logger(ctx).Error("failed to list pending refunds", logx.Error(err))
	}

	for _, deal := range refunds {
		if err := w.dispatcher.Refund(ctx, deal); err != nil {
			logger(ctx).Warn("refund retry failed",
				slog.String("deal_id", deal.DealID), logx.Error(err))
		}
	}

	return nil
}
