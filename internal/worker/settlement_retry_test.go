package worker_test

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/worker"
	"trustpay/pkg/errcodes"
)

type fakeLister struct {
	payouts []*entity.Deal
	refunds []*entity.Deal
}

func (f *fakeLister) ListPendingPayouts(context.Context, int) ([]*entity.Deal, error) {
	return f.payouts, nil
}

func (f *fakeLister) ListPendingRefunds(context.Context, int) ([]*entity.Deal, error) {
	return f.refunds, nil
}

type fakeDispatcher struct {
	payouts []string
	refunds []string
	errs    map[string]error
}

func (f *fakeDispatcher) Payout(_ context.Context, deal *entity.Deal, _ string) error {
	if err := f.errs[deal.DealID]; err != nil {
		return err
	}

	f.payouts = append(f.payouts, deal.DealID)

	return nil
}

func (f *fakeDispatcher) Refund(_ context.Context, deal *entity.Deal) error {
	if err := f.errs[deal.DealID]; err != nil {
		return err
	}

	f.refunds = append(f.refunds, deal.DealID)

	return nil
}

func TestSettlementRetry(t *testing.T) {
	rq := require.New(t)

	lister := &fakeLister{
		payouts: []*entity.Deal{{DealID: "ESC-1"}, {DealID: "ESC-2"}},
		refunds: []*entity.Deal{{DealID: "ESC-3"}},
	}
	dispatcher := &fakeDispatcher{errs: map[string]error{}}

	retry := worker.NewSettlementRetry(lister, dispatcher)
	rq.NoError(retry.Handle(context.Background(), asynq.NewTask(worker.TaskSettlementRetry, nil)))

	rq.Equal([]string{"ESC-1", "ESC-2"}, dispatcher.payouts)
	rq.Equal([]string{"ESC-3"}, dispatcher.refunds)
}

func TestSettlementRetryContinuesAfterFailure(t *testing.T) {
	rq := require.New(t)

	lister := &fakeLister{
		payouts: []*entity.Deal{{DealID: "ESC-1"}, {DealID: "ESC-2"}, {DealID: "ESC-3"}},
	}
	dispatcher := &fakeDispatcher{errs: map[string]error{
		"ESC-1": domain.NewError(errcodes.MissingDestination, "seller has no payout destination"),
		"ESC-2": domain.NewError(errcodes.ProviderUnavailable, "timeout"),
	}}

	retry := worker.NewSettlementRetry(lister, dispatcher)

	// Сбой на одной сделке не прерывает проход и не роняет задачу в ретрай asynq
	rq.NoError(retry.Handle(context.Background(), asynq.NewTask(worker.TaskSettlementRetry, nil)))
	rq.Equal([]string{"ESC-3"}, dispatcher.payouts)
}
