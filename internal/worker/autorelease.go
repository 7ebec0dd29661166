package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"trustpay/internal/domain/service/escrow"
)

// TaskAutoReleaseSweep ставится планировщиком раз в несколько минут.
const TaskAutoReleaseSweep = "escrow:auto_release_sweep"

type sweeper interface {
	AutoReleaseSweep(ctx context.Context) (escrow.SweepResult, error)
}

// AutoRelease закрывает funded-сделки, у которых истекло окно авто-релиза.
// Отсчёт идёт от funded_at в базе, поэтому рестарты процесса на сроки не
// влияют.
type AutoRelease struct {
	escrow sweeper
}

func NewAutoRelease(escrow sweeper) *AutoRelease {
	return &AutoRelease{escrow: escrow}
}

func (w *AutoRelease) Handle(ctx context.Context, _ *asynq.Task) error {
	result, err := w.escrow.AutoReleaseSweep(ctx)
	if err != nil {
		return fmt.Errorf("escrow.AutoReleaseSweep: %w", err)
	}

	if result.Checked > 0 {
		logger(ctx).Info("auto release sweep finished",
			slog.Int("checked", result.Checked),
			slog.Int("released", result.Released),
			slog.Int("failed", result.Failed),
		)
	}

	return nil
}
