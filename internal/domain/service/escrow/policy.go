package escrow

import (
	"context"
	"time"

	"trustpay/internal/domain/value"
)

// Policy — действующие платёжные правила платформы. Загружается из
// настроек на каждый вызов (горячая перезагрузка без рестарта шедулера),
// поэтому значения нельзя кешировать внутри сервиса.
type Policy struct {
	MinAmount         int64
	MaxAmount         int64
	FeeRate           float64
	MinFee            int64
	CancelWindow      time.Duration
	AutoReleaseWindow time.Duration
	Arbiters          []value.Identity
}

// IsArbiter проверяет идентичность по списку арбитров платформы.
func (p Policy) IsArbiter(actor value.Identity) bool {
	for _, a := range p.Arbiters {
		if a.Equal(actor) {
			return true
		}
	}

	return false
}

type PolicyProvider interface {
	Policy(ctx context.Context) Policy
}
