package value

// Resolution — тег исхода сделки. Терминальный статус всегда completed или
// refunded, причина завершения хранится отдельным тегом: отдельного статуса
// cancelled нет.
type Resolution string

const (
	ResolutionNone              Resolution = ""
	ResolutionDeclinedBySeller  Resolution = "declined_by_seller"
	ResolutionCancelledByBuyer  Resolution = "cancelled_by_buyer"
	ResolutionAutoReleased      Resolution = "auto_released_48h"
	ResolutionReleaseToSeller   Resolution = "release_to_seller"
	ResolutionRefundBuyer       Resolution = "refund_buyer"
	ResolutionRefundedAuto      Resolution = "refunded_auto"
	ResolutionRefundPendingOp   Resolution = "refund_pending_admin"
)

func (r Resolution) String() string {
	return string(r)
}

// ArbiterResolutions — единственные два исхода, доступные арбитру.
func ArbiterResolutions() []Resolution {
	return []Resolution{ResolutionReleaseToSeller, ResolutionRefundBuyer}
}

func (r Resolution) ValidForArbiter() bool {
	return r == ResolutionReleaseToSeller || r == ResolutionRefundBuyer
}
