package entity

// SettlementRecord — частичное обновление расчётных полей сделки.
// nil-поля не трогаются; каждое поле ставится не более одного раза
// (продвижение refund_status вперёд — единственное исключение).
type SettlementRecord struct {
	TransferRef     *string
	RefundStatus    *RefundStatus
	SettlementState *SettlementState
}
