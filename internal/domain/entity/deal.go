package entity

import (
	"math"
	"time"

	"trustpay/internal/domain/value"
)

// Status — статус эскроу-сделки.
type Status string

const (
	StatusPending   Status = "pending"   // Создана покупателем, ждём продавца
	StatusAccepted  Status = "accepted"  // Продавец согласился, ждём оплату
	StatusFunded    Status = "funded"    // Деньги в эскроу
	StatusCompleted Status = "completed" // Терминальный
	StatusDisputed  Status = "disputed"  // Ждёт арбитра
	StatusRefunded  Status = "refunded"  // Терминальный
)

func (s Status) String() string {
	return string(s)
}

// Terminal — из completed и refunded переходов нет.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// RefundStatus — состояние возврата денег покупателю, живёт отдельно от
// статуса сделки и сверяется оператором асинхронно.
type RefundStatus string

const (
	RefundNone       RefundStatus = "none"
	RefundInitiated  RefundStatus = "initiated"  // Провайдер не принял вызов, ждёт оператора
	RefundProcessing RefundStatus = "processing" // Провайдер принял, деньги в пути
	RefundCompleted  RefundStatus = "completed"
)

// SettlementState — состояние выплаты продавцу.
type SettlementState string

const (
	SettlementNone          SettlementState = "none"
	SettlementSettled       SettlementState = "settled"
	SettlementPendingManual SettlementState = "pending_manual" // Нет счёта или провайдер отказал
)

// Deal — единица эскроу: одна сделка между покупателем и продавцом.
// Статус и таймстемпы меняет только стейт-машина (service/escrow),
// остальные компоненты сделку лишь читают.
type Deal struct {
	DealID      string
	Buyer       value.Identity
	Seller      value.Identity
	Amount      int64 // В минорных единицах валюты
	Fee         int64 // Считается при создании, далее неизменна
	Description string

	Status            Status
	DisputeReason     string
	DisputeResolution value.Resolution

	PaymentRef      string // Ставится один раз при фандинге
	TransferRef     string // Ставится один раз при успешной выплате
	RefundStatus    RefundStatus
	SettlementState SettlementState

	CreatedAt         time.Time
	FundedAt          *time.Time
	DeliveredAt       *time.Time
	CompletedAt       *time.Time
	DisputeOpenedAt   *time.Time
	DisputeResolvedAt *time.Time
}

// SellerAmount — сумма к выплате продавцу: amount − fee.
func (d *Deal) SellerAmount() int64 {
	return d.Amount - d.Fee
}

// WithinCancelWindow — прошло ли с момента фандинга не больше окна бесплатной
// отмены. Сравнение по wall-clock, а не по таймерам процесса: окно остаётся
// корректным после рестарта.
func (d *Deal) WithinCancelWindow(now time.Time, window time.Duration) bool {
	if d.FundedAt == nil {
		return false
	}

	return now.Sub(*d.FundedAt) <= window
}

// AutoReleaseDue — истекло ли окно авто-релиза с момента фандинга.
func (d *Deal) AutoReleaseDue(now time.Time, window time.Duration) bool {
	if d.FundedAt == nil {
		return false
	}

	return now.Sub(*d.FundedAt) >= window
}

// CalculateFee — комиссия платформы: max(minFee, round(amount * feeRate)).
func CalculateFee(amount int64, feeRate float64, minFee int64) int64 {
	fee := int64(math.Round(float64(amount) * feeRate))
	if fee < minFee {
		return minFee
	}

	return fee
}
