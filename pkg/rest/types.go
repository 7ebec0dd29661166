// Данный файл должен быть сгенерирован из openapi спецификации и называться types.gen.go
package rest

import "time"

type CreateDealRequest struct {
	// Seller Telegram-юзернейм продавца
	Seller string `json:"seller" validate:"required"`

	// Amount Сумма сделки в минорных единицах валюты
	Amount int64 `json:"amount" validate:"required,gt=0"`

	Description string `json:"description" validate:"required"`
}

type Deal struct {
	DealID            string     `json:"dealId"`
	Buyer             string     `json:"buyer"`
	Seller            string     `json:"seller"`
	Amount            int64      `json:"amount"`
	Fee               int64      `json:"fee"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	DisputeReason     string     `json:"disputeReason,omitempty"`
	DisputeResolution string     `json:"disputeResolution,omitempty"`
	PaymentRef        string     `json:"paymentRef,omitempty"`
	TransferRef       string     `json:"transferRef,omitempty"`
	RefundStatus      string     `json:"refundStatus"`
	SettlementState   string     `json:"settlementState"`
	CreatedAt         time.Time  `json:"createdAt"`
	FundedAt          *time.Time `json:"fundedAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	DisputeOpenedAt   *time.Time `json:"disputeOpenedAt,omitempty"`
	DisputeResolvedAt *time.Time `json:"disputeResolvedAt,omitempty"`
}

type AuditEvent struct {
	ID         int64          `json:"id"`
	DealID     string         `json:"dealId"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	FromStatus string         `json:"fromStatus"`
	ToStatus   string         `json:"toStatus"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type DisputeRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

// Checkout Платёжная сессия для внесения денег в эскроу
type Checkout struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

type PayRequest struct {
	// Email Email покупателя для платёжной сессии провайдера
	Email string `json:"email" validate:"required,email"`
}

type PayoutDestinationRequest struct {
	BankCode      string `json:"bankCode" validate:"required"`
	BankName      string `json:"bankName" validate:"required"`
	AccountName   string `json:"accountName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
}

// Error Модель ошибок
type Error struct {
	// Code Код ошибки
	Code ErrorCode `json:"code"`

	// Message Сообщение об ошибке (для отображения в UI в будущем)
	Message string `json:"message"`
}

// ErrorCode Код ошибки
type ErrorCode string
