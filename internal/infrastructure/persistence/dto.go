package persistence

import (
	"database/sql"
	"encoding/json"
	"time"

	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
)

// dealSchema — внутренняя структура для маппинга строки deals.
type dealSchema struct {
	DealID            string         `db:"deal_id"`
	Buyer             string         `db:"buyer_telegram"`
	Seller            string         `db:"seller_telegram"`
	Amount            int64          `db:"amount"`
	Fee               int64          `db:"fee"`
	Description       string         `db:"description"`
	Status            string         `db:"status"`
	DisputeReason     sql.NullString `db:"dispute_reason"`
	DisputeResolution sql.NullString `db:"dispute_resolution"`
	PaymentRef        sql.NullString `db:"payment_ref"`
	TransferRef       sql.NullString `db:"transfer_ref"`
	RefundStatus      string         `db:"refund_status"`
	SettlementState   string         `db:"settlement_state"`
	CreatedAt         time.Time      `db:"created_at"`
	FundedAt          *time.Time     `db:"funded_at"`
	DeliveredAt       *time.Time     `db:"delivered_at"`
	CompletedAt       *time.Time     `db:"completed_at"`
	DisputeOpenedAt   *time.Time     `db:"dispute_opened_at"`
	DisputeResolvedAt *time.Time     `db:"dispute_resolved_at"`
}

func (s *dealSchema) toDomain() *entity.Deal {
	return &entity.Deal{
		DealID:            s.DealID,
		Buyer:             value.Identity(s.Buyer),
		Seller:            value.Identity(s.Seller),
		Amount:            s.Amount,
		Fee:               s.Fee,
		Description:       s.Description,
		Status:            entity.Status(s.Status),
		DisputeReason:     s.DisputeReason.String,
		DisputeResolution: value.Resolution(s.DisputeResolution.String),
		PaymentRef:        s.PaymentRef.String,
		TransferRef:       s.TransferRef.String,
		RefundStatus:      entity.RefundStatus(s.RefundStatus),
		SettlementState:   entity.SettlementState(s.SettlementState),
		CreatedAt:         s.CreatedAt,
		FundedAt:          s.FundedAt,
		DeliveredAt:       s.DeliveredAt,
		CompletedAt:       s.CompletedAt,
		DisputeOpenedAt:   s.DisputeOpenedAt,
		DisputeResolvedAt: s.DisputeResolvedAt,
	}
}

// auditSchema — строка append-only таблицы audit_logs.
type auditSchema struct {
	ID         int64     `db:"id"`
	DealID     string    `db:"deal_id"`
	Action     string    `db:"action"`
	Actor      string    `db:"actor"`
	FromStatus string    `db:"from_status"`
	ToStatus   string    `db:"to_status"`
	Details    []byte    `db:"details"`
	CreatedAt  time.Time `db:"created_at"`
}

func (s *auditSchema) toDomain() (entity.AuditEvent, error) {
	var details map[string]any
	if len(s.Details) > 0 {
		if err := json.Unmarshal(s.Details, &details); err != nil {
			return entity.AuditEvent{}, err
		}
	}

	return entity.AuditEvent{
		ID:         s.ID,
		DealID:     s.DealID,
		Action:     s.Action,
		Actor:      s.Actor,
		FromStatus: entity.Status(s.FromStatus),
		ToStatus:   entity.Status(s.ToStatus),
		Details:    details,
		CreatedAt:  s.CreatedAt,
	}, nil
}

// profileSchema — строка user_profiles.
type profileSchema struct {
	Identity      string    `db:"telegram_username"`
	ChatID        int64     `db:"telegram_chat_id"`
	BankName      string    `db:"bank_name"`
	AccountName   string    `db:"account_name"`
	AccountNumber string    `db:"account_number"`
	RecipientCode string    `db:"recipient_code"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s *profileSchema) toDomain() *entity.UserProfile {
	return &entity.UserProfile{
		Identity:      value.Identity(s.Identity),
		ChatID:        s.ChatID,
		BankName:      s.BankName,
		AccountName:   s.AccountName,
		AccountNumber: s.AccountNumber,
		RecipientCode: s.RecipientCode,
		UpdatedAt:     s.UpdatedAt,
	}
}
