package entity

import (
	"time"

	"trustpay/internal/domain/value"
)

// UserProfile — регистрационные данные участника: куда слать уведомления и
// куда выплачивать деньги. RecipientCode выдаёт платёжный провайдер при
// привязке банковского счёта; без него выплата уходит в pending_manual.
type UserProfile struct {
	Identity       value.Identity
	ChatID         int64
	BankName       string
	AccountName    string
	AccountNumber  string
	RecipientCode  string
	UpdatedAt      time.Time
}

// HasPayoutDestination — зарегистрирован ли у участника счёт для выплат.
func (p *UserProfile) HasPayoutDestination() bool {
	return p != nil && p.RecipientCode != ""
}
