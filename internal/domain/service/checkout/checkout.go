package checkout

import (
	"context"
	"fmt"
	"time"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

// ChargeParams — запрос платёжной сессии. Reference равен идентификатору
// сделки: по нему вебхук провайдера находит, какую сделку фандить.
type ChargeParams struct {
	Email     string
	Amount    int64
	Reference string
	DealID    string
}

type Checkout struct {
	AuthorizationURL string
	Reference        string
}

type RecipientParams struct {
	Name          string
	AccountNumber string
	BankCode      string
}

type Provider interface {
	InitializeTransaction(ctx context.Context, p ChargeParams) (*Checkout, error)
	CreateRecipient(ctx context.Context, p RecipientParams) (code string, err error)
}

type DealSource interface {
	GetByID(ctx context.Context, dealID string) (*entity.Deal, error)
}

type ProfileStore interface {
	GetByIdentity(ctx context.Context, identity value.Identity) (*entity.UserProfile, error)
	Upsert(ctx context.Context, profile *entity.UserProfile) error
}

// Service — прикладные операции вокруг платёжного провайдера: платёжная
// сессия для покупателя и привязка счёта продавца. Статусы сделок не трогает.
type Service struct {
	provider Provider
	deals    DealSource
	profiles ProfileStore
}

func NewService(provider Provider, deals DealSource, profiles ProfileStore) *Service {
	return &Service{
		provider: provider,
		deals:    deals,
		profiles: profiles,
	}
}

// InitializeCharge создаёт платёжную сессию для покупателя принятой сделки.
// Сессию можно запрашивать повторно: фандинг всё равно произойдёт один раз,
// по вебхуку.
func (s *Service) InitializeCharge(ctx context.Context, dealID string, actor value.Identity, email string) (url, reference string, err error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return "", "", fmt.Errorf("deals.GetByID: %w", err)
	}

	if !deal.Buyer.Equal(actor) {
		return "", "", domain.NewError(errcodes.Forbidden, "only the buyer pays into escrow")
	}

	if deal.Status != entity.StatusAccepted {
		return "", "", domain.NewError(errcodes.PreconditionNotMet,
			fmt.Sprintf("deal must be accepted to pay, current status is %s", deal.Status))
	}

	checkout, err := s.provider.InitializeTransaction(ctx, ChargeParams{
		Email:     email,
		Amount:    deal.Amount,
		Reference: deal.DealID,
		DealID:    deal.DealID,
	})
	if err != nil {
		return "", "", fmt.Errorf("provider.InitializeTransaction: %w", err)
	}

	return checkout.AuthorizationURL, checkout.Reference, nil
}

// DestinationParams — банковские реквизиты для выплат.
type DestinationParams struct {
	BankCode      string
	BankName      string
	AccountName   string
	AccountNumber string
}

// RegisterDestination регистрирует счёт у провайдера и сохраняет профиль.
// Повторная регистрация перетирает старый счёт новым recipient_code.
func (s *Service) RegisterDestination(ctx context.Context, actor value.Identity, p DestinationParams) error {
	code, err := s.provider.CreateRecipient(ctx, RecipientParams{
		Name:          p.AccountName,
		AccountNumber: p.AccountNumber,
		BankCode:      p.BankCode,
	})
	if err != nil {
		return fmt.Errorf("provider.CreateRecipient: %w", err)
	}

	profile := &entity.UserProfile{
		Identity:      actor,
		BankName:      p.BankName,
		AccountName:   p.AccountName,
		AccountNumber: p.AccountNumber,
		RecipientCode: code,
		UpdatedAt:     time.Now(),
	}

	// Сохраняем chat_id, если участник уже общался с ботом.
	if existing, err := s.profiles.GetByIdentity(ctx, actor); err == nil {
		profile.ChatID = existing.ChatID
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("profiles.Upsert: %w", err)
	}

	return nil
}
