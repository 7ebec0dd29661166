package escrow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

const maxDescriptionLen = 200

// Patch — набор полей, которые переход записывает вместе со сменой статуса.
// nil-поля не трогаются. Применяется репозиторием атомарно с CAS по статусу
// и вставкой аудит-события в одной транзакции.
type Patch struct {
	Status            entity.Status
	PaymentRef        *string
	DisputeReason     *string
	DisputeResolution *value.Resolution
	RefundStatus      *entity.RefundStatus
	FundedAt          *time.Time
	DeliveredAt       *time.Time
	CompletedAt       *time.Time
	DisputeOpenedAt   *time.Time
	DisputeResolvedAt *time.Time

	// RequireDeliveredUnset добавляет к CAS условие delivered_at IS NULL:
	// delivered_at ставится не более одного раза даже при гонке.
	RequireDeliveredUnset bool
}

type DealRepository interface {
	Create(ctx context.Context, deal *entity.Deal, event entity.AuditEvent) error
	GetByID(ctx context.Context, dealID string) (*entity.Deal, error)
	// Transition применяет patch при условии, что статус сделки всё ещё from.
	// При несовпадении возвращает ошибку с кодом InvalidStateTransition.
	Transition(ctx context.Context, dealID string, from entity.Status, patch Patch, event entity.AuditEvent) error
	// RecordSettlement пишет расчётные поля (вне смены статуса) вместе с
	// аудит-событием в одной транзакции.
	RecordSettlement(ctx context.Context, dealID string, rec entity.SettlementRecord, event entity.AuditEvent) error
	ListFundedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Deal, error)
}

// Dispatcher — слой расчётов. Вызывается после коммита перехода: ошибка
// выплаты или возврата никогда не откатывает терминальный статус сделки.
type Dispatcher interface {
	Payout(ctx context.Context, deal *entity.Deal, reason string) error
	Refund(ctx context.Context, deal *entity.Deal) error
}

// Publisher — fire-and-forget канал доменных событий для нотификатора.
// Не может повлиять на исход перехода.
type Publisher interface {
	Publish(event entity.AuditEvent)
}

type Service struct {
	deals      DealRepository
	dispatcher Dispatcher
	policy     PolicyProvider
	publisher  Publisher
	now        func() time.Time
}

func NewService(
	deals DealRepository,
	dispatcher Dispatcher,
	policy PolicyProvider,
	publisher Publisher,
) *Service {
	return &Service{
		deals:      deals,
		dispatcher: dispatcher,
		policy:     policy,
		publisher:  publisher,
		now:        time.Now,
	}
}

// WithClock подменяет источник времени (для тестов границ окон).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	Buyer       value.Identity
	Seller      value.Identity
	Amount      int64
	Description string
}

// Create валидирует вход и создаёт сделку в статусе pending.
// При любой ошибке валидации запись не создаётся.
func (s *Service) Create(ctx context.Context, p CreateParams) (*entity.Deal, error) {
	policy := s.policy.Policy(ctx)

	if p.Buyer.Equal(p.Seller) {
		return nil, domain.NewError(errcodes.InvalidParticipants, "cannot trade with yourself")
	}

	if p.Amount < policy.MinAmount || p.Amount > policy.MaxAmount {
		return nil, domain.NewError(errcodes.InvalidAmount,
			fmt.Sprintf("amount must be between %d and %d", policy.MinAmount, policy.MaxAmount))
	}

	description := sanitizeDescription(p.Description)
	if description == "" {
		return nil, domain.NewError(errcodes.InvalidDescription, "description is required")
	}

	deal := &entity.Deal{
		DealID:          newDealID(),
		Buyer:           p.Buyer,
		Seller:          p.Seller,
		Amount:          p.Amount,
		Fee:             entity.CalculateFee(p.Amount, policy.FeeRate, policy.MinFee),
		Description:     description,
		Status:          entity.StatusPending,
		RefundStatus:    entity.RefundNone,
		SettlementState: entity.SettlementNone,
		CreatedAt:       s.now(),
	}

	event := entity.NewTransitionEvent(deal, entity.ActionDealCreated, p.Buyer,
		entity.StatusPending, entity.StatusPending, map[string]any{
			"seller":      deal.Seller.String(),
			"description": deal.Description,
			"fee":         deal.Fee,
		})
	event.CreatedAt = s.now()

	if err := s.deals.Create(ctx, deal, event); err != nil {
		return nil, fmt.Errorf("deals.Create: %w", err)
	}

	s.publisher.Publish(event)

	return deal, nil
}

// GetByID отдаёт сделку на чтение (для API и бота).
func (s *Service) GetByID(ctx context.Context, dealID string) (*entity.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("deals.GetByID: %w", err)
	}

	return deal, nil
}

// apply — общий путь любого перехода: перечитать сделку, авторизовать,
// проверить предусловия, закоммитить через CAS, опубликовать событие.
// check вызывается на свежепрочитанной сделке и возвращает patch + событие.
func (s *Service) apply(
	ctx context.Context,
	dealID string,
	actor value.Identity,
	tr Transition,
	check func(deal *entity.Deal) (Patch, entity.AuditEvent, error),
) (*entity.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		observeTransition(tr, err)
		return nil, fmt.Errorf("deals.GetByID: %w", err)
	}

	if err = authorize(deal, actor, tr); err != nil {
		observeTransition(tr, err)
		return nil, err
	}

	patch, event, err := check(deal)
	if err != nil {
		observeTransition(tr, err)
		return nil, err
	}

	event.CreatedAt = s.now()

	if err = s.deals.Transition(ctx, deal.DealID, deal.Status, patch, event); err != nil {
		observeTransition(tr, err)
		return nil, fmt.Errorf("deals.Transition: %w", err)
	}

	observeTransition(tr, nil)
	applyPatch(deal, patch)
	s.publisher.Publish(event)

	return deal, nil
}

// applyPatch отражает закоммиченный patch на локальной копии сделки,
// чтобы вызывающий получил актуальное состояние без повторного чтения.
func applyPatch(deal *entity.Deal, patch Patch) {
	deal.Status = patch.Status

	if patch.PaymentRef != nil {
		deal.PaymentRef = *patch.PaymentRef
	}
	if patch.DisputeReason != nil {
		deal.DisputeReason = *patch.DisputeReason
	}
	if patch.DisputeResolution != nil {
		deal.DisputeResolution = *patch.DisputeResolution
	}
	if patch.RefundStatus != nil {
		deal.RefundStatus = *patch.RefundStatus
	}
	if patch.FundedAt != nil {
		deal.FundedAt = patch.FundedAt
	}
	if patch.DeliveredAt != nil {
		deal.DeliveredAt = patch.DeliveredAt
	}
	if patch.CompletedAt != nil {
		deal.CompletedAt = patch.CompletedAt
	}
	if patch.DisputeOpenedAt != nil {
		deal.DisputeOpenedAt = patch.DisputeOpenedAt
	}
	if patch.DisputeResolvedAt != nil {
		deal.DisputeResolvedAt = patch.DisputeResolvedAt
	}
}

func invalidState(message string) error {
	return domain.NewError(errcodes.InvalidStateTransition, message)
}

func preconditionNotMet(message string) error {
	return domain.NewError(errcodes.PreconditionNotMet, message)
}

func newDealID() string {
	return "ESC-" + strings.ToUpper(xid.New().String())
}

// sanitizeDescription убирает значимые для разметки символы и ограничивает
// длину, как это делал исходный бот.
func sanitizeDescription(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("<", "", ">", "", "&", "").Replace(s)

	// Обрезаем по рунам: байтовый срез мог бы разрубить кириллицу посередине.
	if runes := []rune(s); len(runes) > maxDescriptionLen {
		s = string(runes[:maxDescriptionLen])
	}

	return s
}
