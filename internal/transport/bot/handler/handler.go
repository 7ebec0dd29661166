package handler

import (
	"context"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
)

type escrowService interface {
	Create(ctx context.Context, p escrow.CreateParams) (*entity.Deal, error)
	GetByID(ctx context.Context, dealID string) (*entity.Deal, error)
	Accept(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	Decline(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	Cancel(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	CancelWithinWindow(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	MarkDelivered(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	ConfirmReceived(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error)
	OpenDispute(ctx context.Context, dealID string, actor value.Identity, reason string) (*entity.Deal, error)
	Resolve(ctx context.Context, dealID string, actor value.Identity, resolution value.Resolution) (*entity.Deal, error)
}

type checkoutService interface {
	InitializeCharge(ctx context.Context, dealID string, actor value.Identity, email string) (url, reference string, err error)
	RegisterDestination(ctx context.Context, actor value.Identity, p checkout.DestinationParams) error
}

type dealLister interface {
	ListByStatus(ctx context.Context, status entity.Status, limit int) ([]*entity.Deal, error)
}

type profileStore interface {
	SetChatID(ctx context.Context, identity value.Identity, chatID int64) error
}

type policyProvider interface {
	Policy(ctx context.Context) escrow.Policy
	Set(ctx context.Context, key, value string) error
}

type Handler struct {
	escrow   escrowService
	checkout checkoutService
	deals    dealLister
	profiles profileStore
	policy   policyProvider
}

func New(
	escrow escrowService,
	checkout checkoutService,
	deals dealLister,
	profiles profileStore,
	policy policyProvider,
) *Handler {
	return &Handler{
		escrow:   escrow,
		checkout: checkout,
		deals:    deals,
		profiles: profiles,
		policy:   policy,
	}
}

// senderIdentity достаёт нормализованную идентичность отправителя.
// Участие в сделках требует юзернейма: по нему стороны находят друг друга.
func senderIdentity(msg telego.Message) (value.Identity, bool) {
	if msg.From == nil || msg.From.Username == "" {
		return "", false
	}

	id, err := value.ParseIdentity(msg.From.Username)
	if err != nil {
		return "", false
	}

	return id, true
}

func (h *Handler) sendHTML(ctx *th.Context, chatID int64, text string) error {
	_, err := ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: "HTML",
	})
	return err
}

func (h *Handler) send(ctx *th.Context, chatID int64, text string) error {
	_, err := ctx.Bot().SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	})
	return err
}
