package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/logx"
)

const startMessage = `👋 <b>TrustPay escrow</b>

I hold the buyer's money until the deal is done.

<b>Buyer commands</b>
/new @seller amount description — start a deal
/pay deal_id email — pay into escrow
/received deal_id — confirm receipt, release funds
/cancel deal_id — cancel (before acceptance, or within 1h of payment)

<b>Seller commands</b>
/accept deal_id  /decline deal_id
/delivered deal_id — mark as delivered
/setbank bank_code bank_name account_number account_name — payout account

<b>Both</b>
/status deal_id — deal state
/dispute deal_id reason — open a dispute`

func (h *Handler) OnStart(ctx *th.Context, msg telego.Message) error {
	// Привязываем чат к юзернейму: сюда пойдут уведомления по сделкам.
	if id, ok := senderIdentity(msg); ok {
		if err := h.profiles.SetChatID(ctx, id, msg.Chat.ID); err != nil {
			logger(ctx).Warn("failed to bind chat", "identity", id.String(), logx.Error(err))
		}
	}

	return h.sendHTML(ctx, msg.Chat.ID, startMessage)
}

// OnNew — /new @seller 5000 iPhone 12, почти новый
func (h *Handler) OnNew(ctx *th.Context, msg telego.Message) error {
	buyer, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first, deals are addressed by it.")
	}

	parts := strings.Fields(msg.Text)
	if len(parts) < 4 {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /new <code>@seller</code> <code>amount</code> <code>description</code>")
	}

	seller, err := value.ParseIdentity(parts[1])
	if err != nil {
		return h.send(ctx, msg.Chat.ID, "❌ Invalid seller username")
	}

	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, "❌ Amount must be a whole number in minor currency units")
	}

	deal, err := h.escrow.Create(ctx, escrow.CreateParams{
		Buyer:       buyer,
		Seller:      seller,
		Amount:      amount,
		Description: strings.Join(parts[3:], " "),
	})
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(
		"✅ Deal <code>%s</code> created for %s.\nFee: %d, seller receives %d.\nWaiting for the seller to /accept.",
		deal.DealID, deal.Seller, deal.Fee, deal.SellerAmount(),
	))
}

func (h *Handler) OnAccept(ctx *th.Context, msg telego.Message) error {
	return h.transition(ctx, msg, "accept", h.escrow.Accept)
}

func (h *Handler) OnDecline(ctx *th.Context, msg telego.Message) error {
	return h.transition(ctx, msg, "decline", h.escrow.Decline)
}

// OnCancel выбирает между отменой до принятия и отменой внутри бесплатного
// окна. Сам переход перепроверит статус атомарно.
func (h *Handler) OnCancel(ctx *th.Context, msg telego.Message) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	dealID, ok := dealIDArg(msg)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /cancel <code>deal_id</code>")
	}

	deal, err := h.escrow.GetByID(ctx, dealID)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	if deal.Status == entity.StatusFunded {
		deal, err = h.escrow.CancelWithinWindow(ctx, dealID, actor)
	} else {
		deal, err = h.escrow.Cancel(ctx, dealID, actor)
	}
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, formatDeal(deal))
}

func (h *Handler) OnDelivered(ctx *th.Context, msg telego.Message) error {
	return h.transition(ctx, msg, "delivered", h.escrow.MarkDelivered)
}

func (h *Handler) OnReceived(ctx *th.Context, msg telego.Message) error {
	return h.transition(ctx, msg, "received", h.escrow.ConfirmReceived)
}

// OnPay — /pay ESC-XXXX buyer@mail.com
func (h *Handler) OnPay(ctx *th.Context, msg telego.Message) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	parts := strings.Fields(msg.Text)
	if len(parts) != 3 {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /pay <code>deal_id</code> <code>email</code>")
	}

	url, _, err := h.checkout.InitializeCharge(ctx, parts[1], actor, parts[2])
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(
		"💳 Pay here: %s\nFunds stay in escrow until you confirm receipt.", url,
	))
}

// OnDispute — /dispute ESC-XXXX item never arrived
func (h *Handler) OnDispute(ctx *th.Context, msg telego.Message) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	parts := strings.Fields(msg.Text)
	if len(parts) < 3 {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /dispute <code>deal_id</code> <code>reason</code>")
	}

	deal, err := h.escrow.OpenDispute(ctx, parts[1], actor, strings.Join(parts[2:], " "))
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(
		"⚖️ Dispute opened on <code>%s</code>. An arbiter will review it.", deal.DealID,
	))
}

func (h *Handler) OnStatus(ctx *th.Context, msg telego.Message) error {
	dealID, ok := dealIDArg(msg)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /status <code>deal_id</code>")
	}

	deal, err := h.escrow.GetByID(ctx, dealID)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, formatDeal(deal))
}

// OnSetBank — /setbank 058 GTBank 0123456789 John Doe
func (h *Handler) OnSetBank(ctx *th.Context, msg telego.Message) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	parts := strings.Fields(msg.Text)
	if len(parts) < 5 {
		return h.sendHTML(ctx, msg.Chat.ID,
			"❌ Usage: /setbank <code>bank_code</code> <code>bank_name</code> <code>account_number</code> <code>account_name</code>")
	}

	err := h.checkout.RegisterDestination(ctx, actor, checkout.DestinationParams{
		BankCode:      parts[1],
		BankName:      parts[2],
		AccountNumber: parts[3],
		AccountName:   strings.Join(parts[4:], " "),
	})
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.send(ctx, msg.Chat.ID, "✅ Payout account saved. Future payouts go there automatically.")
}

func (h *Handler) transition(
	ctx *th.Context,
	msg telego.Message,
	name string,
	op func(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error),
) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	dealID, ok := dealIDArg(msg)
	if !ok {
		return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf("❌ Usage: /%s <code>deal_id</code>", name))
	}

	deal, err := op(ctx, dealID, actor)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, formatDeal(deal))
}

func dealIDArg(msg telego.Message) (string, bool) {
	parts := strings.Fields(msg.Text)
	if len(parts) != 2 {
		return "", false
	}

	return strings.ToUpper(parts[1]), true
}

func formatDeal(deal *entity.Deal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📋 <b>Deal</b> <code>%s</code>\n", deal.DealID)
	fmt.Fprintf(&b, "Buyer: %s\nSeller: %s\n", deal.Buyer, deal.Seller)
	fmt.Fprintf(&b, "Amount: %d (fee %d)\n", deal.Amount, deal.Fee)
	fmt.Fprintf(&b, "Status: <b>%s</b>", deal.Status)

	if deal.DisputeReason != "" {
		fmt.Fprintf(&b, "\nDispute: %s", deal.DisputeReason)
	}
	if deal.DisputeResolution != "" {
		fmt.Fprintf(&b, "\nOutcome: %s", deal.DisputeResolution)
	}

	return b.String()
}

// errorText — дружелюбный текст вместо доменного кода. Внутренние ошибки
// наружу не показываем.
func errorText(err error) string {
	code, ok := domain.GetCode(err)
	if !ok {
		return "❌ Something went wrong, try again later."
	}

	switch code {
	case errcodes.DealNotFound:
		return "❌ Deal not found, check the id."
	case errcodes.Forbidden:
		return "❌ You are not allowed to do that on this deal."
	case errcodes.InvalidStateTransition:
		return "❌ The deal is not in the right state for that."
	case errcodes.PreconditionNotMet, errcodes.InvalidAmount,
		errcodes.InvalidParticipants, errcodes.InvalidDescription,
		errcodes.InvalidResolution, errcodes.InvalidIdentity:
		return "❌ " + domainMessage(err)
	case errcodes.ProviderUnavailable:
		return "❌ Payment provider is unavailable, try again in a minute."
	case errcodes.ProviderRejected, errcodes.MissingDestination:
		return "❌ " + domainMessage(err)
	default:
		return "❌ Something went wrong, try again later."
	}
}

func domainMessage(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}

	return "request rejected"
}
