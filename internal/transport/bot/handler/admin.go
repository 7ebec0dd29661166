package handler

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
)

const disputesPageSize = 20

// IsArbiter — проверка для миддлвари: команды арбитра доступны только
// юзернеймам из горячих настроек платформы.
func (h *Handler) IsArbiter(ctx *th.Context, username string) bool {
	id, err := value.ParseIdentity(username)
	if err != nil {
		return false
	}

	return h.policy.Policy(ctx).IsArbiter(id)
}

// OnDisputes — список открытых споров.
func (h *Handler) OnDisputes(ctx *th.Context, msg telego.Message) error {
	deals, err := h.deals.ListByStatus(ctx, entity.StatusDisputed, disputesPageSize)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	if len(deals) == 0 {
		return h.send(ctx, msg.Chat.ID, "✅ No open disputes.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚖️ <b>Open disputes: %d</b>\n", len(deals))

	for _, deal := range deals {
		fmt.Fprintf(&b, "\n<code>%s</code> — %d, %s vs %s\n%s\n",
			deal.DealID, deal.Amount, deal.Buyer, deal.Seller, deal.DisputeReason)
	}

	b.WriteString("\nResolve with /resolve deal_id release|refund")

	return h.sendHTML(ctx, msg.Chat.ID, b.String())
}

// OnResolve — /resolve ESC-XXXX release|refund
func (h *Handler) OnResolve(ctx *th.Context, msg telego.Message) error {
	actor, ok := senderIdentity(msg)
	if !ok {
		return h.send(ctx, msg.Chat.ID, "❌ Set a Telegram username first.")
	}

	parts := strings.Fields(msg.Text)
	if len(parts) != 3 {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /resolve <code>deal_id</code> <code>release|refund</code>")
	}

	var resolution value.Resolution
	switch strings.ToLower(parts[2]) {
	case "release":
		resolution = value.ResolutionReleaseToSeller
	case "refund":
		resolution = value.ResolutionRefundBuyer
	default:
		return h.send(ctx, msg.Chat.ID, "❌ Outcome must be release or refund")
	}

	deal, err := h.escrow.Resolve(ctx, strings.ToUpper(parts[1]), actor, resolution)
	if err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(
		"⚖️ Dispute on <code>%s</code> resolved: %s", deal.DealID, deal.DisputeResolution,
	))
}

// OnSet — /set key value: горячая правка настройки платформы.
func (h *Handler) OnSet(ctx *th.Context, msg telego.Message) error {
	parts := strings.Fields(msg.Text)
	if len(parts) != 3 {
		return h.sendHTML(ctx, msg.Chat.ID, "❌ Usage: /set <code>key</code> <code>value</code>")
	}

	if err := h.policy.Set(ctx, parts[1], parts[2]); err != nil {
		return h.send(ctx, msg.Chat.ID, errorText(err))
	}

	return h.sendHTML(ctx, msg.Chat.ID, fmt.Sprintf(
		"⚙️ <code>%s</code> = <code>%s</code>", parts[1], parts[2],
	))
}
