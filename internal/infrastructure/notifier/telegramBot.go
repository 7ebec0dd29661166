package notifier

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/logx"
)

type dealSource interface {
	GetByID(ctx context.Context, dealID string) (*entity.Deal, error)
}

type profileSource interface {
	GetByIdentity(ctx context.Context, identity value.Identity) (*entity.UserProfile, error)
}

// TelegramBot рассылает участникам сделки уведомления о переходах.
// Уведомления — best effort: недоставленное сообщение логируется и не влияет
// на сделку.
type TelegramBot struct {
	bot         *telego.Bot
	deals       dealSource
	profiles    profileSource
	adminChatID int64
}

func NewTelegramBot(bot *telego.Bot, deals dealSource, profiles profileSource, adminChatID int64) *TelegramBot {
	return &TelegramBot{
		bot:         bot,
		deals:       deals,
		profiles:    profiles,
		adminChatID: adminChatID,
	}
}

// Run обрабатывает события из канала до закрытия канала или отмены контекста.
func (b *TelegramBot) Run(ctx context.Context, events <-chan entity.AuditEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.notify(ctx, event); err != nil {
				logger(ctx).Error("failed to notify", logx.Error(err))
			}
		}
	}
}

func (b *TelegramBot) notify(ctx context.Context, event entity.AuditEvent) error {
	deal, err := b.deals.GetByID(ctx, event.DealID)
	if err != nil {
		return fmt.Errorf("deals.GetByID: %w", err)
	}

	text, buyer, seller, admin := composeMessage(deal, event)
	if text == "" {
		return nil
	}

	if buyer {
		b.sendTo(ctx, deal.Buyer, text)
	}
	if seller {
		b.sendTo(ctx, deal.Seller, text)
	}
	if admin && b.adminChatID != 0 {
		if err := b.SendText(ctx, b.adminChatID, text); err != nil {
			logger(ctx).Warn("failed to notify admin", logx.Error(err))
		}
	}

	return nil
}

// composeMessage возвращает текст и адресатов события.
func composeMessage(deal *entity.Deal, event entity.AuditEvent) (text string, buyer, seller, admin bool) {
	header := fmt.Sprintf("Deal <b>%s</b> (%d minor units)\n", deal.DealID, deal.Amount)

	switch event.Action {
	case entity.ActionDealCreated:
		return header + fmt.Sprintf(
			"%s wants to buy: %s\nAccept or decline this deal.",
			deal.Buyer, deal.Description,
		), false, true, false
	case entity.ActionDealAccepted:
		return header + "Seller accepted the deal. Please pay into escrow.", true, false, false
	case entity.ActionDealDeclined:
		return header + "Seller declined the deal.", true, false, false
	case entity.ActionDealCancelled:
		return header + "Buyer cancelled the deal before acceptance.", false, true, false
	case entity.ActionPaymentConfirmed:
		return header + "Payment received, funds are held in escrow. Seller can deliver now.", true, true, false
	case entity.ActionDeliveryMarked:
		return header + "Seller marked the deal as delivered. Confirm receipt to release funds.", true, false, false
	case entity.ActionDeliveryConfirmed:
		return header + "Buyer confirmed receipt. Funds are being released to the seller.", false, true, false
	case entity.ActionDealCancelledFund:
		return header + "Deal cancelled within the free-cancel window. Refund initiated.", true, true, false
	case entity.ActionDisputeOpened:
		return header + "Dispute opened: " + deal.DisputeReason, true, true, true
	case entity.ActionDisputeResolved:
		return header + "Dispute resolved: " + deal.DisputeResolution.String() + ".", true, true, true
	case entity.ActionAutoReleased:
		return header + "48h passed with no dispute. Funds auto-released to the seller.", true, true, false
	case entity.ActionTransferInitiated:
		if deal.SettlementState == entity.SettlementPendingManual {
			return header + "Payout is pending manual processing.", false, true, true
		}

		return header + "Payout to the seller initiated.", false, true, false
	case entity.ActionTransferCompleted:
		return header + "Payout to the seller completed.", false, true, false
	case entity.ActionRefundInitiated:
		return header + "Refund to the buyer initiated.", true, false, false
	}

	return "", false, false, false
}

func (b *TelegramBot) sendTo(ctx context.Context, identity value.Identity, text string) {
	profile, err := b.profiles.GetByIdentity(ctx, identity)
	if err != nil || profile.ChatID == 0 {
		// У участника ещё нет чата с ботом, уведомлять некуда.
		return
	}

	if err := b.SendText(ctx, profile.ChatID, text); err != nil {
		logger(ctx).Warn("failed to send notification",
			"identity", identity.String(), logx.Error(err))
	}
}

// SendText отправляет HTML-сообщение в чат.
func (b *TelegramBot) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)

	if _, err := b.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("bot.SendMessage: %w", err)
	}

	return nil
}
