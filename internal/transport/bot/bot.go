package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"trustpay/internal/transport/bot/handler"
	"trustpay/pkg/logx"
)

// Bot представляет собой Telegram-бота
type Bot struct {
	bot        *telego.Bot
	botHandler *th.BotHandler

	handler *handler.Handler
}

// New создает новый экземпляр бота поверх уже созданного клиента telego.
func New(tg *telego.Bot, commandHandler *handler.Handler) (*Bot, error) {
	// Получаем обновления через long polling
	updates, err := tg.UpdatesViaLongPolling(context.Background(), &telego.GetUpdatesParams{
		Timeout: 60,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	botHandler, err := th.NewBotHandler(tg, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	commandHandler.RegisterRoutes(botHandler)

	return &Bot{
		bot:        tg,
		botHandler: botHandler,
		handler:    commandHandler,
	}, nil
}

// Run запускает обработку обновлений до отмены контекста.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		if err := b.botHandler.Start(); err != nil {
			logger(ctx).Error("bot handler start", logx.Error(err))
		}
	}()

	<-ctx.Done()

	if err := b.botHandler.Stop(); err != nil {
		logger(ctx).Error("bot handler stop", logx.Error(err))
	}

	return ctx.Err()
}
