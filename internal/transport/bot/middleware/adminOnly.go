package middleware

import (
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

// ArbiterOnly пропускает сообщение дальше, только если отправитель — арбитр.
// Чужие сообщения молча игнорируются, чтобы не подсвечивать админ-команды.
func ArbiterOnly(isArbiter func(ctx *th.Context, username string) bool) th.Handler {
	return func(ctx *th.Context, update telego.Update) error {
		var username string

		if update.Message != nil && update.Message.From != nil {
			username = update.Message.From.Username
		} else {
			return nil
		}

		if username != "" && isArbiter(ctx, username) {
			return ctx.Next(update)
		}

		return nil
	}
}
