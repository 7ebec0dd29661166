package handler

import (
	th "github.com/mymmrac/telego/telegohandler"

	"trustpay/internal/transport/bot/middleware"
)

func (h *Handler) RegisterRoutes(bh *th.BotHandler) {
	// Команды участников сделок
	bh.HandleMessage(h.OnStart, th.CommandEqual("start"))
	bh.HandleMessage(h.OnNew, th.CommandEqual("new"))
	bh.HandleMessage(h.OnAccept, th.CommandEqual("accept"))
	bh.HandleMessage(h.OnDecline, th.CommandEqual("decline"))
	bh.HandleMessage(h.OnCancel, th.CommandEqual("cancel"))
	bh.HandleMessage(h.OnPay, th.CommandEqual("pay"))
	bh.HandleMessage(h.OnDelivered, th.CommandEqual("delivered"))
	bh.HandleMessage(h.OnReceived, th.CommandEqual("received"))
	bh.HandleMessage(h.OnDispute, th.CommandEqual("dispute"))
	bh.HandleMessage(h.OnStatus, th.CommandEqual("status"))
	bh.HandleMessage(h.OnSetBank, th.CommandEqual("setbank"))

	// Команды арбитра, защищённые миддлварью
	arbiterGroup := bh.Group(th.AnyMessage())
	arbiterGroup.Use(middleware.ArbiterOnly(h.IsArbiter))

	arbiterGroup.HandleMessage(h.OnDisputes, th.CommandEqual("disputes"))
	arbiterGroup.HandleMessage(h.OnResolve, th.CommandEqual("resolve"))
	arbiterGroup.HandleMessage(h.OnSet, th.CommandEqual("set"))
}
