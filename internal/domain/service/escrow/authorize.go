package escrow

import (
	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

// Transition — имя перехода стейт-машины. Используется и гвардом
// авторизации, и метриками.
type Transition string

const (
	TransitionAccept             Transition = "accept"
	TransitionDecline            Transition = "decline"
	TransitionCancel             Transition = "cancel"
	TransitionPaymentConfirmed   Transition = "payment_confirmed"
	TransitionMarkDelivered      Transition = "mark_delivered"
	TransitionConfirmReceived    Transition = "confirm_received"
	TransitionOpenDispute        Transition = "open_dispute"
	TransitionCancelWithinWindow Transition = "cancel_within_window"
	TransitionAutoRelease        Transition = "auto_release"
	TransitionResolve            Transition = "resolve"
)

// Доверенные внутренние акторы: канал платёжного провайдера и шедулер.
// Участники сделки под этими идентичностями действовать не могут —
// пользовательские идентичности всегда начинаются с "@".
var (
	actorProvider  = value.Identity(entity.ActorProvider) //nolint:gochecknoglobals
	actorScheduler = value.Identity(entity.ActorSystem)   //nolint:gochecknoglobals
)

// authorize решает, может ли актор вызвать переход на данной сделке.
// Правила не зависят от текущего статуса: статус проверяет сама стейт-машина.
func authorize(deal *entity.Deal, actor value.Identity, tr Transition) error {
	switch tr {
	case TransitionAccept, TransitionDecline, TransitionMarkDelivered:
		if !actor.Equal(deal.Seller) {
			return forbidden("only the seller may " + string(tr))
		}

	case TransitionCancel, TransitionCancelWithinWindow, TransitionConfirmReceived, TransitionOpenDispute:
		if !actor.Equal(deal.Buyer) {
			return forbidden("only the buyer may " + string(tr))
		}

	case TransitionPaymentConfirmed:
		if actor != actorProvider {
			return forbidden("payment confirmation accepted only from the provider channel")
		}

	case TransitionAutoRelease:
		if actor != actorScheduler {
			return forbidden("auto release accepted only from the scheduler")
		}

	case TransitionResolve:
		// Список арбитров живёт в настройках, проверяется в Resolve.

	default:
		return forbidden("unknown transition " + string(tr))
	}

	return nil
}

func forbidden(message string) error {
	return domain.NewError(errcodes.Forbidden, message)
}
