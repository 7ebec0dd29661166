package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"

	// Коды жизненного цикла сделки
	DealNotFound           failure.ErrorCode = "DealNotFound"
	InvalidDealID          failure.ErrorCode = "InvalidDealID"
	InvalidParticipants    failure.ErrorCode = "InvalidParticipants"    // Покупатель == продавец
	InvalidStateTransition failure.ErrorCode = "InvalidStateTransition" // Статус уже изменился (гонка, двойной сабмит)
	PreconditionNotMet     failure.ErrorCode = "PreconditionNotMet"     // Рано: нет доставки, нет оплаты
	InvalidResolution      failure.ErrorCode = "InvalidResolution"      // Арбитр запросил неизвестный исход
	InvalidAmount          failure.ErrorCode = "InvalidAmount"
	InvalidDescription     failure.ErrorCode = "InvalidDescription"
	InvalidIdentity        failure.ErrorCode = "InvalidIdentity"

	// Коды слоя расчётов (провайдер платежей)
	ProviderUnavailable failure.ErrorCode = "ProviderUnavailable" // Временная ошибка, можно ретраить
	ProviderRejected    failure.ErrorCode = "ProviderRejected"    // Провайдер отказал, нужен оператор
	MissingDestination  failure.ErrorCode = "MissingDestination"  // У продавца не привязан счёт

	// Вебхуки
	InvalidSignature failure.ErrorCode = "InvalidSignature"
)
