package server

import (
	"git.appkode.ru/pub/go/failure"

	"trustpay/internal/domain"
	"trustpay/pkg/errcodes"
)

// asFailure переводит доменные коды в классы ошибок failure, по которым
// reply.Error выбирает HTTP-статус. Ошибки без доменного кода уходят как есть
// и отвечаются 500.
func asFailure(err error) error {
	code, ok := domain.GetCode(err)
	if !ok {
		return err
	}

	opts := []failure.Option{
		failure.WithCode(code),
		failure.WithDescription(err.Error()),
	}

	switch code {
	case errcodes.DealNotFound, errcodes.NotFound:
		return failure.NewNotFoundErrorFromError(err, opts...)
	case errcodes.Forbidden:
		return failure.NewForbiddenErrorFromError(err, opts...)
	case errcodes.InvalidSignature:
		return failure.NewUnauthorizedErrorFromError(err, opts...)
	case errcodes.InvalidStateTransition:
		return failure.NewConflictErrorFromError(err, opts...)
	case errcodes.PreconditionNotMet:
		return failure.NewUnprocessableEntityErrorFromError(err, opts...)
	case errcodes.ValidationError,
		errcodes.InvalidDealID,
		errcodes.InvalidParticipants,
		errcodes.InvalidAmount,
		errcodes.InvalidDescription,
		errcodes.InvalidIdentity,
		errcodes.InvalidResolution:
		return failure.NewInvalidArgumentErrorFromError(err, opts...)
	default:
		return err
	}
}
