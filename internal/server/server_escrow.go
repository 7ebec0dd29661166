package server

import (
	"context"
	"fmt"
	"net/http"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/checkout"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
	"trustpay/pkg/contextx"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/httpx/reply"
	"trustpay/pkg/httpx/req"
	"trustpay/pkg/rest"
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

type auditReader interface {
	ListByDeal(ctx context.Context, dealID string) ([]entity.AuditEvent, error)
}

type checkoutService interface {
	InitializeCharge(ctx context.Context, dealID string, actor value.Identity, email string) (url, reference string, err error)
}

type destinationService interface {
	RegisterDestination(ctx context.Context, actor value.Identity, p checkout.DestinationParams) error
}

type EscrowServer struct {
	escrowService      escrowService
	auditReader        auditReader
	checkoutService    checkoutService
	destinationService destinationService
}

func NewEscrowServer(
	escrowService escrowService,
	auditReader auditReader,
	checkoutService checkoutService,
	destinationService destinationService,
) EscrowServer {
	return EscrowServer{
		escrowService:      escrowService,
		auditReader:        auditReader,
		checkoutService:    checkoutService,
		destinationService: destinationService,
	}
}

// actor достаёт идентичность вызывающего, положенную в контекст
// аутентификационным middleware.
func actor(ctx context.Context) (value.Identity, error) {
	userID, err := contextx.UserIDFromContext(ctx)
	if err != nil {
		return "", domain.NewError(errcodes.InvalidIdentity, "caller identity is missing")
	}

	return value.ParseIdentity(userID.String())
}

func (s EscrowServer) postV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	buyer, err := actor(ctx)
	if err != nil {
		return err
	}

	var request rest.CreateDealRequest
	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	seller, err := value.ParseIdentity(request.Seller)
	if err != nil {
		return fmt.Errorf("value.ParseIdentity: %w", err)
	}

	deal, err := s.escrowService.Create(ctx, escrow.CreateParams{
		Buyer:       buyer,
		Seller:      seller,
		Amount:      request.Amount,
		Description: request.Description,
	})
	if err != nil {
		return fmt.Errorf("escrowService.Create: %w", err)
	}

	reply.JSON(ctx, w, http.StatusCreated, newRESTDeal(deal))

	return nil
}

func (s EscrowServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	deal, err := s.escrowService.GetByID(ctx, r.PathValue("dealID"))
	if err != nil {
		return fmt.Errorf("escrowService.GetByID: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(deal))

	return nil
}

func (s EscrowServer) getV1DealAudit(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	dealID := r.PathValue("dealID")

	// Проверяем существование сделки, чтобы пустой лог не маскировал опечатку
	// в идентификаторе.
	if _, err := s.escrowService.GetByID(ctx, dealID); err != nil {
		return fmt.Errorf("escrowService.GetByID: %w", err)
	}

	events, err := s.auditReader.ListByDeal(ctx, dealID)
	if err != nil {
		return fmt.Errorf("auditReader.ListByDeal: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTAuditEvents(events))

	return nil
}

func (s EscrowServer) postV1DealAccept(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.escrowService.Accept)
}

func (s EscrowServer) postV1DealDecline(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.escrowService.Decline)
}

// postV1DealCancel — отмена покупателем. До принятия продавцом это обычный
// Cancel, после фандинга — отмена внутри бесплатного окна. Выбор по текущему
// статусу безопасен: сам переход всё равно перепроверяет статус атомарно.
func (s EscrowServer) postV1DealCancel(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	deal, err := s.escrowService.GetByID(ctx, r.PathValue("dealID"))
	if err != nil {
		return fmt.Errorf("escrowService.GetByID: %w", err)
	}

	if deal.Status == entity.StatusFunded {
		return s.transition(w, r, s.escrowService.CancelWithinWindow)
	}

	return s.transition(w, r, s.escrowService.Cancel)
}

func (s EscrowServer) postV1DealDelivered(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.escrowService.MarkDelivered)
}

func (s EscrowServer) postV1DealReceived(w http.ResponseWriter, r *http.Request) error {
	return s.transition(w, r, s.escrowService.ConfirmReceived)
}

func (s EscrowServer) postV1DealDispute(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	caller, err := actor(ctx)
	if err != nil {
		return err
	}

	var request rest.DisputeRequest
	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	deal, err := s.escrowService.OpenDispute(ctx, r.PathValue("dealID"), caller, request.Reason)
	if err != nil {
		return fmt.Errorf("escrowService.OpenDispute: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(deal))

	return nil
}

func (s EscrowServer) postV1DealResolve(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	caller, err := actor(ctx)
	if err != nil {
		return err
	}

	var request rest.ResolveRequest
	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	deal, err := s.escrowService.Resolve(ctx, r.PathValue("dealID"), caller, value.Resolution(request.Resolution))
	if err != nil {
		return fmt.Errorf("escrowService.Resolve: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(deal))

	return nil
}

func (s EscrowServer) postV1DealPay(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	caller, err := actor(ctx)
	if err != nil {
		return err
	}

	var request rest.PayRequest
	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	url, reference, err := s.checkoutService.InitializeCharge(ctx, r.PathValue("dealID"), caller, request.Email)
	if err != nil {
		return fmt.Errorf("checkoutService.InitializeCharge: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, rest.Checkout{
		AuthorizationURL: url,
		Reference:        reference,
	})

	return nil
}

func (s EscrowServer) putV1PayoutDestination(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	caller, err := actor(ctx)
	if err != nil {
		return err
	}

	var request rest.PayoutDestinationRequest
	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	if err := s.destinationService.RegisterDestination(ctx, caller, checkout.DestinationParams{
		BankCode:      request.BankCode,
		BankName:      request.BankName,
		AccountName:   request.AccountName,
		AccountNumber: request.AccountNumber,
	}); err != nil {
		return fmt.Errorf("destinationService.RegisterDestination: %w", err)
	}

	reply.OK(w)

	return nil
}

func (s EscrowServer) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, dealID string, actor value.Identity) (*entity.Deal, error),
) error {
	ctx := r.Context()

	caller, err := actor(ctx)
	if err != nil {
		return err
	}

	deal, err := op(ctx, r.PathValue("dealID"), caller)
	if err != nil {
		return fmt.Errorf("escrow transition: %w", err)
	}

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(deal))

	return nil
}
