package server

import (
	"trustpay/internal/domain/entity"
	"trustpay/pkg/lox"
	"trustpay/pkg/rest"
)

func newRESTDeal(deal *entity.Deal) rest.Deal {
	return rest.Deal{
		DealID:            deal.DealID,
		Buyer:             deal.Buyer.String(),
		Seller:            deal.Seller.String(),
		Amount:            deal.Amount,
		Fee:               deal.Fee,
		Description:       deal.Description,
		Status:            deal.Status.String(),
		DisputeReason:     deal.DisputeReason,
		DisputeResolution: deal.DisputeResolution.String(),
		PaymentRef:        deal.PaymentRef,
		TransferRef:       deal.TransferRef,
		RefundStatus:      string(deal.RefundStatus),
		SettlementState:   string(deal.SettlementState),
		CreatedAt:         deal.CreatedAt,
		FundedAt:          deal.FundedAt,
		DeliveredAt:       deal.DeliveredAt,
		CompletedAt:       deal.CompletedAt,
		DisputeOpenedAt:   deal.DisputeOpenedAt,
		DisputeResolvedAt: deal.DisputeResolvedAt,
	}
}

func newRESTAuditEvents(events []entity.AuditEvent) []rest.AuditEvent {
	return lox.Map(events, newRESTAuditEvent)
}

func newRESTAuditEvent(event entity.AuditEvent) rest.AuditEvent {
	return rest.AuditEvent{
		ID:         event.ID,
		DealID:     event.DealID,
		Action:     event.Action,
		Actor:      event.Actor,
		FromStatus: event.FromStatus.String(),
		ToStatus:   event.ToStatus.String(),
		Details:    event.Details,
		CreatedAt:  event.CreatedAt,
	}
}
