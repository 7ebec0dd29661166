package settlement_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/settlement"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

type fakeProvider struct {
	transfers   []settlement.TransferRequest
	refunds     []string
	transferErr error
	refundErr   error
}

func (p *fakeProvider) CreateTransfer(_ context.Context, req settlement.TransferRequest) (string, error) {
	if p.transferErr != nil {
		return "", p.transferErr
	}

	p.transfers = append(p.transfers, req)

	return "TRF-" + req.DealID, nil
}

func (p *fakeProvider) CreateRefund(_ context.Context, paymentRef string) (string, error) {
	if p.refundErr != nil {
		return "", p.refundErr
	}

	p.refunds = append(p.refunds, paymentRef)

	return "pending", nil
}

type fakeProfiles struct {
	profiles map[value.Identity]*entity.UserProfile
}

func (f *fakeProfiles) GetByIdentity(_ context.Context, identity value.Identity) (*entity.UserProfile, error) {
	profile, ok := f.profiles[identity]
	if !ok {
		return nil, domain.NewError(errcodes.NotFound, "profile not found")
	}

	return profile, nil
}

type fakeRecorder struct {
	records []entity.SettlementRecord
	events  []entity.AuditEvent
}

func (r *fakeRecorder) RecordSettlement(
	_ context.Context, _ string, rec entity.SettlementRecord, event entity.AuditEvent,
) error {
	r.records = append(r.records, rec)
	r.events = append(r.events, event)

	return nil
}

func completedDeal() *entity.Deal {
	return &entity.Deal{
		DealID:          "ESC-TEST1",
		Buyer:           "@buyer",
		Seller:          "@seller",
		Amount:          10_000,
		Fee:             500,
		Status:          entity.StatusCompleted,
		PaymentRef:      "PSK-TEST1",
		RefundStatus:    entity.RefundNone,
		SettlementState: entity.SettlementNone,
	}
}

func sellerWithDestination() *fakeProfiles {
	return &fakeProfiles{profiles: map[value.Identity]*entity.UserProfile{
		"@seller": {Identity: "@seller", RecipientCode: "RCP_abc"},
	}}
}

func TestPayout(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	recorder := &fakeRecorder{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), recorder)

	deal := completedDeal()
	rq.NoError(d.Payout(context.Background(), deal, "escrow payout"))

	rq.Len(provider.transfers, 1)
	req := provider.transfers[0]
	rq.EqualValues(9_500, req.Amount) // amount − fee
	rq.Equal("RCP_abc", req.Recipient)
	rq.Equal("ESC-TEST1", req.Reference)

	rq.Equal("TRF-ESC-TEST1", deal.TransferRef)
	rq.Equal(entity.SettlementSettled, deal.SettlementState)
	rq.Len(recorder.events, 1)
	rq.Equal(entity.ActionTransferInitiated, recorder.events[0].Action)
}

func TestPayoutIdempotent(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	deal.TransferRef = "TRF-DONE"
	deal.SettlementState = entity.SettlementSettled

	rq.NoError(d.Payout(context.Background(), deal, "retry"))
	rq.Empty(provider.transfers) // Выплата уже проведена, второго вызова нет
}

func TestPayoutMissingDestination(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	recorder := &fakeRecorder{}
	d := settlement.NewDispatcher(provider, &fakeProfiles{profiles: map[value.Identity]*entity.UserProfile{}}, recorder)

	deal := completedDeal()
	err := d.Payout(context.Background(), deal, "escrow payout")

	rq.True(domain.HasCode(err, errcodes.MissingDestination))
	rq.Equal(entity.SettlementPendingManual, deal.SettlementState)
	rq.Empty(deal.TransferRef)
	rq.Empty(provider.transfers)
	rq.Len(recorder.records, 1)
}

func TestPayoutProviderRejected(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{
		transferErr: domain.NewError(errcodes.ProviderRejected, "invalid recipient"),
	}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	err := d.Payout(context.Background(), deal, "escrow payout")

	rq.True(domain.HasCode(err, errcodes.ProviderRejected))
	rq.Equal(entity.SettlementPendingManual, deal.SettlementState)
}

func TestPayoutProviderUnavailable(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{
		transferErr: domain.NewError(errcodes.ProviderUnavailable, "timeout"),
	}
	recorder := &fakeRecorder{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), recorder)

	deal := completedDeal()
	err := d.Payout(context.Background(), deal, "escrow payout")

	rq.True(domain.HasCode(err, errcodes.ProviderUnavailable))
	// Временный сбой: состояние не трогаем, ретрай подберёт воркер
	rq.Equal(entity.SettlementNone, deal.SettlementState)
	rq.Empty(recorder.records)
}

func TestPayoutDisputeReferenceSuffix(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	deal.DisputeResolution = value.ResolutionReleaseToSeller

	rq.NoError(d.Payout(context.Background(), deal, "dispute resolved"))
	rq.Equal("ESC-TEST1:release_to_seller", provider.transfers[0].Reference)
}

func TestRefund(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	recorder := &fakeRecorder{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), recorder)

	deal := completedDeal()
	deal.RefundStatus = entity.RefundInitiated

	rq.NoError(d.Refund(context.Background(), deal))
	rq.Equal([]string{"PSK-TEST1"}, provider.refunds)
	rq.Equal(entity.RefundProcessing, deal.RefundStatus)
	rq.Equal(entity.ActionRefundInitiated, recorder.events[0].Action)
}

func TestRefundIdempotent(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	deal.RefundStatus = entity.RefundProcessing

	rq.NoError(d.Refund(context.Background(), deal))
	rq.Empty(provider.refunds) // Возврат уже в пути
}

func TestRefundWithoutPaymentRef(t *testing.T) {
	rq := require.New(t)

	d := settlement.NewDispatcher(&fakeProvider{}, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	deal.PaymentRef = ""

	err := d.Refund(context.Background(), deal)
	rq.True(domain.HasCode(err, errcodes.ProviderRejected))
}

func TestRefundProviderFailureKeepsInitiated(t *testing.T) {
	rq := require.New(t)

	provider := &fakeProvider{
		refundErr: domain.NewError(errcodes.ProviderUnavailable, "timeout"),
	}
	d := settlement.NewDispatcher(provider, sellerWithDestination(), &fakeRecorder{})

	deal := completedDeal()
	deal.RefundStatus = entity.RefundInitiated

	err := d.Refund(context.Background(), deal)
	rq.True(domain.HasCode(err, errcodes.ProviderUnavailable))
	rq.Equal(entity.RefundInitiated, deal.RefundStatus) // Остаётся на ручную сверку
}
