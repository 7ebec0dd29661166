package settings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/service/settings"
	"trustpay/internal/domain/value"
)

type fakeRepo struct {
	values map[string]string
	err    error
	calls  int
}

func (r *fakeRepo) LoadAll(context.Context) (map[string]string, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}

	return r.values, nil
}

func (r *fakeRepo) Set(_ context.Context, key, value string) error {
	if r.err != nil {
		return r.err
	}

	r.values[key] = value

	return nil
}

func defaults() escrow.Policy {
	return escrow.Policy{
		MinAmount:         1000,
		MaxAmount:         100_000_000,
		FeeRate:           0.05,
		MinFee:            100,
		CancelWindow:      time.Hour,
		AutoReleaseWindow: 48 * time.Hour,
		Arbiters:          []value.Identity{"@root"},
	}
}

func TestPolicyDefaults(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{values: map[string]string{}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	policy := svc.Policy(context.Background())
	rq.Equal(defaults(), policy)
}

func TestPolicyOverrides(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{values: map[string]string{
		"min_deal_amount":     "2000",
		"fee_rate":            "0.1",
		"cancel_window":       "30m",
		"auto_release_window": "24h",
		"arbiters":            "@alice, @BOB",
	}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	policy := svc.Policy(context.Background())

	rq.EqualValues(2000, policy.MinAmount)
	rq.EqualValues(100_000_000, policy.MaxAmount) // Не переопределён — дефолт
	rq.InDelta(0.1, policy.FeeRate, 1e-9)
	rq.Equal(30*time.Minute, policy.CancelWindow)
	rq.Equal(24*time.Hour, policy.AutoReleaseWindow)
	rq.Equal([]value.Identity{"@alice", "@bob"}, policy.Arbiters)
}

func TestPolicyIgnoresMalformedOverrides(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{values: map[string]string{
		"min_deal_amount": "not a number",
		"fee_rate":        "ten percent",
		"cancel_window":   "soon",
	}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	policy := svc.Policy(context.Background())
	rq.Equal(defaults(), policy)
}

func TestPolicyFallsBackOnRepoError(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{err: errors.New("connection refused")}
	svc := settings.NewService(repo, defaults(), time.Minute)

	policy := svc.Policy(context.Background())
	rq.Equal(defaults(), policy)
}

func TestPolicyCached(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{values: map[string]string{"min_deal_amount": "5000"}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	first := svc.Policy(context.Background())
	second := svc.Policy(context.Background())

	rq.Equal(first, second)
	rq.Equal(1, repo.calls) // Второй вызов из кеша

	// Ошибка репозитория не кешируется: следующий вызов снова идёт в БД
	failing := &fakeRepo{err: errors.New("boom")}
	failingSvc := settings.NewService(failing, defaults(), time.Minute)

	failingSvc.Policy(context.Background())
	failingSvc.Policy(context.Background())
	rq.Equal(2, failing.calls)
}

func TestArbiterCheck(t *testing.T) {
	rq := require.New(t)

	repo := &fakeRepo{values: map[string]string{"arbiters": "@alice"}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	policy := svc.Policy(context.Background())
	rq.True(policy.IsArbiter("@ALICE"))
	rq.False(policy.IsArbiter("@root")) // Переопределение замещает список целиком
}

func TestSetDropsCachedPolicy(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	repo := &fakeRepo{values: map[string]string{}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	rq.EqualValues(1000, svc.Policy(ctx).MinAmount)

	rq.NoError(svc.Set(ctx, "min_deal_amount", "5000"))

	// Новое значение видно сразу, без ожидания TTL
	rq.EqualValues(5000, svc.Policy(ctx).MinAmount)
	rq.Equal("5000", repo.values["min_deal_amount"])
}

func TestSetRejectsBadInput(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	repo := &fakeRepo{values: map[string]string{}}
	svc := settings.NewService(repo, defaults(), time.Minute)

	rq.Error(svc.Set(ctx, "no_such_key", "1"))
	rq.Error(svc.Set(ctx, "fee_rate", "ten percent"))
	rq.Error(svc.Set(ctx, "cancel_window", "30"))
	rq.Error(svc.Set(ctx, "arbiters", " , "))
	rq.Empty(repo.values)
}
