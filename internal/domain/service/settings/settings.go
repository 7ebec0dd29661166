package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"trustpay/internal/domain"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
	"trustpay/pkg/logx"
)

// Ключи таблицы platform_settings. Значения перекрывают дефолты из env,
// поэтому операционные правки (лимиты, комиссия, список арбитров) не требуют
// редеплоя.
const (
	keyMinAmount         = "min_deal_amount"
	keyMaxAmount         = "max_deal_amount"
	keyFeeRate           = "fee_rate"
	keyMinFee            = "min_fee"
	keyCancelWindow      = "cancel_window"
	keyAutoReleaseWindow = "auto_release_window"
	keyArbiters          = "arbiters" // Через запятую: "@admin1,@admin2"
)

const cacheKey = "policy"

type Repository interface {
	LoadAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// Service отдаёт действующую Policy: дефолты из конфига, поверх — значения из
// БД. Результат кешируется с TTL, так что изменения в таблице подхватываются
// без рестарта (горячая перезагрузка).
type Service struct {
	repo     Repository
	defaults escrow.Policy
	cache    *cache.Cache
}

func NewService(repo Repository, defaults escrow.Policy, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		defaults: defaults,
		cache:    cache.New(ttl, ttl*2),
	}
}

// Policy реализует escrow.PolicyProvider. Недоступность таблицы настроек не
// роняет обработку: возвращаются дефолты.
func (s *Service) Policy(ctx context.Context) escrow.Policy {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(escrow.Policy)
	}

	policy := s.defaults

	overrides, err := s.repo.LoadAll(ctx)
	if err != nil {
		logger(ctx).Error("settings load failed, using defaults", logx.Error(err))
		return policy
	}

	applyOverrides(&policy, overrides)
	s.cache.SetDefault(cacheKey, policy)

	return policy
}

// Set записывает настройку и сбрасывает кеш, чтобы новая политика вступила
// в силу сразу, а не после истечения TTL.
func (s *Service) Set(ctx context.Context, key, val string) error {
	if !validOverride(key, val) {
		return domain.NewError(errcodes.ValidationError,
			fmt.Sprintf("unknown setting %q or malformed value", key))
	}

	if err := s.repo.Set(ctx, key, val); err != nil {
		return fmt.Errorf("repo.Set: %w", err)
	}

	s.cache.Delete(cacheKey)

	return nil
}

func validOverride(key, val string) bool {
	switch key {
	case keyMinAmount, keyMaxAmount, keyMinFee:
		_, ok := parseInt(val)
		return ok
	case keyFeeRate:
		_, ok := parseFloat(val)
		return ok
	case keyCancelWindow, keyAutoReleaseWindow:
		_, ok := parseDuration(val)
		return ok
	case keyArbiters:
		return len(parseArbiters(val)) > 0
	}

	return false
}

func applyOverrides(policy *escrow.Policy, overrides map[string]string) {
	if v, ok := parseInt(overrides[keyMinAmount]); ok {
		policy.MinAmount = v
	}
	if v, ok := parseInt(overrides[keyMaxAmount]); ok {
		policy.MaxAmount = v
	}
	if v, ok := parseFloat(overrides[keyFeeRate]); ok {
		policy.FeeRate = v
	}
	if v, ok := parseInt(overrides[keyMinFee]); ok {
		policy.MinFee = v
	}
	if v, ok := parseDuration(overrides[keyCancelWindow]); ok {
		policy.CancelWindow = v
	}
	if v, ok := parseDuration(overrides[keyAutoReleaseWindow]); ok {
		policy.AutoReleaseWindow = v
	}
	if raw := overrides[keyArbiters]; raw != "" {
		policy.Arbiters = parseArbiters(raw)
	}
}

func parseArbiters(raw string) []value.Identity {
	parts := strings.Split(raw, ",")
	arbiters := make([]value.Identity, 0, len(parts))

	for _, p := range parts {
		id, err := value.ParseIdentity(p)
		if err != nil {
			continue
		}

		arbiters = append(arbiters, id)
	}

	return arbiters
}

func parseInt(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}

	v, err := strconv.ParseInt(raw, 10, 64)

	return v, err == nil
}

func parseFloat(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)

	return v, err == nil
}

func parseDuration(raw string) (time.Duration, bool) {
	if raw == "" {
		return 0, false
	}

	v, err := time.ParseDuration(raw)

	return v, err == nil
}
