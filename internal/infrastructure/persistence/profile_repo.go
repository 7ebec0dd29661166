package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByIdentity ищет профиль без учёта регистра: исторически юзернеймы
// записывались и с @, и без, и в разном регистре.
func (r *ProfileRepository) GetByIdentity(ctx context.Context, identity value.Identity) (*entity.UserProfile, error) {
	query := `
		SELECT telegram_username, telegram_chat_id, bank_name, account_name,
			account_number, recipient_code, updated_at
		FROM user_profiles
		WHERE lower(telegram_username) = lower($1)`

	var schema profileSchema
	if err := r.db.GetContext(ctx, &schema, query, identity.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.NotFound, "profile not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get profile")
	}

	return schema.toDomain(), nil
}

// Upsert сохраняет профиль, перетирая банковские реквизиты.
// recipient_code обнуляется: старый код провайдера на новый счёт не годится.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *entity.UserProfile) error {
	query := `
		INSERT INTO user_profiles (telegram_username, telegram_chat_id, bank_name,
			account_name, account_number, recipient_code, updated_at)
		VALUES (:telegram_username, :telegram_chat_id, :bank_name,
			:account_name, :account_number, :recipient_code, :updated_at)
		ON CONFLICT (telegram_username) DO UPDATE SET
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			bank_name = EXCLUDED.bank_name,
			account_name = EXCLUDED.account_name,
			account_number = EXCLUDED.account_number,
			recipient_code = EXCLUDED.recipient_code,
			updated_at = EXCLUDED.updated_at`

	params := map[string]any{
		"telegram_username": profile.Identity.String(),
		"telegram_chat_id":  profile.ChatID,
		"bank_name":         profile.BankName,
		"account_name":      profile.AccountName,
		"account_number":    profile.AccountNumber,
		"recipient_code":    profile.RecipientCode,
		"updated_at":        time.Now(),
	}

	if _, err := r.db.NamedExecContext(ctx, query, params); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to upsert profile")
	}

	return nil
}

// SetChatID привязывает чат уведомлений, создавая профиль при необходимости.
func (r *ProfileRepository) SetChatID(ctx context.Context, identity value.Identity, chatID int64) error {
	query := `
		INSERT INTO user_profiles (telegram_username, telegram_chat_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_username) DO UPDATE SET
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, identity.String(), chatID, time.Now()); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to set chat id")
	}

	return nil
}
