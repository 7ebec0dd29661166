package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"trustpay/internal/domain"
	"trustpay/pkg/errcodes"
)

// SettingsRepository читает platform_settings — key/value хранилище
// горячих настроек, которые админ меняет без редеплоя.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) LoadAll(ctx context.Context) (map[string]string, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}

	if err := r.db.SelectContext(ctx, &rows, `SELECT key, value FROM platform_settings`); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to load settings")
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}

	return settings, nil
}

// Set сохраняет значение настройки (используется админ-командами бота).
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO platform_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`

	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to set setting")
	}

	return nil
}
