package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/pkg/errcodes"
)

// AuditRepository читает append-only лог событий. Запись идёт только через
// транзакции DealRepository, отдельного Append здесь нет намеренно.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListByDeal возвращает события сделки в порядке записи.
func (r *AuditRepository) ListByDeal(ctx context.Context, dealID string) ([]entity.AuditEvent, error) {
	query := `
		SELECT id, deal_id, action, actor, from_status, to_status, details, created_at
		FROM audit_logs
		WHERE deal_id = $1
		ORDER BY id`

	var schemas []auditSchema
	if err := r.db.SelectContext(ctx, &schemas, query, dealID); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to list audit events")
	}

	events := make([]entity.AuditEvent, 0, len(schemas))
	for i := range schemas {
		event, err := schemas[i].toDomain()
		if err != nil {
			return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to decode audit event")
		}
		events = append(events, event)
	}

	return events, nil
}
