package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"trustpay/internal/domain"
	"trustpay/internal/domain/entity"
	"trustpay/internal/domain/service/escrow"
	"trustpay/internal/domain/value"
	"trustpay/pkg/errcodes"
)

const dealColumns = `
	deal_id, buyer_telegram, seller_telegram, amount, fee, description,
	status, dispute_reason, dispute_resolution, payment_ref, transfer_ref,
	refund_status, settlement_state, created_at, funded_at, delivered_at,
	completed_at, dispute_opened_at, dispute_resolved_at`

type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository создаёт новый экземпляр репозитория.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *DealRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// Create сохраняет новую сделку и первое аудит-событие атомарно.
func (r *DealRepository) Create(ctx context.Context, deal *entity.Deal, event entity.AuditEvent) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO deals (deal_id, buyer_telegram, seller_telegram, amount, fee,
				description, status, refund_status, settlement_state, created_at)
			VALUES (:deal_id, :buyer_telegram, :seller_telegram, :amount, :fee,
				:description, :status, :refund_status, :settlement_state, :created_at)`

		params := map[string]any{
			"deal_id":          deal.DealID,
			"buyer_telegram":   deal.Buyer.String(),
			"seller_telegram":  deal.Seller.String(),
			"amount":           deal.Amount,
			"fee":              deal.Fee,
			"description":      deal.Description,
			"status":           deal.Status.String(),
			"refund_status":    string(deal.RefundStatus),
			"settlement_state": string(deal.SettlementState),
			"created_at":       deal.CreatedAt,
		}

		if _, err := tx.NamedExecContext(ctx, query, params); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to insert deal")
		}

		return appendAuditTx(ctx, tx, event)
	})
}

// GetByID возвращает сделку по идентификатору.
func (r *DealRepository) GetByID(ctx context.Context, dealID string) (*entity.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE deal_id = $1`

	var schema dealSchema
	if err := r.db.GetContext(ctx, &schema, query, dealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.DealNotFound, "deal not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get deal")
	}

	return schema.toDomain(), nil
}

// Transition применяет patch со сравнением статуса на записи (CAS) и пишет
// аудит-событие в той же транзакции. Ноль затронутых строк при живой сделке
// означает проигранную гонку: статус уже не from.
func (r *DealRepository) Transition(ctx context.Context, dealID string, from entity.Status, patch escrow.Patch, event entity.AuditEvent) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE deals SET
				status = :status,
				payment_ref = COALESCE(:payment_ref, payment_ref),
				dispute_reason = COALESCE(:dispute_reason, dispute_reason),
				dispute_resolution = COALESCE(:dispute_resolution, dispute_resolution),
				refund_status = COALESCE(:refund_status, refund_status),
				funded_at = COALESCE(:funded_at, funded_at),
				delivered_at = COALESCE(:delivered_at, delivered_at),
				completed_at = COALESCE(:completed_at, completed_at),
				dispute_opened_at = COALESCE(:dispute_opened_at, dispute_opened_at),
				dispute_resolved_at = COALESCE(:dispute_resolved_at, dispute_resolved_at)
			WHERE deal_id = :deal_id AND status = :from_status`

		if patch.RequireDeliveredUnset {
			query += ` AND delivered_at IS NULL`
		}

		params := map[string]any{
			"deal_id":             dealID,
			"from_status":         from.String(),
			"status":              patch.Status.String(),
			"payment_ref":         patch.PaymentRef,
			"dispute_reason":      patch.DisputeReason,
			"dispute_resolution":  resolutionParam(patch),
			"refund_status":       refundParam(patch),
			"funded_at":           patch.FundedAt,
			"delivered_at":        patch.DeliveredAt,
			"completed_at":        patch.CompletedAt,
			"dispute_opened_at":   patch.DisputeOpenedAt,
			"dispute_resolved_at": patch.DisputeResolvedAt,
		}

		res, err := tx.NamedExecContext(ctx, query, params)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to apply transition")
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
		}

		if rows == 0 {
			return r.explainConflict(ctx, tx, dealID, from)
		}

		return appendAuditTx(ctx, tx, event)
	})
}

// RecordSettlement пишет расчётные поля вне смены статуса: transfer_ref и
// payment_ref ставятся один раз, refund_status двигается только вперёд.
func (r *DealRepository) RecordSettlement(ctx context.Context, dealID string, rec entity.SettlementRecord, event entity.AuditEvent) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE deals SET
				transfer_ref = CASE WHEN transfer_ref IS NULL THEN :transfer_ref ELSE transfer_ref END,
				refund_status = COALESCE(:refund_status, refund_status),
				settlement_state = COALESCE(:settlement_state, settlement_state)
			WHERE deal_id = :deal_id`

		var refund, state *string
		if rec.RefundStatus != nil {
			v := string(*rec.RefundStatus)
			refund = &v
		}
		if rec.SettlementState != nil {
			v := string(*rec.SettlementState)
			state = &v
		}

		params := map[string]any{
			"deal_id":          dealID,
			"transfer_ref":     rec.TransferRef,
			"refund_status":    refund,
			"settlement_state": state,
		}

		res, err := tx.NamedExecContext(ctx, query, params)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to record settlement")
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to check affected rows")
		}

		if rows == 0 {
			return domain.NewError(errcodes.DealNotFound, "deal not found")
		}

		return appendAuditTx(ctx, tx, event)
	})
}

// ListFundedBefore возвращает funded-сделки, профинансированные раньше cutoff
// (кандидаты на авто-релиз).
func (r *DealRepository) ListFundedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE status = $1 AND funded_at < $2
		ORDER BY funded_at
		LIMIT $3`

	return r.selectDeals(ctx, query, entity.StatusFunded.String(), cutoff, limit)
}

// ListByStatus возвращает сделки в заданном статусе (для /disputes у арбитра).
func (r *DealRepository) ListByStatus(ctx context.Context, status entity.Status, limit int) ([]*entity.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`

	return r.selectDeals(ctx, query, status.String(), limit)
}

// ListPendingPayouts: завершённые в пользу продавца сделки без трансфера —
// кандидаты на ретрай выплаты (продавец мог успеть привязать счёт).
func (r *DealRepository) ListPendingPayouts(ctx context.Context, limit int) ([]*entity.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE status = $1
		  AND funded_at IS NOT NULL
		  AND transfer_ref IS NULL
		  AND COALESCE(dispute_resolution, '') <> $2
		ORDER BY completed_at
		LIMIT $3`

	return r.selectDeals(ctx, query,
		entity.StatusCompleted.String(),
		value.ResolutionRefundBuyer.String(),
		limit)
}

// ListPendingRefunds: сделки с начатым, но не подтверждённым возвратом.
func (r *DealRepository) ListPendingRefunds(ctx context.Context, limit int) ([]*entity.Deal, error) {
	query := `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE refund_status = $1
		ORDER BY completed_at
		LIMIT $2`

	return r.selectDeals(ctx, query, string(entity.RefundInitiated), limit)
}

func (r *DealRepository) selectDeals(ctx context.Context, query string, args ...any) ([]*entity.Deal, error) {
	var schemas []dealSchema
	if err := r.db.SelectContext(ctx, &schemas, query, args...); err != nil {
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to select deals")
	}

	deals := make([]*entity.Deal, 0, len(schemas))
	for i := range schemas {
		deals = append(deals, schemas[i].toDomain())
	}

	return deals, nil
}

// explainConflict различает «сделки нет» и «статус уже другой» после
// нулевого апдейта.
func (r *DealRepository) explainConflict(ctx context.Context, tx *sqlx.Tx, dealID string, from entity.Status) error {
	var current string
	if err := tx.GetContext(ctx, &current, `SELECT status FROM deals WHERE deal_id = $1`, dealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewError(errcodes.DealNotFound, "deal not found")
		}
		return domain.WrapError(err, errcodes.InternalServerError, "failed to re-read deal")
	}

	return domain.NewError(errcodes.InvalidStateTransition,
		fmt.Sprintf("expected status %s, deal is %s", from, current))
}

func appendAuditTx(ctx context.Context, tx *sqlx.Tx, event entity.AuditEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal audit details")
	}

	query := `
		INSERT INTO audit_logs (deal_id, action, actor, from_status, to_status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.ExecContext(ctx, query,
		event.DealID, event.Action, event.Actor,
		event.FromStatus.String(), event.ToStatus.String(),
		details, event.CreatedAt,
	); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to append audit event")
	}

	return nil
}

func resolutionParam(patch escrow.Patch) *string {
	if patch.DisputeResolution == nil {
		return nil
	}

	v := patch.DisputeResolution.String()

	return &v
}

func refundParam(patch escrow.Patch) *string {
	if patch.RefundStatus == nil {
		return nil
	}

	v := string(*patch.RefundStatus)

	return &v
}
