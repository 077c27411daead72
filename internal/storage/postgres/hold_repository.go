package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoint/entitlement/internal/domain"
)

type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const holdColumns = `id, contract_id, student_id, service_type, quantity, status, related_booking_id, expires_at, released_at, release_reason, created_by, created_at, updated_at`

func (r *HoldRepository) Insert(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO service_holds (id, contract_id, student_id, service_type, quantity, status, related_booking_id, expires_at, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)`

	_, err := r.exec(ctx, stmt,
		hold.ID,
		hold.ContractID,
		hold.StudentID,
		hold.ServiceType,
		hold.Quantity,
		hold.Status,
		hold.RelatedBookingID,
		hold.ExpiresAt,
		hold.CreatedBy,
		hold.CreatedAt,
		hold.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert hold: %w", err)
	}
	return nil
}

// GetForUpdate locks the hold row so status transitions serialize.
func (r *HoldRepository) GetForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	const query = `
SELECT ` + holdColumns + `
FROM service_holds
WHERE id = $1
FOR UPDATE`

	hold, err := scanHold(r.queryRow(ctx, query, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return hold, nil
}

func (r *HoldRepository) Get(ctx context.Context, holdID string) (domain.Hold, error) {
	const query = `
SELECT ` + holdColumns + `
FROM service_holds
WHERE id = $1`

	hold, err := scanHold(r.queryRow(ctx, query, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return hold, nil
}

// MarkTerminal records a terminal transition. The guard on status = 'active'
// makes a lost race visible as ErrHoldNotActive instead of a silent overwrite.
func (r *HoldRepository) MarkTerminal(ctx context.Context, holdID string, status domain.HoldStatus, releasedAt time.Time, reason string) error {
	const stmt = `
UPDATE service_holds
SET status = $2, released_at = $3, release_reason = $4, updated_at = $3
WHERE id = $1 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, holdID, status, releasedAt, reason)
	if err != nil {
		return fmt.Errorf("mark hold terminal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotActive
	}
	return nil
}

// ListDue returns active holds whose expiry has passed, oldest expiry first.
func (r *HoldRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	const query = `
SELECT ` + holdColumns + `
FROM service_holds
WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
ORDER BY expires_at
LIMIT $2`

	rows, err := r.query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due holds: %w", err)
	}
	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due hold: %w", err)
		}
		out = append(out, hold)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate due holds: %w", rows.Err())
	}
	return out, nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	var bookingID, releaseReason *string
	if err := row.Scan(
		&h.ID,
		&h.ContractID,
		&h.StudentID,
		&h.ServiceType,
		&h.Quantity,
		&h.Status,
		&bookingID,
		&h.ExpiresAt,
		&h.ReleasedAt,
		&releaseReason,
		&h.CreatedBy,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return domain.Hold{}, err
	}
	if bookingID != nil {
		h.RelatedBookingID = *bookingID
	}
	if releaseReason != nil {
		h.ReleaseReason = *releaseReason
	}
	return h, nil
}

func (r *HoldRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *HoldRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *HoldRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
