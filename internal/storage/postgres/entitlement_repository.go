package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoint/entitlement/internal/domain"
)

type EntitlementRepository struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepository(pool *pgxpool.Pool) *EntitlementRepository {
	return &EntitlementRepository{pool: pool}
}

func (r *EntitlementRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const entitlementColumns = `id, student_id, service_type, contract_id, total_quantity, consumed_quantity, held_quantity, created_at, updated_at`

// ListForUpdate locks every entitlement row for the (student, service type) key.
// Rows come back ordered by (service_type, id) so every transaction acquires
// locks in the same order.
func (r *EntitlementRepository) ListForUpdate(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error) {
	const query = `
SELECT ` + entitlementColumns + `
FROM entitlements
WHERE student_id = $1 AND service_type = $2
ORDER BY service_type, id
FOR UPDATE`

	rows, err := r.query(ctx, query, studentID, serviceType)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock entitlements: %w", err)
	}
	defer rows.Close()
	return scanEntitlements(rows)
}

// ListByKey reads entitlement rows without locking (balance queries).
func (r *EntitlementRepository) ListByKey(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error) {
	const query = `
SELECT ` + entitlementColumns + `
FROM entitlements
WHERE student_id = $1 AND service_type = $2
ORDER BY service_type, id`

	rows, err := r.query(ctx, query, studentID, serviceType)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	defer rows.Close()
	return scanEntitlements(rows)
}

// ListByStudent reads every entitlement row a student owns, across all service types.
func (r *EntitlementRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.Entitlement, error) {
	const query = `
SELECT ` + entitlementColumns + `
FROM entitlements
WHERE student_id = $1
ORDER BY service_type, id`

	rows, err := r.query(ctx, query, studentID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list entitlements by student: %w", err)
	}
	defer rows.Close()
	return scanEntitlements(rows)
}

func (r *EntitlementRepository) Insert(ctx context.Context, e domain.Entitlement) error {
	const stmt = `
INSERT INTO entitlements (id, student_id, service_type, contract_id, total_quantity, consumed_quantity, held_quantity, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		e.ID,
		e.StudentID,
		e.ServiceType,
		e.ContractID,
		e.TotalQuantity,
		e.ConsumedQuantity,
		e.HeldQuantity,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert entitlement: %w", err)
	}
	return nil
}

// UpdateQuantities persists the mutated counters of a locked row.
func (r *EntitlementRepository) UpdateQuantities(ctx context.Context, e domain.Entitlement) error {
	const stmt = `
UPDATE entitlements
SET total_quantity = $2, consumed_quantity = $3, held_quantity = $4, updated_at = $5
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, e.ID, e.TotalQuantity, e.ConsumedQuantity, e.HeldQuantity, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update entitlement quantities: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntitlementNotFound
	}
	return nil
}

func scanEntitlements(rows pgx.Rows) ([]domain.Entitlement, error) {
	var out []domain.Entitlement
	for rows.Next() {
		var e domain.Entitlement
		var contractID *string
		if err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.ServiceType,
			&contractID,
			&e.TotalQuantity,
			&e.ConsumedQuantity,
			&e.HeldQuantity,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entitlement: %w", err)
		}
		if contractID != nil {
			e.ContractID = *contractID
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate entitlements: %w", rows.Err())
	}
	return out, nil
}

func (r *EntitlementRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *EntitlementRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
