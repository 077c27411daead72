package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoint/entitlement/internal/domain"
)

type AmendmentRepository struct {
	pool *pgxpool.Pool
}

func NewAmendmentRepository(pool *pgxpool.Pool) *AmendmentRepository {
	return &AmendmentRepository{pool: pool}
}

func (r *AmendmentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *AmendmentRepository) Insert(ctx context.Context, a domain.Amendment) error {
	attachments, err := json.Marshal(a.Attachments)
	if err != nil {
		return fmt.Errorf("marshal amendment attachments: %w", err)
	}
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal amendment snapshot: %w", err)
	}

	const stmt = `
INSERT INTO contract_amendment_ledger (id, student_id, contract_id, service_type, ledger_type, quantity_changed, reason, description, attachments, snapshot, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.exec(ctx, stmt,
		a.ID,
		a.StudentID,
		a.ContractID,
		a.ServiceType,
		a.Kind,
		a.QuantityChanged,
		a.Reason,
		a.Description,
		attachments,
		snapshot,
		a.CreatedBy,
		a.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert amendment: %w", err)
	}
	return nil
}

func (r *AmendmentRepository) ListByStudent(ctx context.Context, studentID string) ([]domain.Amendment, error) {
	const query = `
SELECT id, student_id, contract_id, service_type, ledger_type, quantity_changed, reason, description, attachments, snapshot, created_by, created_at
FROM contract_amendment_ledger
WHERE student_id = $1
ORDER BY created_at DESC, id DESC`

	rows, err := r.query(ctx, query, studentID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list amendments: %w", err)
	}
	defer rows.Close()

	var out []domain.Amendment
	for rows.Next() {
		var a domain.Amendment
		var attachments, snapshot []byte
		if err := rows.Scan(
			&a.ID,
			&a.StudentID,
			&a.ContractID,
			&a.ServiceType,
			&a.Kind,
			&a.QuantityChanged,
			&a.Reason,
			&a.Description,
			&attachments,
			&snapshot,
			&a.CreatedBy,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan amendment: %w", err)
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &a.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal amendment attachments: %w", err)
			}
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
				return nil, fmt.Errorf("unmarshal amendment snapshot: %w", err)
			}
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate amendments: %w", rows.Err())
	}
	return out, nil
}

func (r *AmendmentRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *AmendmentRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
