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

type ContractRepository struct {
	pool *pgxpool.Pool
}

func NewContractRepository(pool *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{pool: pool}
}

func (r *ContractRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const contractColumns = `id, student_id, product_id, status, title, total_amount, currency, product_snapshot, signed_at, expires_at, validity_days, created_by, created_at, updated_at`

func (r *ContractRepository) Insert(ctx context.Context, c domain.Contract) error {
	snapshot, err := json.Marshal(c.ProductSnapshot)
	if err != nil {
		return fmt.Errorf("marshal product snapshot: %w", err)
	}

	const stmt = `
INSERT INTO contracts (id, student_id, product_id, status, title, total_amount, currency, product_snapshot, signed_at, expires_at, validity_days, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.exec(ctx, stmt,
		c.ID,
		c.StudentID,
		c.ProductID,
		c.Status,
		c.Title,
		c.TotalAmount,
		c.Currency,
		snapshot,
		c.SignedAt,
		c.ExpiresAt,
		c.ValidityDays,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) Get(ctx context.Context, contractID string) (domain.Contract, error) {
	const query = `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	return r.getContract(ctx, query, contractID)
}

// GetForUpdate locks the contract row so status transitions serialize.
func (r *ContractRepository) GetForUpdate(ctx context.Context, contractID string) (domain.Contract, error) {
	const query = `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1 FOR UPDATE`
	return r.getContract(ctx, query, contractID)
}

func (r *ContractRepository) getContract(ctx context.Context, query, contractID string) (domain.Contract, error) {
	var c domain.Contract
	var snapshot []byte
	err := r.queryRow(ctx, query, contractID).Scan(
		&c.ID,
		&c.StudentID,
		&c.ProductID,
		&c.Status,
		&c.Title,
		&c.TotalAmount,
		&c.Currency,
		&snapshot,
		&c.SignedAt,
		&c.ExpiresAt,
		&c.ValidityDays,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Contract{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Contract{}, domain.ErrContractNotFound
		}
		return domain.Contract{}, fmt.Errorf("get contract: %w", err)
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &c.ProductSnapshot); err != nil {
			return domain.Contract{}, fmt.Errorf("unmarshal product snapshot: %w", err)
		}
	}
	return c, nil
}

// Update persists mutable contract fields. Status, signed/expiry stamps and
// draft-only core fields all flow through here; the service decides what may change.
func (r *ContractRepository) Update(ctx context.Context, c domain.Contract) error {
	const stmt = `
UPDATE contracts
SET status = $2, title = $3, total_amount = $4, currency = $5, signed_at = $6, expires_at = $7, validity_days = $8, updated_at = $9
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		c.ID,
		c.Status,
		c.Title,
		c.TotalAmount,
		c.Currency,
		c.SignedAt,
		c.ExpiresAt,
		c.ValidityDays,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContractNotFound
	}
	return nil
}

func (r *ContractRepository) AppendStatusChange(ctx context.Context, change domain.StatusChange) error {
	metadata, err := json.Marshal(change.Metadata)
	if err != nil {
		return fmt.Errorf("marshal status change metadata: %w", err)
	}

	const stmt = `
INSERT INTO contract_status_history (id, contract_id, from_status, to_status, changed_at, changed_by, reason, metadata)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)`

	_, err = r.exec(ctx, stmt,
		change.ID,
		change.ContractID,
		change.FromStatus,
		change.ToStatus,
		change.ChangedAt,
		change.ChangedBy,
		change.Reason,
		metadata,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("append status change: %w", err)
	}
	return nil
}

func (r *ContractRepository) ListStatusHistory(ctx context.Context, contractID string) ([]domain.StatusChange, error) {
	const query = `
SELECT id, contract_id, from_status, to_status, changed_at, changed_by, reason, metadata
FROM contract_status_history
WHERE contract_id = $1
ORDER BY changed_at, id`

	rows, err := r.query(ctx, query, contractID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusChange
	for rows.Next() {
		var change domain.StatusChange
		var changedBy, reason *string
		var metadata []byte
		if err := rows.Scan(
			&change.ID,
			&change.ContractID,
			&change.FromStatus,
			&change.ToStatus,
			&change.ChangedAt,
			&changedBy,
			&reason,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		if changedBy != nil {
			change.ChangedBy = *changedBy
		}
		if reason != nil {
			change.Reason = *reason
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &change.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal status change metadata: %w", err)
			}
		}
		out = append(out, change)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate status history: %w", rows.Err())
	}
	return out, nil
}

func (r *ContractRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ContractRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ContractRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
