package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoint/entitlement/internal/domain"
)

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const ledgerColumns = `id, student_id, service_type, quantity, type, source, balance_after, related_booking_id, related_hold_id, metadata, reason, created_by, created_at`

func (r *LedgerRepository) Insert(ctx context.Context, entry domain.LedgerEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}

	const stmt = `
INSERT INTO service_ledger (id, student_id, service_type, quantity, type, source, balance_after, related_booking_id, related_hold_id, metadata, reason, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, '')::uuid, $10, $11, $12, $13)`

	_, err = r.exec(ctx, stmt,
		entry.ID,
		entry.StudentID,
		entry.ServiceType,
		entry.Quantity,
		entry.Type,
		entry.Source,
		entry.BalanceAfter,
		entry.RelatedBookingID,
		entry.RelatedHoldID,
		metadata,
		entry.Reason,
		entry.CreatedBy,
		entry.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ConsumptionTotals returns |sum of consumption entries| and the sum of refund
// entries for the key, spanning both the live and the archived partition.
// Adjustments are deliberately not part of either figure.
func (r *LedgerRepository) ConsumptionTotals(ctx context.Context, studentID string, serviceType domain.ServiceType) (consumed, refunded int, err error) {
	const query = `
SELECT
	COALESCE(ABS(SUM(quantity) FILTER (WHERE type = 'consumption')), 0),
	COALESCE(SUM(quantity) FILTER (WHERE type = 'refund'), 0)
FROM %s
WHERE student_id = $1 AND service_type = $2`

	for _, table := range []string{"service_ledger", "service_ledger_archive"} {
		var c, rf int
		if err := r.queryRow(ctx, fmt.Sprintf(query, table), studentID, serviceType).Scan(&c, &rf); err != nil {
			if isInvalidUUID(err) {
				return 0, 0, domain.ErrInvalidID
			}
			return 0, 0, fmt.Errorf("sum %s: %w", table, err)
		}
		consumed += c
		refunded += rf
	}
	return consumed, refunded, nil
}

// Query reads from the live partition, newest first.
func (r *LedgerRepository) Query(ctx context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error) {
	return r.queryTable(ctx, "service_ledger", filter, limit, offset)
}

// QueryArchive reads from the archived partition, newest first. Callers are
// expected to pass a bounded date range; the service layer enforces that.
func (r *LedgerRepository) QueryArchive(ctx context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error) {
	return r.queryTable(ctx, "service_ledger_archive", filter, limit, offset)
}

// ArchiveBefore moves entries older than cutoff to the archive partition and
// returns how many rows were moved.
func (r *LedgerRepository) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const stmt = `
WITH moved AS (
	DELETE FROM service_ledger
	WHERE created_at < $1
	RETURNING ` + ledgerColumns + `
)
INSERT INTO service_ledger_archive (` + ledgerColumns + `)
SELECT ` + ledgerColumns + ` FROM moved`

	tag, err := r.exec(ctx, stmt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive ledger entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *LedgerRepository) queryTable(ctx context.Context, table string, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ` + table + ` WHERE 1=1`
	args := make([]any, 0, 6)

	appendArg := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + clause + "$" + strconv.Itoa(len(args))
	}
	if filter.StudentID != "" {
		appendArg("student_id = ", filter.StudentID)
	}
	if filter.ServiceType != "" {
		appendArg("service_type = ", filter.ServiceType)
	}
	if filter.From != nil {
		appendArg("created_at >= ", *filter.From)
	}
	if filter.To != nil {
		appendArg("created_at < ", *filter.To)
	}

	args = append(args, limit)
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var bookingID, holdID, reason *string
		var metadata []byte
		if err := rows.Scan(
			&e.ID,
			&e.StudentID,
			&e.ServiceType,
			&e.Quantity,
			&e.Type,
			&e.Source,
			&e.BalanceAfter,
			&bookingID,
			&holdID,
			&metadata,
			&reason,
			&e.CreatedBy,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if bookingID != nil {
			e.RelatedBookingID = *bookingID
		}
		if holdID != nil {
			e.RelatedHoldID = *holdID
		}
		if reason != nil {
			e.Reason = *reason
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal ledger metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", rows.Err())
	}
	return out, nil
}

func (r *LedgerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LedgerRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *LedgerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
