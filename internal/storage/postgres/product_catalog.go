package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpoint/entitlement/internal/domain"
)

// ProductCatalogRepository reads the product item definitions contracts
// snapshot at creation time.
type ProductCatalogRepository struct {
	pool *pgxpool.Pool
}

func NewProductCatalogRepository(pool *pgxpool.Pool) *ProductCatalogRepository {
	return &ProductCatalogRepository{pool: pool}
}

func (r *ProductCatalogRepository) ListProductItems(ctx context.Context, productID string) ([]domain.ProductItem, error) {
	const query = `
SELECT service_type, quantity
FROM product_items
WHERE product_id = $1
ORDER BY service_type`

	rows, err := r.query(ctx, query, productID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list product items: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductItem
	for rows.Next() {
		var item domain.ProductItem
		if err := rows.Scan(&item.ServiceType, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan product item: %w", err)
		}
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate product items: %w", rows.Err())
	}
	return out, nil
}

func (r *ProductCatalogRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
