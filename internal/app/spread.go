package app

import (
	"context"
	"time"

	"github.com/classpoint/entitlement/internal/domain"
)

// Balance-affecting operations walk entitlement rows in the order the store
// locked them (service_type, id) and spread the quantity row by row until it
// is exhausted. Callers must have verified the aggregate can absorb the full
// quantity first; these helpers assume it fits.

func sumAvailable(rows []domain.Entitlement) int {
	total := 0
	for _, row := range rows {
		total += row.Available()
	}
	return total
}

// spreadConsumption raises ConsumedQuantity FIFO across rows and returns the
// amount taken from each row (zero for untouched rows).
func spreadConsumption(rows []domain.Entitlement, quantity int) []int {
	taken := make([]int, len(rows))
	for i := range rows {
		if quantity == 0 {
			break
		}
		take := rows[i].Available()
		if take > quantity {
			take = quantity
		}
		if take <= 0 {
			continue
		}
		rows[i].ConsumedQuantity += take
		taken[i] = take
		quantity -= take
	}
	return taken
}

// spreadHold raises HeldQuantity FIFO across rows.
func spreadHold(rows []domain.Entitlement, quantity int) {
	for i := range rows {
		if quantity == 0 {
			return
		}
		take := rows[i].Available()
		if take > quantity {
			take = quantity
		}
		if take <= 0 {
			continue
		}
		rows[i].HeldQuantity += take
		quantity -= take
	}
}

// releaseHold lowers HeldQuantity FIFO across rows, mirroring spreadHold.
func releaseHold(rows []domain.Entitlement, quantity int) {
	for i := range rows {
		if quantity == 0 {
			return
		}
		cut := rows[i].HeldQuantity
		if cut > quantity {
			cut = quantity
		}
		if cut <= 0 {
			continue
		}
		rows[i].HeldQuantity -= cut
		quantity -= cut
	}
}

func snapshotRows(rows []domain.Entitlement) []domain.Entitlement {
	return append([]domain.Entitlement{}, rows...)
}

// flushChanged persists every row whose counters moved since the snapshot,
// validating the row invariant before each write.
func flushChanged(ctx context.Context, store EntitlementStore, rows, before []domain.Entitlement, now time.Time) error {
	for i := range rows {
		if rows[i].TotalQuantity == before[i].TotalQuantity &&
			rows[i].ConsumedQuantity == before[i].ConsumedQuantity &&
			rows[i].HeldQuantity == before[i].HeldQuantity {
			continue
		}
		if err := rows[i].Validate(); err != nil {
			return err
		}
		rows[i].UpdatedAt = now
		if err := store.UpdateQuantities(ctx, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// lowerTotal shrinks TotalQuantity FIFO against per-row available capacity
// (negative adjustments).
func lowerTotal(rows []domain.Entitlement, quantity int) {
	for i := range rows {
		if quantity == 0 {
			return
		}
		cut := rows[i].Available()
		if cut > quantity {
			cut = quantity
		}
		if cut <= 0 {
			continue
		}
		rows[i].TotalQuantity -= cut
		quantity -= cut
	}
}
