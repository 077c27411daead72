package app

import (
	"context"

	"github.com/classpoint/entitlement/internal/domain"
)

// ReconcileReport compares the consumption recorded in the ledger with the
// aggregate consumed counter. Any drift is an accounting bug to investigate by
// hand; reconciliation never repairs balances.
type ReconcileReport struct {
	StudentID      string
	ServiceType    domain.ServiceType
	ConsumedTotal  int // sum of ConsumedQuantity across entitlement rows
	LedgerConsumed int // |sum of consumption ledger entries|, live + archive
	Balanced       bool
}

// ReconcileService verifies ledger history sums against the balance store.
// Reads are advisory and unlocked. Adjustment and refund entries are excluded:
// both mutate granted totals, never ConsumedQuantity, so consumption history
// is the only thing the consumed counter must match.
type ReconcileService struct {
	entitlements EntitlementStore
	ledger       LedgerStore
}

func NewReconcileService(entitlements EntitlementStore, ledger LedgerStore) *ReconcileService {
	return &ReconcileService{entitlements: entitlements, ledger: ledger}
}

func (s *ReconcileService) ReconcileBalance(ctx context.Context, studentID string, serviceType domain.ServiceType) (ReconcileReport, error) {
	rows, err := s.entitlements.ListByKey(ctx, studentID, serviceType)
	if err != nil {
		return ReconcileReport{}, err
	}
	if len(rows) == 0 {
		return ReconcileReport{}, domain.ErrEntitlementNotFound
	}

	consumed, _, err := s.ledger.ConsumptionTotals(ctx, studentID, serviceType)
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{
		StudentID:      studentID,
		ServiceType:    serviceType,
		LedgerConsumed: consumed,
	}
	for _, row := range rows {
		report.ConsumedTotal += row.ConsumedQuantity
	}
	report.Balanced = report.ConsumedTotal == report.LedgerConsumed
	return report, nil
}
