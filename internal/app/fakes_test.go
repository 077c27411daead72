package app

import (
	"context"
	"sort"
	"time"

	"github.com/classpoint/entitlement/internal/domain"
)

// fakeStore is an in-memory EntitlementStore. It also serves as the TxRunner
// for tests: its WithTx runs the callback directly.
type fakeStore struct {
	entitlements []domain.Entitlement
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) ListForUpdate(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error) {
	return f.ListByKey(ctx, studentID, serviceType)
}

func (f *fakeStore) ListByKey(_ context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error) {
	var out []domain.Entitlement
	for _, e := range f.entitlements {
		if e.StudentID == studentID && e.ServiceType == serviceType {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListByStudent(_ context.Context, studentID string) ([]domain.Entitlement, error) {
	var out []domain.Entitlement
	for _, e := range f.entitlements {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ServiceType != out[j].ServiceType {
			return out[i].ServiceType < out[j].ServiceType
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, e domain.Entitlement) error {
	f.entitlements = append(f.entitlements, e)
	return nil
}

func (f *fakeStore) UpdateQuantities(_ context.Context, e domain.Entitlement) error {
	for i := range f.entitlements {
		if f.entitlements[i].ID == e.ID {
			f.entitlements[i] = e
			return nil
		}
	}
	return domain.ErrEntitlementNotFound
}

type fakeLedger struct {
	entries []domain.LedgerEntry
	archive []domain.LedgerEntry
}

func (f *fakeLedger) Insert(_ context.Context, entry domain.LedgerEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) ConsumptionTotals(_ context.Context, studentID string, serviceType domain.ServiceType) (int, int, error) {
	consumed, refunded := 0, 0
	for _, entry := range append(append([]domain.LedgerEntry{}, f.entries...), f.archive...) {
		if entry.StudentID != studentID || entry.ServiceType != serviceType {
			continue
		}
		switch entry.Type {
		case domain.LedgerEntryConsumption:
			consumed += -entry.Quantity
		case domain.LedgerEntryRefund:
			refunded += entry.Quantity
		}
	}
	return consumed, refunded, nil
}

func (f *fakeLedger) Query(_ context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error) {
	return filterEntries(f.entries, filter, limit, offset), nil
}

func (f *fakeLedger) QueryArchive(_ context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error) {
	return filterEntries(f.archive, filter, limit, offset), nil
}

func filterEntries(entries []domain.LedgerEntry, filter domain.LedgerFilter, limit, offset int) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for _, entry := range entries {
		if filter.StudentID != "" && entry.StudentID != filter.StudentID {
			continue
		}
		if filter.ServiceType != "" && entry.ServiceType != filter.ServiceType {
			continue
		}
		if filter.From != nil && entry.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !entry.CreatedAt.Before(*filter.To) {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type fakeHolds struct {
	holds map[string]domain.Hold
}

func newFakeHolds() *fakeHolds {
	return &fakeHolds{holds: make(map[string]domain.Hold)}
}

func (f *fakeHolds) Insert(_ context.Context, hold domain.Hold) error {
	f.holds[hold.ID] = hold
	return nil
}

func (f *fakeHolds) Get(_ context.Context, holdID string) (domain.Hold, error) {
	hold, ok := f.holds[holdID]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return hold, nil
}

func (f *fakeHolds) GetForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	return f.Get(ctx, holdID)
}

func (f *fakeHolds) MarkTerminal(_ context.Context, holdID string, status domain.HoldStatus, releasedAt time.Time, reason string) error {
	hold, ok := f.holds[holdID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	if hold.Status != domain.HoldStatusActive {
		return domain.ErrHoldNotActive
	}
	hold.Status = status
	hold.ReleasedAt = &releasedAt
	hold.ReleaseReason = reason
	hold.UpdatedAt = releasedAt
	f.holds[holdID] = hold
	return nil
}

func (f *fakeHolds) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	var out []domain.Hold
	for _, hold := range f.holds {
		if hold.Status != domain.HoldStatusActive || hold.ExpiresAt == nil || hold.ExpiresAt.After(now) {
			continue
		}
		out = append(out, hold)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeContracts struct {
	contracts map[string]domain.Contract
	history   []domain.StatusChange
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{contracts: make(map[string]domain.Contract)}
}

func (f *fakeContracts) Insert(_ context.Context, c domain.Contract) error {
	f.contracts[c.ID] = c
	return nil
}

func (f *fakeContracts) Get(_ context.Context, contractID string) (domain.Contract, error) {
	c, ok := f.contracts[contractID]
	if !ok {
		return domain.Contract{}, domain.ErrContractNotFound
	}
	return c, nil
}

func (f *fakeContracts) GetForUpdate(ctx context.Context, contractID string) (domain.Contract, error) {
	return f.Get(ctx, contractID)
}

func (f *fakeContracts) Update(_ context.Context, c domain.Contract) error {
	if _, ok := f.contracts[c.ID]; !ok {
		return domain.ErrContractNotFound
	}
	f.contracts[c.ID] = c
	return nil
}

func (f *fakeContracts) AppendStatusChange(_ context.Context, change domain.StatusChange) error {
	f.history = append(f.history, change)
	return nil
}

func (f *fakeContracts) ListStatusHistory(_ context.Context, contractID string) ([]domain.StatusChange, error) {
	var out []domain.StatusChange
	for _, change := range f.history {
		if change.ContractID == contractID {
			out = append(out, change)
		}
	}
	return out, nil
}

type fakeAmendments struct {
	amendments []domain.Amendment
}

func (f *fakeAmendments) Insert(_ context.Context, a domain.Amendment) error {
	f.amendments = append(f.amendments, a)
	return nil
}

func (f *fakeAmendments) ListByStudent(_ context.Context, studentID string) ([]domain.Amendment, error) {
	var out []domain.Amendment
	for _, a := range f.amendments {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	products map[string][]domain.ProductItem
}

func (f *fakeCatalog) ListProductItems(_ context.Context, productID string) ([]domain.ProductItem, error) {
	return f.products[productID], nil
}
