package app

import (
	"context"
	"time"

	"github.com/classpoint/entitlement/internal/domain"
)

// TxRunner executes fn inside a single database transaction. Repository calls
// made with the context passed to fn join that transaction; the whole unit
// commits or rolls back together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EntitlementStore reads and mutates entitlement rows. ListForUpdate must lock
// the rows it returns in a stable (service_type, id) order.
type EntitlementStore interface {
	ListForUpdate(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error)
	ListByKey(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Entitlement, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Entitlement, error)
	Insert(ctx context.Context, e domain.Entitlement) error
	UpdateQuantities(ctx context.Context, e domain.Entitlement) error
}

// LedgerStore appends and reads immutable service-ledger entries.
type LedgerStore interface {
	Insert(ctx context.Context, entry domain.LedgerEntry) error
	ConsumptionTotals(ctx context.Context, studentID string, serviceType domain.ServiceType) (consumed, refunded int, err error)
	Query(ctx context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error)
	QueryArchive(ctx context.Context, filter domain.LedgerFilter, limit, offset int) ([]domain.LedgerEntry, error)
}

// HoldStore persists reservation holds.
type HoldStore interface {
	Insert(ctx context.Context, hold domain.Hold) error
	Get(ctx context.Context, holdID string) (domain.Hold, error)
	GetForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	MarkTerminal(ctx context.Context, holdID string, status domain.HoldStatus, releasedAt time.Time, reason string) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
}

// ContractStore persists contracts and their append-only status history.
type ContractStore interface {
	Insert(ctx context.Context, c domain.Contract) error
	Get(ctx context.Context, contractID string) (domain.Contract, error)
	GetForUpdate(ctx context.Context, contractID string) (domain.Contract, error)
	Update(ctx context.Context, c domain.Contract) error
	AppendStatusChange(ctx context.Context, change domain.StatusChange) error
	ListStatusHistory(ctx context.Context, contractID string) ([]domain.StatusChange, error)
}

// AmendmentStore persists the out-of-band grant audit trail.
type AmendmentStore interface {
	Insert(ctx context.Context, a domain.Amendment) error
	ListByStudent(ctx context.Context, studentID string) ([]domain.Amendment, error)
}

// ProductCatalog is the external product directory; contracts snapshot its
// items at creation time and never read it again.
type ProductCatalog interface {
	ListProductItems(ctx context.Context, productID string) ([]domain.ProductItem, error)
}
