package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/classpoint/entitlement/internal/clock"
	"github.com/classpoint/entitlement/internal/domain"
)

// archiveWindow bounds archive queries; wider ranges are rejected and
// half-open ranges are completed to this width.
const archiveWindow = 365 * 24 * time.Hour

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// LedgerService is the entitlement balance authority: it owns consumption,
// adjustment and refund writes plus balance and history reads. Every mutation
// runs inside one transaction that locks all entitlement rows for the
// (student, service type) key before reading balances.
type LedgerService struct {
	tx           TxRunner
	entitlements EntitlementStore
	ledger       LedgerStore
	holds        HoldStore
	clock        clock.Clock
}

func NewLedgerService(tx TxRunner, entitlements EntitlementStore, ledger LedgerStore, holds HoldStore, clk clock.Clock) *LedgerService {
	return &LedgerService{
		tx:           tx,
		entitlements: entitlements,
		ledger:       ledger,
		holds:        holds,
		clock:        clk,
	}
}

// GetBalance aggregates entitlement rows per service type. With an empty
// serviceType it returns one balance per type the student owns.
func (s *LedgerService) GetBalance(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Balance, error) {
	if serviceType != "" {
		rows, err := s.entitlements.ListByKey(ctx, studentID, serviceType)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, domain.ErrEntitlementNotFound
		}
		return []domain.Balance{domain.SumBalance(studentID, serviceType, rows)}, nil
	}

	rows, err := s.entitlements.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrEntitlementNotFound
	}

	byType := make(map[domain.ServiceType][]domain.Entitlement)
	for _, row := range rows {
		byType[row.ServiceType] = append(byType[row.ServiceType], row)
	}
	types := make([]domain.ServiceType, 0, len(byType))
	for st := range byType {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	balances := make([]domain.Balance, 0, len(types))
	for _, st := range types {
		balances = append(balances, domain.SumBalance(studentID, st, byType[st]))
	}
	return balances, nil
}

type ConsumeInput struct {
	StudentID        string
	ServiceType      domain.ServiceType
	Quantity         int
	RelatedBookingID string
	BookingSource    string
	RelatedHoldID    string
	CreatedBy        string
}

// RecordConsumption deducts quantity across the student's entitlement rows in
// lock order, writing one ledger entry per row touched. When RelatedHoldID is
// set, the hold is released (reason "completed") in the same transaction,
// returning its units to the available pool before the balance check.
func (s *LedgerService) RecordConsumption(ctx context.Context, in ConsumeInput) ([]domain.LedgerEntry, error) {
	if in.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if in.RelatedBookingID != "" && in.BookingSource == "" {
		return nil, domain.ErrBookingSourceRequired
	}

	now := s.clock.Now()
	var entries []domain.LedgerEntry

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.entitlements.ListForUpdate(txCtx, in.StudentID, in.ServiceType)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrEntitlementNotFound
		}
		before := snapshotRows(rows)

		if in.RelatedHoldID != "" {
			hold, err := s.holds.GetForUpdate(txCtx, in.RelatedHoldID)
			if err != nil {
				return err
			}
			if hold.StudentID != in.StudentID || hold.ServiceType != in.ServiceType {
				return domain.ErrHoldNotFound
			}
			if hold.Status != domain.HoldStatusActive {
				return domain.ErrHoldNotActive
			}
			if err := s.holds.MarkTerminal(txCtx, hold.ID, domain.HoldStatusReleased, now, "completed"); err != nil {
				return err
			}
			releaseHold(rows, hold.Quantity)
		}

		running := sumAvailable(rows)
		if running < in.Quantity {
			return domain.ErrInsufficientBalance
		}

		taken := spreadConsumption(rows, in.Quantity)
		if err := flushChanged(txCtx, s.entitlements, rows, before, now); err != nil {
			return err
		}

		for _, take := range taken {
			if take == 0 {
				continue
			}
			running -= take
			entry := domain.LedgerEntry{
				ID:               newID(),
				StudentID:        in.StudentID,
				ServiceType:      in.ServiceType,
				Quantity:         -take,
				Type:             domain.LedgerEntryConsumption,
				Source:           domain.SourceBookingCompleted,
				BalanceAfter:     running,
				RelatedBookingID: in.RelatedBookingID,
				RelatedHoldID:    in.RelatedHoldID,
				Metadata:         bookingMetadata(in.BookingSource),
				CreatedBy:        in.CreatedBy,
				CreatedAt:        now,
			}
			if err := s.ledger.Insert(txCtx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type AdjustInput struct {
	StudentID   string
	ServiceType domain.ServiceType
	Quantity    int // signed; may not drive the balance below zero
	Reason      string
	CreatedBy   string
}

// RecordAdjustment applies a manual correction to the granted total. It never
// touches ConsumedQuantity, so reconciliation against consumption history
// stays valid across adjustments.
func (s *LedgerService) RecordAdjustment(ctx context.Context, in AdjustInput) (domain.LedgerEntry, error) {
	if in.Quantity == 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domain.LedgerEntry{}, domain.ErrReasonRequired
	}

	now := s.clock.Now()
	var entry domain.LedgerEntry

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.entitlements.ListForUpdate(txCtx, in.StudentID, in.ServiceType)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrEntitlementNotFound
		}
		before := snapshotRows(rows)

		after := sumAvailable(rows) + in.Quantity
		if after < 0 {
			return domain.ErrInsufficientBalance
		}

		if in.Quantity > 0 {
			rows[len(rows)-1].TotalQuantity += in.Quantity
		} else {
			lowerTotal(rows, -in.Quantity)
		}
		if err := flushChanged(txCtx, s.entitlements, rows, before, now); err != nil {
			return err
		}

		entry = domain.LedgerEntry{
			ID:           newID(),
			StudentID:    in.StudentID,
			ServiceType:  in.ServiceType,
			Quantity:     in.Quantity,
			Type:         domain.LedgerEntryAdjustment,
			Source:       domain.SourceManualAdjustment,
			BalanceAfter: after,
			Reason:       in.Reason,
			CreatedBy:    in.CreatedBy,
			CreatedAt:    now,
		}
		return s.ledger.Insert(txCtx, entry)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

type RefundInput struct {
	StudentID        string
	ServiceType      domain.ServiceType
	Quantity         int
	RelatedBookingID string
	BookingSource    string
	CreatedBy        string
}

// RecordRefund returns previously consumed units. The cap is net consumption
// computed from the ledger itself (|consumption| minus prior refunds,
// adjustments excluded); the grant-back raises TotalQuantity so the
// consumption history stays reconcilable.
func (s *LedgerService) RecordRefund(ctx context.Context, in RefundInput) (domain.LedgerEntry, error) {
	if in.Quantity <= 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidQuantity
	}
	if in.RelatedBookingID != "" && in.BookingSource == "" {
		return domain.LedgerEntry{}, domain.ErrBookingSourceRequired
	}

	now := s.clock.Now()
	var entry domain.LedgerEntry

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		rows, err := s.entitlements.ListForUpdate(txCtx, in.StudentID, in.ServiceType)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrEntitlementNotFound
		}
		before := snapshotRows(rows)

		consumed, refunded, err := s.ledger.ConsumptionTotals(txCtx, in.StudentID, in.ServiceType)
		if err != nil {
			return err
		}
		if in.Quantity > consumed-refunded {
			return domain.ErrExceedsConsumed
		}

		after := sumAvailable(rows) + in.Quantity
		rows[len(rows)-1].TotalQuantity += in.Quantity
		if err := flushChanged(txCtx, s.entitlements, rows, before, now); err != nil {
			return err
		}

		entry = domain.LedgerEntry{
			ID:               newID(),
			StudentID:        in.StudentID,
			ServiceType:      in.ServiceType,
			Quantity:         in.Quantity,
			Type:             domain.LedgerEntryRefund,
			Source:           domain.SourceBookingCancelled,
			BalanceAfter:     after,
			RelatedBookingID: in.RelatedBookingID,
			Metadata:         bookingMetadata(in.BookingSource),
			CreatedBy:        in.CreatedBy,
			CreatedAt:        now,
		}
		return s.ledger.Insert(txCtx, entry)
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return entry, nil
}

// QueryLedger reads history, newest first. Archive queries require a date
// range of at most one year; a half-open range is completed to a one-year
// window. Live and archived entries are merged by created_at before paging.
func (s *LedgerService) QueryLedger(ctx context.Context, filter domain.LedgerFilter, page domain.LedgerPage) ([]domain.LedgerEntry, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	if !page.IncludeArchive {
		return s.ledger.Query(ctx, filter, limit, offset)
	}

	bounded, err := boundArchiveRange(filter)
	if err != nil {
		return nil, err
	}

	// Over-fetch both partitions so the merged page is complete, then cut.
	fetch := limit + offset
	live, err := s.ledger.Query(ctx, bounded, fetch, 0)
	if err != nil {
		return nil, err
	}
	archived, err := s.ledger.QueryArchive(ctx, bounded, fetch, 0)
	if err != nil {
		return nil, err
	}

	merged := mergeByCreatedAtDesc(live, archived)
	if offset >= len(merged) {
		return nil, nil
	}
	merged = merged[offset:]
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func boundArchiveRange(filter domain.LedgerFilter) (domain.LedgerFilter, error) {
	switch {
	case filter.From == nil && filter.To == nil:
		return domain.LedgerFilter{}, domain.ErrArchiveRangeRequired
	case filter.From == nil:
		from := filter.To.Add(-archiveWindow)
		filter.From = &from
	case filter.To == nil:
		to := filter.From.Add(archiveWindow)
		filter.To = &to
	}
	if filter.To.Sub(*filter.From) > archiveWindow {
		return domain.LedgerFilter{}, domain.ErrArchiveRangeTooWide
	}
	return filter, nil
}

func mergeByCreatedAtDesc(a, b []domain.LedgerEntry) []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].CreatedAt.After(b[j].CreatedAt) || a[i].CreatedAt.Equal(b[j].CreatedAt) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func bookingMetadata(source string) map[string]string {
	if source == "" {
		return nil
	}
	return map[string]string{domain.MetadataBookingSource: source}
}
