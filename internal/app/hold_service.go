package app

import (
	"context"
	"errors"
	"time"

	"github.com/classpoint/entitlement/internal/clock"
	"github.com/classpoint/entitlement/internal/domain"
)

const (
	// ReleaseReasonExpired is stamped on holds expired by the sweeper or an
	// explicit expire call.
	ReleaseReasonExpired = "expired"

	defaultSweepBatch = 100
)

// HoldService manages reservation holds: creation reserves units against the
// student's available balance, terminal transitions return them. A hold is a
// leased reservation; no lock is held across the external booking round-trip.
type HoldService struct {
	tx           TxRunner
	entitlements EntitlementStore
	holds        HoldStore
	contracts    ContractStore
	clock        clock.Clock
}

func NewHoldService(tx TxRunner, entitlements EntitlementStore, holds HoldStore, contracts ContractStore, clk clock.Clock) *HoldService {
	return &HoldService{
		tx:           tx,
		entitlements: entitlements,
		holds:        holds,
		contracts:    contracts,
		clock:        clk,
	}
}

type CreateHoldInput struct {
	ContractID       string
	StudentID        string
	ServiceType      domain.ServiceType
	Quantity         int
	RelatedBookingID string
	ExpiresAt        *time.Time
	CreatedBy        string
}

func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Hold, error) {
	if in.Quantity <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	var result domain.Hold

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.Get(txCtx, in.ContractID)
		if err != nil {
			return err
		}
		if contract.Status != domain.ContractStatusActive {
			return domain.ErrContractNotActive
		}

		rows, err := s.entitlements.ListForUpdate(txCtx, in.StudentID, in.ServiceType)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrEntitlementNotFound
		}
		before := snapshotRows(rows)

		if sumAvailable(rows) < in.Quantity {
			return domain.ErrInsufficientBalance
		}
		spreadHold(rows, in.Quantity)
		if err := flushChanged(txCtx, s.entitlements, rows, before, now); err != nil {
			return err
		}

		hold := domain.Hold{
			ID:               newID(),
			ContractID:       in.ContractID,
			StudentID:        in.StudentID,
			ServiceType:      in.ServiceType,
			Quantity:         in.Quantity,
			Status:           domain.HoldStatusActive,
			RelatedBookingID: in.RelatedBookingID,
			ExpiresAt:        in.ExpiresAt,
			CreatedBy:        in.CreatedBy,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.holds.Insert(txCtx, hold); err != nil {
			return err
		}
		result = hold
		return nil
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return result, nil
}

// ReleaseHold completes a hold (the reserved units were consumed or the
// booking was confirmed elsewhere) and returns its units to the pool.
func (s *HoldService) ReleaseHold(ctx context.Context, holdID, reason, releasedBy string) (domain.Hold, error) {
	return s.transition(ctx, holdID, domain.HoldStatusReleased, reason, false)
}

// CancelHold aborts a hold before the booking confirmed.
func (s *HoldService) CancelHold(ctx context.Context, holdID, reason, cancelledBy string) (domain.Hold, error) {
	return s.transition(ctx, holdID, domain.HoldStatusCancelled, reason, false)
}

// ExpireHold moves an overdue hold to expired. It fails ErrHoldCannotExpire
// when the hold has no expiry or the expiry lies in the future, and
// ErrHoldNotActive when the hold already reached a terminal state.
func (s *HoldService) ExpireHold(ctx context.Context, holdID string) (domain.Hold, error) {
	return s.transition(ctx, holdID, domain.HoldStatusExpired, ReleaseReasonExpired, true)
}

func (s *HoldService) transition(ctx context.Context, holdID string, target domain.HoldStatus, reason string, checkExpiry bool) (domain.Hold, error) {
	now := s.clock.Now()
	var result domain.Hold

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.holds.GetForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if checkExpiry {
			if err := hold.CanExpire(now); err != nil {
				return err
			}
		} else if hold.Status != domain.HoldStatusActive {
			return domain.ErrHoldNotActive
		}

		rows, err := s.entitlements.ListForUpdate(txCtx, hold.StudentID, hold.ServiceType)
		if err != nil {
			return err
		}
		before := snapshotRows(rows)
		releaseHold(rows, hold.Quantity)
		if err := flushChanged(txCtx, s.entitlements, rows, before, now); err != nil {
			return err
		}

		if err := s.holds.MarkTerminal(txCtx, hold.ID, target, now, reason); err != nil {
			return err
		}

		hold.Status = target
		hold.ReleasedAt = &now
		hold.ReleaseReason = reason
		hold.UpdatedAt = now
		result = hold
		return nil
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return result, nil
}

// ExpireDueHolds sweeps active holds whose expiry has passed, each in its own
// transaction, and returns how many were expired. A hold that turns terminal
// between the scan and its transition is skipped, not an error.
func (s *HoldService) ExpireDueHolds(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepBatch
	}
	due, err := s.holds.ListDue(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, hold := range due {
		if _, err := s.ExpireHold(ctx, hold.ID); err != nil {
			if errors.Is(err, domain.ErrHoldNotActive) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}
