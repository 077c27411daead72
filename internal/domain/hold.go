package domain

import "time"

type HoldStatus string

const (
	HoldStatusActive    HoldStatus = "active"
	HoldStatusReleased  HoldStatus = "released"
	HoldStatusCancelled HoldStatus = "cancelled"
	HoldStatusExpired   HoldStatus = "expired"
)

// Terminal reports whether the status is an end state. Terminal holds are kept
// for audit and never transition again.
func (s HoldStatus) Terminal() bool {
	switch s {
	case HoldStatusReleased, HoldStatusCancelled, HoldStatusExpired:
		return true
	}
	return false
}

// Hold reserves entitlement units while an external booking is pending. It is a
// leased reservation, not a lock: creation and every transition run in their own
// short transaction.
type Hold struct {
	ID               string
	ContractID       string
	StudentID        string
	ServiceType      ServiceType
	Quantity         int
	Status           HoldStatus
	RelatedBookingID string
	ExpiresAt        *time.Time
	ReleasedAt       *time.Time
	ReleaseReason    string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CanExpire reports whether the hold is eligible for the expired transition at
// the given instant. Holds without an expiry never expire.
func (h Hold) CanExpire(now time.Time) error {
	if h.Status != HoldStatusActive {
		return ErrHoldNotActive
	}
	if h.ExpiresAt == nil || h.ExpiresAt.After(now) {
		return ErrHoldCannotExpire
	}
	return nil
}
