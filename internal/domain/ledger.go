package domain

import "time"

type LedgerEntryType string

const (
	LedgerEntryConsumption LedgerEntryType = "consumption"
	LedgerEntryAdjustment  LedgerEntryType = "adjustment"
	LedgerEntryRefund      LedgerEntryType = "refund"
)

type LedgerSource string

const (
	SourceBookingCompleted LedgerSource = "booking_completed"
	SourceManualAdjustment LedgerSource = "manual_adjustment"
	SourceBookingCancelled LedgerSource = "booking_cancelled"
)

// MetadataBookingSource is the metadata key carrying the originating booking system.
const MetadataBookingSource = "bookingSource"

// LedgerEntry is an immutable record of one balance-affecting event. Quantity is
// signed: negative for consumption, positive for grants back (refund) and positive
// adjustments. BalanceAfter snapshots the aggregate available quantity for the
// (student, service type) key immediately after the entry was applied.
type LedgerEntry struct {
	ID               string
	StudentID        string
	ServiceType      ServiceType
	Quantity         int
	Type             LedgerEntryType
	Source           LedgerSource
	BalanceAfter     int
	RelatedBookingID string
	RelatedHoldID    string
	Metadata         map[string]string
	Reason           string
	CreatedBy        string
	CreatedAt        time.Time
}

// LedgerFilter narrows ledger queries. Zero-valued fields are ignored.
type LedgerFilter struct {
	StudentID   string
	ServiceType ServiceType
	From        *time.Time
	To          *time.Time
}

// LedgerPage controls pagination and archive routing for ledger queries.
type LedgerPage struct {
	IncludeArchive bool
	Limit          int
	Offset         int
}
