package domain

import "time"

type AmendmentKind string

const (
	AmendmentAddon        AmendmentKind = "addon"
	AmendmentPromotion    AmendmentKind = "promotion"
	AmendmentCompensation AmendmentKind = "compensation"
)

// ValidAmendmentKind reports whether k is one of the known kinds.
func ValidAmendmentKind(k AmendmentKind) bool {
	switch k {
	case AmendmentAddon, AmendmentPromotion, AmendmentCompensation:
		return true
	}
	return false
}

// Amendment records an out-of-band entitlement grant (addon, promotion,
// compensation). It lives in its own append-only ledger, distinct from the
// service ledger, and keeps a snapshot of the referenced contract at grant time.
type Amendment struct {
	ID              string
	StudentID       string
	ContractID      string
	ServiceType     ServiceType
	Kind            AmendmentKind
	QuantityChanged int
	Reason          string
	Description     string
	Attachments     []string
	Snapshot        map[string]string
	CreatedBy       string
	CreatedAt       time.Time
}
