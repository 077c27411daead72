package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"
	ContractStatusSigned     ContractStatus = "signed"
	ContractStatusActive     ContractStatus = "active"
	ContractStatusSuspended  ContractStatus = "suspended"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusTerminated ContractStatus = "terminated"
)

// contractTransitions is the closed transition table. Any (from, to) pair not
// listed here is rejected with ErrInvalidStatusTransition.
var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusDraft:     {ContractStatusSigned},
	ContractStatusSigned:    {ContractStatusDraft, ContractStatusActive},
	ContractStatusActive:    {ContractStatusSuspended, ContractStatusCompleted, ContractStatusTerminated},
	ContractStatusSuspended: {ContractStatusActive, ContractStatusTerminated},
}

// CanTransitionTo checks the transition table. An active→active attempt gets the
// more specific ErrContractAlreadyActive so callers can report it distinctly.
func (s ContractStatus) CanTransitionTo(target ContractStatus) error {
	if s == ContractStatusActive && target == ContractStatusActive {
		return ErrContractAlreadyActive
	}
	for _, allowed := range contractTransitions[s] {
		if allowed == target {
			return nil
		}
	}
	return ErrInvalidStatusTransition
}

// RequiresReason reports whether the transition carries a mandatory reason.
func (s ContractStatus) RequiresReason(target ContractStatus) bool {
	switch target {
	case ContractStatusSuspended, ContractStatusTerminated:
		return true
	}
	return false
}

// ProductItem is one line of the immutable product snapshot taken when the
// contract is created.
type ProductItem struct {
	ServiceType ServiceType `json:"serviceType"`
	Quantity    int         `json:"quantity"`
}

// Contract grants a student entitlements once activated. Pricing and validity
// fields freeze as soon as the status leaves draft.
type Contract struct {
	ID              string
	StudentID       string
	ProductID       string
	Status          ContractStatus
	Title           string
	TotalAmount     decimal.Decimal
	Currency        string
	ProductSnapshot []ProductItem
	SignedAt        *time.Time
	ExpiresAt       *time.Time // nil = permanent
	ValidityDays    int
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusChange is one append-only row of a contract's status history.
type StatusChange struct {
	ID         string
	ContractID string
	FromStatus *ContractStatus // nil on creation
	ToStatus   ContractStatus
	ChangedAt  time.Time
	ChangedBy  string
	Reason     string
	Metadata   map[string]string
}
