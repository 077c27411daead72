package domain

import "time"

// ServiceType identifies a purchasable unit of service (e.g. "mentoring_session").
type ServiceType string

// Entitlement is one grant of service units to a student. A student accumulates
// several rows per service type across contracts and amendments; balances are
// always the aggregate over every row for the (student, service type) key.
type Entitlement struct {
	ID               string
	StudentID        string
	ServiceType      ServiceType
	ContractID       string // empty for amendment grants without a contract binding
	TotalQuantity    int
	ConsumedQuantity int
	HeldQuantity     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available is the portion of this row that can still be consumed or held.
func (e Entitlement) Available() int {
	return e.TotalQuantity - e.ConsumedQuantity - e.HeldQuantity
}

// Validate checks the row invariant: consumed + held never exceed total and
// no counter is negative.
func (e Entitlement) Validate() error {
	if e.TotalQuantity < 0 || e.ConsumedQuantity < 0 || e.HeldQuantity < 0 {
		return ErrInvalidQuantity
	}
	if e.ConsumedQuantity+e.HeldQuantity > e.TotalQuantity {
		return ErrInsufficientBalance
	}
	return nil
}

// Balance is the aggregated entitlement state for one (student, service type) key.
type Balance struct {
	StudentID   string
	ServiceType ServiceType
	Total       int
	Consumed    int
	Held        int
	Available   int
}

// SumBalance folds entitlement rows into their aggregate balance.
func SumBalance(studentID string, serviceType ServiceType, rows []Entitlement) Balance {
	b := Balance{StudentID: studentID, ServiceType: serviceType}
	for _, row := range rows {
		b.Total += row.TotalQuantity
		b.Consumed += row.ConsumedQuantity
		b.Held += row.HeldQuantity
	}
	b.Available = b.Total - b.Consumed - b.Held
	return b
}
