package app

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classpoint/entitlement/internal/clock"
	"github.com/classpoint/entitlement/internal/domain"
)

// ContractService owns the contract lifecycle. Status moves only through the
// closed transition table; the first activation grants entitlements from the
// product snapshot taken at creation time.
type ContractService struct {
	tx           TxRunner
	contracts    ContractStore
	entitlements EntitlementStore
	catalog      ProductCatalog
	clock        clock.Clock
}

func NewContractService(tx TxRunner, contracts ContractStore, entitlements EntitlementStore, catalog ProductCatalog, clk clock.Clock) *ContractService {
	return &ContractService{
		tx:           tx,
		contracts:    contracts,
		entitlements: entitlements,
		catalog:      catalog,
		clock:        clk,
	}
}

type CreateContractInput struct {
	StudentID    string
	ProductID    string
	Title        string
	TotalAmount  decimal.Decimal
	Currency     string
	ValidityDays int
	CreatedBy    string
}

// CreateContract builds a draft contract with an immutable snapshot of the
// purchased product items.
func (s *ContractService) CreateContract(ctx context.Context, in CreateContractInput) (domain.Contract, error) {
	items, err := s.catalog.ListProductItems(ctx, in.ProductID)
	if err != nil {
		return domain.Contract{}, err
	}
	if len(items) == 0 {
		return domain.Contract{}, domain.ErrEmptySnapshot
	}

	now := s.clock.Now()
	contract := domain.Contract{
		ID:              newID(),
		StudentID:       in.StudentID,
		ProductID:       in.ProductID,
		Status:          domain.ContractStatusDraft,
		Title:           in.Title,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		ProductSnapshot: items,
		ValidityDays:    in.ValidityDays,
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.contracts.Insert(txCtx, contract); err != nil {
			return err
		}
		return s.contracts.AppendStatusChange(txCtx, domain.StatusChange{
			ID:         newID(),
			ContractID: contract.ID,
			FromStatus: nil,
			ToStatus:   domain.ContractStatusDraft,
			ChangedAt:  now,
			ChangedBy:  in.CreatedBy,
		})
	})
	if err != nil {
		return domain.Contract{}, err
	}
	return contract, nil
}

type UpdateDraftInput struct {
	ContractID   string
	Title        *string
	TotalAmount  *decimal.Decimal
	Currency     *string
	ValidityDays *int
}

// UpdateDraft edits core pricing/validity fields. Allowed only while the
// contract is still a draft; afterwards those fields are frozen.
func (s *ContractService) UpdateDraft(ctx context.Context, in UpdateDraftInput) (domain.Contract, error) {
	now := s.clock.Now()
	var result domain.Contract

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.GetForUpdate(txCtx, in.ContractID)
		if err != nil {
			return err
		}
		if contract.Status != domain.ContractStatusDraft {
			return domain.ErrContractNotDraft
		}

		if in.Title != nil {
			contract.Title = *in.Title
		}
		if in.TotalAmount != nil {
			contract.TotalAmount = *in.TotalAmount
		}
		if in.Currency != nil {
			contract.Currency = *in.Currency
		}
		if in.ValidityDays != nil {
			contract.ValidityDays = *in.ValidityDays
		}
		contract.UpdatedAt = now

		if err := s.contracts.Update(txCtx, contract); err != nil {
			return err
		}
		result = contract
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}
	return result, nil
}

type TransitionInput struct {
	ContractID string
	Target     domain.ContractStatus
	Reason     string
	ActorID    string
}

// TransitionStatus moves the contract through the state machine and appends
// the status history row in the same transaction. Activating from signed
// stamps SignedAt/ExpiresAt and creates one entitlement row per snapshot item;
// resuming from suspended grants nothing.
func (s *ContractService) TransitionStatus(ctx context.Context, in TransitionInput) (domain.Contract, error) {
	now := s.clock.Now()
	var result domain.Contract

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.GetForUpdate(txCtx, in.ContractID)
		if err != nil {
			return err
		}
		from := contract.Status

		if err := from.CanTransitionTo(in.Target); err != nil {
			return err
		}
		if from.RequiresReason(in.Target) && strings.TrimSpace(in.Reason) == "" {
			return domain.ErrReasonRequired
		}

		contract.Status = in.Target
		contract.UpdatedAt = now

		if from == domain.ContractStatusSigned && in.Target == domain.ContractStatusActive {
			contract.SignedAt = &now
			if contract.ValidityDays > 0 {
				expires := now.AddDate(0, 0, contract.ValidityDays)
				contract.ExpiresAt = &expires
			}
			if err := s.grantEntitlements(txCtx, contract, now); err != nil {
				return err
			}
		}

		if err := s.contracts.Update(txCtx, contract); err != nil {
			return err
		}
		if err := s.contracts.AppendStatusChange(txCtx, domain.StatusChange{
			ID:         newID(),
			ContractID: contract.ID,
			FromStatus: &from,
			ToStatus:   in.Target,
			ChangedAt:  now,
			ChangedBy:  in.ActorID,
			Reason:     in.Reason,
		}); err != nil {
			return err
		}
		result = contract
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}
	return result, nil
}

func (s *ContractService) grantEntitlements(ctx context.Context, contract domain.Contract, now time.Time) error {
	for _, item := range contract.ProductSnapshot {
		if item.Quantity <= 0 {
			continue
		}
		row := domain.Entitlement{
			ID:            newID(),
			StudentID:     contract.StudentID,
			ServiceType:   item.ServiceType,
			ContractID:    contract.ID,
			TotalQuantity: item.Quantity,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.entitlements.Insert(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ContractService) GetContract(ctx context.Context, contractID string) (domain.Contract, error) {
	return s.contracts.Get(ctx, contractID)
}

func (s *ContractService) ListStatusHistory(ctx context.Context, contractID string) ([]domain.StatusChange, error) {
	return s.contracts.ListStatusHistory(ctx, contractID)
}
