package app

import (
	"context"
	"strings"

	"github.com/classpoint/entitlement/internal/clock"
	"github.com/classpoint/entitlement/internal/domain"
)

// AmendmentService records out-of-band entitlement grants (addon, promotion,
// compensation) in their own append-only ledger and creates the granted units
// in the same transaction.
type AmendmentService struct {
	tx           TxRunner
	amendments   AmendmentStore
	entitlements EntitlementStore
	contracts    ContractStore
	clock        clock.Clock
}

func NewAmendmentService(tx TxRunner, amendments AmendmentStore, entitlements EntitlementStore, contracts ContractStore, clk clock.Clock) *AmendmentService {
	return &AmendmentService{
		tx:           tx,
		amendments:   amendments,
		entitlements: entitlements,
		contracts:    contracts,
		clock:        clk,
	}
}

type RecordAmendmentInput struct {
	StudentID   string
	ContractID  string
	ServiceType domain.ServiceType
	Kind        domain.AmendmentKind
	Quantity    int
	Reason      string
	Description string
	Attachments []string
	CreatedBy   string
}

func (s *AmendmentService) RecordAmendment(ctx context.Context, in RecordAmendmentInput) (domain.Amendment, error) {
	if !domain.ValidAmendmentKind(in.Kind) {
		return domain.Amendment{}, domain.ErrInvalidAmendmentKind
	}
	if in.Quantity <= 0 {
		return domain.Amendment{}, domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(in.Reason) == "" {
		return domain.Amendment{}, domain.ErrReasonRequired
	}

	now := s.clock.Now()
	var result domain.Amendment

	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.contracts.Get(txCtx, in.ContractID)
		if err != nil {
			return err
		}

		amendment := domain.Amendment{
			ID:              newID(),
			StudentID:       in.StudentID,
			ContractID:      contract.ID,
			ServiceType:     in.ServiceType,
			Kind:            in.Kind,
			QuantityChanged: in.Quantity,
			Reason:          in.Reason,
			Description:     in.Description,
			Attachments:     in.Attachments,
			Snapshot: map[string]string{
				"contractId": contract.ID,
				"productId":  contract.ProductID,
				"status":     string(contract.Status),
			},
			CreatedBy: in.CreatedBy,
			CreatedAt: now,
		}
		if err := s.amendments.Insert(txCtx, amendment); err != nil {
			return err
		}

		// The grant is a fresh entitlement row; the contract is a reference,
		// not a funding source.
		row := domain.Entitlement{
			ID:            newID(),
			StudentID:     in.StudentID,
			ServiceType:   in.ServiceType,
			ContractID:    contract.ID,
			TotalQuantity: in.Quantity,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.entitlements.Insert(txCtx, row); err != nil {
			return err
		}

		result = amendment
		return nil
	})
	if err != nil {
		return domain.Amendment{}, err
	}
	return result, nil
}

func (s *AmendmentService) ListAmendments(ctx context.Context, studentID string) ([]domain.Amendment, error) {
	return s.amendments.ListByStudent(ctx, studentID)
}
