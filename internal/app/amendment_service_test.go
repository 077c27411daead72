package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/classpoint/entitlement/internal/clock"
	"github.com/classpoint/entitlement/internal/domain"
)

func TestAmendmentService_RecordAmendment(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	makeSvc := func() (*AmendmentService, *fakeStore, *fakeAmendments, *fakeContracts) {
		store := newFakeStore()
		amendments := &fakeAmendments{}
		contracts := newFakeContracts()
		contracts.contracts["c1"] = domain.Contract{ID: "c1", StudentID: "s1", ProductID: "p1", Status: domain.ContractStatusActive}
		svc := NewAmendmentService(store, amendments, store, contracts, clock.NewFixed(now))
		return svc, store, amendments, contracts
	}

	t.Run("records the grant and creates an entitlement row", func(t *testing.T) {
		svc, store, amendments, _ := makeSvc()

		amendment, err := svc.RecordAmendment(context.Background(), RecordAmendmentInput{
			StudentID:   "s1",
			ContractID:  "c1",
			ServiceType: "mentoring",
			Kind:        domain.AmendmentCompensation,
			Quantity:    2,
			Reason:      "session cancelled by mentor",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if amendment.QuantityChanged != 2 || amendment.Kind != domain.AmendmentCompensation {
			t.Fatalf("unexpected amendment: %+v", amendment)
		}
		if amendment.Snapshot["productId"] != "p1" || amendment.Snapshot["status"] != "active" {
			t.Fatalf("expected contract snapshot, got %+v", amendment.Snapshot)
		}
		if len(amendments.amendments) != 1 {
			t.Fatalf("expected 1 stored amendment, got %d", len(amendments.amendments))
		}
		if len(store.entitlements) != 1 || store.entitlements[0].TotalQuantity != 2 {
			t.Fatalf("expected a 2-unit grant row, got %+v", store.entitlements)
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		_, err := svc.RecordAmendment(context.Background(), RecordAmendmentInput{
			StudentID: "s1", ContractID: "c1", ServiceType: "mentoring", Kind: "bonus", Quantity: 1, Reason: "r",
		})
		if !errors.Is(err, domain.ErrInvalidAmendmentKind) {
			t.Fatalf("expected ErrInvalidAmendmentKind, got %v", err)
		}
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		_, err := svc.RecordAmendment(context.Background(), RecordAmendmentInput{
			StudentID: "s1", ContractID: "c1", ServiceType: "mentoring", Kind: domain.AmendmentAddon, Quantity: 0, Reason: "r",
		})
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity, got %v", err)
		}
	})

	t.Run("blank reason rejected", func(t *testing.T) {
		svc, _, _, _ := makeSvc()

		_, err := svc.RecordAmendment(context.Background(), RecordAmendmentInput{
			StudentID: "s1", ContractID: "c1", ServiceType: "mentoring", Kind: domain.AmendmentAddon, Quantity: 1, Reason: " ",
		})
		if !errors.Is(err, domain.ErrReasonRequired) {
			t.Fatalf("expected ErrReasonRequired, got %v", err)
		}
	})

	t.Run("unknown contract rejected", func(t *testing.T) {
		svc, store, _, _ := makeSvc()

		_, err := svc.RecordAmendment(context.Background(), RecordAmendmentInput{
			StudentID: "s1", ContractID: "missing", ServiceType: "mentoring", Kind: domain.AmendmentAddon, Quantity: 1, Reason: "r",
		})
		if !errors.Is(err, domain.ErrContractNotFound) {
			t.Fatalf("expected ErrContractNotFound, got %v", err)
		}
		if len(store.entitlements) != 0 {
			t.Fatalf("failed amendment must not grant, got %+v", store.entitlements)
		}
	})
}

func TestAmendmentService_ListAmendments(t *testing.T) {
	t.Parallel()

	amendments := &fakeAmendments{amendments: []domain.Amendment{
		{ID: "a1", StudentID: "s1"},
		{ID: "a2", StudentID: "other"},
	}}
	store := newFakeStore()
	svc := NewAmendmentService(store, amendments, store, newFakeContracts(), clock.NewFixed(time.Now()))

	out, err := svc.ListAmendments(context.Background(), "s1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 1 || out[0].ID != "a1" {
		t.Fatalf("expected only s1 amendments, got %+v", out)
	}
}
