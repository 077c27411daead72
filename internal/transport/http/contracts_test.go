package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

func TestHandleContracts_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	created := domain.Contract{
		ID:          "contract-1",
		StudentID:   "student-1",
		ProductID:   "product-1",
		Status:      domain.ContractStatusDraft,
		Title:       "Premium package",
		TotalAmount: decimal.RequireFromString("499.90"),
		Currency:    "EUR",
		ProductSnapshot: []domain.ProductItem{
			{ServiceType: "lesson", Quantity: 20},
		},
		ValidityDays: 180,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{
			name:           "success",
			body:           `{"student_id":"student-1","product_id":"product-1","title":"Premium package","total_amount":"499.90","currency":"EUR","validity_days":180}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"total_amount":"499.9"`,
		},
		{
			name:           "invalid json",
			body:           `{"student_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title",
			body:           `{"student_id":"student-1","product_id":"product-1","total_amount":"499.90","currency":"EUR"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad currency",
			body:           `{"student_id":"student-1","product_id":"product-1","title":"x","total_amount":"499.90","currency":"EURO"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unparseable amount",
			body:           `{"student_id":"student-1","product_id":"product-1","title":"x","total_amount":"a lot","currency":"EUR"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "empty snapshot",
			body:           `{"student_id":"student-1","product_id":"product-1","title":"x","total_amount":"499.90","currency":"EUR"}`,
			serviceErr:     domain.ErrEmptySnapshot,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "internal error",
			body:           `{"student_id":"student-1","product_id":"product-1","title":"x","total_amount":"499.90","currency":"EUR"}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubContractService{contract: created, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/contracts", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleContracts(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
		})
	}
}

func TestHandleContracts_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	rec := httptest.NewRecorder()

	HandleContracts(&stubContractService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleContractByID_Get(t *testing.T) {
	t.Parallel()

	svc := &stubContractService{contract: domain.Contract{
		ID:          "contract-1",
		Status:      domain.ContractStatusActive,
		TotalAmount: decimal.RequireFromString("100"),
	}}
	req := httptest.NewRequest(http.MethodGet, "/contracts/contract-1", nil)
	rec := httptest.NewRecorder()

	HandleContractByID(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"active"`) {
		t.Fatalf("expected status field, got %q", rec.Body.String())
	}
	if svc.gotContractID != "contract-1" {
		t.Fatalf("expected contract id forwarded, got %q", svc.gotContractID)
	}
}

func TestHandleContractByID_GetNotFound(t *testing.T) {
	t.Parallel()

	svc := &stubContractService{err: domain.ErrContractNotFound}
	req := httptest.NewRequest(http.MethodGet, "/contracts/contract-9", nil)
	rec := httptest.NewRecorder()

	HandleContractByID(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestHandleContractByID_UpdateDraft(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{
			name:           "success",
			body:           `{"title":"Renamed","total_amount":"650.00"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid json",
			body:           `{"title":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unparseable amount",
			body:           `{"total_amount":"free"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not draft",
			body:           `{"title":"Renamed"}`,
			serviceErr:     domain.ErrContractNotDraft,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubContractService{
				contract: domain.Contract{ID: "contract-1", TotalAmount: decimal.RequireFromString("650")},
				err:      tt.serviceErr,
			}
			req := httptest.NewRequest(http.MethodPatch, "/contracts/contract-1", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleContractByID(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleContractByID_Transition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedTarget domain.ContractStatus
	}{
		{
			name:           "activate",
			body:           `{"target":"active","actor_id":"ops-1"}`,
			expectedStatus: http.StatusOK,
			expectedTarget: domain.ContractStatusActive,
		},
		{
			name:           "suspend with reason",
			body:           `{"target":"suspended","reason":"payment overdue"}`,
			expectedStatus: http.StatusOK,
			expectedTarget: domain.ContractStatusSuspended,
		},
		{
			name:           "unknown target",
			body:           `{"target":"paused"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing target",
			body:           `{"reason":"x"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid transition",
			body:           `{"target":"draft"}`,
			serviceErr:     domain.ErrInvalidStatusTransition,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "already active",
			body:           `{"target":"active"}`,
			serviceErr:     domain.ErrContractAlreadyActive,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "reason required",
			body:           `{"target":"terminated"}`,
			serviceErr:     domain.ErrReasonRequired,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubContractService{
				contract: domain.Contract{ID: "contract-1", TotalAmount: decimal.Zero},
				err:      tt.serviceErr,
			}
			req := httptest.NewRequest(http.MethodPost, "/contracts/contract-1/transitions", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleContractByID(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedTarget != "" && svc.gotTransition.Target != tt.expectedTarget {
				t.Fatalf("expected target %q forwarded, got %q", tt.expectedTarget, svc.gotTransition.Target)
			}
		})
	}
}

func TestHandleContractByID_StatusHistory(t *testing.T) {
	t.Parallel()

	from := domain.ContractStatusDraft
	svc := &stubContractService{history: []domain.StatusChange{
		{ID: "sc-1", ToStatus: domain.ContractStatusDraft, ChangedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "sc-2", FromStatus: &from, ToStatus: domain.ContractStatusSigned, ChangedAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)},
	}}
	req := httptest.NewRequest(http.MethodGet, "/contracts/contract-1/status-history", nil)
	rec := httptest.NewRecorder()

	HandleContractByID(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"to_status":"signed"`) {
		t.Fatalf("expected signed change in body, got %q", body)
	}
	if !strings.Contains(body, `"from_status":"draft"`) {
		t.Fatalf("expected from_status in body, got %q", body)
	}
}

func TestHandleContractByID_PathErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "unknown sub resource", method: http.MethodGet, path: "/contracts/contract-1/payments", expectedStatus: http.StatusNotFound},
		{name: "delete contract", method: http.MethodDelete, path: "/contracts/contract-1", expectedStatus: http.StatusMethodNotAllowed},
		{name: "get transitions", method: http.MethodGet, path: "/contracts/contract-1/transitions", expectedStatus: http.StatusMethodNotAllowed},
		{name: "post status history", method: http.MethodPost, path: "/contracts/contract-1/status-history", expectedStatus: http.StatusMethodNotAllowed},
		{name: "too deep", method: http.MethodGet, path: "/contracts/contract-1/status-history/extra", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			HandleContractByID(&stubContractService{}).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

type stubContractService struct {
	contract      domain.Contract
	history       []domain.StatusChange
	err           error
	gotContractID string
	gotTransition app.TransitionInput
}

func (s *stubContractService) CreateContract(_ context.Context, _ app.CreateContractInput) (domain.Contract, error) {
	return s.contract, s.err
}

func (s *stubContractService) UpdateDraft(_ context.Context, in app.UpdateDraftInput) (domain.Contract, error) {
	s.gotContractID = in.ContractID
	return s.contract, s.err
}

func (s *stubContractService) TransitionStatus(_ context.Context, in app.TransitionInput) (domain.Contract, error) {
	s.gotTransition = in
	return s.contract, s.err
}

func (s *stubContractService) GetContract(_ context.Context, contractID string) (domain.Contract, error) {
	s.gotContractID = contractID
	return s.contract, s.err
}

func (s *stubContractService) ListStatusHistory(_ context.Context, contractID string) ([]domain.StatusChange, error) {
	s.gotContractID = contractID
	return s.history, s.err
}
