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

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

func TestHandleCreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	successHold := domain.Hold{
		ID:          "hold-123",
		ContractID:  "contract-1",
		StudentID:   "student-1",
		ServiceType: domain.ServiceType("lesson"),
		Quantity:    2,
		Status:      domain.HoldStatusActive,
		CreatedAt:   now,
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
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			expectedStatus: http.StatusCreated,
			expectedSubstr: `"id":"hold-123"`,
		},
		{
			name:           "success with expiry",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2,"expires_at":"2025-03-01T11:00:00Z"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			body:           `{"contract_id":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown field",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2,"surprise":true}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing contract",
			body:           `{"student_id":"student-1","service_type":"lesson","quantity":2}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zero quantity",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":0}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad expiry format",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2,"expires_at":"tomorrow"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "insufficient balance",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			serviceErr:     domain.ErrInsufficientBalance,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "contract not active",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			serviceErr:     domain.ErrContractNotActive,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "contract not found",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			serviceErr:     domain.ErrContractNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "lock timeout",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			serviceErr:     domain.ErrLockTimeout,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "internal error",
			body:           `{"contract_id":"contract-1","student_id":"student-1","service_type":"lesson","quantity":2}`,
			serviceErr:     errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldCreator{hold: successHold, err: tt.serviceErr}
			req := httptest.NewRequest(http.MethodPost, "/holds", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()

			HandleCreateHold(svc).ServeHTTP(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, res.StatusCode)
			}
			if tt.expectedSubstr != "" {
				body := rec.Body.String()
				if !strings.Contains(body, tt.expectedSubstr) {
					t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, body)
				}
			}
		})
	}
}

func TestHandleCreateHold_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/holds", nil)
	rec := httptest.NewRecorder()

	HandleCreateHold(&stubHoldCreator{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleHoldActions(t *testing.T) {
	t.Parallel()

	released := domain.Hold{
		ID:            "hold-1",
		Status:        domain.HoldStatusReleased,
		ReleaseReason: "completed",
	}

	tests := []struct {
		name           string
		path           string
		body           string
		serviceErr     error
		expectedStatus int
		expectedAction string
	}{
		{
			name:           "release",
			path:           "/holds/hold-1/release",
			body:           `{"reason":"completed","actor_id":"ops-1"}`,
			expectedStatus: http.StatusOK,
			expectedAction: "release",
		},
		{
			name:           "cancel without body",
			path:           "/holds/hold-1/cancel",
			expectedStatus: http.StatusOK,
			expectedAction: "cancel",
		},
		{
			name:           "expire",
			path:           "/holds/hold-1/expire",
			expectedStatus: http.StatusOK,
			expectedAction: "expire",
		},
		{
			name:           "invalid json",
			path:           "/holds/hold-1/release",
			body:           `{"reason":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown action",
			path:           "/holds/hold-1/archive",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missing id",
			path:           "/holds//release",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "not active",
			path:           "/holds/hold-1/release",
			serviceErr:     domain.ErrHoldNotActive,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "not found",
			path:           "/holds/hold-1/release",
			serviceErr:     domain.ErrHoldNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "cannot expire yet",
			path:           "/holds/hold-1/expire",
			serviceErr:     domain.ErrHoldCannotExpire,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubHoldTransitioner{hold: released, err: tt.serviceErr}
			var body *bytes.Buffer
			if tt.body != "" {
				body = bytes.NewBufferString(tt.body)
			} else {
				body = &bytes.Buffer{}
			}
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			rec := httptest.NewRecorder()

			HandleHoldActions(svc).ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedAction != "" && svc.action != tt.expectedAction {
				t.Fatalf("expected %s to be called, got %q", tt.expectedAction, svc.action)
			}
		})
	}
}

func TestHandleHoldActions_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/holds/hold-1/release", nil)
	rec := httptest.NewRecorder()

	HandleHoldActions(&stubHoldTransitioner{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleHoldActions_PassesReason(t *testing.T) {
	t.Parallel()

	svc := &stubHoldTransitioner{hold: domain.Hold{ID: "hold-1"}}
	body := bytes.NewBufferString(`{"reason":"student no-show","actor_id":"advisor-5"}`)
	req := httptest.NewRequest(http.MethodPost, "/holds/hold-1/cancel", body)
	rec := httptest.NewRecorder()

	HandleHoldActions(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if svc.reason != "student no-show" || svc.actor != "advisor-5" {
		t.Fatalf("expected reason and actor forwarded, got %q / %q", svc.reason, svc.actor)
	}
}

type stubHoldCreator struct {
	hold domain.Hold
	err  error
	in   app.CreateHoldInput
}

func (s *stubHoldCreator) CreateHold(_ context.Context, in app.CreateHoldInput) (domain.Hold, error) {
	s.in = in
	return s.hold, s.err
}

type stubHoldTransitioner struct {
	hold   domain.Hold
	err    error
	action string
	reason string
	actor  string
}

func (s *stubHoldTransitioner) ReleaseHold(_ context.Context, _, reason, releasedBy string) (domain.Hold, error) {
	s.action, s.reason, s.actor = "release", reason, releasedBy
	return s.hold, s.err
}

func (s *stubHoldTransitioner) CancelHold(_ context.Context, _, reason, cancelledBy string) (domain.Hold, error) {
	s.action, s.reason, s.actor = "cancel", reason, cancelledBy
	return s.hold, s.err
}

func (s *stubHoldTransitioner) ExpireHold(_ context.Context, _ string) (domain.Hold, error) {
	s.action = "expire"
	return s.hold, s.err
}
