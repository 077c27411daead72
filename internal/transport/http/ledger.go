package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

// ConsumptionRecorder is the minimal interface needed to record consumption.
type ConsumptionRecorder interface {
	RecordConsumption(ctx context.Context, in app.ConsumeInput) ([]domain.LedgerEntry, error)
}

// AdjustmentRecorder is the minimal interface needed to record adjustments.
type AdjustmentRecorder interface {
	RecordAdjustment(ctx context.Context, in app.AdjustInput) (domain.LedgerEntry, error)
}

// RefundRecorder is the minimal interface needed to record refunds.
type RefundRecorder interface {
	RecordRefund(ctx context.Context, in app.RefundInput) (domain.LedgerEntry, error)
}

// LedgerQuerier is the minimal interface needed to read ledger history.
type LedgerQuerier interface {
	QueryLedger(ctx context.Context, filter domain.LedgerFilter, page domain.LedgerPage) ([]domain.LedgerEntry, error)
}

// HandleConsumptions serves POST /students/{id}/consumptions.
func HandleConsumptions(svc ConsumptionRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "consumptions" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req consumeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeDomainError(w, err)
			return
		}

		entries, err := svc.RecordConsumption(r.Context(), app.ConsumeInput{
			StudentID:        studentID,
			ServiceType:      domain.ServiceType(req.ServiceType),
			Quantity:         req.Quantity,
			RelatedBookingID: req.RelatedBookingID,
			BookingSource:    req.BookingSource,
			RelatedHoldID:    req.RelatedHoldID,
			CreatedBy:        req.CreatedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]ledgerEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toLedgerEntryResponse(e))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleAdjustments serves POST /students/{id}/adjustments.
func HandleAdjustments(svc AdjustmentRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "adjustments" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req adjustRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeDomainError(w, err)
			return
		}

		entry, err := svc.RecordAdjustment(r.Context(), app.AdjustInput{
			StudentID:   studentID,
			ServiceType: domain.ServiceType(req.ServiceType),
			Quantity:    req.Quantity,
			Reason:      req.Reason,
			CreatedBy:   req.CreatedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toLedgerEntryResponse(entry))
	}
}

// HandleRefunds serves POST /students/{id}/refunds.
func HandleRefunds(svc RefundRecorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "refunds" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req refundRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeDomainError(w, err)
			return
		}

		entry, err := svc.RecordRefund(r.Context(), app.RefundInput{
			StudentID:        studentID,
			ServiceType:      domain.ServiceType(req.ServiceType),
			Quantity:         req.Quantity,
			RelatedBookingID: req.RelatedBookingID,
			BookingSource:    req.BookingSource,
			CreatedBy:        req.CreatedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toLedgerEntryResponse(entry))
	}
}

// HandleLedgerQuery serves GET /students/{id}/ledger. from/to take RFC 3339
// timestamps; include_archive=true routes the query through the archive merge.
func HandleLedgerQuery(svc LedgerQuerier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "ledger" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		q := r.URL.Query()
		filter := domain.LedgerFilter{
			StudentID:   studentID,
			ServiceType: domain.ServiceType(q.Get("service_type")),
		}
		for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
			raw := q.Get(param)
			if raw == "" {
				continue
			}
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid "+param+" timestamp")
				return
			}
			*dst = &parsed
		}

		page := domain.LedgerPage{
			IncludeArchive: q.Get("include_archive") == "true",
		}
		page.Limit, _ = strconv.Atoi(q.Get("limit"))
		page.Offset, _ = strconv.Atoi(q.Get("offset"))

		entries, err := svc.QueryLedger(r.Context(), filter, page)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]ledgerEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toLedgerEntryResponse(e))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type consumeRequest struct {
	ServiceType      string `json:"service_type" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	RelatedBookingID string `json:"related_booking_id,omitempty"`
	BookingSource    string `json:"booking_source,omitempty"`
	RelatedHoldID    string `json:"related_hold_id,omitempty"`
	CreatedBy        string `json:"created_by,omitempty"`
}

type adjustRequest struct {
	ServiceType string `json:"service_type" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
	CreatedBy   string `json:"created_by,omitempty"`
}

type refundRequest struct {
	ServiceType      string `json:"service_type" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	RelatedBookingID string `json:"related_booking_id,omitempty"`
	BookingSource    string `json:"booking_source,omitempty"`
	CreatedBy        string `json:"created_by,omitempty"`
}

type ledgerEntryResponse struct {
	ID               string            `json:"id"`
	StudentID        string            `json:"student_id"`
	ServiceType      string            `json:"service_type"`
	Quantity         int               `json:"quantity"`
	Type             string            `json:"type"`
	Source           string            `json:"source"`
	BalanceAfter     int               `json:"balance_after"`
	RelatedBookingID string            `json:"related_booking_id,omitempty"`
	RelatedHoldID    string            `json:"related_hold_id,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	CreatedBy        string            `json:"created_by,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

func toLedgerEntryResponse(e domain.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:               e.ID,
		StudentID:        e.StudentID,
		ServiceType:      string(e.ServiceType),
		Quantity:         e.Quantity,
		Type:             string(e.Type),
		Source:           string(e.Source),
		BalanceAfter:     e.BalanceAfter,
		RelatedBookingID: e.RelatedBookingID,
		RelatedHoldID:    e.RelatedHoldID,
		Metadata:         e.Metadata,
		Reason:           e.Reason,
		CreatedBy:        e.CreatedBy,
		CreatedAt:        e.CreatedAt,
	}
}
