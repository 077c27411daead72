package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

// AmendmentService is the minimal interface needed for amendment endpoints.
type AmendmentService interface {
	RecordAmendment(ctx context.Context, in app.RecordAmendmentInput) (domain.Amendment, error)
	ListAmendments(ctx context.Context, studentID string) ([]domain.Amendment, error)
}

// HandleAmendments serves GET and POST /students/{id}/amendments.
func HandleAmendments(svc AmendmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "amendments" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch r.Method {
		case http.MethodGet:
			amendments, err := svc.ListAmendments(r.Context(), studentID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]amendmentResponse, 0, len(amendments))
			for _, a := range amendments {
				resp = append(resp, toAmendmentResponse(a))
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req recordAmendmentRequest
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

			amendment, err := svc.RecordAmendment(r.Context(), app.RecordAmendmentInput{
				StudentID:   studentID,
				ContractID:  req.ContractID,
				ServiceType: domain.ServiceType(req.ServiceType),
				Kind:        domain.AmendmentKind(req.Kind),
				Quantity:    req.Quantity,
				Reason:      req.Reason,
				Description: req.Description,
				Attachments: req.Attachments,
				CreatedBy:   req.CreatedBy,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(toAmendmentResponse(amendment))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

type recordAmendmentRequest struct {
	ContractID  string   `json:"contract_id" validate:"required"`
	ServiceType string   `json:"service_type" validate:"required"`
	Kind        string   `json:"kind" validate:"required,oneof=addon promotion compensation"`
	Quantity    int      `json:"quantity" validate:"required,gt=0"`
	Reason      string   `json:"reason" validate:"required"`
	Description string   `json:"description,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
}

type amendmentResponse struct {
	ID              string            `json:"id"`
	StudentID       string            `json:"student_id"`
	ContractID      string            `json:"contract_id"`
	ServiceType     string            `json:"service_type"`
	Kind            string            `json:"kind"`
	QuantityChanged int               `json:"quantity_changed"`
	Reason          string            `json:"reason"`
	Description     string            `json:"description,omitempty"`
	Attachments     []string          `json:"attachments,omitempty"`
	Snapshot        map[string]string `json:"snapshot,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func toAmendmentResponse(a domain.Amendment) amendmentResponse {
	return amendmentResponse{
		ID:              a.ID,
		StudentID:       a.StudentID,
		ContractID:      a.ContractID,
		ServiceType:     string(a.ServiceType),
		Kind:            string(a.Kind),
		QuantityChanged: a.QuantityChanged,
		Reason:          a.Reason,
		Description:     a.Description,
		Attachments:     a.Attachments,
		Snapshot:        a.Snapshot,
		CreatedBy:       a.CreatedBy,
		CreatedAt:       a.CreatedAt,
	}
}
