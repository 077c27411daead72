package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

// HoldCreator is the minimal interface needed to create a hold.
type HoldCreator interface {
	CreateHold(ctx context.Context, in app.CreateHoldInput) (domain.Hold, error)
}

// HoldTransitioner is the minimal interface needed to move a hold to a
// terminal state.
type HoldTransitioner interface {
	ReleaseHold(ctx context.Context, holdID, reason, releasedBy string) (domain.Hold, error)
	CancelHold(ctx context.Context, holdID, reason, cancelledBy string) (domain.Hold, error)
	ExpireHold(ctx context.Context, holdID string) (domain.Hold, error)
}

// HandleCreateHold serves POST /holds.
func HandleCreateHold(svc HoldCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createHoldRequest
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

		var expiresAt *time.Time
		if req.ExpiresAt != "" {
			parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid expires_at format")
				return
			}
			expiresAt = &parsed
		}

		hold, err := svc.CreateHold(r.Context(), app.CreateHoldInput{
			ContractID:       req.ContractID,
			StudentID:        req.StudentID,
			ServiceType:      domain.ServiceType(req.ServiceType),
			Quantity:         req.Quantity,
			RelatedBookingID: req.RelatedBookingID,
			ExpiresAt:        expiresAt,
			CreatedBy:        req.CreatedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toHoldResponse(hold))
	}
}

// HandleHoldActions serves POST /holds/{id}/release, /holds/{id}/cancel and
// /holds/{id}/expire.
func HandleHoldActions(svc HoldTransitioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdID, action, ok := parseHoldActionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req holdActionRequest
		if r.Body != nil && r.ContentLength != 0 {
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
		}

		var (
			hold domain.Hold
			err  error
		)
		switch action {
		case "release":
			hold, err = svc.ReleaseHold(r.Context(), holdID, req.Reason, req.ActorID)
		case "cancel":
			hold, err = svc.CancelHold(r.Context(), holdID, req.Reason, req.ActorID)
		case "expire":
			hold, err = svc.ExpireHold(r.Context(), holdID)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toHoldResponse(hold))
	}
}

func parseHoldActionPath(path string) (holdID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "holds" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type createHoldRequest struct {
	ContractID       string `json:"contract_id" validate:"required"`
	StudentID        string `json:"student_id" validate:"required"`
	ServiceType      string `json:"service_type" validate:"required"`
	Quantity         int    `json:"quantity" validate:"required,gt=0"`
	RelatedBookingID string `json:"related_booking_id,omitempty"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	CreatedBy        string `json:"created_by,omitempty"`
}

type holdActionRequest struct {
	Reason  string `json:"reason,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
}

type holdResponse struct {
	ID               string     `json:"id"`
	ContractID       string     `json:"contract_id"`
	StudentID        string     `json:"student_id"`
	ServiceType      string     `json:"service_type"`
	Quantity         int        `json:"quantity"`
	Status           string     `json:"status"`
	RelatedBookingID string     `json:"related_booking_id,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	ReleaseReason    string     `json:"release_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toHoldResponse(h domain.Hold) holdResponse {
	return holdResponse{
		ID:               h.ID,
		ContractID:       h.ContractID,
		StudentID:        h.StudentID,
		ServiceType:      string(h.ServiceType),
		Quantity:         h.Quantity,
		Status:           string(h.Status),
		RelatedBookingID: h.RelatedBookingID,
		ExpiresAt:        h.ExpiresAt,
		ReleasedAt:       h.ReleasedAt,
		ReleaseReason:    h.ReleaseReason,
		CreatedAt:        h.CreatedAt,
	}
}
