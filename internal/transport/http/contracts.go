package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

// ContractService is the minimal interface needed for contract endpoints.
type ContractService interface {
	CreateContract(ctx context.Context, in app.CreateContractInput) (domain.Contract, error)
	UpdateDraft(ctx context.Context, in app.UpdateDraftInput) (domain.Contract, error)
	TransitionStatus(ctx context.Context, in app.TransitionInput) (domain.Contract, error)
	GetContract(ctx context.Context, contractID string) (domain.Contract, error)
	ListStatusHistory(ctx context.Context, contractID string) ([]domain.StatusChange, error)
}

// HandleContracts serves POST /contracts.
func HandleContracts(svc ContractService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createContractRequest
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

		amount, err := decimal.NewFromString(req.TotalAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid total_amount")
			return
		}

		contract, err := svc.CreateContract(r.Context(), app.CreateContractInput{
			StudentID:    req.StudentID,
			ProductID:    req.ProductID,
			Title:        req.Title,
			TotalAmount:  amount,
			Currency:     req.Currency,
			ValidityDays: req.ValidityDays,
			CreatedBy:    req.CreatedBy,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toContractResponse(contract))
	}
}

// HandleContractByID serves GET and PATCH /contracts/{id}, plus
// POST /contracts/{id}/transitions and GET /contracts/{id}/status-history.
func HandleContractByID(svc ContractService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contractID, sub, ok := parseContractPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch sub {
		case "":
			switch r.Method {
			case http.MethodGet:
				contract, err := svc.GetContract(r.Context(), contractID)
				if err != nil {
					writeDomainError(w, err)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(toContractResponse(contract))
			case http.MethodPatch:
				handleUpdateDraft(w, r, svc, contractID)
			default:
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			}
		case "transitions":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleTransition(w, r, svc, contractID)
		case "status-history":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			history, err := svc.ListStatusHistory(r.Context(), contractID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]statusChangeResponse, 0, len(history))
			for _, change := range history {
				item := statusChangeResponse{
					ID:        change.ID,
					ToStatus:  string(change.ToStatus),
					ChangedAt: change.ChangedAt,
					ChangedBy: change.ChangedBy,
					Reason:    change.Reason,
				}
				if change.FromStatus != nil {
					from := string(*change.FromStatus)
					item.FromStatus = &from
				}
				resp = append(resp, item)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleUpdateDraft(w http.ResponseWriter, r *http.Request, svc ContractService, contractID string) {
	var req updateDraftRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	in := app.UpdateDraftInput{
		ContractID:   contractID,
		Title:        req.Title,
		Currency:     req.Currency,
		ValidityDays: req.ValidityDays,
	}
	if req.TotalAmount != nil {
		amount, err := decimal.NewFromString(*req.TotalAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid total_amount")
			return
		}
		in.TotalAmount = &amount
	}

	contract, err := svc.UpdateDraft(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toContractResponse(contract))
}

func handleTransition(w http.ResponseWriter, r *http.Request, svc ContractService, contractID string) {
	var req transitionRequest
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

	contract, err := svc.TransitionStatus(r.Context(), app.TransitionInput{
		ContractID: contractID,
		Target:     domain.ContractStatus(req.Target),
		Reason:     req.Reason,
		ActorID:    req.ActorID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toContractResponse(contract))
}

func parseContractPath(path string) (contractID, sub string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "contracts" || parts[1] == "" {
		return "", "", false
	}
	if len(parts) == 2 {
		return parts[1], "", true
	}
	return parts[1], parts[2], true
}

type createContractRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	ProductID    string `json:"product_id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	TotalAmount  string `json:"total_amount" validate:"required"`
	Currency     string `json:"currency" validate:"required,len=3"`
	ValidityDays int    `json:"validity_days" validate:"gte=0"`
	CreatedBy    string `json:"created_by,omitempty"`
}

type updateDraftRequest struct {
	Title        *string `json:"title,omitempty"`
	TotalAmount  *string `json:"total_amount,omitempty"`
	Currency     *string `json:"currency,omitempty"`
	ValidityDays *int    `json:"validity_days,omitempty"`
}

type transitionRequest struct {
	Target  string `json:"target" validate:"required,oneof=draft signed active suspended completed terminated"`
	Reason  string `json:"reason,omitempty"`
	ActorID string `json:"actor_id,omitempty"`
}

type productItemResponse struct {
	ServiceType string `json:"service_type"`
	Quantity    int    `json:"quantity"`
}

type contractResponse struct {
	ID              string                `json:"id"`
	StudentID       string                `json:"student_id"`
	ProductID       string                `json:"product_id"`
	Status          string                `json:"status"`
	Title           string                `json:"title"`
	TotalAmount     string                `json:"total_amount"`
	Currency        string                `json:"currency"`
	ProductSnapshot []productItemResponse `json:"product_snapshot"`
	SignedAt        *time.Time            `json:"signed_at,omitempty"`
	ExpiresAt       *time.Time            `json:"expires_at,omitempty"`
	ValidityDays    int                   `json:"validity_days"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type statusChangeResponse struct {
	ID         string    `json:"id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ChangedAt  time.Time `json:"changed_at"`
	ChangedBy  string    `json:"changed_by,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

func toContractResponse(c domain.Contract) contractResponse {
	snapshot := make([]productItemResponse, 0, len(c.ProductSnapshot))
	for _, item := range c.ProductSnapshot {
		snapshot = append(snapshot, productItemResponse{
			ServiceType: string(item.ServiceType),
			Quantity:    item.Quantity,
		})
	}
	return contractResponse{
		ID:              c.ID,
		StudentID:       c.StudentID,
		ProductID:       c.ProductID,
		Status:          string(c.Status),
		Title:           c.Title,
		TotalAmount:     c.TotalAmount.String(),
		Currency:        c.Currency,
		ProductSnapshot: snapshot,
		SignedAt:        c.SignedAt,
		ExpiresAt:       c.ExpiresAt,
		ValidityDays:    c.ValidityDays,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
