package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/classpoint/entitlement/internal/domain"
)

// BalanceReader is the minimal interface needed to serve balance reads.
type BalanceReader interface {
	GetBalance(ctx context.Context, studentID string, serviceType domain.ServiceType) ([]domain.Balance, error)
}

// HandleStudentBalances serves GET /students/{id}/balances. An optional
// service_type query parameter narrows the result to one service type.
func HandleStudentBalances(svc BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "balances" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		serviceType := domain.ServiceType(r.URL.Query().Get("service_type"))
		balances, err := svc.GetBalance(r.Context(), studentID, serviceType)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		resp := make([]balanceResponse, 0, len(balances))
		for _, b := range balances {
			resp = append(resp, balanceResponse{
				StudentID:   b.StudentID,
				ServiceType: string(b.ServiceType),
				Total:       b.Total,
				Consumed:    b.Consumed,
				Held:        b.Held,
				Available:   b.Available,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type balanceResponse struct {
	StudentID   string `json:"student_id"`
	ServiceType string `json:"service_type"`
	Total       int    `json:"total"`
	Consumed    int    `json:"consumed"`
	Held        int    `json:"held"`
	Available   int    `json:"available"`
}
