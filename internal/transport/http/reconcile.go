package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/classpoint/entitlement/internal/app"
	"github.com/classpoint/entitlement/internal/domain"
)

// Reconciler is the minimal interface needed to serve reconciliation reads.
type Reconciler interface {
	ReconcileBalance(ctx context.Context, studentID string, serviceType domain.ServiceType) (app.ReconcileReport, error)
}

// HandleReconciliation serves GET /students/{id}/reconciliation. The
// service_type query parameter is required.
func HandleReconciliation(svc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, resource, ok := parseStudentPath(r.URL.Path)
		if !ok || resource != "reconciliation" {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		serviceType := r.URL.Query().Get("service_type")
		if serviceType == "" {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "service_type is required")
			return
		}

		report, err := svc.ReconcileBalance(r.Context(), studentID, domain.ServiceType(serviceType))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reconcileResponse{
			StudentID:      report.StudentID,
			ServiceType:    string(report.ServiceType),
			ConsumedTotal:  report.ConsumedTotal,
			LedgerConsumed: report.LedgerConsumed,
			Balanced:       report.Balanced,
		})
	}
}

type reconcileResponse struct {
	StudentID      string `json:"student_id"`
	ServiceType    string `json:"service_type"`
	ConsumedTotal  int    `json:"consumed_total"`
	LedgerConsumed int    `json:"ledger_consumed"`
	Balanced       bool   `json:"balanced"`
}
