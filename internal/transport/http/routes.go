package http

import "net/http"

// RouterConfig carries the services the mux dispatches to. Each field is the
// narrow interface its handlers need, so tests can stub them independently.
type RouterConfig struct {
	Balances     BalanceReader
	Consumptions ConsumptionRecorder
	Adjustments  AdjustmentRecorder
	Refunds      RefundRecorder
	Ledger       LedgerQuerier
	Amendments   AmendmentService
	Reconciler   Reconciler
	Holds        HoldCreator
	HoldActions  HoldTransitioner
	Contracts    ContractService
}

// NewMux builds the API routing table.
func NewMux(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler())
	mux.Handle("/students/", handleStudentResources(cfg))
	mux.Handle("/holds", HandleCreateHold(cfg.Holds))
	mux.Handle("/holds/", HandleHoldActions(cfg.HoldActions))
	mux.Handle("/contracts", HandleContracts(cfg.Contracts))
	mux.Handle("/contracts/", HandleContractByID(cfg.Contracts))
	mux.Handle("/", NotFoundHandler())
	return mux
}

// handleStudentResources fans /students/{id}/{resource} out to the resource
// handlers, which re-parse the path themselves.
func handleStudentResources(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, resource, ok := parseStudentPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch resource {
		case "balances":
			HandleStudentBalances(cfg.Balances)(w, r)
		case "consumptions":
			HandleConsumptions(cfg.Consumptions)(w, r)
		case "adjustments":
			HandleAdjustments(cfg.Adjustments)(w, r)
		case "refunds":
			HandleRefunds(cfg.Refunds)(w, r)
		case "ledger":
			HandleLedgerQuery(cfg.Ledger)(w, r)
		case "amendments":
			HandleAmendments(cfg.Amendments)(w, r)
		case "reconciliation":
			HandleReconciliation(cfg.Reconciler)(w, r)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}
