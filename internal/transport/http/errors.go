package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/classpoint/entitlement/internal/domain"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeValidationFailed       = "validation_failed"
	codeInvalidQuantity        = "invalid_quantity"
	codeReasonRequired         = "reason_required"
	codeBookingSourceRequired  = "booking_source_required"
	codeEntitlementNotFound    = "entitlement_not_found"
	codeContractNotFound       = "contract_not_found"
	codeHoldNotFound           = "hold_not_found"
	codeInsufficientBalance    = "insufficient_balance"
	codeExceedsConsumed        = "exceeds_consumed"
	codeInvalidTransition      = "invalid_status_transition"
	codeContractAlreadyActive  = "contract_already_active"
	codeContractNotDraft       = "contract_not_draft"
	codeContractNotActive      = "contract_not_active"
	codeHoldNotActive          = "hold_not_active"
	codeHoldCannotExpire       = "hold_cannot_expire"
	codeLockTimeout            = "lock_timeout"
	codeInvalidID              = "invalid_id"
	codeInvalidAmendmentKind   = "invalid_amendment_kind"
	codeArchiveRangeRequired   = "archive_range_required"
	codeArchiveRangeTooWide    = "archive_range_too_wide"
	codeEmptySnapshot          = "empty_product_snapshot"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps service errors to HTTP responses in one place so
// every handler reports the same status for the same failure.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, verr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, codeReasonRequired, err.Error())
	case errors.Is(err, domain.ErrBookingSourceRequired):
		writeError(w, http.StatusBadRequest, codeBookingSourceRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidAmendmentKind):
		writeError(w, http.StatusBadRequest, codeInvalidAmendmentKind, err.Error())
	case errors.Is(err, domain.ErrArchiveRangeRequired):
		writeError(w, http.StatusBadRequest, codeArchiveRangeRequired, err.Error())
	case errors.Is(err, domain.ErrArchiveRangeTooWide):
		writeError(w, http.StatusBadRequest, codeArchiveRangeTooWide, err.Error())
	case errors.Is(err, domain.ErrEmptySnapshot):
		writeError(w, http.StatusBadRequest, codeEmptySnapshot, err.Error())
	case errors.Is(err, domain.ErrEntitlementNotFound):
		writeError(w, http.StatusNotFound, codeEntitlementNotFound, err.Error())
	case errors.Is(err, domain.ErrContractNotFound):
		writeError(w, http.StatusNotFound, codeContractNotFound, err.Error())
	case errors.Is(err, domain.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusConflict, codeInsufficientBalance, err.Error())
	case errors.Is(err, domain.ErrExceedsConsumed):
		writeError(w, http.StatusConflict, codeExceedsConsumed, err.Error())
	case errors.Is(err, domain.ErrContractAlreadyActive):
		writeError(w, http.StatusConflict, codeContractAlreadyActive, err.Error())
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrContractNotDraft):
		writeError(w, http.StatusConflict, codeContractNotDraft, err.Error())
	case errors.Is(err, domain.ErrContractNotActive):
		writeError(w, http.StatusConflict, codeContractNotActive, err.Error())
	case errors.Is(err, domain.ErrHoldNotActive):
		writeError(w, http.StatusConflict, codeHoldNotActive, err.Error())
	case errors.Is(err, domain.ErrHoldCannotExpire):
		writeError(w, http.StatusConflict, codeHoldCannotExpire, err.Error())
	case errors.Is(err, domain.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, codeLockTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
