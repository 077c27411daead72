package domain

import "errors"

var (
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrReasonRequired          = errors.New("reason required")
	ErrBookingSourceRequired   = errors.New("booking source required")
	ErrEntitlementNotFound     = errors.New("entitlement not found")
	ErrContractNotFound        = errors.New("contract not found")
	ErrHoldNotFound            = errors.New("hold not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrExceedsConsumed         = errors.New("refund exceeds net consumed")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrContractAlreadyActive   = errors.New("contract already active")
	ErrContractNotDraft        = errors.New("contract not in draft")
	ErrContractNotActive       = errors.New("contract not active")
	ErrHoldNotActive           = errors.New("hold not active")
	ErrHoldCannotExpire        = errors.New("hold cannot expire")
	ErrLockTimeout             = errors.New("lock timeout")
	ErrInvalidID               = errors.New("invalid id")
	ErrInvalidAmendmentKind    = errors.New("invalid amendment kind")
	ErrArchiveRangeRequired    = errors.New("archive queries require a date range")
	ErrArchiveRangeTooWide     = errors.New("archive date range exceeds one year")
	ErrEmptySnapshot           = errors.New("contract has no product items")
)
