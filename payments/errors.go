package payments

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode identifies a kind of payment error.
type ErrorCode int

const (
	// ErrValidation indicates a request that can never succeed as given:
	// amount out of range, metadata too long, malformed address.
	ErrValidation ErrorCode = iota

	// ErrRateLimited indicates the session has exhausted its request
	// budget. The condition is transient.
	ErrRateLimited

	// ErrNotOwned indicates the session does not own the address it is
	// asking about.
	ErrNotOwned

	// ErrExpired indicates the payment window for the address has closed.
	ErrExpired

	// ErrUnderpayment indicates a confirmed transaction below the expected
	// amount beyond tolerance. The pending payment is expired and no
	// donation is created.
	ErrUnderpayment

	// ErrOracleUnavailable indicates no exchange rate source responded.
	ErrOracleUnavailable
)

var errorCodeStrings = map[ErrorCode]string{
	ErrValidation:        "ErrValidation",
	ErrRateLimited:       "ErrRateLimited",
	ErrNotOwned:          "ErrNotOwned",
	ErrExpired:           "ErrExpired",
	ErrUnderpayment:      "ErrUnderpayment",
	ErrOracleUnavailable: "ErrOracleUnavailable",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(c))
}

// Error is a payment error surfaced by the orchestrator entry points.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

func (e Error) Error() string {
	return e.Description
}

func paymentError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode returns whether err is a payment Error with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.ErrorCode == c
	}
	return false
}
