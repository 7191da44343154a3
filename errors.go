package lenspay

import (
	"errors"
	"fmt"
)

// PaymentError is a typed, machine-readable payment failure. Every failure
// in the payment flow surfaces as one of these so callers can render a
// specific message ("you cancelled" vs "wrong network" vs "try again")
// instead of string-matching on free text.
type PaymentError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for the payment and license flows.
const (
	// ErrCodeNetworkMismatch: the wallet is on the wrong chain and both
	// switching and adding the chain failed. Fatal for the attempt.
	ErrCodeNetworkMismatch = "network_mismatch"
	// ErrCodeSigningRejected: the user declined a signature or chain
	// prompt. Never retried automatically.
	ErrCodeSigningRejected = "signing_rejected"
	// ErrCodeSigningTimeout: a wallet prompt did not resolve within the
	// configured window. Distinct from a rejection.
	ErrCodeSigningTimeout = "signing_timeout"
	// ErrCodeVerificationFailed: the facilitator rejected the payload.
	ErrCodeVerificationFailed = "verification_failed"
	// ErrCodeSettlementFailed: verification passed but broadcast or
	// execution failed. The authorization is not consumed.
	ErrCodeSettlementFailed = "settlement_failed"
	// ErrCodeInvalidItem: a domain item id has no contract mapping.
	// Always fatal; never falls back to a shared id.
	ErrCodeInvalidItem = "invalid_item"
	// ErrCodeTransportFailure: HTTP or RPC level failure. Retryable by
	// the caller, never retried by the core.
	ErrCodeTransportFailure = "transport_failure"
	// ErrCodePaymentInProgress: a payment attempt for the same payer is
	// already outstanding.
	ErrCodePaymentInProgress = "payment_in_progress"
)

// NewPaymentError creates a new payment error.
func NewPaymentError(code, message string, details map[string]interface{}) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CodeOf returns the payment error code carried by err, or "" if err is not
// a PaymentError.
func CodeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsRetryable reports whether the failure class is safe for the caller to
// retry with the same (unconsumed) authorization.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTransportFailure, ErrCodeSettlementFailed:
		return true
	}
	return false
}
