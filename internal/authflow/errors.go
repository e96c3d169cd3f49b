package authflow

import (
	"errors"
	"fmt"
)

// ErrorCode classifies terminal authentication failures.
type ErrorCode string

const (
	ErrInitializationFailed ErrorCode = "initialization_failed"
	ErrCancelled            ErrorCode = "authorization_cancelled"
	ErrInvalidState         ErrorCode = "invalid_state"
	ErrProviderError        ErrorCode = "provider_error"
	ErrTimeout              ErrorCode = "timeout"
	ErrSuperseded           ErrorCode = "superseded"
	ErrTokenExchange        ErrorCode = "token_exchange_failed"
	ErrUserInfoFetch        ErrorCode = "userinfo_fetch_failed"
	ErrMalformedResponse    ErrorCode = "malformed_response"
)

// FlowError is the single terminal failure surfaced to callers of the
// coordinator. ProviderCode carries the provider's own error identifier when
// the provider redirected with an explicit error.
type FlowError struct {
	Code         ErrorCode `json:"error"`
	Description  string    `json:"error_description,omitempty"`
	ProviderCode string    `json:"provider_code,omitempty"`
}

func (e *FlowError) Error() string {
	switch {
	case e.ProviderCode != "" && e.Description != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.ProviderCode, e.Description)
	case e.ProviderCode != "":
		return fmt.Sprintf("%s: %s", e.Code, e.ProviderCode)
	case e.Description != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return string(e.Code)
}

// NewFlowError creates a FlowError with the given code and description.
func NewFlowError(code ErrorCode, description string) *FlowError {
	return &FlowError{Code: code, Description: description}
}

// NewProviderError creates a FlowError for an explicit provider error
// delivered on the redirect.
func NewProviderError(providerCode, description string) *FlowError {
	return &FlowError{Code: ErrProviderError, ProviderCode: providerCode, Description: description}
}

// IsCode reports whether err is a FlowError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *FlowError
	return errors.As(err, &fe) && fe.Code == code
}
