package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies provider errors for display handling
type ErrorType string

const (
	ErrorTypeRateLimit          ErrorType = "rate_limit"          // 429 - too many requests
	ErrorTypeInsufficientCredit ErrorType = "insufficient_credit" // 402 - no balance
	ErrorTypeProviderDown       ErrorType = "provider_down"       // 502/503 - upstream issue
	ErrorTypeAuth               ErrorType = "auth"                // 401 - bad API key
	ErrorTypeModeration         ErrorType = "moderation"          // 403 - content flagged
	ErrorTypeUnknown            ErrorType = "unknown"             // Fallback
)

// ProviderError is a structured error returned by provider clients.
type ProviderError struct {
	Type     ErrorType // Classification
	Provider string    // "openrouter", "googleai"
	Status   int       // HTTP status, 0 when the request never completed
	Message  string    // Human-readable message
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// IsProviderError checks if err is a ProviderError and returns it
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// NewProviderError creates a ProviderError classified from the HTTP status.
func NewProviderError(provider string, status int, message string) *ProviderError {
	return &ProviderError{
		Type:     ClassifyStatus(status),
		Provider: provider,
		Status:   status,
		Message:  message,
	}
}

// ClassifyStatus maps an HTTP status code onto the error taxonomy.
func ClassifyStatus(status int) ErrorType {
	switch status {
	case http.StatusUnauthorized:
		return ErrorTypeAuth
	case http.StatusPaymentRequired:
		return ErrorTypeInsufficientCredit
	case http.StatusForbidden:
		return ErrorTypeModeration
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrorTypeProviderDown
	default:
		return ErrorTypeUnknown
	}
}

// MissingCredentialError reports that the API key a model requires is not
// set. It is raised before any request is issued.
type MissingCredentialError struct {
	KeyName string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential: set %s in the environment or credentials file", e.KeyName)
}

// IsMissingCredential checks if err is a MissingCredentialError.
func IsMissingCredential(err error) (*MissingCredentialError, bool) {
	var me *MissingCredentialError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
