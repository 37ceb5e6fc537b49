package model

import "net/http"

// ErrorKind classifies a failure for the fallback decision. The orchestrator
// only ever switches on Retryable; the kind itself feeds logs and metrics.
type ErrorKind string

const (
	ErrKindValidation        ErrorKind = "VALIDATION_ERROR"
	ErrKindAuthentication    ErrorKind = "AUTHENTICATION_ERROR"
	ErrKindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	ErrKindConfiguration     ErrorKind = "CONFIGURATION_ERROR"
	ErrKindRateLimit         ErrorKind = "RATE_LIMIT_ERROR"
	ErrKindTimeout           ErrorKind = "TIMEOUT_ERROR"
	ErrKindNetwork           ErrorKind = "NETWORK_ERROR"
	ErrKindAPI               ErrorKind = "API_ERROR"
	ErrKindNoProviders       ErrorKind = "NO_PROVIDERS"
	ErrKindAllFailed         ErrorKind = "ALL_PROVIDERS_FAILED"
	ErrKindUnknown           ErrorKind = "UNKNOWN_ERROR"
)

// Retryable reports whether the attempt loop may advance to the next provider
// after this failure. Only a semantically bad request blocks fallback; caller
// auth and funds failures never reach the attempt loop.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindValidation, ErrKindAuthentication, ErrKindInsufficientFunds,
		ErrKindNoProviders, ErrKindAllFailed:
		return false
	default:
		return true
	}
}

// StatusCode maps the kind to the HTTP status surfaced to the client when the
// error terminates the request.
func (k ErrorKind) StatusCode() int {
	switch k {
	case ErrKindValidation, ErrKindNoProviders:
		return http.StatusBadRequest
	case ErrKindAuthentication:
		return http.StatusUnauthorized
	case ErrKindInsufficientFunds:
		return http.StatusPaymentRequired
	case ErrKindAllFailed:
		return http.StatusBadGateway
	case ErrKindRateLimit:
		return http.StatusTooManyRequests
	case ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ClassifyStatus maps an upstream HTTP status to an error kind. Adapters with
// provider-specific quirks (Azure 404 deployments) adjust the result before
// returning it.
func ClassifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusBadRequest:
		return ErrKindValidation
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		// Upstream credential problems are configuration faults of the
		// gateway, not of the caller, so fallback may continue.
		return ErrKindConfiguration
	case statusCode == http.StatusNotFound:
		return ErrKindConfiguration
	case statusCode == http.StatusTooManyRequests:
		return ErrKindRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return ErrKindTimeout
	case statusCode >= 500:
		return ErrKindAPI
	default:
		return ErrKindUnknown
	}
}
