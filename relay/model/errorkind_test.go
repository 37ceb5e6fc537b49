package model

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	nonRetryable := []ErrorKind{
		ErrKindValidation,
		ErrKindAuthentication,
		ErrKindInsufficientFunds,
		ErrKindNoProviders,
		ErrKindAllFailed,
	}
	for _, kind := range nonRetryable {
		assert.False(t, kind.Retryable(), string(kind))
	}

	retryable := []ErrorKind{
		ErrKindConfiguration,
		ErrKindRateLimit,
		ErrKindTimeout,
		ErrKindNetwork,
		ErrKindAPI,
		ErrKindUnknown,
	}
	for _, kind := range retryable {
		assert.True(t, kind.Retryable(), string(kind))
	}
}

func TestStatusCode(t *testing.T) {
	cases := map[ErrorKind]int{
		ErrKindValidation:        http.StatusBadRequest,
		ErrKindNoProviders:       http.StatusBadRequest,
		ErrKindAuthentication:    http.StatusUnauthorized,
		ErrKindInsufficientFunds: http.StatusPaymentRequired,
		ErrKindAllFailed:         http.StatusBadGateway,
		ErrKindRateLimit:         http.StatusTooManyRequests,
		ErrKindTimeout:           http.StatusGatewayTimeout,
		ErrKindAPI:               http.StatusInternalServerError,
		ErrKindNetwork:           http.StatusInternalServerError,
		ErrKindUnknown:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.StatusCode(), string(kind))
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]ErrorKind{
		http.StatusBadRequest:          ErrKindValidation,
		http.StatusUnauthorized:        ErrKindConfiguration,
		http.StatusForbidden:           ErrKindConfiguration,
		http.StatusNotFound:            ErrKindConfiguration,
		http.StatusTooManyRequests:     ErrKindRateLimit,
		http.StatusRequestTimeout:      ErrKindTimeout,
		http.StatusGatewayTimeout:      ErrKindTimeout,
		http.StatusInternalServerError: ErrKindAPI,
		http.StatusBadGateway:          ErrKindAPI,
		http.StatusServiceUnavailable:  ErrKindAPI,
		http.StatusConflict:            ErrKindUnknown,
	}
	for status, want := range cases {
		assert.Equal(t, want, ClassifyStatus(status), http.StatusText(status))
	}
}

// Upstream auth failures must not end the attempt chain: the next provider may
// be configured correctly.
func TestUpstreamAuthFailureIsRetryable(t *testing.T) {
	assert.True(t, ClassifyStatus(http.StatusUnauthorized).Retryable())
	assert.True(t, ClassifyStatus(http.StatusForbidden).Retryable())
	assert.False(t, ClassifyStatus(http.StatusBadRequest).Retryable())
}
