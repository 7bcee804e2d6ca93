package ai

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		status int
		kind   FailureKind
	}{
		{http.StatusTooManyRequests, FailureQuota},
		{http.StatusPaymentRequired, FailureQuota},
		{http.StatusRequestTimeout, FailureTransient},
		{http.StatusInternalServerError, FailureTransient},
		{http.StatusBadGateway, FailureTransient},
		{http.StatusBadRequest, FailureUnknown},
		{http.StatusUnauthorized, FailureUnknown},
	}

	for _, tc := range cases {
		ce := ClassifyHTTP("test", tc.status, fmt.Errorf("status %d", tc.status))
		assert.Equal(t, tc.kind, ce.Kind, "status %d", tc.status)
	}
}

func TestIsQuotaAndIsTransient(t *testing.T) {
	quota := &CapabilityError{Kind: FailureQuota, Provider: "p", Err: errors.New("429")}
	transient := &CapabilityError{Kind: FailureTransient, Provider: "p", Err: errors.New("503")}

	assert.True(t, IsQuota(quota))
	assert.False(t, IsTransient(quota))
	assert.True(t, IsTransient(transient))
	assert.False(t, IsQuota(transient))

	assert.False(t, IsQuota(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestIsQuota_Wrapped(t *testing.T) {
	inner := &CapabilityError{Kind: FailureQuota, Provider: "p", Err: errors.New("429")}
	wrapped := fmt.Errorf("answering failed: %w", inner)

	assert.True(t, IsQuota(wrapped))
}

func TestCapabilityError_Unwrap(t *testing.T) {
	sentinel := errors.New("root cause")
	ce := &CapabilityError{Kind: FailureTransient, Provider: "p", Err: sentinel}

	assert.ErrorIs(t, ce, sentinel)
	assert.Contains(t, ce.Error(), "transient")
}
