package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FailureKind classifies why a capability call failed.
type FailureKind string

const (
	// FailureQuota: the account is out of quota or throttled hard.
	// User-presentable; retrying immediately will not help.
	FailureQuota FailureKind = "quota_exceeded"
	// FailureTransient: timeouts, connection errors, 5xx. The caller may
	// retry.
	FailureTransient FailureKind = "transient"
	// FailureUnknown: anything else.
	FailureUnknown FailureKind = "unknown"
)

// CapabilityError wraps a failure from an external model service
// (generation or embedding) with its classification.
type CapabilityError struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ClassifyHTTP builds a CapabilityError from an HTTP status code.
func ClassifyHTTP(provider string, status int, err error) *CapabilityError {
	kind := FailureUnknown
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		kind = FailureQuota
	case status == http.StatusRequestTimeout, status >= 500:
		kind = FailureTransient
	}
	return &CapabilityError{Kind: kind, Provider: provider, Err: err}
}

// classifyTransport wraps network-level failures (no HTTP response).
func classifyTransport(provider string, err error) *CapabilityError {
	kind := FailureUnknown
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		kind = FailureTransient
	}
	return &CapabilityError{Kind: kind, Provider: provider, Err: err}
}

// IsQuota reports whether err is a quota-exceeded capability failure.
func IsQuota(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce) && ce.Kind == FailureQuota
}

// IsTransient reports whether err is a retryable capability failure.
func IsTransient(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce) && ce.Kind == FailureTransient
}
