package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies why a provider produced no results.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindRateLimited ErrorKind = "rate_limited"
	// KindMisconfigured means the provider cannot run at all (missing key or
	// endpoint), as opposed to an outage.
	KindMisconfigured ErrorKind = "misconfigured"
)

// ProviderError wraps a provider failure. Message never carries credentials.
type ProviderError struct {
	Provider ProviderID
	Kind     ErrorKind
	Message  string
	Err      error
}

func newProviderError(id ProviderID, kind ErrorKind, msg string, err error) *ProviderError {
	return &ProviderError{Provider: id, Kind: kind, Message: msg, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a *ProviderError in err's chain, or KindUnavailable.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

// transportError classifies an error returned by http.Client.Do.
func transportError(ctx context.Context, id ProviderID, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return newProviderError(id, KindTimeout, "request did not complete in time", err)
	}
	return newProviderError(id, KindUnavailable, "request failed", err)
}

// statusError classifies a non-200 response.
func statusError(id ProviderID, status int) *ProviderError {
	msg := fmt.Sprintf("unexpected status %d", status)
	switch {
	case status == http.StatusTooManyRequests:
		return newProviderError(id, KindRateLimited, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newProviderError(id, KindUnavailable, "authentication or quota rejected: "+msg, nil)
	default:
		return newProviderError(id, KindUnavailable, msg, nil)
	}
}
