package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Provider error classes. Every error returned by the client wraps exactly
// one of them so callers can pick a retry policy with errors.Is.
var (
	ErrRateLimited = errors.New("provider rate limited")
	ErrTimeout     = errors.New("provider timeout")
	ErrConnection  = errors.New("provider connection failed")
	ErrProvider    = errors.New("provider api error")
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider response status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrProvider
	}
}

// classifyTransportError maps an http.Client.Do failure onto a class.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
}
