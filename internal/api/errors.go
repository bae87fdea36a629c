package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by errors.Is against *Error.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindAuth      Kind = "auth"
	KindNotFound  Kind = "not_found"
	KindRateLimit Kind = "rate_limit"
	KindClient    Kind = "client"
	KindServer    Kind = "server"
	KindDecode    Kind = "decode"
	KindRejected  Kind = "rejected"
)

// Error is returned for every failed backend call.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed [%s] status %d: %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("%s failed [%s]: %v", e.Op, e.Kind, e.Underlying)
	}
	return fmt.Sprintf("%s failed [%s]: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindAuth
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindServer, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is worth another attempt. Errors that are
// not *Error (context cancellation aside) are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}

func kindForStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return KindTimeout
	case statusCode >= 400 && statusCode < 500:
		return KindClient
	default:
		return KindServer
	}
}
