package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Route identifies which transport carried a request.
type Route string

// Route values.
const (
	RouteLocal  Route = "local"
	RouteRemote Route = "remote"
)

// FailureKind tags a send failure.
type FailureKind int

// FailureKind values. Only FailureTimeout on the local route affects health.
const (
	FailureUnknown FailureKind = iota
	FailureTimeout
	FailureRejected
)

// String returns the kind's log name.
func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Sentinel errors.
var (
	// ErrNoLocalAddress is returned when the local route is used without an address.
	ErrNoLocalAddress = errors.New("transport: local hub address not known")

	// ErrNoRemote is returned when the dispatcher has no remote sender.
	ErrNoRemote = errors.New("transport: remote sender not configured")
)

// StatusError is an application-level rejection: the peer answered with a
// non-2xx HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// SendError wraps a transport failure with its route and kind.
type SendError struct {
	Route Route
	Kind  FailureKind
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed (%s): %v", e.Route, e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewSendError wraps err, classifying it. A nil err yields nil.
func NewSendError(route Route, err error) error {
	if err == nil {
		return nil
	}
	var se *SendError
	if errors.As(err, &se) {
		return err
	}
	return &SendError{Route: route, Kind: Classify(err), Err: err}
}

// Classify derives a FailureKind from err's type.
//
// Connection-level failures (deadline exceeded, net timeouts, failed dials)
// are FailureTimeout. A *StatusError is FailureRejected. Everything else is
// FailureUnknown.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	var se *SendError
	if errors.As(err, &se) {
		return se.Kind
	}

	var status *StatusError
	if errors.As(err, &status) {
		return FailureRejected
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return FailureTimeout
	}

	return FailureUnknown
}
