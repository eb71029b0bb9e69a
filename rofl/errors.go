package rofl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHostUnavailable indicates the call could not be dispatched to the host
// runtime at all: the socket could not be dialed, or the connection broke
// before a response line arrived. Retryable.
var ErrHostUnavailable = errors.New("host runtime unavailable")

// ErrTimeout indicates the per-call deadline elapsed before the host
// responded. Retryable with the same policy as host errors.
var ErrTimeout = errors.New("host call timed out")

// HostError is an error object returned by the host runtime itself.
type HostError struct {
	Code    int
	Message string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host error %d: %s", e.Code, e.Message)
}

func IsHostError(err error) bool {
	var target *HostError
	return errors.As(err, &target)
}

// IsStateRejection reports whether the error is a host error caused by the
// contract's status gate: the request is no longer pending, so some
// submission (possibly our own, possibly another worker instance's) already
// landed. The worker treats this as terminal success.
func IsStateRejection(err error) bool {
	var hostErr *HostError
	if !errors.As(err, &hostErr) {
		return false
	}
	msg := strings.ToLower(hostErr.Message)
	return strings.Contains(msg, "not pending") ||
		strings.Contains(msg, "already completed") ||
		strings.Contains(msg, "already processed")
}
