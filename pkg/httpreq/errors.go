package httpreq

import (
	"errors"
	"fmt"
)

// ErrPaused is wrapped by the TimeoutError returned while a pause window is active.
var ErrPaused = errors.New("requests paused due to previous timeouts")

// TimeoutError is returned when a request exceeded its timeout or was
// rejected locally because the transport is inside a pause window.
type TimeoutError struct {
	URL    string
	Paused bool
	Err    error
}

func (e *TimeoutError) Error() string {
	if e.Paused {
		return fmt.Sprintf("request to %s not sent: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout makes TimeoutError satisfy net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// TransportError covers malformed URLs, body encoding failures and
// non-timeout network errors.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a TimeoutError, paused or not.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
