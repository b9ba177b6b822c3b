package versions

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPublishedAt = errors.New("invalid published_at timestamp")
	ErrNegativeSize       = errors.New("negative file size")
	ErrMissingFileURL     = errors.New("version file has no url")
	ErrSizeMismatch       = errors.New("downloaded size does not match")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrNullBody           = errors.New("response body is null")
)

// DecodeError is a response body that could not be decoded.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
