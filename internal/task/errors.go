package task

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrExpirationInPast matches any *ExpirationInPastError via errors.Is.
	ErrExpirationInPast = errors.New("task expiration is in the past")
	// ErrZeroInterval is returned when a task interval is not strictly positive.
	ErrZeroInterval = errors.New("task interval must be > 0")
)

// ExpirationInPastError carries the rejected expiration instant.
type ExpirationInPastError struct {
	Expire time.Time
}

func (e *ExpirationInPastError) Error() string {
	return fmt.Sprintf("task expiration is in the past: %s", e.Expire.Format(time.RFC3339Nano))
}

func (e *ExpirationInPastError) Is(target error) bool { return target == ErrExpirationInPast }
