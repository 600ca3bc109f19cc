package domain

import "errors"

var (
	// ErrNotFound is returned when a record cannot be found in the store
	ErrNotFound = errors.New("not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that's already claimed
	ErrJobAlreadyClaimed = errors.New("job already claimed or not claimable")

	// ErrNoJobAvailable is returned by ClaimNext when nothing is due
	ErrNoJobAvailable = errors.New("no job available")

	// ErrInvalidPayload is returned when job payload JSON is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxAttemptsExceeded is returned when a job has exhausted its attempts
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")

	// ErrUnknownQueue is returned for queue names outside AllQueues
	ErrUnknownQueue = errors.New("unknown queue")

	// ErrValidation is returned when caller input fails validation
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the caller's role may not perform an action
	ErrForbidden = errors.New("forbidden")

	// ErrJobNotRetryable is returned when a manual retry targets a job that is not failed
	ErrJobNotRetryable = errors.New("job is not in failed state")
)

// RetryableError wraps transient errors that should be retried with backoff
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// PermanentError wraps errors that must fail the job without further attempts
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent error: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new permanent error
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError
// or an invalid payload, which can never succeed on retry.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return true
	}
	return errors.Is(err, ErrInvalidPayload)
}
