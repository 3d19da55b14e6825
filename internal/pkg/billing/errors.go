package billing

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed gateway event")
	ErrAccountNotFound  = errors.New("no local account for gateway customer")
	ErrRecordNotFound   = errors.New("processing record not found")
	ErrPermanent        = errors.New("permanent processing failure")
	ErrNotReplayable    = errors.New("event is not in a replayable state")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// RetryError asks the queue to redeliver the envelope after a delay.
type RetryError struct {
	Err     error
	After   time.Duration
	Attempt int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("attempt %d failed, retry in %s: %v", e.Attempt, e.After, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// RetryAfter extracts the redelivery delay from err.
func RetryAfter(err error) (time.Duration, bool) {
	var re *RetryError
	if errors.As(err, &re) {
		return re.After, true
	}
	return 0, false
}
