package thumbnail

import "errors"

var (
	// ErrNotFound is returned when the asset or its source file is missing.
	ErrNotFound = errors.New("asset not found")
	// ErrCodec is returned when decoding, scaling or encoding fails.
	ErrCodec = errors.New("codec failure")
	// ErrPersist is returned when an artifact or its metadata cannot be saved.
	ErrPersist = errors.New("persist failure")
	// ErrWaitTimeout is returned under TimeoutFail when another producer
	// did not finish in time.
	ErrWaitTimeout = errors.New("timed out waiting for generation")
	// ErrSchedulerStopped is returned when an async task could not be queued.
	ErrSchedulerStopped = errors.New("task scheduler stopped")
)

// Code maps an error to the numeric status used by callers that need one.
// Zero means success.
func Code(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound):
		return -1
	case errors.Is(err, ErrCodec):
		return -2
	case errors.Is(err, ErrPersist):
		return -3
	case errors.Is(err, ErrWaitTimeout):
		return -4
	default:
		return -5
	}
}
