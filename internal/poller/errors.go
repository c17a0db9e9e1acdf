package poller

import "errors"

// Domain errors for the poller.
var (
	// ErrCycleInProgress is returned when a cycle is requested while one is running.
	ErrCycleInProgress = errors.New("poller: cycle already in progress")

	// ErrFetchFailed is returned when the snapshot could not be fetched.
	// The cache is left untouched.
	ErrFetchFailed = errors.New("poller: snapshot fetch failed")

	// ErrCyclePanicked is returned when a cycle panicked and was recovered.
	ErrCyclePanicked = errors.New("poller: cycle panicked")
)
