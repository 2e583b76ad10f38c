package usagecache

import "errors"

var (
	// ErrStaleResponse marks a response whose request was superseded. It is dropped
	// silently by callers.
	ErrStaleResponse = errors.New("stale response")
	// ErrMergeInFlight is returned when a merge is already running.
	ErrMergeInFlight = errors.New("merge already in flight")
	// ErrNotCached is returned when an operation needs a cached page that does not exist.
	ErrNotCached = errors.New("page not cached")
)
