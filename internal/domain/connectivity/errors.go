package connectivity

import "errors"

var (
	// ErrPermissionDenied indicates the location permission was refused. Non-fatal.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrFetchFailed wraps a failed one-shot connectivity read.
	ErrFetchFailed = errors.New("connectivity fetch failed")
	// ErrSubscribeFailed wraps a failed connectivity subscription.
	ErrSubscribeFailed = errors.New("connectivity subscribe failed")
	// ErrNotStarted is returned by operations that need an active monitor.
	ErrNotStarted = errors.New("monitor not started")
)
