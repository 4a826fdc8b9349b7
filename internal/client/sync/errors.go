package sync

import "errors"

var (
	// ErrSyncBusy is returned when a run is requested while another run is
	// active for the same vault. Callers should retry later; runs are never
	// queued.
	ErrSyncBusy = errors.New("sync: run already in progress")

	// ErrAuth marks failures caused by missing or invalid credentials.
	// A run aborted with ErrAuth leaves the watermark untouched.
	ErrAuth = errors.New("sync: authentication failed")
)

// IndexingError wraps a failure to build either index. It aborts the run
// before anything executes; the watermark stays untouched.
type IndexingError struct {
	Tree string // "local" or "remote"
	Err  error
}

func (e *IndexingError) Error() string {
	return "sync: " + e.Tree + " indexing failed: " + e.Err.Error()
}

func (e *IndexingError) Unwrap() error { return e.Err }
