// Package errors provides the sentinel error taxonomy for granola-sync.
//
// Each sentinel corresponds to one failure class of a sync run. Run-fatal
// conditions (the cache cannot be read or decoded, the ledger is held by a
// concurrent run) abort before any mutation; per-meeting conditions (render
// or filesystem write failures) are isolated so one bad meeting cannot
// block synchronization of the rest.
//
// Usage:
//
//	import gserrors "github.com/alexdobrenko/granola-sync/pkg/errors"
//
//	// Return a classified error
//	return fmt.Errorf("reading %s: %w", path, gserrors.ErrCacheUnavailable)
//
//	// Check for a class
//	if gserrors.IsLedgerCollision(err) {
//	    // retryable: another run holds the ledger
//	}
package errors

import "errors"

var (
	// ErrCacheUnavailable indicates the Granola cache file is missing or
	// unreadable. Fatal for the run; the ledger is not touched.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrCacheMalformed indicates the cache file did not decode: either
	// JSON pass failed, or the expected state.documents / state.transcripts
	// keys are absent. Fatal for the run.
	ErrCacheMalformed = errors.New("cache malformed")

	// ErrRenderFailure indicates a single meeting could not be rendered to
	// markdown. The meeting is skipped and retried on the next run.
	ErrRenderFailure = errors.New("render failure")

	// ErrLedgerCollision indicates the ledger is locked by a concurrent
	// run. Retryable; the run aborts cleanly before any mutation.
	ErrLedgerCollision = errors.New("ledger locked by concurrent run")

	// ErrWriteFailure indicates a markdown file could not be written or
	// moved. Per-meeting; the meeting is skipped and retried next run.
	ErrWriteFailure = errors.New("filesystem write failure")
)

// IsCacheUnavailable reports whether any error in err's chain is ErrCacheUnavailable.
func IsCacheUnavailable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable)
}

// IsCacheMalformed reports whether any error in err's chain is ErrCacheMalformed.
func IsCacheMalformed(err error) bool {
	return errors.Is(err, ErrCacheMalformed)
}

// IsRenderFailure reports whether any error in err's chain is ErrRenderFailure.
func IsRenderFailure(err error) bool {
	return errors.Is(err, ErrRenderFailure)
}

// IsLedgerCollision reports whether any error in err's chain is ErrLedgerCollision.
func IsLedgerCollision(err error) bool {
	return errors.Is(err, ErrLedgerCollision)
}

// IsWriteFailure reports whether any error in err's chain is ErrWriteFailure.
func IsWriteFailure(err error) bool {
	return errors.Is(err, ErrWriteFailure)
}
