package cache

import (
	"context"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// FetchFunc produces the value for a cache key. It is invoked at most once
// per registered key (until the key is evicted) and runs on its own
// goroutine. Implementations should honor the passed context, which is
// cancelled when the owning cache is closed.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// ICache is the generic interface for a query-result cache with bounded
// fetch concurrency. All operations are safe for concurrent use.
type ICache[V any] interface {
	// Register creates a pending entry for key if absent. It is idempotent
	// for existing keys. If the cache is at capacity, the least-recently
	// accessed terminal entry is evicted first; if no entry is evictable
	// (all entries queued or fetching) the call fails with RetCCacheFull.
	Register(key string) (err error)
	// Get returns the cached value for key. A key in terminal state is
	// served immediately: the stored value for StatusSuccess, the stored
	// error for StatusError (the fetch is NOT re-run). Otherwise the key
	// is registered if needed, fetch is scheduled and the call blocks
	// until the entry settles or ctx is done. Cancelling ctx only drops
	// this caller's interest; an in-flight fetch still completes and
	// updates the cache.
	Get(ctx context.Context, key string, fetch FetchFunc[V]) (value V, err error)
	// Has returns whether an entry of any status exists for key.
	Has(key string) (loaded bool)
	// GetStatus returns the current status of the entry for key.
	// The boolean return value indicates whether the entry exists.
	GetStatus(key string) (status Status, loaded bool)
	// Cancel drops all waiters registered for key. A queued entry is
	// removed from the dispatch queue and returns to pending; an entry
	// that is already fetching is not interrupted - the fetch completes
	// and settles the entry, it just notifies nobody.
	Cancel(key string)
	// Evict removes a terminal (success or error) entry so the key can be
	// fetched again. It returns false if the entry does not exist or is
	// still active.
	Evict(key string) (ok bool)
	// Len returns the current number of entries.
	Len() (n int)
	// Clear drops all entries and rejects all waiters. The cache stays
	// usable afterwards.
	Clear()
	// Stats returns a snapshot of the cache counters.
	Stats() (stats Stats)
	// Close rejects all waiters, cancels the fetch context and marks the
	// cache unusable. All subsequent operations fail with RetCCacheClosed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Entry Status
// --------------------------------------------------------------------------

// Status describes the lifecycle state of a cache entry.
//
// An entry is created as StatusPending, becomes StatusQueued when placed on
// the dispatch queue, StatusFetching once a concurrency slot is acquired and
// finally StatusSuccess or StatusError. The two final states are terminal:
// the entry is never re-fetched unless it is evicted and registered again.
type Status uint8

const (
	StatusPending  Status = iota // Registered, not yet queued for fetching
	StatusQueued                 // Waiting on the dispatch queue for a free slot
	StatusFetching               // Fetch in flight
	StatusSuccess                // Terminal: value available
	StatusError                  // Terminal: fetch failed, error cached
)

// Terminal returns whether the status is final (success or error).
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusQueued:
		return "queued"
	case StatusFetching:
		return "fetching"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats is a point-in-time snapshot of cache state and counters.
type Stats struct {
	Entries     int    `json:"entries"`      // Current number of entries
	Queued      int    `json:"queued"`       // Entries waiting for a concurrency slot
	Fetching    int    `json:"fetching"`     // Entries with a fetch in flight
	Hits        uint64 `json:"hits"`         // Gets served from a terminal entry
	Misses      uint64 `json:"misses"`       // Gets that had to wait for a fetch
	Evictions   uint64 `json:"evictions"`    // Entries removed by capacity pressure or Evict
	FetchErrors uint64 `json:"fetch_errors"` // Fetches that settled with an error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CacheError (code %s): %s", e.Code, e.Msg)
}

// Is matches cache errors by return code, so errors.Is(err, ErrCacheFull)
// works regardless of the message carried by the concrete error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new cache Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// IsCode reports whether err is a cache Error carrying the given code.
func IsCode(err error, code RetCode) bool {
	cacheErr, ok := err.(*Error)
	return ok && cacheErr.Code == code
}

// Sentinel errors for use with errors.Is. Returned errors usually carry a
// more specific message; matching happens on the return code.
var (
	ErrCacheFull   = NewError(RetCCacheFull, "cache full")
	ErrCacheClosed = NewError(RetCCacheClosed, "cache closed")
	ErrFetchFailed = NewError(RetCFetchFailed, "fetch failed")
	ErrCancelled   = NewError(RetCCancelled, "cancelled")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                // 1: Operation failed due to an internal error.
	RetCCacheFull                    // 2: Cache at capacity with no evictable entry.
	RetCCacheClosed                  // 3: Cache has been closed.
	RetCFetchFailed                  // 4: The fetch for the key settled with an error.
	RetCCancelled                    // 5: The waiter was cancelled before settlement.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCCacheFull:
		return "CacheFull"
	case RetCCacheClosed:
		return "CacheClosed"
	case RetCFetchFailed:
		return "FetchFailed"
	case RetCCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
