package qcache

// --------------------------------------------------------------------------
// Lifecycle Events
// --------------------------------------------------------------------------

// EventType identifies a cache entry lifecycle transition.
type EventType uint8

const (
	EventRegistered EventType = iota // Entry created (pending)
	EventQueued                      // Entry placed on the dispatch stack
	EventFetching                    // Fetch started
	EventSettled                     // Fetch finished (Err set on failure)
	EventEvicted                     // Entry removed (capacity pressure or Evict)
	EventCancelled                   // Waiters dropped via Cancel
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventQueued:
		return "queued"
	case EventFetching:
		return "fetching"
	case EventSettled:
		return "settled"
	case EventEvicted:
		return "evicted"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event describes one entry lifecycle transition. Events are published on a
// lock-free MPSC queue and consumed by a single subscriber (server logging,
// tests); producing them never blocks the scheduler.
type Event struct {
	Type EventType
	Key  string
	Err  string // Fetch error message for failed settlements, otherwise empty
}
