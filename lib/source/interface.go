package source

import "context"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IFetcher resolves a cache key to its result bytes. Implementations back
// the server side of the RPC surface, where clients send only keys and the
// fetch itself runs next to the data.
//
// Fetch is called from cache fetch goroutines and must be safe for
// concurrent use. The passed context is cancelled when the owning cache
// shuts down.
type IFetcher interface {
	// Fetch resolves key to its result.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Close releases underlying resources (e.g. connection pools).
	Close() error
}

// --------------------------------------------------------------------------
// Adapters
// --------------------------------------------------------------------------

// FetcherFunc adapts a plain function to the IFetcher interface.
type FetcherFunc func(ctx context.Context, key string) ([]byte, error)

// Interface Methods (docu see IFetcher)

func (f FetcherFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

func (f FetcherFunc) Close() error {
	return nil
}

// NewEchoFetcher returns a fetcher that resolves every key to its own bytes.
// It is used by the conformance tests and the perf command, where the
// interesting part is the cache and transport, not the data source.
func NewEchoFetcher() IFetcher {
	return FetcherFunc(func(ctx context.Context, key string) ([]byte, error) {
		return []byte(key), nil
	})
}
