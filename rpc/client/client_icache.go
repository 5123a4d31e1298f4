package client

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/rpc/common"
	"github.com/resqcache/resq/rpc/serializer"
	"github.com/resqcache/resq/rpc/transport"
)

// NewRPCCache creates a new RPC cache client
// The function takes a cache ID, a config, a transport and a serializer as parameters
// It returns a cache.ICache and an error
//
// Note: the returned cache resolves keys through the fetcher configured on
// the server side. The fetch function passed to Get is therefore ignored -
// it exists only to satisfy the cache.ICache interface, so that local and
// remote caches are interchangeable.
func NewRPCCache(
	cacheID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (cache.ICache[[]byte], error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC cache
	c := rpcCache{
		rpcClientAdapter: rpcClientAdapter{
			cacheID:    cacheID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC cache
	return &c, nil
}

type rpcCache struct {
	rpcClientAdapter
	closed atomic.Bool
}

// invoke sends one request for this client's cache. After Close every
// operation fails with RetCCacheClosed, matching the local cache contract.
func (i *rpcCache) invoke(req *common.Message) (*common.Message, error) {
	if i.closed.Load() {
		return nil, cache.NewError(cache.RetCCacheClosed, "cache client is closed")
	}
	return invokeRPCRequest(i.cacheID, req, i.transport, i.serializer)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the cache package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcCache) Register(key string) (err error) {
	_, err = i.invoke(common.NewRegisterRequest(key))
	return err
}

func (i *rpcCache) Get(ctx context.Context, key string, _ cache.FetchFunc[[]byte]) (value []byte, err error) {
	type result struct {
		resp *common.Message
		err  error
	}

	// Run the request on its own goroutine so this caller can give up
	// waiting via ctx. The server-side fetch still completes and settles
	// the remote entry either way.
	ch := make(chan result, 1)
	go func() {
		resp, err := i.invoke(common.NewGetRequest(key))
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.resp.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *rpcCache) Has(key string) (loaded bool) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false
	}
	return resp.Ok
}

func (i *rpcCache) GetStatus(key string) (status cache.Status, loaded bool) {
	resp, err := i.invoke(common.NewStatusRequest(key))
	if err != nil {
		return cache.StatusPending, false
	}
	return cache.Status(resp.Status), resp.Ok
}

func (i *rpcCache) Cancel(key string) {
	_, _ = i.invoke(common.NewCancelRequest(key))
}

func (i *rpcCache) Evict(key string) (ok bool) {
	resp, err := i.invoke(common.NewEvictRequest(key))
	if err != nil {
		return false
	}
	return resp.Ok
}

func (i *rpcCache) Len() (n int) {
	resp, err := i.invoke(common.NewLenRequest())
	if err != nil {
		return 0
	}
	return int(resp.Count)
}

func (i *rpcCache) Clear() {
	_, _ = i.invoke(common.NewClearRequest())
}

func (i *rpcCache) Stats() (stats cache.Stats) {
	resp, err := i.invoke(common.NewStatsRequest())
	if err != nil {
		return cache.Stats{}
	}
	if err := json.Unmarshal(resp.Value, &stats); err != nil {
		return cache.Stats{}
	}
	return stats
}

// Close marks this client handle closed and closes the underlying transport.
// Subsequent operations fail with RetCCacheClosed. The server-side cache is
// shared between clients and stays open.
func (i *rpcCache) Close() (err error) {
	if i.closed.Swap(true) {
		return nil
	}
	return i.transport.Close()
}
