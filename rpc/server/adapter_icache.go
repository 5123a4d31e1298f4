package server

import (
	"context"
	"fmt"
	"time"

	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/lib/source"
	"github.com/resqcache/resq/rpc/common"
)

// NewICacheServerAdapter creates an adapter that serves the full ICache
// surface over RPC. Get requests resolve through the given fetcher, so
// clients only ever send keys - the data access runs next to the server.
// A timeout of 0 means Get requests wait indefinitely for settlement.
func NewICacheServerAdapter(fetcher source.IFetcher, timeout time.Duration) IRPCServerAdapter {
	return &iCacheServerAdapterImpl{
		fetcher: fetcher,
		timeout: timeout,
	}
}

type iCacheServerAdapterImpl struct {
	fetcher source.IFetcher
	timeout time.Duration
}

func (adapter *iCacheServerAdapterImpl) Handle(req *common.Message, c cache.ICache[[]byte]) *common.Message {
	// Check for nil cache
	if c == nil {
		return common.NewErrorResponse("handler: cache is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTCacheRegister:
		err := c.Register(req.Key)
		return common.NewRegisterResponse(err)
	case common.MsgTCacheGet:
		ctx := context.Background()
		if adapter.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, adapter.timeout)
			defer cancel()
		}
		key := req.Key
		value, err := c.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
			return adapter.fetcher.Fetch(ctx, key)
		})
		return common.NewGetResponse(value, err)
	case common.MsgTCacheHas:
		return common.NewHasResponse(c.Has(req.Key))
	case common.MsgTCacheCancel:
		c.Cancel(req.Key)
		return common.NewCancelResponse()
	case common.MsgTCacheEvict:
		return common.NewEvictResponse(c.Evict(req.Key))
	case common.MsgTCacheStatus:
		status, ok := c.GetStatus(req.Key)
		return common.NewStatusResponse(status, ok)
	case common.MsgTCacheLen:
		return common.NewLenResponse(c.Len())
	case common.MsgTCacheClear:
		c.Clear()
		return common.NewClearResponse()
	case common.MsgTCacheStats:
		return common.NewStatsResponse(c.Stats())
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC ICacheAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
