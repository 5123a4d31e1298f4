package qcache_test

import (
	"testing"

	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/lib/cache/cachetest"
	"github.com/resqcache/resq/lib/cache/qcache"
)

func TestQueryCacheConformance(t *testing.T) {
	cachetest.RunCacheTests(t, "QueryCache", func() cache.ICache[[]byte] {
		return qcache.New[[]byte](nil)
	})
}
