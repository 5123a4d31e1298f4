package client_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/lib/cache/cachetest"
	"github.com/resqcache/resq/rpc/client"
	"github.com/resqcache/resq/rpc/common"
	"github.com/resqcache/resq/rpc/serializer"
	"github.com/resqcache/resq/rpc/server"
	"github.com/resqcache/resq/rpc/transport/unix"
)

const roundTripCacheID = 7

// startEchoServer starts an RPC server on a unix socket serving a single
// echo-backed cache and returns the socket path once it accepts connections.
func startEchoServer(t *testing.T) string {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "resq.sock")

	config := common.ServerConfig{
		Caches: []common.ServerCache{{
			CacheID: roundTripCacheID,
			Name:    "roundtrip",
			Source:  common.SourceTypeEcho,
		}},
		Endpoint:      socketPath,
		TimeoutSecond: 10,
		LogLevel:      "error",
	}

	serv := server.NewRPCServer(
		config,
		unix.NewUnixServerTransport(64*1024, 8),
		serializer.NewBinarySerializer(),
	)
	go func() {
		_ = serv.Serve()
	}()

	// Wait until the socket accepts connections
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return socketPath
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("server did not start listening on %s", socketPath)
	return ""
}

func newRoundTripClient(config common.ClientConfig) (cache.ICache[[]byte], error) {
	return client.NewRPCCache(
		roundTripCacheID,
		config,
		unix.NewUnixClientTransport(),
		serializer.NewBinarySerializer(),
	)
}

// TestRPCCacheConformance runs the cache conformance suite against a remote
// cache: adapter, proto, serializer and framing all sit on the tested path.
func TestRPCCacheConformance(t *testing.T) {
	socketPath := startEchoServer(t)

	config := common.ClientConfig{
		Endpoints:     []string{socketPath},
		TimeoutSecond: 10,
		RetryCount:    3,
	}

	// Verify connectivity once up front so factory errors below are abnormal
	first, err := newRoundTripClient(config)
	if err != nil {
		t.Fatalf("Failed to connect to test server: %v", err)
	}
	first.Close()

	cachetest.RunCacheTests(t, "RPCCache", func() cache.ICache[[]byte] {
		c, err := newRoundTripClient(config)
		if err != nil {
			panic(err)
		}
		// All subtests share the server-side cache, each one starts it empty
		c.Clear()
		return c
	})
}
