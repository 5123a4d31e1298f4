// Package client implements the RPC client for the query-result cache system.
// It provides an implementation of the cache.ICache interface that
// communicates with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to remote cache implementations
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCCache: Factory function that creates a client implementing the
//     cache.ICache interface. This client forwards all operations to remote
//     servers via the configured transport layer.
//
// The remote cache resolves keys through the source.IFetcher configured on
// the server, so the fetch function passed to Get is ignored. Typed cache
// errors survive the round trip: a remote RetCCacheFull is reconstructed on
// the client so cache.IsCode works the same for local and remote caches.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:5000"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create cache client
//	c, _ := client.NewRPCCache(1, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the cache (the fetch argument is resolved server-side)
//	value, err := c.Get(ctx, "SELECT * FROM users", nil)
//	status, ok := c.GetStatus("SELECT * FROM users")
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The client implementation is thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
