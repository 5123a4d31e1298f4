// Package server implements the RPC server for the query-result cache system.
// It provides the adapter that handles RPC requests against a cache, along
// with the core server implementation that manages the served caches and
// routes requests to them.
//
// The package focuses on:
//   - Server-side RPC request handling for all cache operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Serving multiple independent caches from a single server process
//   - Dynamic creation of caches and their backing sources from configuration
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     cache.ICache.
//
//   - NewICacheServerAdapter: Factory function creating an adapter for cache
//     operations, translating RPC requests to cache.ICache method calls. Get
//     requests resolve through the server-side source.IFetcher, so clients
//     only ever send keys.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Caches: []common.ServerCache{
//	    {CacheID: 100, Name: "users", Source: common.SourceTypeEcho},
//	    {CacheID: 200, Name: "reports", Source: common.SourceTypeSQL,
//	      SQLDSN: "postgres://localhost/reports?sslmode=disable"},
//	  },
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports two types of sources, which can be mixed within a
// single server:
//
//   - SourceTypeEcho: Resolves every key to its own bytes. Suitable for
//     development environments and performance testing, since the result of
//     every fetch is known in advance.
//
//   - SourceTypeSQL: Executes each key as a SQL query against a PostgreSQL
//     database and caches the result rows as JSON. When using this type the
//     SQLDSN of the cache must be configured.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Serve method is not thread-safe and should be called only once.
package server
