// Package common provides core data structures and utilities shared across
// the RPC system. It defines fundamental types, configuration structures,
// and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Shared zap based logging for all rpc packages
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components, with a flexible structure that adapts to different
//     operation types. Includes factory methods for creating the request and
//     response messages of every cache operation. Typed cache errors travel
//     as a RetCode so clients can reconstruct them.
//
//   - MessageType: Enumeration defining all supported cache operations plus
//     control messages.
//
//   - ServerConfig: Configuration for the cache server: the served caches
//     (capacity, concurrency, backing source), network endpoint, transport
//     tuning and the optional metrics endpoint.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
//
//   - GetLogger / InitLoggers: Named zap loggers with a process wide level.
package common
