// Package source defines the IFetcher interface: the bridge between a cache
// key and the system that can resolve it. A QueryCache only schedules and
// memoizes - the actual data access is delegated to a fetcher.
//
// Implementations:
//   - sqlsource: executes keys as read-only SQL against PostgreSQL and
//     returns the rows JSON-encoded
//   - NewEchoFetcher / FetcherFunc: trivial fetchers for tests, benchmarks
//     and embedding custom resolution logic
package source
