// Package sqlsource implements source.IFetcher on top of PostgreSQL: cache
// keys are SQL queries, executed verbatim, and the result rows are encoded
// as a JSON array of objects. Combined with a QueryCache this turns repeated
// identical read queries into a single database round trip.
package sqlsource
