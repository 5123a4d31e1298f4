package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// SourceType selects the fetcher implementation backing a served cache.
type SourceType string

const (
	SourceTypeEcho SourceType = "echo" // Resolve keys to their own bytes (testing, benchmarks)
	SourceTypeSQL  SourceType = "sql"  // Execute keys as SQL against PostgreSQL
)

// ServerCache describes one cache instance served by the RPC server.
type ServerCache struct {
	// CacheID is the ID used by clients to address this cache
	CacheID uint64
	// Name labels the cache in logs and exported metrics
	Name string
	// Capacity is the maximum number of entries (0 = default)
	Capacity int
	// MaxConcurrent bounds simultaneous fetches (0 = default)
	MaxConcurrent int
	// Source selects the fetcher backing this cache
	Source SourceType
	// SQLDSN is the PostgreSQL connection string (required for SourceTypeSQL)
	SQLDSN string
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Caches served by this server
	Caches []ServerCache

	// RPC settings
	Endpoint      string
	TimeoutSecond int64

	// Transport tuning
	BufferSize        int // Read buffer size per connection in bytes (0 = transport default)
	MaxWorkersPerConn int // Concurrent request workers per connection (0 = 1)

	// Metrics endpoint (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(int(math.Max(1, float64(c.MaxWorkersPerConn)))))

	// Metrics
	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Caches
	addSection("Caches")

	// Sort by ID for consistent output
	caches := make([]ServerCache, len(c.Caches))
	copy(caches, c.Caches)
	sort.Slice(caches, func(i, j int) bool { return caches[i].CacheID < caches[j].CacheID })

	for _, cc := range caches {
		addField(strconv.FormatUint(cc.CacheID, 10),
			fmt.Sprintf("%s (source=%s, capacity=%d, concurrency=%d)",
				cc.Name, cc.Source, cc.Capacity, cc.MaxConcurrent))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int

	// TCP tuning (ignored by other transports)
	TCPNoDelay      bool
	TCPKeepAliveSec int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
