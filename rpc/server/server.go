package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/lib/cache/qcache"
	"github.com/resqcache/resq/lib/source"
	"github.com/resqcache/resq/lib/source/sqlsource"
	"github.com/resqcache/resq/rpc/common"
	"github.com/resqcache/resq/rpc/serializer"
	"github.com/resqcache/resq/rpc/transport"
)

var logger = common.GetLogger("rpc")

// serverCache is a struct that represents one served cache in the RPC server
// It contains the cache itself, the fetcher resolving its keys and the
// adapter that handles requests for the cache
type serverCache struct {
	Cache   cache.ICache[[]byte]
	Fetcher source.IFetcher
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// Create cache map
	cacheMap := xsync.NewMapOf[uint64, serverCache]()

	logger.Infof("Created RPC Server")
	logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		caches:     cacheMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	caches     *xsync.MapOf[uint64, serverCache]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(cacheID uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		// Get appropriate cache
		sc, ok := s.caches.Load(cacheID)

		// Case cache does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "cache not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *sc.Adapter.Handle(&msg, sc.Cache)
			}
		}

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			logger.Errorf("failed to serialize response: %s", err)
			return nil
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}

	// Configure the timeout for served Get requests
	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	// CREATE CACHES

	/*
		Note: A single RPC server can serve any number of caches, each with
		its own capacity, concurrency bound and backing source. The following
		loop creates all the caches and stores them for the RPC server.
	*/

	for _, cc := range s.config.Caches {
		fetcher, err := s.createFetcher(cc)
		if err != nil {
			return fmt.Errorf("failed to create source for cache %d (%s): %w", cc.CacheID, cc.Name, err)
		}

		c := qcache.New[[]byte](&qcache.Options{
			Capacity:      cc.Capacity,
			MaxConcurrent: cc.MaxConcurrent,
			MetricsName:   cc.Name,
		})

		// Forward the entry lifecycle events to the log
		go logCacheEvents(cc.Name, c.Events())

		s.caches.Store(cc.CacheID, serverCache{
			Cache:   c,
			Fetcher: fetcher,
			Adapter: NewICacheServerAdapter(fetcher, timeout),
		})
		logger.Infof("created cache %q (id %d, source %s)", cc.Name, cc.CacheID, cc.Source)
	}

	logger.Infof("cache setup completed successfully")

	// Start the metrics endpoint if configured
	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the caches and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// createFetcher builds the fetcher configured for a served cache
func (s *rpcServer) createFetcher(cc common.ServerCache) (source.IFetcher, error) {
	switch cc.Source {
	case common.SourceTypeEcho, "":
		return source.NewEchoFetcher(), nil
	case common.SourceTypeSQL:
		return sqlsource.New(&sqlsource.Options{DSN: cc.SQLDSN})
	default:
		return nil, fmt.Errorf("unknown source type: %s", cc.Source)
	}
}

// logCacheEvents consumes a cache's event stream and logs the transitions.
// The goroutine ends when the cache is closed (the channel closes).
func logCacheEvents(name string, events <-chan *qcache.Event) {
	for ev := range events {
		if ev.Err != "" {
			logger.Debugf("cache %q: %s %q (%s)", name, ev.Type, ev.Key, ev.Err)
		} else {
			logger.Debugf("cache %q: %s %q", name, ev.Type, ev.Key)
		}
	}
}

// serveMetrics exposes all cache counters in Prometheus text format
func (s *rpcServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	logger.Infof("Starting metrics server on %s", s.config.MetricsEndpoint)
	if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
		logger.Errorf("Metrics server failed: %v", err)
	}
}
