package cache

import (
	cachelib "github.com/resqcache/resq/lib/cache"
	"github.com/resqcache/resq/cmd/util"
	"github.com/resqcache/resq/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcCache cachelib.ICache[[]byte]

	// CacheCommands represents the cache command group
	CacheCommands = &cobra.Command{
		Use:               "cache",
		Short:             "Perform query cache operations",
		PersistentPreRunE: setupCacheClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the cache command
	util.SetupRPCClientFlags(CacheCommands)

	// Set default cache ID
	CacheCommands.PersistentFlags().Int("cache", 100, util.WrapString("ID of the cache to connect to"))

	// Add subcommands
	CacheCommands.AddCommand(registerCmd)
	CacheCommands.AddCommand(getCmd)
	CacheCommands.AddCommand(hasCmd)
	CacheCommands.AddCommand(statusCmd)
	CacheCommands.AddCommand(cancelCmd)
	CacheCommands.AddCommand(evictCmd)
	CacheCommands.AddCommand(lenCmd)
	CacheCommands.AddCommand(clearCmd)
	CacheCommands.AddCommand(statsCmd)
	CacheCommands.AddCommand(perfTestCmd)
}

// setupCacheClient initializes the RPC cache client
func setupCacheClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	cacheID := util.GetCacheID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the cache client
	rpcCache, err = client.NewRPCCache(
		cacheID,
		*config,
		t,
		s,
	)

	return err
}
