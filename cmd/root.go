package cmd

import (
	"fmt"
	"os"

	"github.com/resqcache/resq/cmd/cache"
	"github.com/resqcache/resq/cmd/serve"
	"github.com/resqcache/resq/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "resq",
		Short: "query-result cache server",
		Long: fmt.Sprintf(`resq (v%s)

A query-result cache with bounded fetch concurrency written in Go.
Results are fetched at most once per key, concurrent requests for the
same key share a single fetch and pending work is dispatched newest-first.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of resq",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("resq v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(cache.CacheCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
