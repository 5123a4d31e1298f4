package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	registerCmd = &cobra.Command{
		Use:   "register [key]",
		Short: "Registers a key without fetching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcCache.Register(key); err != nil {
				return err
			} else {
				fmt.Println("registered successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Fetches or serves the cached result for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			// The fetch runs server-side against the configured source
			if resp, err := rpcCache.Get(context.Background(), key, nil); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, resp=%s\n", key, resp)
			}
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found := rpcCache.Has(key)
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status [key]",
		Short: "Shows the lifecycle status of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			status, found := rpcCache.GetStatus(key)
			if !found {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			fmt.Printf("key=%s, status=%s\n", key, status)
			return nil
		},
	}
	cancelCmd = &cobra.Command{
		Use:   "cancel [key]",
		Short: "Cancels all waiters for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			rpcCache.Cancel(key)
			fmt.Println("cancelled successfully")
			return nil
		},
	}
	evictCmd = &cobra.Command{
		Use:   "evict [key]",
		Short: "Evicts a settled entry so the key can be fetched again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if ok := rpcCache.Evict(key); ok {
				fmt.Println("evicted successfully")
			} else {
				fmt.Println("not evicted (entry missing or still active)")
			}
			return nil
		},
	}
	lenCmd = &cobra.Command{
		Use:   "len",
		Short: "Prints the number of entries in the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("entries=%d\n", rpcCache.Len())
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all entries from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rpcCache.Clear()
			fmt.Println("cleared successfully")
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints the cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := rpcCache.Stats()
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
