package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/chain"
)

// showHSDBSettingsCmd prints the shard geometry a node would configure
// its history-scan database with, the Go counterpart of
// show_hsdb_settings.cpp. The original reads a persisted header out of
// a live shard file; this engine's HSDB settings are process
// configuration rather than an on-disk record, so this prints the
// configured chain.HSDBSettings defaults instead of parsing a file.
var showHSDBSettingsCmd = &cobra.Command{
	Use:   "show-hsdb-settings",
	Short: "Print the configured HSDB shard geometry (show_hsdb_settings)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := chain.Default().Database.HSDB
		fmt.Printf("enabled: %t\n", s.Enabled)
		fmt.Printf("sharded_bitsize: %d\n", s.ShardedBitsize)
		fmt.Printf("bucket_bitsize: %d\n", s.BucketBitsize)
		fmt.Printf("total_key_size: %d\n", s.TotalKeySize)
		fmt.Printf("row_value_size: %d\n", s.RowValueSize)
		fmt.Printf("shard_max_entries: %d\n", s.ShardMaxEntries)
		return nil
	},
}
