// Command dbtool is a grab-bag of low-level inspection and repair
// utilities over the engine's on-disk structures, the Go counterpart of
// original_source/tools' show_array, count_records,
// read_htdb_record_value, read_htdb_slab_value, show_hsdb_settings and
// the mmr_* family (spec.md §6 "Process interface"). Each subcommand
// opens exactly the files it needs directly, the same raw-file
// granularity the original tools operate at, rather than going through
// store.Store's higher-level push/pop cycle.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/log"
)

var rootCmd = &cobra.Command{
	Use:   "dbtool",
	Short: "Low-level inspection and repair utilities for the blockchain store's on-disk tables",
}

func init() {
	rootCmd.AddCommand(showArrayCmd)
	rootCmd.AddCommand(countRecordsCmd)
	rootCmd.AddCommand(readHtdbRecordCmd)
	rootCmd.AddCommand(readHtdbSlabCmd)
	rootCmd.AddCommand(showHSDBSettingsCmd)
	rootCmd.AddCommand(mmrCreateCmd)
	rootCmd.AddCommand(mmrAddRowCmd)
	rootCmd.AddCommand(mmrDeleteLastRowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
