// Command initchain creates a fresh on-disk store and seeds it with
// the network genesis block, the Go counterpart of
// original_source/tools/initchain (spec.md §6 "Process interface":
// data_base::create, then push(genesis)).
package main

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/log"
	"github.com/coinstack/blockchain/store"
)

var (
	maxHeights uint64
	testnet    bool
)

var rootCmd = &cobra.Command{
	Use:   "initchain DIRECTORY",
	Short: "Create a new blockchain store and push the genesis block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return initChain(args[0])
	},
}

func init() {
	rootCmd.Flags().Uint64Var(&maxHeights, "max-heights", 0, "block table height index capacity (0 uses the store default)")
	rootCmd.Flags().BoolVar(&testnet, "testnet", false, "seed the testnet3 genesis block instead of mainnet")
}

func initChain(dir string) error {
	settings := chain.Default()

	s, err := store.Create(dir, settings, maxHeights)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	params := &chaincfg.MainNetParams
	if testnet {
		params = &chaincfg.TestNet3Params
	}

	if err := s.Push(params.GenesisBlock, 0); err != nil {
		return fmt.Errorf("push genesis block: %w", err)
	}

	log.Info("initialized chain", "dir", dir, "genesis", params.GenesisHash.String())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
