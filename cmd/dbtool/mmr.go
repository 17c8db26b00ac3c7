package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/database"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// openHistoryAddress parses an ShortHashSize-byte address hex string.
func openHistoryAddress(hexAddr string) ([]byte, error) {
	addr, err := hex.DecodeString(hexAddr)
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	if len(addr) != database.ShortHashSize {
		return nil, fmt.Errorf("address must be %d bytes, got %d", database.ShortHashSize, len(addr))
	}
	return addr, nil
}

func openHistoryFiles(headsPath, chainPath string) (*mmfile.File, *mmfile.File, error) {
	heads, err := mmfile.Open(headsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", headsPath, err)
	}
	chain, err := mmfile.Open(chainPath)
	if err != nil {
		heads.Close()
		return nil, nil, fmt.Errorf("open %s: %w", chainPath, err)
	}
	return heads, chain, nil
}

var mmrCreateCmd = &cobra.Command{
	Use:   "mmr-create HEADS_FILE CHAIN_FILE BUCKETS",
	Short: "Initialize a fresh history chain pair of files (mmr_create)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse buckets: %w", err)
		}
		heads, chainFile, err := openHistoryFiles(args[0], args[1])
		if err != nil {
			return err
		}
		defer heads.Close()
		defer chainFile.Close()

		if _, err := database.CreateHistoryTable(heads, chainFile, buckets); err != nil {
			return fmt.Errorf("create history table: %w", err)
		}
		return nil
	},
}

var mmrAddRowCmd = &cobra.Command{
	Use:   "mmr-add-row HEADS_FILE CHAIN_FILE BUCKETS ADDRESS_HEX KIND TX_HASH_HEX INDEX HEIGHT VALUE",
	Short: "Append a row to an address's history chain (mmr_add_row)",
	Args:  cobra.ExactArgs(9),
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse buckets: %w", err)
		}
		addr, err := openHistoryAddress(args[3])
		if err != nil {
			return err
		}

		var kind database.RowKind
		switch args[4] {
		case "output":
			kind = database.KindOutput
		case "spend":
			kind = database.KindSpend
		default:
			return fmt.Errorf("kind must be \"output\" or \"spend\", got %q", args[4])
		}

		txHash, err := chainhash.NewHashFromStr(args[5])
		if err != nil {
			return fmt.Errorf("parse tx hash: %w", err)
		}
		index, err := strconv.ParseUint(args[6], 10, 32)
		if err != nil {
			return fmt.Errorf("parse index: %w", err)
		}
		height, err := strconv.ParseUint(args[7], 10, 32)
		if err != nil {
			return fmt.Errorf("parse height: %w", err)
		}
		value, err := strconv.ParseUint(args[8], 10, 64)
		if err != nil {
			return fmt.Errorf("parse value: %w", err)
		}

		heads, chainFile, err := openHistoryFiles(args[0], args[1])
		if err != nil {
			return err
		}
		defer heads.Close()
		defer chainFile.Close()

		table, err := database.OpenHistoryTable(heads, chainFile, buckets)
		if err != nil {
			return fmt.Errorf("open history table: %w", err)
		}

		row := database.HistoryRow{
			Kind:   kind,
			Point:  wire.OutPoint{Hash: *txHash, Index: uint32(index)},
			Height: uint32(height),
			Value:  value,
		}
		if err := table.AddRow(addr, row); err != nil {
			return fmt.Errorf("add row: %w", err)
		}
		return table.Sync()
	},
}

var mmrDeleteLastRowCmd = &cobra.Command{
	Use:   "mmr-delete-last-row HEADS_FILE CHAIN_FILE BUCKETS ADDRESS_HEX",
	Short: "Undo the most recent AddRow for an address (mmr_delete_last_row)",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse buckets: %w", err)
		}
		addr, err := openHistoryAddress(args[3])
		if err != nil {
			return err
		}

		heads, chainFile, err := openHistoryFiles(args[0], args[1])
		if err != nil {
			return err
		}
		defer heads.Close()
		defer chainFile.Close()

		table, err := database.OpenHistoryTable(heads, chainFile, buckets)
		if err != nil {
			return fmt.Errorf("open history table: %w", err)
		}
		if err := table.DeleteLastRow(addr); err != nil {
			return fmt.Errorf("delete last row: %w", err)
		}
		return table.Sync()
	},
}
