package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
)

var readHtdbSlabCmd = &cobra.Command{
	Use:   "read-htdb-slab FILE KEY_HEX BUCKET_COUNT KEY_SIZE VALUE_SIZE [HEADER_OFFSET] [SLAB_OFFSET]",
	Short: "Look up a key in an htdb_slab table (read_htdb_slab_value)",
	Args:  cobra.RangeArgs(5, 7),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("parse key: %w", err)
		}
		bucketCount, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("parse bucket count: %w", err)
		}
		keySize, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("parse key size: %w", err)
		}
		valSize, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return fmt.Errorf("parse value size: %w", err)
		}
		var headerOffset, slabOffset int64
		if len(args) >= 6 {
			if headerOffset, err = strconv.ParseInt(args[5], 10, 64); err != nil {
				return fmt.Errorf("parse header offset: %w", err)
			}
		}
		if len(args) == 7 {
			if slabOffset, err = strconv.ParseInt(args[6], 10, 64); err != nil {
				return fmt.Errorf("parse slab offset: %w", err)
			}
		}

		file, err := mmfile.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer file.Close()

		table, err := htdb.OpenSlabTable(file, headerOffset, slabOffset, bucketCount, keySize)
		if err != nil {
			return fmt.Errorf("open slab table: %w", err)
		}

		value, err := table.Get(key, valSize)
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		if value == nil {
			return fmt.Errorf("key not found")
		}
		fmt.Println(hex.EncodeToString(value))
		return nil
	},
}
