package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
)

var readHtdbRecordCmd = &cobra.Command{
	Use:   "read-htdb-record FILE KEY_HEX KEY_SIZE VALUE_SIZE [HEADER_OFFSET] [RECORD_OFFSET]",
	Short: "Look up a key in an htdb_record table (read_htdb_record_value)",
	Args:  cobra.RangeArgs(4, 6),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := hex.DecodeString(args[1])
		if err != nil {
			return fmt.Errorf("parse key: %w", err)
		}
		keySize, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("parse key size: %w", err)
		}
		valSize, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("parse value size: %w", err)
		}
		var headerOffset, recordOffset int64
		if len(args) >= 5 {
			if headerOffset, err = strconv.ParseInt(args[4], 10, 64); err != nil {
				return fmt.Errorf("parse header offset: %w", err)
			}
		}
		if len(args) == 6 {
			if recordOffset, err = strconv.ParseInt(args[5], 10, 64); err != nil {
				return fmt.Errorf("parse record offset: %w", err)
			}
		}

		file, err := mmfile.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer file.Close()

		table, err := htdb.OpenRecordTable(file, headerOffset, recordOffset, keySize, valSize)
		if err != nil {
			return fmt.Errorf("open record table: %w", err)
		}

		value, err := table.Get(key)
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
