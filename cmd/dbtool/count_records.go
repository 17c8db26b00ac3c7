package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/mmfile"
)

var countRecordsCmd = &cobra.Command{
	Use:   "count-records FILE RECORD_SIZE [OFFSET]",
	Short: "Print the number of records a record_allocator region holds (count_records)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordSize, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse record size: %w", err)
		}

		var offset int64
		if len(args) == 3 {
			offset, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("parse offset: %w", err)
			}
		}

		file, err := mmfile.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer file.Close()

		recs := alloc.NewRecordAllocator(file, offset, recordSize)
		if err := recs.Start(); err != nil {
			return fmt.Errorf("start allocator: %w", err)
		}
		fmt.Println(recs.Count())
		return nil
	},
}
