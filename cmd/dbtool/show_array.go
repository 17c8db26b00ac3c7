package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coinstack/blockchain/internal/diskarray"
	"github.com/coinstack/blockchain/internal/mmfile"
)

var showArrayCmd = &cobra.Command{
	Use:   "show-array FILE WIDTH [OFFSET]",
	Short: "Dump every cell of a disk_array (show_array)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		width, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("parse width: %w", err)
		}
		var w diskarray.Width
		switch width {
		case 4:
			w = diskarray.Width32
		case 8:
			w = diskarray.Width64
		default:
			return fmt.Errorf("unsupported value size %d (expected 4 or 8)", width)
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

		array, err := diskarray.Open(file, offset, w)
		if err != nil {
			return fmt.Errorf("open array: %w", err)
		}

		empty := diskarray.Empty(w)
		for i := uint64(0); i < array.Size(); i++ {
			val, err := array.Read(i)
			if err != nil {
				return fmt.Errorf("read cell %d: %w", i, err)
			}
			if val == empty {
				fmt.Printf("%d: \n", i)
				continue
			}
			fmt.Printf("%d: %d\n", i, val)
		}
		return nil
	},
}
