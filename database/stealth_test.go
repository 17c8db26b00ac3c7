package database

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func sampleStealthRow(n byte) StealthRow {
	var row StealthRow
	row.Prefix = uint32(n)
	row.EphemeralKey[0] = n
	row.AddressHash[0] = n
	row.TxHash = chainhash.Hash{n}
	return row
}

func TestStealthTableAppendAndRowsFromHeight(t *testing.T) {
	rowFile, indexFile := openPair(t)
	tbl, err := CreateStealthTable(rowFile, indexFile)
	require.NoError(t, err)

	require.NoError(t, tbl.AppendRows(1, []StealthRow{sampleStealthRow(1), sampleStealthRow(2)}))
	require.NoError(t, tbl.AppendRows(2, []StealthRow{sampleStealthRow(3)}))

	rows, err := tbl.RowsFromHeight(1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, byte(1), rows[0].EphemeralKey[0])
	require.Equal(t, byte(3), rows[2].EphemeralKey[0])

	rows2, err := tbl.RowsFromHeight(2)
	require.NoError(t, err)
	require.Len(t, rows2, 1)
	require.Equal(t, byte(3), rows2[0].EphemeralKey[0])
}

// A height with no matching outputs leaves a gap in the index; a scan
// starting at that height must still find rows recorded at a later
// height, not treat the gap as "nothing follows".
func TestStealthTableSkipsEmptyHeightsWhenScanning(t *testing.T) {
	rowFile, indexFile := openPair(t)
	tbl, err := CreateStealthTable(rowFile, indexFile)
	require.NoError(t, err)

	require.NoError(t, tbl.AppendRows(0, []StealthRow{sampleStealthRow(9)}))
	// heights 1 and 2 have no stealth rows at all.
	require.NoError(t, tbl.AppendRows(3, []StealthRow{sampleStealthRow(10)}))

	rows, err := tbl.RowsFromHeight(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, byte(10), rows[0].EphemeralKey[0])
}

func TestStealthTablePopAboveTruncatesRows(t *testing.T) {
	rowFile, indexFile := openPair(t)
	tbl, err := CreateStealthTable(rowFile, indexFile)
	require.NoError(t, err)

	require.NoError(t, tbl.AppendRows(0, []StealthRow{sampleStealthRow(1)}))
	require.NoError(t, tbl.AppendRows(1, []StealthRow{sampleStealthRow(2)}))
	require.NoError(t, tbl.AppendRows(2, []StealthRow{sampleStealthRow(3)}))

	require.NoError(t, tbl.PopAbove(0))

	rows, err := tbl.RowsFromHeight(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, byte(1), rows[0].EphemeralKey[0])
}

// pop_above skipping over a gap height must still find the correct
// truncation point at the next populated height.
func TestStealthTablePopAboveSkipsEmptyHeights(t *testing.T) {
	rowFile, indexFile := openPair(t)
	tbl, err := CreateStealthTable(rowFile, indexFile)
	require.NoError(t, err)

	require.NoError(t, tbl.AppendRows(0, []StealthRow{sampleStealthRow(1)}))
	// height 1 has no rows.
	require.NoError(t, tbl.AppendRows(2, []StealthRow{sampleStealthRow(2)}))

	require.NoError(t, tbl.PopAbove(0))

	rows, err := tbl.RowsFromHeight(0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, byte(1), rows[0].EphemeralKey[0])
}
