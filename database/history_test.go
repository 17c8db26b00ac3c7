package database

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestHistoryTableAddRowThenRows(t *testing.T) {
	headsFile, chainFile := openPair(t)
	tbl, err := CreateHistoryTable(headsFile, chainFile, 16)
	require.NoError(t, err)

	addr := make([]byte, ShortHashSize)
	addr[0] = 0x42

	require.False(t, tbl.HasHistory(addr))

	row := HistoryRow{
		Kind:   KindOutput,
		Point:  wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0},
		Height: 100,
		Value:  50000,
	}
	require.NoError(t, tbl.AddRow(addr, row))
	require.True(t, tbl.HasHistory(addr))

	rows, err := tbl.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, row, rows[0])
}

func TestHistoryTableRowsNewestFirst(t *testing.T) {
	headsFile, chainFile := openPair(t)
	tbl, err := CreateHistoryTable(headsFile, chainFile, 16)
	require.NoError(t, err)

	addr := make([]byte, ShortHashSize)
	addr[0] = 0x11

	out := HistoryRow{Kind: KindOutput, Point: wire.OutPoint{Hash: chainhash.Hash{2}, Index: 0}, Height: 10, Value: 1000}
	spend := HistoryRow{Kind: KindSpend, Point: wire.OutPoint{Hash: chainhash.Hash{3}, Index: 1}, Height: 20, Value: 1000}

	require.NoError(t, tbl.AddRow(addr, out))
	require.NoError(t, tbl.AddRow(addr, spend))

	rows, err := tbl.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, spend, rows[0])
	require.Equal(t, out, rows[1])
}

// pop_above(h) undoes the rows added after h via repeated
// DeleteLastRow; invariant 4 requires the remaining state equal a
// replay of [0..h].
func TestHistoryTableDeleteLastRowUndoesPush(t *testing.T) {
	headsFile, chainFile := openPair(t)
	tbl, err := CreateHistoryTable(headsFile, chainFile, 16)
	require.NoError(t, err)

	addr := make([]byte, ShortHashSize)
	addr[0] = 0x22

	first := HistoryRow{Kind: KindOutput, Point: wire.OutPoint{Hash: chainhash.Hash{4}, Index: 0}, Height: 1, Value: 500}
	second := HistoryRow{Kind: KindOutput, Point: wire.OutPoint{Hash: chainhash.Hash{5}, Index: 0}, Height: 2, Value: 700}

	require.NoError(t, tbl.AddRow(addr, first))
	require.NoError(t, tbl.AddRow(addr, second))
	require.NoError(t, tbl.DeleteLastRow(addr))

	rows, err := tbl.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, first, rows[0])
}
