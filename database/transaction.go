package database

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// TxEntry is the transaction table's stored row: the height and
// in-block position of the transaction, plus its wire serialization
// (spec.md §3 "Transaction table").
type TxEntry struct {
	Height       uint32
	IndexInBlock uint32
	Tx           wire.MsgTx
}

// txEntryPrefixSize is height(4) + index-in-block(4) + encoded-length(4),
// a fixed-offset prefix present in every slab regardless of the
// serialized transaction's own (variable) size.
const txEntryPrefixSize = 4 + 4 + 4

func (e *TxEntry) encodedSize() int64 {
	return int64(txEntryPrefixSize) + int64(e.Tx.SerializeSize())
}

// TxTable is htdb_slab<hash32> keyed by transaction hash. A
// transaction entry shares the lifecycle of its containing block
// (spec.md "Lifecycles"): it is stored alongside the block that
// confirms it and removed only by that block's pop().
type TxTable struct {
	slabs *htdb.SlabTable
}

// CreateTxTable allocates a fresh transaction table.
func CreateTxTable(file *mmfile.File, headerOffset, slabOffset int64, buckets uint64) (*TxTable, error) {
	slabs, err := htdb.CreateSlabTable(file, headerOffset, slabOffset, buckets, HashSize)
	if err != nil {
		return nil, err
	}
	return &TxTable{slabs: slabs}, nil
}

// OpenTxTable binds to an existing transaction table.
func OpenTxTable(file *mmfile.File, headerOffset, slabOffset int64, buckets uint64) (*TxTable, error) {
	slabs, err := htdb.OpenSlabTable(file, headerOffset, slabOffset, buckets, HashSize)
	if err != nil {
		return nil, err
	}
	return &TxTable{slabs: slabs}, nil
}

// Store inserts entry keyed by hash.
func (t *TxTable) Store(hash chainhash.Hash, entry *TxEntry) error {
	_, err := t.slabs.Store(hash[:], entry.encodedSize(), func(v []byte) {
		encodeTxEntry(v, entry)
	})
	return err
}

// Fetch returns the entry stored under hash, reading the fixed-size
// prefix first to learn the serialized transaction's length before the
// full variable-size read, the same two-phase pattern as
// BlockTable.Fetch.
func (t *TxTable) Fetch(hash chainhash.Hash) (*TxEntry, error) {
	prefix, err := t.slabs.Get(hash[:], txEntryPrefixSize)
	if err != nil || prefix == nil {
		return nil, err
	}
	txLen := binary.LittleEndian.Uint32(prefix[8:12])
	full, err := t.slabs.Get(hash[:], int64(txEntryPrefixSize)+int64(txLen))
	if err != nil {
		return nil, err
	}
	var probe wire.MsgTx
	r := bytes.NewReader(full[txEntryPrefixSize:])
	if err := probe.Deserialize(r); err != nil {
		return nil, chain.New("TxTable.Fetch", chain.KindCorruption, err)
	}
	return &TxEntry{
		Height:       binary.LittleEndian.Uint32(full[:4]),
		IndexInBlock: binary.LittleEndian.Uint32(full[4:8]),
		Tx:           probe,
	}, nil
}

// Exists reports whether hash is present in the table, per
// populate_transaction's in-pool/confirmed duplicate check (spec.md §4.H).
func (t *TxTable) Exists(hash chainhash.Hash) (bool, error) {
	v, err := t.slabs.Get(hash[:], txEntryPrefixSize)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Remove tombstones hash's entry, used when a block is popped.
func (t *TxTable) Remove(hash chainhash.Hash, entry *TxEntry) error {
	return t.slabs.Remove(hash[:], entry.encodedSize())
}

// Sync flushes the slab allocator's end pointer.
func (t *TxTable) Sync() error { return t.slabs.Sync() }

func encodeTxEntry(v []byte, e *TxEntry) {
	var buf bytes.Buffer
	_ = e.Tx.Serialize(&buf)
	binary.LittleEndian.PutUint32(v[:4], e.Height)
	binary.LittleEndian.PutUint32(v[4:8], e.IndexInBlock)
	binary.LittleEndian.PutUint32(v[8:12], uint32(buf.Len()))
	copy(v[txEntryPrefixSize:], buf.Bytes())
}
