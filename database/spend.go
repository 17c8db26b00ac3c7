package database

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// Spender identifies the transaction input that spent an output
// (spec.md §3 "Spend table").
type Spender struct {
	Hash  [HashSize]byte
	Index uint32
}

// SpendTable is htdb_record<outpoint> keyed by (prevout hash, prevout
// index) -> spender. One record per spent output; absence means
// unspent (invariant 2, spec.md §3).
type SpendTable struct {
	records *htdb.RecordTable
}

// CreateSpendTable allocates a fresh spend table.
func CreateSpendTable(file *mmfile.File, headerOffset, recordOffset int64, buckets uint64) (*SpendTable, error) {
	records, err := htdb.CreateRecordTable(file, headerOffset, recordOffset, buckets, outpointSize, spendValueSize)
	if err != nil {
		return nil, err
	}
	return &SpendTable{records: records}, nil
}

// OpenSpendTable binds to an existing spend table.
func OpenSpendTable(file *mmfile.File, headerOffset, recordOffset int64) (*SpendTable, error) {
	records, err := htdb.OpenRecordTable(file, headerOffset, recordOffset, outpointSize, spendValueSize)
	if err != nil {
		return nil, err
	}
	return &SpendTable{records: records}, nil
}

func encodeOutpoint(op wire.OutPoint) []byte {
	b := make([]byte, outpointSize)
	copy(b[:HashSize], op.Hash[:])
	binary.LittleEndian.PutUint32(b[HashSize:], op.Index)
	return b
}

// Store records that outpoint was spent by spender, per push()'s
// "store (spender, input-index) into spend table for each input's
// outpoint" (spec.md §4.G).
func (t *SpendTable) Store(outpoint wire.OutPoint, spender Spender) error {
	key := encodeOutpoint(outpoint)
	_, err := t.records.Store(key, func(v []byte) {
		copy(v[:HashSize], spender.Hash[:])
		binary.LittleEndian.PutUint32(v[HashSize:], spender.Index)
	})
	return err
}

// Fetch returns the spender of outpoint, or (Spender{}, false) if
// unspent.
func (t *SpendTable) Fetch(outpoint wire.OutPoint) (Spender, bool, error) {
	key := encodeOutpoint(outpoint)
	v, err := t.records.Get(key)
	if err != nil || v == nil {
		return Spender{}, false, err
	}
	var s Spender
	copy(s.Hash[:], v[:HashSize])
	s.Index = binary.LittleEndian.Uint32(v[HashSize:])
	return s, true, nil
}

// Remove undoes Store for outpoint, per pop()'s "symmetric and
// reverse" table-level treatment (spec.md §4.G); callers must invoke
// this in the exact reverse order of the Store calls made by the block
// being popped.
func (t *SpendTable) Remove(outpoint wire.OutPoint) error {
	return t.records.Unlink(encodeOutpoint(outpoint))
}

// Sync flushes the record allocator's counter.
func (t *SpendTable) Sync() error { return t.records.Sync() }
