package database

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// ephemeralKeySize is a compressed secp256k1 public key.
const ephemeralKeySize = 33

// StealthRow is one entry in the stealth row file: a prefix of the
// scan-key hash, the transaction's ephemeral public key, the
// recipient's address hash, and the transaction that carries it
// (spec.md §3 "Stealth table").
type StealthRow struct {
	Prefix       uint32
	EphemeralKey [ephemeralKeySize]byte
	AddressHash  [ShortHashSize]byte
	TxHash       chainhash.Hash
}

// StealthTable is two record_allocators: a sequential row file
// (spec.md §3) and an index file mapping height to the first row index
// written at that height, establishing a height-sparse checkpoint into
// the row file so pop_above(h) can locate where to truncate back to.
type StealthTable struct {
	rows  *alloc.RecordAllocator
	index *alloc.RecordAllocator // one u32 row-index per height
}

const stealthIndexRecordSize = 4

// CreateStealthTable allocates fresh row and index files.
func CreateStealthTable(rowFile, indexFile *mmfile.File) (*StealthTable, error) {
	rows := alloc.NewRecordAllocator(rowFile, 0, stealthRowSize)
	if err := rows.Create(); err != nil {
		return nil, err
	}
	index := alloc.NewRecordAllocator(indexFile, 0, stealthIndexRecordSize)
	if err := index.Create(); err != nil {
		return nil, err
	}
	return &StealthTable{rows: rows, index: index}, nil
}

// OpenStealthTable binds to existing row and index files.
func OpenStealthTable(rowFile, indexFile *mmfile.File) (*StealthTable, error) {
	rows := alloc.NewRecordAllocator(rowFile, 0, stealthRowSize)
	if err := rows.Start(); err != nil {
		return nil, err
	}
	index := alloc.NewRecordAllocator(indexFile, 0, stealthIndexRecordSize)
	if err := index.Start(); err != nil {
		return nil, err
	}
	return &StealthTable{rows: rows, index: index}, nil
}

// AddressHash derives a stealth row's address-hash field from a
// recipient public key, using the same hash160 (sha256+ripemd160) every
// P2PKH address uses.
func AddressHash(pubKey []byte) [ShortHashSize]byte {
	var out [ShortHashSize]byte
	copy(out[:], btcutil.Hash160(pubKey))
	return out
}

// AppendRows appends rows sequentially to the row file for a block at
// height, recording the first new row's index in the index file at
// that height — "append stealth rows for any prefix-matching outputs"
// (spec.md §4.G push()).
func (t *StealthTable) AppendRows(height uint32, rows []StealthRow) error {
	if len(rows) == 0 {
		return nil
	}
	first := true
	for _, row := range rows {
		idx, err := t.rows.Allocate()
		if err != nil {
			return err
		}
		rec, err := t.rows.Get(idx)
		if err != nil {
			return err
		}
		encodeStealthRow(rec, row)
		if first {
			if err := t.recordHeightStart(height, idx); err != nil {
				return err
			}
			first = false
		}
	}
	return nil
}

func (t *StealthTable) recordHeightStart(height uint32, idx alloc.Index) error {
	for t.index.Count() <= height {
		hIdx, err := t.index.Allocate()
		if err != nil {
			return err
		}
		rec, err := t.index.Get(hIdx)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(rec, alloc.EmptyIndex)
	}
	rec, err := t.index.Get(height)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(rec, idx)
	return nil
}

// firstRowAtOrAbove returns the first-row-index recorded for the
// earliest height in [from, count) whose entry is not the "no rows at
// this height" sentinel — heights with no matching outputs are
// backfilled with alloc.EmptyIndex by recordHeightStart and must be
// skipped over, not treated as "no rows above here either".
func (t *StealthTable) firstRowAtOrAbove(from uint32) (alloc.Index, bool, error) {
	count := t.index.Count()
	for h := from; h < count; h++ {
		rec, err := t.index.Get(h)
		if err != nil {
			return 0, false, err
		}
		idx := binary.LittleEndian.Uint32(rec)
		if idx != alloc.EmptyIndex {
			return idx, true, nil
		}
	}
	return 0, false, nil
}

// RowsFromHeight returns every row from the checkpoint at height
// (inclusive) through the end of the row file, used by scans that
// start at a known height.
func (t *StealthTable) RowsFromHeight(height uint32) ([]StealthRow, error) {
	start, ok, err := t.firstRowAtOrAbove(height)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]StealthRow, 0, t.rows.Count()-start)
	for i := start; i < t.rows.Count(); i++ {
		rec, err := t.rows.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, decodeStealthRow(rec))
	}
	return out, nil
}

// PopAbove truncates the row file back to the checkpoint recorded for
// the first populated height above h, and the index file back to h+1
// entries — invariant 4's pop_above(h).
func (t *StealthTable) PopAbove(height uint32) error {
	cutIdx, ok, err := t.firstRowAtOrAbove(height + 1)
	if err != nil {
		return err
	}
	if ok {
		t.rows.Truncate(cutIdx)
	}
	if uint32(t.index.Count()) > height+1 {
		t.index.Truncate(height + 1)
	}
	return nil
}

// Truncate empties both the row and index files, the genesis-height
// edge case of PopAbove where there is no "height-1" to checkpoint
// against.
func (t *StealthTable) Truncate() error {
	t.rows.Truncate(0)
	t.index.Truncate(0)
	return nil
}

// Sync flushes both allocators' counters.
func (t *StealthTable) Sync() error {
	if err := t.rows.Sync(); err != nil {
		return err
	}
	return t.index.Sync()
}

func encodeStealthRow(v []byte, r StealthRow) {
	binary.LittleEndian.PutUint32(v[:4], r.Prefix)
	copy(v[4:4+ephemeralKeySize], r.EphemeralKey[:])
	copy(v[4+ephemeralKeySize:4+ephemeralKeySize+ShortHashSize], r.AddressHash[:])
	copy(v[4+ephemeralKeySize+ShortHashSize:], r.TxHash[:])
}

func decodeStealthRow(v []byte) StealthRow {
	var r StealthRow
	r.Prefix = binary.LittleEndian.Uint32(v[:4])
	copy(r.EphemeralKey[:], v[4:4+ephemeralKeySize])
	copy(r.AddressHash[:], v[4+ephemeralKeySize:4+ephemeralKeySize+ShortHashSize])
	copy(r.TxHash[:], v[4+ephemeralKeySize+ShortHashSize:])
	return r
}
