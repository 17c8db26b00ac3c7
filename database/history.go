package database

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/linkedrecords"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// RowKind distinguishes a history row's two shapes (spec.md §3 "History
// table").
type RowKind uint8

const (
	// KindOutput rows record an output paying the keyed address:
	// Point is the output's own point, Value is its satoshi amount.
	KindOutput RowKind = 0
	// KindSpend rows record an input spending a previously indexed
	// output of the keyed address: Point is the spending input's own
	// point (spender tx hash, input index); Value carries over the
	// spent output's original amount so a wallet can compute balance
	// deltas from the spend row alone, without a second output lookup.
	KindSpend RowKind = 1
)

// HistoryRow is one entry in an address's history chain.
type HistoryRow struct {
	Kind   RowKind
	Point  wire.OutPoint
	Height uint32
	Value  uint64
}

// HistoryTable is multimap_records<address_bitset> (spec.md §3, §4.D):
// per-address chains of output/spend rows, plus a roaring-bitmap
// existence index keyed by the first four bytes of the address hash so
// "does this address prefix have any history at all" never has to walk
// a chain (grounded on ethdb/bitmapdb's sharded reverse-index use,
// generalized from block-height sets to an address-seen set).
type HistoryTable struct {
	rows *linkedrecords.Multimap
	seen *roaring.Bitmap
}

// CreateHistoryTable allocates a fresh history table. headsFile holds
// the address->chain-head RecordTable (its bucket array, then its own
// record area); chainFile holds the per-address row chains. These must
// be separate files, not two offsets in one: both the heads record
// area and the chain record area grow without bound, and two unboundedly
// growing regions sharing a file will eventually collide regardless of
// their starting offsets.
func CreateHistoryTable(headsFile, chainFile *mmfile.File, buckets uint64) (*HistoryTable, error) {
	headsRecordOffset := htdb.RecordHeaderFootprint(buckets)
	heads, err := htdb.CreateRecordTable(headsFile, 0, headsRecordOffset, buckets, ShortHashSize, 4)
	if err != nil {
		return nil, err
	}
	records := alloc.NewRecordAllocator(chainFile, 0, linkedrecords.RecordSize(historyRowSize))
	if err := records.Create(); err != nil {
		return nil, err
	}
	chain := linkedrecords.New(records, historyRowSize)
	return &HistoryTable{rows: linkedrecords.NewMultimap(heads, chain), seen: roaring.New()}, nil
}

// OpenHistoryTable binds to an existing history table. The roaring
// existence index is rebuilt from scratch (it is a derived, in-memory
// acceleration structure, not part of the on-disk format) by the
// caller replaying addresses through MarkSeen as it loads state.
func OpenHistoryTable(headsFile, chainFile *mmfile.File, buckets uint64) (*HistoryTable, error) {
	headsRecordOffset := htdb.RecordHeaderFootprint(buckets)
	heads, err := htdb.OpenRecordTable(headsFile, 0, headsRecordOffset, ShortHashSize, 4)
	if err != nil {
		return nil, err
	}
	records := alloc.NewRecordAllocator(chainFile, 0, linkedrecords.RecordSize(historyRowSize))
	if err := records.Start(); err != nil {
		return nil, err
	}
	chain := linkedrecords.New(records, historyRowSize)
	return &HistoryTable{rows: linkedrecords.NewMultimap(heads, chain), seen: roaring.New()}, nil
}

func addressSeenKey(addr []byte) uint32 {
	var pad [4]byte
	copy(pad[:], addr)
	return binary.BigEndian.Uint32(pad[:])
}

// MarkSeen records address in the roaring existence index without
// appending a row, used to rebuild the index from an on-disk scan after
// OpenHistoryTable.
func (t *HistoryTable) MarkSeen(address []byte) {
	t.seen.Add(addressSeenKey(address))
}

// AddRow appends row to address's chain, per push()'s "append history
// rows for each input (spend kind) and each output (output kind)"
// (spec.md §4.G).
func (t *HistoryTable) AddRow(address []byte, row HistoryRow) error {
	_, err := t.rows.AddRow(address, func(payload []byte) { encodeHistoryRow(payload, row) })
	if err != nil {
		return err
	}
	t.seen.Add(addressSeenKey(address))
	return nil
}

// HasHistory reports whether address has ever been indexed, using the
// roaring existence index rather than a chain walk.
func (t *HistoryTable) HasHistory(address []byte) bool {
	return t.seen.Contains(addressSeenKey(address))
}

// Rows returns address's full history, newest first (spec.md §4.D
// "iterate").
func (t *HistoryTable) Rows(address []byte) ([]HistoryRow, error) {
	payloads, err := t.rows.Iterate(address)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryRow, len(payloads))
	for i, p := range payloads {
		out[i] = decodeHistoryRow(p)
	}
	return out, nil
}

// DeleteLastRow undoes the most recent AddRow for address, per pop()'s
// symmetric treatment of history entries (spec.md §4.G, invariant 4).
// The roaring existence bit is intentionally left set even if this
// drains the chain to empty: invariant 4 only requires state equal to a
// replay from genesis, and a stale "seen" bit only costs a wasted chain
// walk on the next HasHistory-gated read, never a false negative.
func (t *HistoryTable) DeleteLastRow(address []byte) error {
	return t.rows.DeleteLastRow(address)
}

// Sync flushes the heads table's and the chain's allocator counters.
func (t *HistoryTable) Sync() error { return t.rows.Sync() }

func encodeHistoryRow(v []byte, r HistoryRow) {
	v[0] = byte(r.Kind)
	copy(v[1:1+HashSize], r.Point.Hash[:])
	binary.LittleEndian.PutUint32(v[1+HashSize:1+HashSize+4], r.Point.Index)
	binary.LittleEndian.PutUint32(v[1+outpointSize:1+outpointSize+4], r.Height)
	binary.LittleEndian.PutUint64(v[1+outpointSize+4:1+outpointSize+4+8], r.Value)
}

func decodeHistoryRow(v []byte) HistoryRow {
	var r HistoryRow
	r.Kind = RowKind(v[0])
	copy(r.Point.Hash[:], v[1:1+HashSize])
	r.Point.Index = binary.LittleEndian.Uint32(v[1+HashSize : 1+HashSize+4])
	r.Height = binary.LittleEndian.Uint32(v[1+outpointSize : 1+outpointSize+4])
	r.Value = binary.LittleEndian.Uint64(v[1+outpointSize+4 : 1+outpointSize+4+8])
	return r
}
