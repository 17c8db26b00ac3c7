package database

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/diskarray"
	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
)

const wireHeaderSize = 80 // version(4)+prevblock(32)+merkleroot(32)+timestamp(4)+bits(4)+nonce(4)

// BlockEntry is the block table's stored row: a header plus the height
// and ordered list of transaction hashes it contains (spec.md §3).
type BlockEntry struct {
	Header  wire.BlockHeader
	Height  uint32
	TxHashes []chainhash.Hash
}

func (e *BlockEntry) encodedSize() int64 {
	return int64(wireHeaderSize + 4 + 4 + len(e.TxHashes)*chainhash.HashSize)
}

// BlockTable is htdb_slab<hash32> keyed by block hash, plus a secondary
// disk_array<u32,position> mapping height -> slab offset (spec.md §3
// "Block table").
type BlockTable struct {
	file  *mmfile.File
	slabs *htdb.SlabTable
	index *diskarray.Array

	maxHeight uint32 // highest populated height + 1, 0 if empty
	hasAny    bool
}

// CreateBlockTable allocates fresh block and block-index files.
func CreateBlockTable(blockFile, indexFile *mmfile.File, buckets uint64, maxHeights uint64) (*BlockTable, error) {
	slabOffset := htdb.SlabHeaderFootprint(buckets)
	slabs, err := htdb.CreateSlabTable(blockFile, 0, slabOffset, buckets, HashSize)
	if err != nil {
		return nil, err
	}
	index, err := diskarray.Create(indexFile, 0, maxHeights, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	return &BlockTable{file: blockFile, slabs: slabs, index: index}, nil
}

// OpenBlockTable binds to existing block and block-index files.
func OpenBlockTable(blockFile, indexFile *mmfile.File, buckets uint64) (*BlockTable, error) {
	slabOffset := htdb.SlabHeaderFootprint(buckets)
	slabs, err := htdb.OpenSlabTable(blockFile, 0, slabOffset, buckets, HashSize)
	if err != nil {
		return nil, err
	}
	index, err := diskarray.Open(indexFile, 0, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	t := &BlockTable{file: blockFile, slabs: slabs, index: index}
	t.recomputeTopHeight()
	return t, nil
}

func (t *BlockTable) recomputeTopHeight() {
	empty := diskarray.Empty(diskarray.Width64)
	for h := t.index.Size(); h > 0; h-- {
		v, err := t.index.Read(h - 1)
		if err == nil && v != empty {
			t.maxHeight = uint32(h)
			t.hasAny = true
			return
		}
	}
	t.hasAny = false
}

// Store inserts entry keyed by hash and records it at entry.Height in
// the block index, per invariant 1 (spec.md §3).
func (t *BlockTable) Store(hash chainhash.Hash, entry *BlockEntry) error {
	size := entry.encodedSize()
	pos, err := t.slabs.Store(hash[:], size, func(v []byte) { encodeBlockEntry(v, entry) })
	if err != nil {
		return err
	}
	if uint64(entry.Height) >= t.index.Size() {
		return chain.New("BlockTable.Store", chain.KindCorruption, nil)
	}
	if err := t.index.Write(uint64(entry.Height), uint64(pos)); err != nil {
		return err
	}
	if entry.Height+1 > t.maxHeight || !t.hasAny {
		t.maxHeight = entry.Height + 1
		t.hasAny = true
	}
	return nil
}

// Fetch returns the entry stored under hash.
func (t *BlockTable) Fetch(hash chainhash.Hash) (*BlockEntry, error) {
	// value size is not known up front for a variable tx list; probe by
	// reading the fixed prefix first, then the full size.
	prefix, err := t.slabs.Get(hash[:], wireHeaderSize+4+4)
	if err != nil || prefix == nil {
		return nil, err
	}
	txCount := binary.LittleEndian.Uint32(prefix[wireHeaderSize+4:])
	full, err := t.slabs.Get(hash[:], int64(wireHeaderSize+4+4)+int64(txCount)*chainhash.HashSize)
	if err != nil {
		return nil, err
	}
	return decodeBlockEntry(full)
}

// FetchByHeight resolves height through the block index directly to a
// slab position, reading the entry (and its key, the block hash) from
// there without a second bucket-chain walk.
func (t *BlockTable) FetchByHeight(height uint32) (chainhash.Hash, *BlockEntry, bool, error) {
	pos, ok, err := t.PositionAt(height)
	if err != nil || !ok {
		return chainhash.Hash{}, nil, false, err
	}
	_, prefix, err := t.slabs.GetAt(pos, wireHeaderSize+4+4)
	if err != nil {
		return chainhash.Hash{}, nil, false, err
	}
	txCount := binary.LittleEndian.Uint32(prefix[wireHeaderSize+4:])
	key, full, err := t.slabs.GetAt(pos, int64(wireHeaderSize+4+4)+int64(txCount)*chainhash.HashSize)
	if err != nil {
		return chainhash.Hash{}, nil, false, err
	}
	entry, err := decodeBlockEntry(full)
	if err != nil {
		return chainhash.Hash{}, nil, false, err
	}
	var hash chainhash.Hash
	copy(hash[:], key)
	return hash, entry, true, nil
}

// PositionAt resolves height to the slab position of its block entry,
// or ok=false if height has no entry (a hole or past the index's end).
func (t *BlockTable) PositionAt(height uint32) (alloc.Position, bool, error) {
	if uint64(height) >= t.index.Size() {
		return 0, false, nil
	}
	v, err := t.index.Read(uint64(height))
	if err != nil {
		return 0, false, err
	}
	empty := diskarray.Empty(diskarray.Width64)
	if v == empty {
		return 0, false, nil
	}
	return alloc.Position(v), true, nil
}

// TopHeight returns the largest populated height, per spec.md §3
// "top_height()".
func (t *BlockTable) TopHeight() (uint32, bool) {
	if !t.hasAny {
		return 0, false
	}
	return t.maxHeight - 1, true
}

// MarkHole records an intentional gap at height (invariant 1's "hole"
// sentinel), used by pop() to leave a tombstone rather than physically
// truncate the index array.
func (t *BlockTable) MarkHole(height uint32) error {
	return t.index.Write(uint64(height), diskarray.Empty(diskarray.Width64))
}

// Remove tombstones hash's slab entry and marks its height a hole, the
// symmetric undo of Store used by pop() (spec.md §4.G).
func (t *BlockTable) Remove(hash chainhash.Hash, entry *BlockEntry) error {
	if err := t.slabs.Remove(hash[:], entry.encodedSize()); err != nil {
		return err
	}
	if err := t.MarkHole(entry.Height); err != nil {
		return err
	}
	if entry.Height+1 == t.maxHeight {
		t.maxHeight = entry.Height
		t.hasAny = entry.Height > 0
	}
	return nil
}

// Sync flushes the slab allocator counters (block table only — the
// index disk_array is written in place on every Store).
func (t *BlockTable) Sync() error { return t.slabs.Sync() }

func encodeBlockEntry(v []byte, e *BlockEntry) {
	var buf bytes.Buffer
	_ = e.Header.Serialize(&buf)
	copy(v[:wireHeaderSize], buf.Bytes())
	binary.LittleEndian.PutUint32(v[wireHeaderSize:], e.Height)
	binary.LittleEndian.PutUint32(v[wireHeaderSize+4:], uint32(len(e.TxHashes)))
	for i, h := range e.TxHashes {
		copy(v[wireHeaderSize+8+i*chainhash.HashSize:], h[:])
	}
}

func decodeBlockEntry(v []byte) (*BlockEntry, error) {
	var hdr wire.BlockHeader
	if err := hdr.Deserialize(bytes.NewReader(v[:wireHeaderSize])); err != nil {
		return nil, chain.New("decodeBlockEntry", chain.KindCorruption, err)
	}
	height := binary.LittleEndian.Uint32(v[wireHeaderSize:])
	txCount := binary.LittleEndian.Uint32(v[wireHeaderSize+4:])
	hashes := make([]chainhash.Hash, txCount)
	for i := range hashes {
		copy(hashes[i][:], v[wireHeaderSize+8+i*chainhash.HashSize:])
	}
	return &BlockEntry{Header: hdr, Height: height, TxHashes: hashes}, nil
}
