package htdb

import (
	"bytes"
	"encoding/binary"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/diskarray"
	"github.com/coinstack/blockchain/internal/mmfile"
	"github.com/coinstack/blockchain/log"
)

var slabLogger = log.New("pkg", "htdb")

// SlabTable is htdb_slab<H>: disk_array<index,position> of bucket heads
// plus chained slabs [key(keySize) | next(u64) | value-bytes] in a
// slab_allocator. Supports variable-size values and per-key removal via
// a tombstone sentinel on the key field (§4.C "remove").
//
// htdb_slab_header has two historical on-disk layouts (4-byte and
// 8-byte size, spec.md §6/§9's open question). This table always
// *creates* the 8-byte layout; Open falls back to a 4-byte-width bucket
// array when the 8-byte interpretation does not fit within the file, and
// logs a warning. A table opened that way keeps its 4-byte layout: no
// call rewrites the header to the 8-byte width.
type SlabTable struct {
	buckets    *diskarray.Array
	slabs      *alloc.SlabAllocator
	keySize    int
	legacy4    bool
}

var tombstoneKey = func(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xff
	}
	return b
}

// CreateSlabTable allocates a fresh table with bucketCount buckets,
// using the canonical 8-byte bucket-header width.
func CreateSlabTable(file *mmfile.File, headerOffset, slabOffset int64, bucketCount uint64, keySize int) (*SlabTable, error) {
	buckets, err := diskarray.Create(file, headerOffset, bucketCount, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	slabs := alloc.NewSlabAllocator(file, slabOffset)
	if err := slabs.Create(); err != nil {
		return nil, err
	}
	return &SlabTable{buckets: buckets, slabs: slabs, keySize: keySize}, nil
}

// OpenSlabTable binds to an existing on-disk table, detecting the
// legacy 4-byte-size header layout by probing both widths and picking
// whichever yields a bucket array that fits within the file.
func OpenSlabTable(file *mmfile.File, headerOffset, slabOffset int64, bucketCount uint64, keySize int) (*SlabTable, error) {
	buckets, err := diskarray.Open(file, headerOffset, diskarray.Width64)
	if err == nil && buckets.Size() > uint64(file.Size()-headerOffset-8)/8 {
		err = chain.New("htdb.OpenSlabTable", chain.KindCorruption, nil)
	}
	legacy4 := false
	if err != nil {
		buckets, err = diskarray.Open(file, headerOffset, diskarray.Width32)
		if err != nil {
			return nil, err
		}
		legacy4 = true
		slabLogger.Warn("opened legacy 4-byte htdb_slab_header; it is kept in the 4-byte layout", "offset", headerOffset)
	}
	slabs := alloc.NewSlabAllocator(file, slabOffset)
	if err := slabs.Start(); err != nil {
		return nil, err
	}
	return &SlabTable{buckets: buckets, slabs: slabs, keySize: keySize, legacy4: legacy4}, nil
}

func (t *SlabTable) bucketOf(key []byte) uint64 {
	return Bucket(key, t.buckets.Size())
}

// Store allocates a new slab sized keySize+8+valueSize, links it ahead
// of key's bucket chain, and invokes writer to populate the value
// bytes, per spec.md §4.C's store() protocol.
func (t *SlabTable) Store(key []byte, valueSize int64, writer func(value []byte)) (alloc.Position, error) {
	bucket := t.bucketOf(key)
	prevHead, err := t.buckets.Read(bucket)
	if err != nil {
		return 0, err
	}
	total := int64(t.keySize) + 8 + valueSize
	pos, err := t.slabs.Allocate(total)
	if err != nil {
		return 0, err
	}
	slab, err := t.slabs.Get(pos, total)
	if err != nil {
		return 0, err
	}
	copy(slab[:t.keySize], key)
	binary.LittleEndian.PutUint64(slab[t.keySize:t.keySize+8], prevHead)
	writer(slab[t.keySize+8:])
	if err := t.buckets.Write(bucket, uint64(pos)); err != nil {
		return 0, err
	}
	return pos, nil
}

// Get walks the bucket chain for key and returns the first (newest)
// matching value of the given size, or nil if absent or removed.
func (t *SlabTable) Get(key []byte, valueSize int64) ([]byte, error) {
	pos, err := t.find(key)
	if err != nil || pos == alloc.EmptyPosition {
		return nil, err
	}
	slab, err := t.slabs.Get(pos, int64(t.keySize)+8+valueSize)
	if err != nil {
		return nil, err
	}
	return slab[t.keySize+8:], nil
}

// GetAt reads the key and value stored at a previously-returned slab
// Position directly, bypassing the bucket lookup — used by callers
// holding a secondary index (e.g. a height->position disk_array) that
// already know where an entry lives.
func (t *SlabTable) GetAt(pos alloc.Position, valueSize int64) (key, value []byte, err error) {
	slab, err := t.slabs.Get(pos, int64(t.keySize)+8+valueSize)
	if err != nil {
		return nil, nil, err
	}
	return slab[:t.keySize], slab[t.keySize+8:], nil
}

// find walks the bucket chain for key and returns the slab position of
// the first (newest) match, or alloc.EmptyPosition if absent or
// removed. Only the fixed key+next prefix is read while traversing —
// different keys in the same bucket may carry differently-sized
// payloads (e.g. the block table's per-height transaction list), so the
// chain's next pointer must never be read at a value-size-dependent
// offset.
func (t *SlabTable) find(key []byte) (alloc.Position, error) {
	bucket := t.bucketOf(key)
	pos, err := t.buckets.Read(bucket)
	if err != nil {
		return 0, err
	}
	cur := alloc.Position(pos)
	tomb := tombstoneKey(t.keySize)
	prefix := int64(t.keySize) + 8
	for cur != alloc.EmptyPosition {
		slab, err := t.slabs.Get(cur, prefix)
		if err != nil {
			return 0, err
		}
		k := slab[:t.keySize]
		next := binary.LittleEndian.Uint64(slab[t.keySize:prefix])
		if !bytes.Equal(k, tomb) && bytes.Equal(k, key) {
			return cur, nil
		}
		cur = next
	}
	return alloc.EmptyPosition, nil
}

// Remove marks the slab for key's newest match with a tombstone key, per
// spec.md §4.C ("remove(key): supported on htdb_slab by marking the
// slab's key to a sentinel").
func (t *SlabTable) Remove(key []byte, valueSize int64) error {
	pos, err := t.find(key)
	if err != nil {
		return err
	}
	if pos == alloc.EmptyPosition {
		return chain.New("SlabTable.Remove", chain.KindMissingPrevout, nil)
	}
	total := int64(t.keySize) + 8 + valueSize
	slab, err := t.slabs.Get(pos, total)
	if err != nil {
		return err
	}
	copy(slab[:t.keySize], tombstoneKey(t.keySize))
	return nil
}

// Sync flushes the slab allocator's end pointer. It leaves the bucket
// header as it is, so a legacy 4-byte header stays in the 4-byte layout.
func (t *SlabTable) Sync() error {
	return t.slabs.Sync()
}

// Truncate rolls the slab allocator back to pos (pop support).
func (t *SlabTable) Truncate(pos alloc.Position) { t.slabs.Truncate(pos) }

// End returns the slab allocator's current end position.
func (t *SlabTable) End() alloc.Position { return t.slabs.End() }
