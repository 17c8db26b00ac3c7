package htdb

import (
	"bytes"
	"encoding/binary"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/diskarray"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// RecordTable is htdb_record<H>: disk_array<index,index> of bucket heads
// plus chained records [key(keySize) | next(u32) | value(valueSize)] in
// a record_allocator. Deletion is not supported except via the
// multimap's delete-last-row (remove the head).
type RecordTable struct {
	buckets  *diskarray.Array
	records  *alloc.RecordAllocator
	keySize  int
	valSize  int64
}

// CreateRecordTable allocates a fresh table with bucketCount buckets.
func CreateRecordTable(file *mmfile.File, headerOffset, recordOffset int64, bucketCount uint64, keySize int, valSize int64) (*RecordTable, error) {
	buckets, err := diskarray.Create(file, headerOffset, bucketCount, diskarray.Width32)
	if err != nil {
		return nil, err
	}
	records := alloc.NewRecordAllocator(file, recordOffset, int64(keySize)+4+valSize)
	if err := records.Create(); err != nil {
		return nil, err
	}
	return &RecordTable{buckets: buckets, records: records, keySize: keySize, valSize: valSize}, nil
}

// OpenRecordTable binds to an existing on-disk table.
func OpenRecordTable(file *mmfile.File, headerOffset, recordOffset int64, keySize int, valSize int64) (*RecordTable, error) {
	buckets, err := diskarray.Open(file, headerOffset, diskarray.Width32)
	if err != nil {
		return nil, err
	}
	records := alloc.NewRecordAllocator(file, recordOffset, int64(keySize)+4+valSize)
	if err := records.Start(); err != nil {
		return nil, err
	}
	return &RecordTable{buckets: buckets, records: records, keySize: keySize, valSize: valSize}, nil
}

func (t *RecordTable) bucketOf(key []byte) uint64 {
	return Bucket(key, t.buckets.Size())
}

func (t *RecordTable) head(bucket uint64) (alloc.Index, error) {
	v, err := t.buckets.Read(bucket)
	return alloc.Index(v), err
}

func (t *RecordTable) setHead(bucket uint64, idx alloc.Index) error {
	return t.buckets.Write(bucket, uint64(idx))
}

// Store prepends a new record for key and invokes writer to populate the
// value bytes in place, per spec.md §4.C's store() protocol. Returns the
// new record's index (which becomes the bucket's head).
func (t *RecordTable) Store(key []byte, writer func(value []byte)) (alloc.Index, error) {
	bucket := t.bucketOf(key)
	prevHead, err := t.head(bucket)
	if err != nil {
		return 0, err
	}
	idx, err := t.records.Allocate()
	if err != nil {
		return 0, err
	}
	rec, err := t.records.Get(idx)
	if err != nil {
		return 0, err
	}
	copy(rec[:t.keySize], key)
	binary.LittleEndian.PutUint32(rec[t.keySize:t.keySize+4], prevHead)
	writer(rec[t.keySize+4:])
	if err := t.setHead(bucket, idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// Get walks the bucket chain for key and returns the first (newest)
// matching value, or nil if absent.
func (t *RecordTable) Get(key []byte) ([]byte, error) {
	bucket := t.bucketOf(key)
	idx, err := t.head(bucket)
	if err != nil {
		return nil, err
	}
	for idx != alloc.EmptyIndex {
		rec, err := t.records.Get(idx)
		if err != nil {
			return nil, err
		}
		if bytes.Equal(rec[:t.keySize], key) {
			return rec[t.keySize+4:], nil
		}
		idx = binary.LittleEndian.Uint32(rec[t.keySize : t.keySize+4])
	}
	return nil, nil
}

// Head returns the current chain head for key's bucket — used by
// multimap_records to locate (or detect the absence of) a chain.
func (t *RecordTable) Head(key []byte) (alloc.Index, error) {
	return t.head(t.bucketOf(key))
}

// SetHead rewrites the bucket head for key — used by multimap_records
// after prepending a row, and by delete-last-row.
func (t *RecordTable) SetHead(key []byte, idx alloc.Index) error {
	return t.setHead(t.bucketOf(key), idx)
}

// RecordAt returns the raw record bytes for index i (key|next|value),
// used by chain-length diagnostics and tests.
func (t *RecordTable) RecordAt(i alloc.Index) ([]byte, error) {
	return t.records.Get(i)
}

// NextOf returns the next-in-bucket pointer stored in record i.
func (t *RecordTable) NextOf(i alloc.Index) (alloc.Index, error) {
	rec, err := t.records.Get(i)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(rec[t.keySize : t.keySize+4]), nil
}

// KeyOf returns the key stored in record i.
func (t *RecordTable) KeyOf(i alloc.Index) ([]byte, error) {
	rec, err := t.records.Get(i)
	if err != nil {
		return nil, err
	}
	return rec[:t.keySize], nil
}

// Unlink splices key's newest record out of its bucket chain, rewriting
// either the bucket head (if key's record is first) or the preceding
// record's next-pointer. htdb_record has no general remove() verb (a
// record's storage is never reclaimed), but a domain table's pop() is
// always undoing its own most recent store() for that key in strict
// reverse order, so the record to splice out is always reachable by a
// short walk from the bucket head — the same splice-out-of-a-chain
// shape the HSDB shard's unlink() uses at batch granularity.
func (t *RecordTable) Unlink(key []byte) error {
	bucket := t.bucketOf(key)
	idx, err := t.head(bucket)
	if err != nil {
		return err
	}
	if idx == alloc.EmptyIndex {
		return nil
	}
	rec, err := t.records.Get(idx)
	if err != nil {
		return err
	}
	if bytes.Equal(rec[:t.keySize], key) {
		next := binary.LittleEndian.Uint32(rec[t.keySize : t.keySize+4])
		return t.setHead(bucket, next)
	}
	prev := idx
	for {
		prevRec, err := t.records.Get(prev)
		if err != nil {
			return err
		}
		cur := binary.LittleEndian.Uint32(prevRec[t.keySize : t.keySize+4])
		if cur == alloc.EmptyIndex {
			return nil // not present; nothing to unlink
		}
		curRec, err := t.records.Get(cur)
		if err != nil {
			return err
		}
		if bytes.Equal(curRec[:t.keySize], key) {
			next := binary.LittleEndian.Uint32(curRec[t.keySize : t.keySize+4])
			binary.LittleEndian.PutUint32(prevRec[t.keySize:t.keySize+4], next)
			return nil
		}
		prev = cur
	}
}

// Sync flushes the record allocator's counter. The bucket disk_array is
// written in place on every Store/SetHead and needs no separate sync.
func (t *RecordTable) Sync() error { return t.records.Sync() }

// Truncate rolls the record allocator back to n records (pop support).
func (t *RecordTable) Truncate(n uint32) { t.records.Truncate(n) }

// Count returns the number of records ever allocated (including
// logically-removed multimap rows, since htdb_record has no true
// deletion).
func (t *RecordTable) Count() uint32 { return t.records.Count() }
