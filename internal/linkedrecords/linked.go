// Package linkedrecords implements linked_records and multimap_records
// (spec.md §4.D): LIFO-ordered singly-linked chains over a
// record_allocator, plus a multimap that glues a hash-bucket header to a
// chain.
package linkedrecords

import (
	"encoding/binary"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/alloc"
)

// Empty terminates a chain, mirroring alloc.EmptyIndex.
const Empty = alloc.EmptyIndex

const nextFieldSize = 4 // u32 next pointer

// List is linked_records: each record holds [next: u32 | payload].
type List struct {
	records     *alloc.RecordAllocator
	payloadSize int64
}

// New binds a List to a record allocator whose record size is
// nextFieldSize+payloadSize. The caller is responsible for having sized
// the allocator accordingly.
func New(records *alloc.RecordAllocator, payloadSize int64) *List {
	return &List{records: records, payloadSize: payloadSize}
}

// Create allocates a new record with next=Empty, returning its index —
// the head of a brand new, single-element chain.
func (l *List) Create() (alloc.Index, error) {
	return l.Insert(Empty)
}

// Insert allocates a new record with next=after, logically prepending
// it ahead of the chain whose previous head was `after`. The returned
// index becomes the new head.
func (l *List) Insert(after alloc.Index) (alloc.Index, error) {
	idx, err := l.records.Allocate()
	if err != nil {
		return 0, err
	}
	rec, err := l.records.Get(idx)
	if err != nil {
		return 0, err
	}
	binary.LittleEndian.PutUint32(rec[:nextFieldSize], after)
	return idx, nil
}

// Next returns the successor of record i, or Empty at the chain's end.
func (l *List) Next(i alloc.Index) (alloc.Index, error) {
	rec, err := l.records.Get(i)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(rec[:nextFieldSize]), nil
}

// SetNext rewrites record i's next pointer, used by multimap deletion
// and HSDB-style splicing.
func (l *List) SetNext(i alloc.Index, next alloc.Index) error {
	rec, err := l.records.Get(i)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(rec[:nextFieldSize], next)
	return nil
}

// Get returns record i's payload bytes, past the 4-byte next field.
func (l *List) Get(i alloc.Index) ([]byte, error) {
	rec, err := l.records.Get(i)
	if err != nil {
		return nil, err
	}
	if int64(len(rec)) < nextFieldSize+l.payloadSize {
		return nil, chain.New("linkedrecords.Get", chain.KindCorruption, nil)
	}
	return rec[nextFieldSize : nextFieldSize+l.payloadSize], nil
}

// RecordSize is the record size the backing allocator must be
// configured with: 4 (next) + payloadSize.
func RecordSize(payloadSize int64) int64 { return nextFieldSize + payloadSize }

// Sync flushes the backing record allocator's counter.
func (l *List) Sync() error { return l.records.Sync() }
