// Package alloc implements the two bump-allocators every higher table in
// the engine is composed from (spec.md §4.B): record_allocator (fixed-size
// records keyed by index) and slab_allocator (variable-size byte ranges
// keyed by offset). In-memory count/end is authoritative between Start()
// and Sync(); after Sync() disk and memory agree.
package alloc

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/mmfile"
	"github.com/coinstack/blockchain/metrics"
)

// Index is the record_allocator's index_type: an unsigned 32-bit handle.
type Index = uint32

// EmptyIndex is linked_records' and disk_array's sentinel "absent" value
// for Index-typed slots.
const EmptyIndex Index = ^Index(0)

const recordCountSize = 4 // u32 count header

// RecordAllocator is a fixed-length-record bump allocator over an
// mmfile. Records are never individually freed.
type RecordAllocator struct {
	file       *mmfile.File
	offset     int64
	recordSize int64

	mu    sync.Mutex
	count uint32
}

// NewRecordAllocator binds a RecordAllocator to file at offset, with the
// given fixed per-record size.
func NewRecordAllocator(file *mmfile.File, offset int64, recordSize int64) *RecordAllocator {
	return &RecordAllocator{file: file, offset: offset, recordSize: recordSize}
}

// Create initializes a fresh allocator: count=0 written at offset.
func (a *RecordAllocator) Create() error {
	if err := a.file.Reserve(a.offset + recordCountSize); err != nil {
		return err
	}
	a.mu.Lock()
	a.count = 0
	a.mu.Unlock()
	return a.Sync()
}

// Start reads the on-disk count into memory. Any bytes past the highest
// counter value are implicitly discarded by the next Allocate's Reserve.
func (a *RecordAllocator) Start() error {
	if a.file.Size() < a.offset+recordCountSize {
		return chain.New("RecordAllocator.Start", chain.KindCorruption, nil)
	}
	data := a.file.Data()
	count := binary.LittleEndian.Uint32(data[a.offset : a.offset+recordCountSize])
	a.mu.Lock()
	a.count = count
	a.mu.Unlock()
	return nil
}

// Count returns the in-memory record count.
func (a *RecordAllocator) Count() uint32 {
	return atomic.LoadUint32(&a.count)
}

// Allocate returns the previous count as the new record's index,
// increments the in-memory count, and ensures backing bytes exist.
func (a *RecordAllocator) Allocate() (Index, error) {
	a.mu.Lock()
	idx := a.count
	a.count++
	a.mu.Unlock()

	need := a.offset + recordCountSize + int64(idx+1)*a.recordSize
	if err := a.file.Reserve(need); err != nil {
		return 0, err
	}
	metrics.AllocatorGrowths.Inc()
	return idx, nil
}

// position returns the absolute byte offset of record i's payload.
func (a *RecordAllocator) position(i Index) int64 {
	return a.offset + recordCountSize + int64(i)*a.recordSize
}

// Get returns the byte slice for record i's payload. The slice is valid
// until the next growth of the underlying mmfile.
func (a *RecordAllocator) Get(i Index) ([]byte, error) {
	pos := a.position(i)
	data := a.file.Data()
	if pos+a.recordSize > int64(len(data)) {
		return nil, chain.New("RecordAllocator.Get", chain.KindCorruption, nil)
	}
	return data[pos : pos+a.recordSize], nil
}

// Sync writes the in-memory count back to disk.
func (a *RecordAllocator) Sync() error {
	a.mu.Lock()
	count := a.count
	a.mu.Unlock()

	if err := a.file.Reserve(a.offset + recordCountSize); err != nil {
		return err
	}
	data := a.file.Data()
	binary.LittleEndian.PutUint32(data[a.offset:a.offset+recordCountSize], count)
	return nil
}

// Truncate resets the in-memory count to n, used by pop() to roll the
// allocator back to a prior epoch. It does not shrink the backing file;
// trailing bytes are overwritten by the next Allocate.
func (a *RecordAllocator) Truncate(n uint32) {
	a.mu.Lock()
	a.count = n
	a.mu.Unlock()
}

// RecordSize returns the fixed per-record payload size.
func (a *RecordAllocator) RecordSize() int64 { return a.recordSize }
