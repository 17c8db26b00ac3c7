package alloc

import (
	"encoding/binary"
	"sync"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/mmfile"
	"github.com/coinstack/blockchain/metrics"
)

// Position is the slab_allocator's position_type: an unsigned 64-bit
// byte offset.
type Position = uint64

// EmptyPosition is the sentinel "absent" slab position, used by
// htdb_slab's next-pointer chains.
const EmptyPosition Position = ^Position(0)

const slabEndSize = 8 // u64 end header

// SlabAllocator is a variable-length bump allocator over an mmfile,
// returning byte offsets rather than record indices.
type SlabAllocator struct {
	file   *mmfile.File
	offset int64

	mu  sync.Mutex
	end uint64
}

// NewSlabAllocator binds a SlabAllocator to file at offset.
func NewSlabAllocator(file *mmfile.File, offset int64) *SlabAllocator {
	return &SlabAllocator{file: file, offset: offset}
}

// Create initializes a fresh allocator: end = offset+8 (just past the
// header) written at offset.
func (a *SlabAllocator) Create() error {
	if err := a.file.Reserve(a.offset + slabEndSize); err != nil {
		return err
	}
	a.mu.Lock()
	a.end = uint64(a.offset + slabEndSize)
	a.mu.Unlock()
	return a.Sync()
}

// Start reads the on-disk end position into memory.
func (a *SlabAllocator) Start() error {
	if a.file.Size() < a.offset+slabEndSize {
		return chain.New("SlabAllocator.Start", chain.KindCorruption, nil)
	}
	data := a.file.Data()
	end := binary.LittleEndian.Uint64(data[a.offset : a.offset+slabEndSize])
	a.mu.Lock()
	a.end = end
	a.mu.Unlock()
	return nil
}

// End returns the in-memory end position.
func (a *SlabAllocator) End() Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.end
}

// Allocate returns the previous end as the new slab's start offset,
// advances end by n, and ensures backing bytes exist.
func (a *SlabAllocator) Allocate(n int64) (Position, error) {
	a.mu.Lock()
	pos := a.end
	a.end += uint64(n)
	a.mu.Unlock()

	if err := a.file.Reserve(int64(pos) + n); err != nil {
		return 0, err
	}
	metrics.AllocatorGrowths.Inc()
	return pos, nil
}

// Get returns the byte slice at [off, off+n). The slice is valid until
// the next growth of the underlying mmfile.
func (a *SlabAllocator) Get(off Position, n int64) ([]byte, error) {
	data := a.file.Data()
	if int64(off)+n > int64(len(data)) {
		return nil, chain.New("SlabAllocator.Get", chain.KindCorruption, nil)
	}
	return data[off : int64(off)+n], nil
}

// Sync writes the in-memory end back to disk.
func (a *SlabAllocator) Sync() error {
	a.mu.Lock()
	end := a.end
	a.mu.Unlock()

	if err := a.file.Reserve(a.offset + slabEndSize); err != nil {
		return err
	}
	data := a.file.Data()
	binary.LittleEndian.PutUint64(data[a.offset:a.offset+slabEndSize], end)
	return nil
}

// Truncate resets the in-memory end to pos, used by pop() to roll the
// allocator back to a prior epoch.
func (a *SlabAllocator) Truncate(pos Position) {
	a.mu.Lock()
	a.end = pos
	a.mu.Unlock()
}
