// Package mmfile owns a growable memory-mapped file (spec.md §4.A). The
// mapping never relocates visibly to callers beyond pointer invalidation
// on resize: Data() returns a byte slice valid until the next growth
// point. Shrinking is never performed.
package mmfile

import (
	"fmt"
	"os"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/edsrzf/mmap-go"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/log"
)

// growthFactor amortizes remaps the way the teacher's logIndicesMemLimit
// and bitmapdb.ShardLimit size their own buffers in round units.
const growthFactor = 1.5

var logger = log.New("pkg", "mmfile")

// File owns an os.File and its current mmap.Map. A zero-size file is
// bumped to one byte on Open so the mapping is always valid.
type File struct {
	mu   sync.RWMutex
	path string
	f    *os.File
	m    mmap.MMap
}

// Open maps path, creating it if necessary. If the file is empty it is
// truncated to one byte first.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, chain.New("mmfile.Open", chain.KindDisk, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, chain.New("mmfile.Open", chain.KindDisk, err)
	}
	if info.Size() < 1 {
		if err := f.Truncate(1); err != nil {
			f.Close()
			return nil, chain.New("mmfile.Open", chain.KindDisk, err)
		}
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, chain.New("mmfile.Open", chain.KindDisk, err)
	}
	return &File{path: path, f: f, m: m}, nil
}

// Size returns the currently mapped size.
func (file *File) Size() int64 {
	file.mu.RLock()
	defer file.mu.RUnlock()
	return int64(len(file.m))
}

// Data returns the mapped byte slice. The returned slice is only valid
// until the next call to Resize/Reserve that grows the file — callers
// must treat it as a short-lived view and re-acquire after any growth.
func (file *File) Data() []byte {
	file.mu.RLock()
	defer file.mu.RUnlock()
	return file.m
}

// Resize grows the file to exactly n bytes and remaps, if n is larger
// than the current size. It never shrinks.
func (file *File) Resize(n int64) error {
	file.mu.Lock()
	defer file.mu.Unlock()
	return file.resizeLocked(n)
}

func (file *File) resizeLocked(n int64) error {
	if n <= int64(len(file.m)) {
		return nil
	}
	if err := file.m.Unmap(); err != nil {
		return chain.New("mmfile.Resize", chain.KindDisk, err)
	}
	if err := file.f.Truncate(n); err != nil {
		return chain.New("mmfile.Resize", chain.KindDisk, err)
	}
	m, err := mmap.Map(file.f, mmap.RDWR, 0)
	if err != nil {
		return chain.New("mmfile.Resize", chain.KindDisk, err)
	}
	file.m = m
	logger.Debug("grew mmap file", "path", file.path, "size", datasize.ByteSize(n).HumanReadable())
	return nil
}

// Reserve ensures at least n bytes are mapped, rounding the new size up
// by growthFactor to amortize remaps across repeated small allocations.
func (file *File) Reserve(n int64) error {
	file.mu.Lock()
	defer file.mu.Unlock()
	if n <= int64(len(file.m)) {
		return nil
	}
	target := int64(float64(n) * growthFactor)
	if target < n {
		target = n
	}
	return file.resizeLocked(target)
}

// Sync flushes the mapping to disk.
func (file *File) Sync() error {
	file.mu.RLock()
	defer file.mu.RUnlock()
	if err := file.m.Flush(); err != nil {
		return chain.New("mmfile.Sync", chain.KindDisk, err)
	}
	return nil
}

// Close unmaps and closes the underlying file.
func (file *File) Close() error {
	file.mu.Lock()
	defer file.mu.Unlock()
	if err := file.m.Unmap(); err != nil {
		return fmt.Errorf("mmfile: unmap %s: %w", file.path, err)
	}
	return file.f.Close()
}
