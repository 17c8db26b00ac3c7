// Package diskarray implements disk_array<I,V> (spec.md §4.C): a
// fixed-length array of V keyed by I, stored at a file offset, preceded
// by an I-sized size, with a sentinel "empty" value for V denoting
// absence. Reads and writes are unsynchronized — callers enforce
// exclusivity on a given cell per epoch (spec.md §4.C).
package diskarray

import (
	"encoding/binary"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// Width selects the on-disk integer width for an array's size/cell
// encoding.
type Width int

const (
	Width32 Width = 4
	Width64 Width = 8
)

// Array is a disk_array<I,V> where both I (implicit, via count) and V
// are uint32 or uint64 depending on Width.
type Array struct {
	file   *mmfile.File
	offset int64
	width  Width
	size   uint64 // number of V-sized cells
}

// Create allocates a new array of `size` cells of the given width at
// offset, writing the size header and filling every cell with Empty(width).
func Create(file *mmfile.File, offset int64, size uint64, width Width) (*Array, error) {
	a := &Array{file: file, offset: offset, width: width, size: size}
	total := int64(width) + int64(size)*int64(width)
	if err := file.Reserve(offset + total); err != nil {
		return nil, err
	}
	data := file.Data()
	writeSizeHeader(data[offset:], size, width)

	empty := Empty(width)
	body := data[offset+int64(width):]
	for i := uint64(0); i < size; i++ {
		writeCell(body[i*uint64(width):], empty, width)
	}
	return a, nil
}

// Open binds an Array to an existing on-disk array at offset, reading
// its size header.
func Open(file *mmfile.File, offset int64, width Width) (*Array, error) {
	if file.Size() < offset+int64(width) {
		return nil, chain.New("diskarray.Open", chain.KindCorruption, nil)
	}
	size := readSizeHeader(file.Data()[offset:], width)
	return &Array{file: file, offset: offset, width: width, size: size}, nil
}

// Size returns the number of cells.
func (a *Array) Size() uint64 { return a.size }

// Empty returns the sentinel value denoting "absent" for this array's
// width: the maximum value representable, per spec.md §4.C.
func Empty(width Width) uint64 {
	if width == Width32 {
		return uint64(^uint32(0))
	}
	return ^uint64(0)
}

func (a *Array) cellOffset(i uint64) int64 {
	return a.offset + int64(a.width) + int64(i)*int64(a.width)
}

// Read returns the value stored at index i.
func (a *Array) Read(i uint64) (uint64, error) {
	if i >= a.size {
		return 0, chain.New("diskarray.Read", chain.KindCorruption, nil)
	}
	pos := a.cellOffset(i)
	data := a.file.Data()
	if pos+int64(a.width) > int64(len(data)) {
		return 0, chain.New("diskarray.Read", chain.KindCorruption, nil)
	}
	return readCell(data[pos:], a.width), nil
}

// Write stores v at index i.
func (a *Array) Write(i uint64, v uint64) error {
	if i >= a.size {
		return chain.New("diskarray.Write", chain.KindCorruption, nil)
	}
	pos := a.cellOffset(i)
	if err := a.file.Reserve(pos + int64(a.width)); err != nil {
		return err
	}
	data := a.file.Data()
	writeCell(data[pos:], v, a.width)
	return nil
}

func writeSizeHeader(b []byte, size uint64, width Width) {
	if width == Width32 {
		binary.LittleEndian.PutUint32(b, uint32(size))
	} else {
		binary.LittleEndian.PutUint64(b, size)
	}
}

func readSizeHeader(b []byte, width Width) uint64 {
	if width == Width32 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}

func writeCell(b []byte, v uint64, width Width) {
	if width == Width32 {
		binary.LittleEndian.PutUint32(b, uint32(v))
	} else {
		binary.LittleEndian.PutUint64(b, v)
	}
}

func readCell(b []byte, width Width) uint64 {
	if width == Width32 {
		return uint64(binary.LittleEndian.Uint32(b))
	}
	return binary.LittleEndian.Uint64(b)
}
