// Package hsdb implements the sharded history-scan database (spec.md
// §4.E): the top chain.HSDBSettings.ShardedBitsize bits of a scan key
// select a shard file; within a shard the next BucketBitsize bits
// select a bucket; a bucket is a chain of rows tagged by the height
// they were added at, appended in batches at sync(height) and spliced
// back out in a single forward pass by unlink(from_height).
package hsdb

import (
	"bytes"
	"encoding/binary"
	"sort"
	"sync"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/diskarray"
	"github.com/coinstack/blockchain/internal/mmfile"
)

const entriesEndSize = 8

// pendingRow is a buffered add() awaiting the next sync(height).
type pendingRow struct {
	remainder []byte
	value     []byte
	bucket    uint64
}

// Shard is a single shard file: an 8-byte entries_end header, a
// disk_array of height->batch-start positions, a disk_array of
// bucket->chain-head positions, and a row area of fixed-size rows
// (spec.md §4.E).
//
// Shard.remainder drops the shard-selecting bits (the caller — HSDB —
// has already consumed them to route to this file), so a row need only
// carry the bits a scan still has to verify: the bucket-selecting bits
// (re-checked because a bucket holds every key sharing those bits, not
// just the one being scanned for) plus whatever bits follow them.
type Shard struct {
	file *mmfile.File

	heights *diskarray.Array
	buckets *diskarray.Array

	rowAreaOffset int64
	remainderSize int
	valueSize     int
	bucketBytes   int
	rowSize       int64

	mu         sync.Mutex
	entriesEnd uint64
	pending    []pendingRow
}

func arrayByteSize(size uint64, width diskarray.Width) int64 {
	return int64(width) + int64(size)*int64(width)
}

// CreateShard allocates a fresh shard file. remainderSize is the number
// of key bytes left after the shard-selecting prefix; bucketBytes is
// the byte-aligned width of the bucket-selecting portion of that
// remainder (must be <= remainderSize).
func CreateShard(file *mmfile.File, maxHeights uint64, bucketBitsize uint32, remainderSize, valueSize int) (*Shard, error) {
	bucketBytes := int(bucketBitsize / 8)
	if bucketBitsize%8 != 0 {
		return nil, chain.New("hsdb.CreateShard", chain.KindNotImplemented, nil)
	}
	heightsOffset := int64(entriesEndSize)
	heights, err := diskarray.Create(file, heightsOffset, maxHeights, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	bucketsOffset := heightsOffset + arrayByteSize(maxHeights, diskarray.Width64)
	numBuckets := uint64(1) << bucketBitsize
	buckets, err := diskarray.Create(file, bucketsOffset, numBuckets, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	rowAreaOffset := bucketsOffset + arrayByteSize(numBuckets, diskarray.Width64)
	rowSize := int64(remainderSize) + 8 /* next position */ + 4 /* height */ + int64(valueSize)

	s := &Shard{
		file:          file,
		heights:       heights,
		buckets:       buckets,
		rowAreaOffset: rowAreaOffset,
		remainderSize: remainderSize,
		valueSize:     valueSize,
		bucketBytes:   bucketBytes,
		rowSize:       rowSize,
		entriesEnd:    uint64(rowAreaOffset),
	}
	if err := s.persistEnd(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenShard binds to an existing shard file.
func OpenShard(file *mmfile.File, bucketBitsize uint32, remainderSize, valueSize int) (*Shard, error) {
	heightsOffset := int64(entriesEndSize)
	heights, err := diskarray.Open(file, heightsOffset, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	bucketsOffset := heightsOffset + arrayByteSize(heights.Size(), diskarray.Width64)
	buckets, err := diskarray.Open(file, bucketsOffset, diskarray.Width64)
	if err != nil {
		return nil, err
	}
	rowAreaOffset := bucketsOffset + arrayByteSize(buckets.Size(), diskarray.Width64)
	rowSize := int64(remainderSize) + 8 + 4 + int64(valueSize)

	data := file.Data()
	if int64(len(data)) < entriesEndSize {
		return nil, chain.New("hsdb.OpenShard", chain.KindCorruption, nil)
	}
	end := binary.LittleEndian.Uint64(data[:entriesEndSize])

	return &Shard{
		file:          file,
		heights:       heights,
		buckets:       buckets,
		rowAreaOffset: rowAreaOffset,
		remainderSize: remainderSize,
		valueSize:     valueSize,
		bucketBytes:   int(bucketBitsize / 8),
		rowSize:       rowSize,
		entriesEnd:    end,
	}, nil
}

func (s *Shard) persistEnd() error {
	if err := s.file.Reserve(entriesEndSize); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.file.Data()[:entriesEndSize], s.entriesEnd)
	return nil
}

func (s *Shard) bucketOf(remainder []byte) uint64 {
	var k uint64
	n := s.bucketBytes
	if n > len(remainder) {
		n = len(remainder)
	}
	for i := 0; i < n; i++ {
		k = k<<8 | uint64(remainder[i])
	}
	mask := s.buckets.Size() - 1
	if s.buckets.Size()&mask == 0 {
		return k & mask
	}
	return k % s.buckets.Size()
}

// Add buffers (remainder, value) for the next Sync, per spec.md §4.E
// "push into an in-memory sort buffer".
func (s *Shard) Add(remainder, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pendingRow{
		remainder: append([]byte(nil), remainder...),
		value:     append([]byte(nil), value...),
		bucket:    s.bucketOf(remainder),
	})
}

// Sync writes every buffered row for height, sorted by (bucket,
// remainder), then records the batch's starting position in the
// heights table (spec.md §4.E "sync(height)"). Sync must be called for
// every height even when nothing was buffered, so the heights table
// never has a gap a later unlink/scan would need to skip over.
func (s *Shard) Sync(height uint32) error {
	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].bucket != rows[j].bucket {
			return rows[i].bucket < rows[j].bucket
		}
		return bytes.Compare(rows[i].remainder, rows[j].remainder) < 0
	})

	start := s.entriesEnd
	if err := s.file.Reserve(int64(start) + int64(len(rows))*s.rowSize); err != nil {
		return err
	}
	pos := start
	for _, r := range rows {
		head, err := s.buckets.Read(r.bucket)
		if err != nil {
			return err
		}
		s.writeRow(pos, r.remainder, head, height, r.value)
		if err := s.buckets.Write(r.bucket, pos); err != nil {
			return err
		}
		pos += uint64(s.rowSize)
	}
	if err := s.heights.Write(uint64(height), start); err != nil {
		return err
	}
	s.entriesEnd = pos
	return s.persistEnd()
}

func (s *Shard) rowBytes(pos uint64) ([]byte, error) {
	if err := s.file.Reserve(int64(pos) + s.rowSize); err != nil {
		return nil, err
	}
	data := s.file.Data()
	end := int64(pos) + s.rowSize
	if end > int64(len(data)) {
		return nil, chain.New("hsdb.Shard.rowBytes", chain.KindCorruption, nil)
	}
	return data[pos:end], nil
}

func (s *Shard) writeRow(pos uint64, remainder []byte, next uint64, height uint32, value []byte) {
	data := s.file.Data()
	b := data[pos : pos+uint64(s.rowSize)]
	copy(b[:s.remainderSize], remainder)
	binary.LittleEndian.PutUint64(b[s.remainderSize:s.remainderSize+8], next)
	binary.LittleEndian.PutUint32(b[s.remainderSize+8:s.remainderSize+12], height)
	copy(b[s.remainderSize+12:], value)
}

func decodeRow(b []byte, remainderSize int) (remainder []byte, next uint64, height uint32, value []byte) {
	remainder = b[:remainderSize]
	next = binary.LittleEndian.Uint64(b[remainderSize : remainderSize+8])
	height = binary.LittleEndian.Uint32(b[remainderSize+8 : remainderSize+12])
	value = b[remainderSize+12:]
	return
}

// Unlink splices every row added at height >= fromHeight out of its
// bucket chain in a single forward pass, per spec.md §4.E: within the
// removed range, the one row per touched bucket whose own `next`
// pointer already points outside the range (into retained history, or
// Empty) is exactly that bucket's new head — every other touched row
// is reachable only through a now-removed predecessor and need not be
// touched at all.
func (s *Shard) Unlink(fromHeight uint32) error {
	if uint64(fromHeight) >= s.heights.Size() {
		return nil
	}
	start, err := s.heights.Read(uint64(fromHeight))
	if err != nil {
		return err
	}
	empty := diskarray.Empty(diskarray.Width64)
	if start == empty {
		return nil
	}
	end := s.entriesEnd

	for pos := start; pos < end; pos += uint64(s.rowSize) {
		raw, err := s.rowBytes(pos)
		if err != nil {
			return err
		}
		remainder, next, _, _ := decodeRow(raw, s.remainderSize)
		if next == alloc.EmptyPosition || next < start {
			bucket := s.bucketOf(remainder)
			if err := s.buckets.Write(bucket, next); err != nil {
				return err
			}
		}
	}

	s.entriesEnd = start
	if err := s.persistEnd(); err != nil {
		return err
	}
	for h := uint64(fromHeight); h < s.heights.Size(); h++ {
		if err := s.heights.Write(h, empty); err != nil {
			return err
		}
	}
	return nil
}

// Visitor is called with a matched row's height and value during Scan.
type Visitor func(height uint32, value []byte)

// Scan walks every row whose remainder matches prefix bit-for-bit over
// prefix's length and whose height >= fromHeight, calling visit for
// each (spec.md §4.E "scan"). A prefix shorter than the bucket-selecting
// width cannot identify a single bucket, so Scan falls back to walking
// every bucket in that case.
func (s *Shard) Scan(prefix []byte, fromHeight uint32, visit Visitor) error {
	if len(prefix) >= s.bucketBytes {
		return s.scanBucket(s.bucketOf(prefix), prefix, fromHeight, visit)
	}
	for b := uint64(0); b < s.buckets.Size(); b++ {
		if err := s.scanBucket(b, prefix, fromHeight, visit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shard) scanBucket(bucket uint64, prefix []byte, fromHeight uint32, visit Visitor) error {
	pos, err := s.buckets.Read(bucket)
	if err != nil {
		return err
	}
	empty := diskarray.Empty(diskarray.Width64)
	for pos != empty {
		raw, err := s.rowBytes(pos)
		if err != nil {
			return err
		}
		remainder, next, height, value := decodeRow(raw, s.remainderSize)
		n := len(prefix)
		if n > len(remainder) {
			n = len(remainder)
		}
		if height >= fromHeight && bytes.Equal(remainder[:n], prefix[:n]) {
			visit(height, value)
		}
		pos = next
	}
	return nil
}

// Flush rewrites the shard's entries-end header, the same write
// Sync(height) already makes per batch; exposed for symmetry with the
// other domain tables.
func (s *Shard) Flush() error { return s.persistEnd() }
