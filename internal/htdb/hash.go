// Package htdb implements htdb_record<H> and htdb_slab<H> (spec.md
// §4.C, §6): hash tables combining a disk_array of bucket heads with
// chained entries in a record or slab allocator keyed by a fixed-size
// hash H.
package htdb

// Bucket reduces the first 8 bytes of a key, read little-endian, modulo
// bucketCount. A power-of-two bucket count uses a fast mask; otherwise an
// ordinary remainder, per spec.md §4.C.
func Bucket(key []byte, bucketCount uint64) uint64 {
	var k uint64
	n := len(key)
	if n > 8 {
		n = 8
	}
	for i := 0; i < n; i++ {
		k |= uint64(key[i]) << (8 * uint(i))
	}
	if bucketCount != 0 && bucketCount&(bucketCount-1) == 0 {
		return k & (bucketCount - 1)
	}
	if bucketCount == 0 {
		return 0
	}
	return k % bucketCount
}

// SlabHeaderFootprint returns the number of bytes a SlabTable's bucket
// array occupies starting at its headerOffset, given bucketCount — the
// minimum slabOffset a caller may pass to CreateSlabTable without the
// bucket array and the slab area overlapping.
func SlabHeaderFootprint(bucketCount uint64) int64 {
	return 8 + int64(bucketCount)*8 // disk_array<_,position_type>, Width64
}

// RecordHeaderFootprint is SlabHeaderFootprint's RecordTable
// counterpart — its bucket array uses Width32 cells.
func RecordHeaderFootprint(bucketCount uint64) int64 {
	return 4 + int64(bucketCount)*4 // disk_array<_,index>, Width32
}
