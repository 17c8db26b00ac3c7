// Package database implements the domain tables of spec.md §4.F: block,
// transaction, spend, history and stealth, each composed from the
// primitives in internal/{mmfile,alloc,diskarray,linkedrecords,htdb}.
// Record sizes here are bit-exact per spec.md §6 and grounded on
// original_source's fsizes.hpp/sizes.hpp.
package database

const (
	// HashSize is the width of a block/transaction hash key (hash32).
	HashSize = 32
	// ShortHashSize is the width of an address/prefix key used by the
	// history and stealth tables.
	ShortHashSize = 20

	// outpointSize is HashSize (prevout tx hash) + 4 (output index).
	outpointSize = HashSize + 4
	// spendValueSize is HashSize (spender tx hash) + 4 (spender input index).
	spendValueSize = HashSize + 4

	// blockIndexWidth selects the disk_array cell width for
	// height -> block-table-slab-offset (a position_type, 8 bytes).
	blockIndexWidth = 8

	// historyRowSize is kind(1) + point(36: hash32+u32) + height(4) + value(8).
	historyRowSize = 1 + HashSize + 4 + 4 + 8

	// stealthRowSize is prefix32(4) + ephemeral-key(33) + address-hash(20) + tx-hash(32).
	stealthRowSize = 4 + 33 + ShortHashSize + HashSize

	// defaultBucketCount is used by tables whose bucket count is not
	// otherwise configured via chain.DatabaseSettings.
	defaultBucketCount = 1 << 20
)
