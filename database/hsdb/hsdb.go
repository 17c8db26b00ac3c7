package hsdb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/internal/mmfile"
)

// defaultMaxHeights bounds a shard's heights table when
// chain.HSDBSettings.ShardMaxEntries is left at its zero value.
const defaultMaxHeights = 1 << 22

// DB is the sharded history-scan database: the top
// chain.HSDBSettings.ShardedBitsize bits of every scan key select one
// of 1<<ShardedBitsize shard files, each a self-contained Shard (spec.md
// §4.E). Shard files live as shard-NNNN under dir; Create and Open open
// every shard up front.
type DB struct {
	dir      string
	settings chain.HSDBSettings

	shardBytes    int
	remainderSize int
	numShards     uint64

	shards []*Shard
}

// Create initializes an empty sharded database under dir, one shard
// file per the top ShardedBitsize bits of a key.
func Create(dir string, s chain.HSDBSettings) (*DB, error) {
	if s.ShardedBitsize%8 != 0 {
		return nil, chain.New("hsdb.Create", chain.KindNotImplemented, nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, chain.New("hsdb.Create", chain.KindDisk, err)
	}
	db := newDB(dir, s)
	for i := uint64(0); i < db.numShards; i++ {
		file, err := mmfile.Open(db.shardPath(i))
		if err != nil {
			return nil, err
		}
		shard, err := CreateShard(file, maxHeights(s), s.BucketBitsize, db.remainderSize, int(s.RowValueSize))
		if err != nil {
			return nil, err
		}
		db.shards[i] = shard
	}
	return db, nil
}

// Open binds to an existing sharded database under dir.
func Open(dir string, s chain.HSDBSettings) (*DB, error) {
	if s.ShardedBitsize%8 != 0 {
		return nil, chain.New("hsdb.Open", chain.KindNotImplemented, nil)
	}
	db := newDB(dir, s)
	for i := uint64(0); i < db.numShards; i++ {
		file, err := mmfile.Open(db.shardPath(i))
		if err != nil {
			return nil, err
		}
		shard, err := OpenShard(file, s.BucketBitsize, db.remainderSize, int(s.RowValueSize))
		if err != nil {
			return nil, err
		}
		db.shards[i] = shard
	}
	return db, nil
}

func newDB(dir string, s chain.HSDBSettings) *DB {
	shardBytes := int(s.ShardedBitsize / 8)
	numShards := uint64(1) << s.ShardedBitsize
	return &DB{
		dir:           dir,
		settings:      s,
		shardBytes:    shardBytes,
		remainderSize: int(s.TotalKeySize) - shardBytes,
		numShards:     numShards,
		shards:        make([]*Shard, numShards),
	}
}

func maxHeights(s chain.HSDBSettings) uint64 {
	if s.ShardMaxEntries == 0 {
		return defaultMaxHeights
	}
	return uint64(s.ShardMaxEntries)
}

func (db *DB) shardPath(i uint64) string {
	return filepath.Join(db.dir, fmt.Sprintf("shard-%04x", i))
}

func (db *DB) shardOf(key []byte) (*Shard, []byte) {
	var idx uint64
	for i := 0; i < db.shardBytes; i++ {
		idx = idx<<8 | uint64(key[i])
	}
	mask := db.numShards - 1
	if db.numShards&mask == 0 {
		idx &= mask
	} else {
		idx %= db.numShards
	}
	return db.shards[idx], key[db.shardBytes:]
}

// Add buffers (key, value) for the shard key routes to, awaiting the
// next Sync(height) — spec.md §4.E "add(scan_key, value)".
func (db *DB) Add(key, value []byte) {
	shard, remainder := db.shardOf(key)
	shard.Add(remainder, value)
}

// Sync flushes every shard's buffered rows for height.
func (db *DB) Sync(height uint32) error {
	for _, s := range db.shards {
		if err := s.Sync(height); err != nil {
			return err
		}
	}
	return nil
}

// Unlink splices rows added at height >= fromHeight out of every
// shard, undoing the corresponding Sync calls (spec.md §4.E
// "unlink(from_height)", used by data_base.pop()).
func (db *DB) Unlink(fromHeight uint32) error {
	for _, s := range db.shards {
		if err := s.Unlink(fromHeight); err != nil {
			return err
		}
	}
	return nil
}

// Scan visits every row matching keyPrefix at or after fromHeight,
// routed to the single shard keyPrefix's top bits select — spec.md
// §4.E "scan(key_prefix, visitor, from_height)". keyPrefix shorter than
// ShardedBitsize/8 bytes cannot identify a shard and is rejected.
func (db *DB) Scan(keyPrefix []byte, fromHeight uint32, visit Visitor) error {
	if len(keyPrefix) < db.shardBytes {
		return chain.New("hsdb.DB.Scan", chain.KindNotImplemented, nil)
	}
	shard, remainder := db.shardOf(keyPrefix)
	return shard.Scan(remainder, fromHeight, visit)
}
