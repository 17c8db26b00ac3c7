package chain

import "time"

// Settings enumerates the recognized configuration options from
// spec.md §6. Parsing (flags, files, env) happens at the process
// boundary, out of core; this struct is the shape the core consumes.
type Settings struct {
	Blockchain BlockchainSettings
	Database   DatabaseSettings
}

// BlockchainSettings covers consensus and organizer tuning.
type BlockchainSettings struct {
	Cores                  int
	Priority               bool
	ByteFeeSatoshis        uint64
	SigopFeeSatoshis       uint64
	MinimumOutputSatoshis  uint64
	NotifyLimit            time.Duration
	ReorganizationLimit    uint32
	BlockBufferLimit       uint32
	UseLibconsensus        bool
	Difficult              bool
	Retarget               bool
	BlockBytesLimit        uint32
	BlockSigopLimit        uint32
	TimeWarpPatch          bool
	RetargetOverflowPatch  bool
	ScryptProofOfWork      bool
	Checkpoints            []Checkpoint
	BIP                    BIPFlags
}

// BIPFlags toggles the per-BIP activation rules named in spec.md §6.
type BIPFlags struct {
	BIP16, BIP30, BIP34, BIP42, BIP65, BIP66 bool
	BIP68, BIP90, BIP112, BIP113             bool
	BIP141, BIP143, BIP147, BIP158           bool
}

// DatabaseSettings covers on-disk layout tuning.
type DatabaseSettings struct {
	HistoryStartHeight uint32
	StealthStartHeight uint32
	Directory          string
	FileGrowthRate     float64

	BlockTableBuckets       uint64
	TransactionTableBuckets uint64
	SpendTableBuckets       uint64
	HistoryTableBuckets     uint64

	HSDB HSDBSettings
}

// HSDBSettings sizes a sharded history-scan database (§4.E).
type HSDBSettings struct {
	Enabled          bool
	ShardedBitsize   uint32
	BucketBitsize    uint32
	TotalKeySize     uint32
	RowValueSize     uint32
	ShardMaxEntries  uint32
}

// Default returns the settings a freshly-initialized mainnet node uses.
func Default() Settings {
	return Settings{
		Blockchain: BlockchainSettings{
			Cores:                 0, // 0 means "use runtime.NumCPU()"
			Priority:              false,
			ByteFeeSatoshis:       1,
			SigopFeeSatoshis:      100,
			MinimumOutputSatoshis: 500,
			NotifyLimit:           24 * time.Hour,
			ReorganizationLimit:   0,
			BlockBufferLimit:      5000,
			BlockBytesLimit:       1_000_000,
			BlockSigopLimit:       20_000,
			Retarget:              true,
		},
		Database: DatabaseSettings{
			FileGrowthRate:          1.5,
			BlockTableBuckets:       100_000_000,
			TransactionTableBuckets: 100_000_000,
			SpendTableBuckets:       100_000_000,
			HistoryTableBuckets:     100_000_000,
			HSDB: HSDBSettings{
				ShardedBitsize: 8,
				BucketBitsize:  8,
				TotalKeySize:   33,
				RowValueSize:   38,
			},
		},
	}
}
