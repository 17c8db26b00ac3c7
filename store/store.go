// Package store composes the domain tables in internal/../database into
// data_base's push/pop/synchronize cycle (spec.md §4.G): the single
// entry point organizers write confirmed blocks through.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/database"
	"github.com/coinstack/blockchain/database/hsdb"
	"github.com/coinstack/blockchain/internal/htdb"
	"github.com/coinstack/blockchain/internal/mmfile"
	"github.com/coinstack/blockchain/log"
)

var storeLogger = log.New("pkg", "store")

// Store owns every domain table and the fixed table-sync ordering
// push/pop/synchronize must follow (spec.md §4.G).
type Store struct {
	settings chain.DatabaseSettings
	params   *chaincfg.Params

	blocks  *database.BlockTable
	txs     *database.TxTable
	spends  *database.SpendTable
	history *database.HistoryTable
	stealth *database.StealthTable
	hsdb    *hsdb.DB
}

const (
	maxBlockHeightsDefault = 1 << 16

	tablesDirPerm = 0755
)

func filePath(dir, name string) string { return filepath.Join(dir, name) }

func openFile(dir, name string) (*mmfile.File, error) {
	return mmfile.Open(filePath(dir, name))
}

// Create initializes a fresh store under dir. maxHeights bounds the
// block table's height index; HSDB shard heights tables are sized by
// chain.HSDBSettings.ShardMaxEntries instead. A deployment expecting to
// grow past maxHeights resizes by
// recreating with a larger value, the same operational tradeoff as any
// other disk_array's fixed capacity (spec.md §4.C).
func Create(dir string, settings chain.Settings, maxHeights uint64) (*Store, error) {
	if maxHeights == 0 {
		maxHeights = maxBlockHeightsDefault
	}
	if err := os.MkdirAll(dir, tablesDirPerm); err != nil {
		return nil, chain.New("store.Create", chain.KindDisk, err)
	}
	db := settings.Database

	blockFile, err := openFile(dir, "blocks.dat")
	if err != nil {
		return nil, err
	}
	blockIndexFile, err := openFile(dir, "block_index.dat")
	if err != nil {
		return nil, err
	}
	blocks, err := database.CreateBlockTable(blockFile, blockIndexFile, db.BlockTableBuckets, maxHeights)
	if err != nil {
		return nil, err
	}

	txFile, err := openFile(dir, "tx.dat")
	if err != nil {
		return nil, err
	}
	txSlabOffset := htdb.SlabHeaderFootprint(db.TransactionTableBuckets)
	txs, err := database.CreateTxTable(txFile, 0, txSlabOffset, db.TransactionTableBuckets)
	if err != nil {
		return nil, err
	}

	spendFile, err := openFile(dir, "spend.dat")
	if err != nil {
		return nil, err
	}
	spendRecordOffset := htdb.RecordHeaderFootprint(db.SpendTableBuckets)
	spends, err := database.CreateSpendTable(spendFile, 0, spendRecordOffset, db.SpendTableBuckets)
	if err != nil {
		return nil, err
	}

	historyHeadsFile, err := openFile(dir, "history_heads.dat")
	if err != nil {
		return nil, err
	}
	historyChainFile, err := openFile(dir, "history_chain.dat")
	if err != nil {
		return nil, err
	}
	history, err := database.CreateHistoryTable(historyHeadsFile, historyChainFile, db.HistoryTableBuckets)
	if err != nil {
		return nil, err
	}

	stealthRowFile, err := openFile(dir, "stealth_rows.dat")
	if err != nil {
		return nil, err
	}
	stealthIndexFile, err := openFile(dir, "stealth_index.dat")
	if err != nil {
		return nil, err
	}
	stealth, err := database.CreateStealthTable(stealthRowFile, stealthIndexFile)
	if err != nil {
		return nil, err
	}

	var hsdbDB *hsdb.DB
	if db.HSDB.Enabled {
		hsdbDB, err = hsdb.Create(filepath.Join(dir, "hsdb"), db.HSDB)
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		settings: db,
		params:   &chaincfg.MainNetParams,
		blocks:   blocks,
		txs:      txs,
		spends:   spends,
		history:  history,
		stealth:  stealth,
		hsdb:     hsdbDB,
	}, nil
}

// Start binds to an existing store under dir.
func Start(dir string, settings chain.Settings) (*Store, error) {
	db := settings.Database

	blockFile, err := openFile(dir, "blocks.dat")
	if err != nil {
		return nil, err
	}
	blockIndexFile, err := openFile(dir, "block_index.dat")
	if err != nil {
		return nil, err
	}
	blocks, err := database.OpenBlockTable(blockFile, blockIndexFile, db.BlockTableBuckets)
	if err != nil {
		return nil, err
	}

	txFile, err := openFile(dir, "tx.dat")
	if err != nil {
		return nil, err
	}
	txSlabOffset := htdb.SlabHeaderFootprint(db.TransactionTableBuckets)
	txs, err := database.OpenTxTable(txFile, 0, txSlabOffset, db.TransactionTableBuckets)
	if err != nil {
		return nil, err
	}

	spendFile, err := openFile(dir, "spend.dat")
	if err != nil {
		return nil, err
	}
	spendRecordOffset := htdb.RecordHeaderFootprint(db.SpendTableBuckets)
	spends, err := database.OpenSpendTable(spendFile, 0, spendRecordOffset)
	if err != nil {
		return nil, err
	}

	historyHeadsFile, err := openFile(dir, "history_heads.dat")
	if err != nil {
		return nil, err
	}
	historyChainFile, err := openFile(dir, "history_chain.dat")
	if err != nil {
		return nil, err
	}
	history, err := database.OpenHistoryTable(historyHeadsFile, historyChainFile, db.HistoryTableBuckets)
	if err != nil {
		return nil, err
	}

	stealthRowFile, err := openFile(dir, "stealth_rows.dat")
	if err != nil {
		return nil, err
	}
	stealthIndexFile, err := openFile(dir, "stealth_index.dat")
	if err != nil {
		return nil, err
	}
	stealth, err := database.OpenStealthTable(stealthRowFile, stealthIndexFile)
	if err != nil {
		return nil, err
	}

	var hsdbDB *hsdb.DB
	if db.HSDB.Enabled {
		hsdbDB, err = hsdb.Open(filepath.Join(dir, "hsdb"), db.HSDB)
		if err != nil {
			return nil, err
		}
	}

	return &Store{
		settings: db,
		params:   &chaincfg.MainNetParams,
		blocks:   blocks,
		txs:      txs,
		spends:   spends,
		history:  history,
		stealth:  stealth,
		hsdb:     hsdbDB,
	}, nil
}

// addressKey resolves pkScript to the single hash160-sized address key
// a history row indexes on (P2PKH/P2SH only — other script classes have
// no single indexable address and are silently skipped, matching how a
// libbitcoin-style history index only ever covered those two forms).
func addressKey(pkScript []byte, params *chaincfg.Params) ([]byte, bool) {
	_, addrs, n, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err != nil || n != 1 || len(addrs) != 1 {
		return nil, false
	}
	key := addrs[0].ScriptAddress()
	if len(key) != database.ShortHashSize {
		return nil, false
	}
	return key, true
}

// stealthMarker recognizes the OP_RETURN{1-byte version, 33-byte
// ephemeral pubkey} convention: a stealth payment signals itself via an
// OP_RETURN output immediately preceding the actual payment output in
// the same transaction.
func stealthMarker(script []byte) ([33]byte, bool) {
	var key [33]byte
	if len(script) != 2+34 || script[0] != txscript.OP_RETURN || script[1] != txscript.OP_DATA_34 {
		return key, false
	}
	payload := script[2:]
	copy(key[:], payload[1:34])
	return key, true
}

// stealthPrefix derives a row's filter prefix from its ephemeral key —
// purely a candidate-narrowing hint for scan(), not a consensus value.
func stealthPrefix(ephemeralKey [33]byte) uint32 {
	h := chainhash.HashH(ephemeralKey[:])
	return uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
}

// Push stores a confirmed block at height: per spec.md §4.G, for each
// transaction it stores the tx row, marks each input's outpoint spent,
// appends history rows for spent inputs and new outputs, and collects
// any stealth rows — then stores the block entry and index, and
// synchronizes every table in the fixed order transactions -> spends ->
// history -> stealth -> blocks -> block-index.
func (s *Store) Push(block *wire.MsgBlock, height uint32) error {
	var stealthRows []database.StealthRow
	txHashes := make([]chainhash.Hash, len(block.Transactions))

	for i, tx := range block.Transactions {
		txHash := tx.TxHash()
		txHashes[i] = txHash

		if err := s.txs.Store(txHash, &database.TxEntry{
			Height:       height,
			IndexInBlock: uint32(i),
			Tx:           *tx,
		}); err != nil {
			return err
		}

		if !isCoinbase(tx) {
			for inIdx, in := range tx.TxIn {
				if err := s.spends.Store(in.PreviousOutPoint, database.Spender{
					Hash:  txHash,
					Index: uint32(inIdx),
				}); err != nil {
					return err
				}
				if height < s.settings.HistoryStartHeight {
					continue
				}
				prevEntry, err := s.txs.Fetch(in.PreviousOutPoint.Hash)
				if err != nil {
					return err
				}
				if prevEntry == nil || int(in.PreviousOutPoint.Index) >= len(prevEntry.Tx.TxOut) {
					continue
				}
				prevOut := prevEntry.Tx.TxOut[in.PreviousOutPoint.Index]
				addr, ok := addressKey(prevOut.PkScript, s.params)
				if !ok {
					continue
				}
				if err := s.history.AddRow(addr, database.HistoryRow{
					Kind:   database.KindSpend,
					Point:  wire.OutPoint{Hash: txHash, Index: uint32(inIdx)},
					Height: height,
					Value:  uint64(prevOut.Value),
				}); err != nil {
					return err
				}
			}
		}

		for outIdx, out := range tx.TxOut {
			if height >= s.settings.StealthStartHeight {
				if ephemeral, ok := stealthMarker(out.PkScript); ok && outIdx+1 < len(tx.TxOut) {
					payOut := tx.TxOut[outIdx+1]
					if addr, ok := addressKey(payOut.PkScript, s.params); ok {
						var row database.StealthRow
						row.Prefix = stealthPrefix(ephemeral)
						row.EphemeralKey = ephemeral
						copy(row.AddressHash[:], addr)
						row.TxHash = txHash
						stealthRows = append(stealthRows, row)
					}
				}
			}
			if height < s.settings.HistoryStartHeight {
				continue
			}
			addr, ok := addressKey(out.PkScript, s.params)
			if !ok {
				continue
			}
			if err := s.history.AddRow(addr, database.HistoryRow{
				Kind:   database.KindOutput,
				Point:  wire.OutPoint{Hash: txHash, Index: uint32(outIdx)},
				Height: height,
				Value:  uint64(out.Value),
			}); err != nil {
				return err
			}
		}

		if s.hsdb != nil {
			for _, out := range tx.TxOut {
				if addr, ok := addressKey(out.PkScript, s.params); ok {
					s.hsdb.Add(hsdbKey(addr, s.settings.HSDB.TotalKeySize), encodeHSDBValue(txHash, uint64(out.Value), s.settings.HSDB.RowValueSize))
				}
			}
		}
	}

	if len(stealthRows) > 0 {
		if err := s.stealth.AppendRows(height, stealthRows); err != nil {
			return err
		}
	}

	blockHash := block.Header.BlockHash()
	if err := s.blocks.Store(blockHash, &database.BlockEntry{
		Header:   block.Header,
		Height:   height,
		TxHashes: txHashes,
	}); err != nil {
		return err
	}
	storeLogger.Debug("pushed block", "height", height, "hash", blockHash, "txs", len(txHashes))

	if s.hsdb != nil {
		if err := s.hsdb.Sync(height); err != nil {
			return err
		}
	}

	return s.synchronize()
}

// Pop undoes the top block, returning its height, per spec.md §4.G
// "symmetric and reverse": the sync ordering used by push is inverted
// so a crash mid-pop still leaves a truncable, detectable state.
func (s *Store) Pop() (uint32, error) {
	height, ok := s.blocks.TopHeight()
	if !ok {
		return 0, chain.New("store.Pop", chain.KindCorruption, fmt.Errorf("no blocks to pop"))
	}
	blockHash, entry, ok, err := s.blocks.FetchByHeight(height)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, chain.New("store.Pop", chain.KindCorruption, fmt.Errorf("height %d missing from block table", height))
	}

	if s.hsdb != nil {
		if err := s.hsdb.Unlink(height); err != nil {
			return 0, err
		}
	}

	if height == 0 {
		if err := s.stealth.Truncate(); err != nil {
			return 0, err
		}
	} else if err := s.stealth.PopAbove(height - 1); err != nil {
		return 0, err
	}

	for i := len(entry.TxHashes) - 1; i >= 0; i-- {
		txHash := entry.TxHashes[i]
		txEntry, err := s.txs.Fetch(txHash)
		if err != nil {
			return 0, err
		}
		if txEntry == nil {
			continue
		}
		tx := &txEntry.Tx

		for outIdx := len(tx.TxOut) - 1; outIdx >= 0; outIdx-- {
			if height < s.settings.HistoryStartHeight {
				continue
			}
			if addr, ok := addressKey(tx.TxOut[outIdx].PkScript, s.params); ok {
				if err := s.history.DeleteLastRow(addr); err != nil {
					return 0, err
				}
			}
		}

		if !isCoinbase(tx) {
			for inIdx := len(tx.TxIn) - 1; inIdx >= 0; inIdx-- {
				in := tx.TxIn[inIdx]
				if height >= s.settings.HistoryStartHeight {
					prevEntry, err := s.txs.Fetch(in.PreviousOutPoint.Hash)
					if err == nil && prevEntry != nil && int(in.PreviousOutPoint.Index) < len(prevEntry.Tx.TxOut) {
						prevOut := prevEntry.Tx.TxOut[in.PreviousOutPoint.Index]
						if addr, ok := addressKey(prevOut.PkScript, s.params); ok {
							if err := s.history.DeleteLastRow(addr); err != nil {
								return 0, err
							}
						}
					}
				}
				if err := s.spends.Remove(in.PreviousOutPoint); err != nil {
					return 0, err
				}
			}
		}

		if err := s.txs.Remove(txHash, txEntry); err != nil {
			return 0, err
		}
	}

	if err := s.blocks.Remove(blockHash, entry); err != nil {
		return 0, err
	}
	storeLogger.Debug("popped block", "height", height, "hash", blockHash)

	return height, s.synchronizeReverse()
}

// TopHeight returns the height of the store's current top block.
func (s *Store) TopHeight() (uint32, bool) {
	return s.blocks.TopHeight()
}

// HeaderAt returns the header indexed at height, used by populate_header
// to walk the store's confirmed chain for median-time-past and
// retarget context (spec.md §4.H).
func (s *Store) HeaderAt(height uint32) (wire.BlockHeader, bool, error) {
	_, entry, ok, err := s.blocks.FetchByHeight(height)
	if err != nil || !ok {
		return wire.BlockHeader{}, ok, err
	}
	return entry.Header, true, nil
}

// FetchTx returns a confirmed transaction's entry by hash, used by
// populate_block/populate_transaction to resolve a prevout already
// written to the store (spec.md §4.H "locate the previous output via
// the transaction table").
func (s *Store) FetchTx(hash chainhash.Hash) (*database.TxEntry, error) {
	return s.txs.Fetch(hash)
}

// IsSpent reports whether outpoint already has a recorded spender.
func (s *Store) IsSpent(outpoint wire.OutPoint) (bool, error) {
	_, spent, err := s.spends.Fetch(outpoint)
	return spent, err
}

// synchronize flushes every table's on-disk counter in push's fixed
// order: transactions -> spends -> history -> stealth -> blocks ->
// block-index (spec.md §4.G). The block index is written in place on
// every BlockTable.Store/MarkHole call, so there is no separate flush
// step for it here.
func (s *Store) synchronize() error {
	if err := s.txs.Sync(); err != nil {
		return err
	}
	if err := s.spends.Sync(); err != nil {
		return err
	}
	if err := s.history.Sync(); err != nil {
		return err
	}
	if err := s.stealth.Sync(); err != nil {
		return err
	}
	return s.blocks.Sync()
}

// synchronizeReverse is pop's inverted flush order (spec.md §4.G).
func (s *Store) synchronizeReverse() error {
	if err := s.blocks.Sync(); err != nil {
		return err
	}
	if err := s.stealth.Sync(); err != nil {
		return err
	}
	if err := s.history.Sync(); err != nil {
		return err
	}
	if err := s.spends.Sync(); err != nil {
		return err
	}
	return s.txs.Sync()
}

func isCoinbase(tx *wire.MsgTx) bool {
	return len(tx.TxIn) == 1 && tx.TxIn[0].PreviousOutPoint.Index == wire.MaxPrevOutIndex &&
		tx.TxIn[0].PreviousOutPoint.Hash == chainhash.Hash{}
}

// hsdbKey widens addr (an address hash, ShortHashSize bytes) to exactly
// totalSize bytes, zero-extended — chain.HSDBSettings.TotalKeySize is
// configurable independent of the address-hash width, so the scan key
// routed into hsdb.DB.Add must always match it exactly regardless of
// how the deployment has sized the shard files.
func hsdbKey(addr []byte, totalSize uint32) []byte {
	key := make([]byte, totalSize)
	copy(key, addr)
	return key
}

// encodeHSDBValue packs an HSDB row's value into exactly size bytes —
// chain.HSDBSettings.RowValueSize (spec.md §4.E) — leading with as much
// of the tx hash as fits, then the satoshi amount in the bytes that
// remain; a deployment sizing RowValueSize below HashSize only keeps a
// hash prefix, the same tradeoff TotalKeySize makes for scan keys.
func encodeHSDBValue(txHash chainhash.Hash, value uint64, size uint32) []byte {
	v := make([]byte, size)
	hashLen := copy(v, txHash[:])
	for i := 0; i < 8 && hashLen+i < len(v); i++ {
		v[hashLen+i] = byte(value >> (8 * i))
	}
	return v
}
