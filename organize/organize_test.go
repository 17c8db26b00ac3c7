package organize

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/database"
	"github.com/coinstack/blockchain/pools"
	"github.com/coinstack/blockchain/populate"
)

type fakeStore struct {
	blocks map[uint32]*wire.MsgBlock
	txs    map[chainhash.Hash]*database.TxEntry
	top    uint32
	hasTop bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: make(map[uint32]*wire.MsgBlock), txs: make(map[chainhash.Hash]*database.TxEntry)}
}

func (s *fakeStore) TopHeight() (uint32, bool) { return s.top, s.hasTop }

func (s *fakeStore) HeaderAt(height uint32) (wire.BlockHeader, bool, error) {
	b, ok := s.blocks[height]
	if !ok {
		return wire.BlockHeader{}, false, nil
	}
	return b.Header, true, nil
}

func (s *fakeStore) FetchTx(hash chainhash.Hash) (*database.TxEntry, error) { return s.txs[hash], nil }

func (s *fakeStore) IsSpent(wire.OutPoint) (bool, error) { return false, nil }

func (s *fakeStore) Push(block *wire.MsgBlock, height uint32) error {
	s.blocks[height] = block
	s.top = height
	s.hasTop = true
	for i, tx := range block.Transactions {
		s.txs[tx.TxHash()] = &database.TxEntry{Height: height, IndexInBlock: uint32(i), Tx: *tx}
	}
	return nil
}

func (s *fakeStore) Pop() (uint32, error) {
	height := s.top
	block := s.blocks[height]
	delete(s.blocks, height)
	for _, tx := range block.Transactions {
		delete(s.txs, tx.TxHash())
	}
	if height == 0 {
		s.hasTop = false
	} else {
		s.top = height - 1
	}
	return height, nil
}

func anyoneCanSpendOutput(value int64) *wire.TxOut {
	script, err := txscript.NewScriptBuilder().AddOp(txscript.OP_TRUE).Script()
	if err != nil {
		panic(err)
	}
	return &wire.TxOut{Value: value, PkScript: script}
}

// belowTarget reports whether hash meets the proof-of-work target that
// bits encodes (positive compact targets only, which is all these tests
// mine against).
func belowTarget(hash chainhash.Hash, bits uint32) bool {
	target := new(big.Int).Lsh(big.NewInt(int64(bits&0x007fffff)), 8*(uint(bits>>24)-3))
	var reversed chainhash.Hash
	for i := range hash {
		reversed[i] = hash[len(hash)-1-i]
	}
	return new(big.Int).SetBytes(reversed[:]).Cmp(target) <= 0
}

func mineBlock(t *testing.T, prev chainhash.Hash, bits uint32, timestamp time.Time) *wire.MsgBlock {
	t.Helper()
	cb := wire.NewMsgTx(wire.TxVersion)
	cb.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	cb.AddTxOut(&wire.TxOut{Value: 5_000_000_000})

	block := wire.NewMsgBlock(&wire.BlockHeader{})
	block.AddTransaction(cb)
	block.Header.PrevBlock = prev
	block.Header.Timestamp = timestamp
	block.Header.Bits = bits
	block.Header.MerkleRoot = cb.TxHash()

	for nonce := uint32(0); nonce < 1_000_000; nonce++ {
		block.Header.Nonce = nonce
		if belowTarget(block.Header.BlockHash(), bits) {
			return block
		}
	}
	t.Fatal("failed to mine block")
	return nil
}

func TestBlockOrganizerPushesSimpleExtension(t *testing.T) {
	store := newFakeStore()
	mu := NewPrioritizedMutex()
	settings := chain.BlockchainSettings{Retarget: true, BlockBytesLimit: 1_000_000, BlockSigopLimit: 20_000}
	o := NewBlockOrganizer(store, settings, nil, chain.BIPFlags{}, mu, 2)

	var notified []uint32
	o.Subscribe(func(height uint32, err error) {
		require.NoError(t, err)
		notified = append(notified, height)
	})

	genesisTime := time.Unix(1_600_000_000, 0)
	block := mineBlock(t, chainhash.Hash{}, 0x207fffff, genesisTime)
	headerCtx := populate.HeaderContext{Height: 0, Bits: 0x207fffff, MedianTimePast: genesisTime.Add(-time.Hour)}

	err := o.Organize(context.Background(), block, 0, headerCtx, nil, 5_000_000_000, genesisTime.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, notified)

	top, ok := store.TopHeight()
	require.True(t, ok)
	require.Equal(t, uint32(0), top)
}

func TestBlockOrganizerRejectsNonExtendingBlockWithoutFork(t *testing.T) {
	store := newFakeStore()
	mu := NewPrioritizedMutex()
	settings := chain.BlockchainSettings{Retarget: true}
	o := NewBlockOrganizer(store, settings, nil, chain.BIPFlags{}, mu, 1)

	genesisTime := time.Unix(1_600_000_000, 0)
	block := mineBlock(t, chainhash.Hash{0xaa}, 0x207fffff, genesisTime)
	headerCtx := populate.HeaderContext{Height: 5, Bits: 0x207fffff, MedianTimePast: genesisTime.Add(-time.Hour)}

	err := o.Organize(context.Background(), block, 5, headerCtx, nil, 5_000_000_000, genesisTime.Add(time.Minute))
	require.Error(t, err)
	require.Equal(t, chain.KindMissingAncestor, chain.Of(err))
}

func TestBlockOrganizerRejectsStoppedService(t *testing.T) {
	store := newFakeStore()
	mu := NewPrioritizedMutex()
	o := NewBlockOrganizer(store, chain.BlockchainSettings{}, nil, chain.BIPFlags{}, mu, 1)
	o.Stop()

	block := mineBlock(t, chainhash.Hash{}, 0x207fffff, time.Unix(0, 0))
	err := o.Organize(context.Background(), block, 0, populate.HeaderContext{}, nil, 0, time.Now())
	require.Error(t, err)
	require.Equal(t, chain.KindServiceStopped, chain.Of(err))
}

func TestHeaderOrganizerValidatesAndMarksBranchVerified(t *testing.T) {
	fc := newFakeHeaderChain()
	genesisTime := time.Unix(1_600_000_000, 0)
	fc.add(0, headerWith2(chainhash.Hash{}, 0x207fffff, genesisTime))

	mu := NewPrioritizedMutex()
	o := NewHeaderOrganizer(fc, chain.BlockchainSettings{Retarget: true}, nil, mu, 2)

	var notifiedHeight uint32
	o.Subscribe(func(height uint32, err error) {
		require.NoError(t, err)
		notifiedHeight = height
	})

	branch := pools.NewHeaderBranch(0, fc.headers[0].BlockHash())
	h := mineHeaderFor(t, fc.headers[0].BlockHash(), 0x207fffff, genesisTime.Add(time.Hour))
	require.True(t, branch.Push(&h))

	err := o.Organize(context.Background(), branch)
	require.NoError(t, err)
	require.Equal(t, uint32(1), notifiedHeight)
	require.True(t, branch.IsVerified(0))
}

type fakeHeaderChain struct {
	headers map[uint32]wire.BlockHeader
	top     uint32
	hasTop  bool
}

func newFakeHeaderChain() *fakeHeaderChain {
	return &fakeHeaderChain{headers: make(map[uint32]wire.BlockHeader)}
}

func (f *fakeHeaderChain) add(height uint32, header wire.BlockHeader) {
	f.headers[height] = header
	if !f.hasTop || height > f.top {
		f.top = height
		f.hasTop = true
	}
}

func (f *fakeHeaderChain) TopHeight() (uint32, bool) { return f.top, f.hasTop }

func (f *fakeHeaderChain) HeaderAt(height uint32) (wire.BlockHeader, bool, error) {
	h, ok := f.headers[height]
	return h, ok, nil
}

func headerWith2(prev chainhash.Hash, bits uint32, timestamp time.Time) wire.BlockHeader {
	return wire.BlockHeader{Version: 1, PrevBlock: prev, Bits: bits, Timestamp: timestamp}
}

func mineHeaderFor(t *testing.T, prev chainhash.Hash, bits uint32, timestamp time.Time) wire.BlockHeader {
	t.Helper()
	h := wire.BlockHeader{Version: 1, PrevBlock: prev, Bits: bits, Timestamp: timestamp}
	for nonce := uint32(0); nonce < 1_000_000; nonce++ {
		h.Nonce = nonce
		if belowTarget(h.BlockHash(), bits) {
			return h
		}
	}
	t.Fatal("failed to mine header")
	return h
}

type fakePool struct {
	inserted map[chainhash.Hash]int64
	outputs  map[wire.OutPoint]*wire.TxOut
}

func newFakePool() *fakePool {
	return &fakePool{inserted: make(map[chainhash.Hash]int64), outputs: make(map[wire.OutPoint]*wire.TxOut)}
}

func (p *fakePool) Has(hash chainhash.Hash) bool { _, ok := p.inserted[hash]; return ok }

func (p *fakePool) Output(outpoint wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := p.outputs[outpoint]
	return out, ok
}

func (p *fakePool) Insert(tx *wire.MsgTx, fee int64) error {
	p.inserted[tx.TxHash()] = fee
	return nil
}

func (p *fakePool) Remove(hash chainhash.Hash) { delete(p.inserted, hash) }

func TestTransactionOrganizerInsertsAcceptedTransaction(t *testing.T) {
	store := newFakeStore()
	funding := wire.NewMsgTx(wire.TxVersion)
	funding.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	funding.AddTxOut(anyoneCanSpendOutput(10_000))
	require.NoError(t, store.Push(wire.NewMsgBlock(&wire.BlockHeader{Timestamp: time.Unix(0, 0)}), 0))
	store.txs[funding.TxHash()] = &database.TxEntry{Tx: *funding}

	pool := newFakePool()
	mu := NewPrioritizedMutex()
	o := NewTransactionOrganizer(store, pool, chain.BlockchainSettings{MinimumOutputSatoshis: 500}, chain.BIPFlags{}, mu, 1)

	var notified bool
	o.Subscribe(func(height uint32, err error) {
		require.NoError(t, err)
		notified = true
	})

	spend := wire.NewMsgTx(wire.TxVersion)
	spend.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: funding.TxHash(), Index: 0}})
	spend.AddTxOut(&wire.TxOut{Value: 9_000})

	err := o.Organize(context.Background(), spend, 1)
	require.NoError(t, err)
	require.True(t, notified)
	require.Equal(t, int64(1_000), pool.inserted[spend.TxHash()])
}
