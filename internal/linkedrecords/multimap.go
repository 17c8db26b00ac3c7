package linkedrecords

import (
	"encoding/binary"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/htdb"
)

// Multimap is multimap_records<H>: maps key H to a chain head. The key
// lives, together with the chain-head index, inside an htdb.RecordTable
// whose 4-byte value IS the chain-head index; each chain entry is a List
// node whose payload carries the user value (spec.md §4.D).
type Multimap struct {
	heads *htdb.RecordTable // key -> chain head index (value size 4)
	chain *List
}

// NewMultimap composes an existing head table (an htdb.RecordTable
// created with valSize=4) with a List holding the per-row payloads.
func NewMultimap(heads *htdb.RecordTable, chain *List) *Multimap {
	return &Multimap{heads: heads, chain: chain}
}

// AddRow prepends a new row for key: if a chain already exists, prepend
// a linked record and rewrite the existing head cell in place; otherwise
// create the head entry via the htdb_record store. Returns the new
// chain node's index.
func (m *Multimap) AddRow(key []byte, writer func(payload []byte)) (alloc.Index, error) {
	existing, err := m.heads.Get(key)
	if err != nil {
		return 0, err
	}

	prevHead := alloc.EmptyIndex
	if existing != nil {
		prevHead = binary.LittleEndian.Uint32(existing)
	}

	newIdx, err := m.chain.Insert(prevHead)
	if err != nil {
		return 0, err
	}
	payload, err := m.chain.Get(newIdx)
	if err != nil {
		return 0, err
	}
	writer(payload)

	if existing != nil {
		// existing is a live view into the mapped file; htdb_record
		// values are mutated in place the same way disk_array cells are
		// (spec.md §4.C: "reads/writes are unsynchronized").
		binary.LittleEndian.PutUint32(existing, newIdx)
		return newIdx, nil
	}

	if _, err := m.heads.Store(key, func(v []byte) {
		binary.LittleEndian.PutUint32(v, newIdx)
	}); err != nil {
		return 0, err
	}
	return newIdx, nil
}

// Head returns key's current chain head, or alloc.EmptyIndex if key has
// no rows.
func (m *Multimap) Head(key []byte) (alloc.Index, error) {
	v, err := m.heads.Get(key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return alloc.EmptyIndex, nil
	}
	return binary.LittleEndian.Uint32(v), nil
}

// Iterate returns every payload in key's chain, head first (most
// recently inserted first), per spec.md §4.D.
func (m *Multimap) Iterate(key []byte) ([][]byte, error) {
	head, err := m.Head(key)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	cur := head
	for cur != alloc.EmptyIndex {
		payload, err := m.chain.Get(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, payload)
		cur, err = m.chain.Next(cur)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteLastRow removes key's chain head (the most-recently-inserted
// row), rewriting the head cell to the chain's second element (or Empty
// if that was the only row). Per spec.md §4.D, a fully-drained chain
// leaves an htdb_record entry pointing at Empty rather than a physically
// removed record — htdb_record has no general deletion.
func (m *Multimap) DeleteLastRow(key []byte) error {
	existing, err := m.heads.Get(key)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	head := binary.LittleEndian.Uint32(existing)
	if head == alloc.EmptyIndex {
		return nil
	}
	next, err := m.chain.Next(head)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(existing, next)
	return nil
}

// Sync flushes both the head table's and the chain's allocator counters.
func (m *Multimap) Sync() error {
	if err := m.heads.Sync(); err != nil {
		return err
	}
	return m.chain.Sync()
}
