package storage

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

type memItem struct {
	key   []byte
	value []byte
}

func memLess(a, b memItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Memory is an in-memory Store backed by a B-tree. It implements the same
// contract as the Badger store and is the default backend for unit tests
// and for the --in-memory flag.
type Memory struct {
	mu   sync.Mutex
	tree *btree.BTreeG[memItem]
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tree: btree.NewG(16, memLess)}
}

func (m *Memory) Get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tree.Get(memItem{key: key})
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (m *Memory) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value)
	return nil
}

func (m *Memory) put(key, value []byte) {
	m.tree.ReplaceOrInsert(memItem{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (m *Memory) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Delete(memItem{key: key})
	return nil
}

// Scan snapshots the matching pairs up front, so the iterator stays valid
// if the tree is mutated while a statement is still draining it.
func (m *Memory) Scan(prefix []byte) (Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []memItem
	m.tree.AscendGreaterOrEqual(memItem{key: prefix}, func(it memItem) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		items = append(items, it)
		return true
	})
	return &memIterator{items: items, pos: -1}, nil
}

func (m *Memory) DeleteRange(prefix []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var doomed [][]byte
	m.tree.AscendGreaterOrEqual(memItem{key: prefix}, func(it memItem) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		doomed = append(doomed, it.key)
		return true
	})
	for _, key := range doomed {
		m.tree.Delete(memItem{key: key})
	}
	return nil
}

func (m *Memory) NewBatch() Batch {
	return &memBatch{store: m}
}

func (m *Memory) Close() error { return nil }

type memIterator struct {
	items []memItem
	pos   int
}

func (it *memIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *memIterator) Key() []byte   { return it.items[it.pos].key }
func (it *memIterator) Value() []byte { return it.items[it.pos].value }
func (it *memIterator) Err() error    { return nil }
func (it *memIterator) Close() error  { return nil }

type memOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memBatch struct {
	store *Memory
	ops   []memOp
}

func (b *memBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
}

func (b *memBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			b.store.tree.Delete(memItem{key: op.key})
		} else {
			b.store.put(op.key, op.value)
		}
	}
	b.ops = nil
	return nil
}

func (b *memBatch) Discard() { b.ops = nil }
