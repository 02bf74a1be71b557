package storage

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is the persistent Store, an LSM key-value store with
// lexicographic key order. Badger's own logger is silenced; the engine
// logs at its own boundaries instead.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a store in dir. An empty dir opens a
// purely in-memory Badger instance.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage get: %w", err)
	}
	return value, true, nil
}

func (b *Badger) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("storage put: %w", err)
	}
	return nil
}

func (b *Badger) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("storage delete: %w", err)
	}
	return nil
}

func (b *Badger) Scan(prefix []byte) (Iterator, error) {
	txn := b.db.NewTransaction(false)
	opts := badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   128,
		Prefix:         append([]byte(nil), prefix...),
	}
	return &badgerIterator{txn: txn, it: txn.NewIterator(opts)}, nil
}

func (b *Badger) DeleteRange(prefix []byte) error {
	// Collected first: Badger iterators see a snapshot, so deleting inside
	// the same read transaction is not allowed.
	var doomed [][]byte
	it, err := b.Scan(prefix)
	if err != nil {
		return err
	}
	for it.Next() {
		doomed = append(doomed, it.Key())
	}
	if err := it.Err(); err != nil {
		_ = it.Close()
		return err
	}
	if err := it.Close(); err != nil {
		return err
	}
	batch := b.NewBatch()
	for _, key := range doomed {
		batch.Delete(key)
	}
	return batch.Commit()
}

// NewBatch buffers writes and applies them in a single Badger update
// transaction, so a committed batch is all-or-nothing.
func (b *Badger) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

func (b *Badger) Close() error {
	return b.db.Close()
}

type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	started bool
	err     error
}

func (it *badgerIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
		it.it.Rewind()
	} else {
		it.it.Next()
	}
	return it.it.Valid()
}

func (it *badgerIterator) Key() []byte {
	return it.it.Item().KeyCopy(nil)
}

func (it *badgerIterator) Value() []byte {
	value, err := it.it.Item().ValueCopy(nil)
	if err != nil && it.err == nil {
		it.err = fmt.Errorf("storage scan value: %w", err)
	}
	return value
}

func (it *badgerIterator) Err() error { return it.err }

func (it *badgerIterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return nil
}

type badgerBatch struct {
	db  *badger.DB
	ops []memOp
}

func (b *badgerBatch) Put(key, value []byte) {
	b.ops = append(b.ops, memOp{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *badgerBatch) Delete(key []byte) {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), delete: true})
}

func (b *badgerBatch) Commit() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if op.delete {
				if err := txn.Delete(op.key); err != nil {
					return err
				}
			} else if err := txn.Set(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
	b.ops = nil
	if err != nil {
		return fmt.Errorf("storage batch commit: %w", err)
	}
	return nil
}

func (b *badgerBatch) Discard() { b.ops = nil }
