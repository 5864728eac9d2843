// Package memdb is an in-memory kv.Env used by this repository's own
// tests, mirroring erigon's own kv/memdb convention (its test suite opens
// an in-memory mdbx-compatible Env rather than a real file almost
// everywhere unit tests touch storage). It implements the same
// single-writer, copy-on-write-snapshot contract as corelib/kv/mdbx, just
// with github.com/google/btree backing each table instead of libmdbx, so
// tests exercise the real kv.Env/Tx/RwTx/Cursor interfaces without a cgo
// dependency.
package memdb

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/starkcore/node/corelib/kv"
)

type item struct{ key, value []byte }

func less(a, b item) bool { return bytes.Compare(a.key, b.key) < 0 }

// Env is an in-memory store. Exactly one RwTx may be open at a time,
// matching kv.Env's contract; BeginRw blocks until any prior one commits
// or aborts.
type Env struct {
	mu sync.RWMutex
	committed map[string]*btree.BTreeG[item]
	writerMu sync.Mutex
	closed bool
}

// New returns an empty Env with every table in kv.AllTables created.
func New() *Env {
	tables := make(map[string]*btree.BTreeG[item], len(kv.AllTables))
	for _, t := range kv.AllTables {
		tables[t] = btree.NewG(32, less)
	}
	return &Env{committed: tables}
}

func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// BeginRo returns a read-only snapshot of the tables committed at the
// moment of the call; later writes never retroactively become visible to
// it, since Commit replaces table pointers rather than mutating them.
func (e *Env) BeginRo(ctx context.Context) (kv.Tx, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make(map[string]*btree.BTreeG[item], len(e.committed))
	for k, v := range e.committed {
		snapshot[k] = v
	}
	return &roTx{tables: snapshot}, nil
}

// BeginRw clones every table so the writer mutates a private copy,
// visible to nobody until Commit swaps it in.
func (e *Env) BeginRw(ctx context.Context) (kv.RwTx, error) {
	e.writerMu.Lock()
	e.mu.RLock()
	clones := make(map[string]*btree.BTreeG[item], len(e.committed))
	for k, v := range e.committed {
		clones[k] = v.Clone()
	}
	e.mu.RUnlock()
	return &rwTx{env: e, tables: clones}, nil
}

type roTx struct {
	tables map[string]*btree.BTreeG[item]
	done bool
}

func (t *roTx) Get(table string, key []byte) ([]byte, error) {
	bt, ok := t.tables[table]
	if !ok {
		return nil, kv.ErrCorrupt
	}
	v, found := bt.Get(item{key: key})
	if !found {
		return nil, kv.ErrNotFound
	}
	return v.value, nil
}

func (t *roTx) Cursor(table string) (kv.Cursor, error) {
	bt, ok := t.tables[table]
	if !ok {
		return nil, kv.ErrCorrupt
	}
	return &cursor{bt: bt}, nil
}

func (t *roTx) Rollback() { t.done = true }

type rwTx struct {
	env *Env
	tables map[string]*btree.BTreeG[item]
	done bool
}

func (t *rwTx) Get(table string, key []byte) ([]byte, error) {
	bt, ok := t.tables[table]
	if !ok {
		return nil, kv.ErrCorrupt
	}
	v, found := bt.Get(item{key: key})
	if !found {
		return nil, kv.ErrNotFound
	}
	return v.value, nil
}

func (t *rwTx) Cursor(table string) (kv.Cursor, error) { return t.RwCursor(table) }

func (t *rwTx) Insert(table string, key, value []byte) error {
	bt, ok := t.tables[table]
	if !ok {
		return kv.ErrCorrupt
	}
	if _, found := bt.Get(item{key: key}); found {
		return kv.ErrKeyExists
	}
	bt.ReplaceOrInsert(item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (t *rwTx) Upsert(table string, key, value []byte) error {
	bt, ok := t.tables[table]
	if !ok {
		return kv.ErrCorrupt
	}
	bt.ReplaceOrInsert(item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (t *rwTx) Delete(table string, key []byte) (bool, error) {
	bt, ok := t.tables[table]
	if !ok {
		return false, kv.ErrCorrupt
	}
	_, found := bt.Delete(item{key: key})
	return found, nil
}

func (t *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	bt, ok := t.tables[table]
	if !ok {
		return nil, kv.ErrCorrupt
	}
	return &cursor{bt: bt, rw: true}, nil
}

func (t *rwTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.env.mu.Lock()
	t.env.committed = t.tables
	t.env.mu.Unlock()
	t.env.writerMu.Unlock()
	return nil
}

func (t *rwTx) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.env.writerMu.Unlock()
}

// Rollback on a write transaction is an abort.
func (t *rwTx) Rollback() { t.Abort() }

// cursor walks a btree.BTreeG[item] in key order. It is a simple
// recompute-on-each-step cursor (ascend/descend from the current key),
// which is O(log n) per step and plenty fast for the table sizes this
// repo's own tests construct.
type cursor struct {
	bt *btree.BTreeG[item]
	rw bool
	current item
	valid bool
}

func (c *cursor) SeekGE(seek []byte) ([]byte, []byte, bool, error) {
	var found item
	ok := false
	c.bt.AscendGreaterOrEqual(item{key: seek}, func(it item) bool {
		found, ok = it, true
		return false
	})
	return c.land(found, ok)
}

func (c *cursor) SeekLE(seek []byte) ([]byte, []byte, bool, error) {
	var found item
	ok := false
	c.bt.DescendLessOrEqual(item{key: seek}, func(it item) bool {
		found, ok = it, true
		return false
	})
	return c.land(found, ok)
}

func (c *cursor) Next() ([]byte, []byte, bool, error) {
	if !c.valid {
		return nil, nil, false, nil
	}
	var found item
	ok := false
	c.bt.AscendGreaterOrEqual(c.current, func(it item) bool {
		// The current key may itself have been deleted, so skip by
		// comparison rather than by count.
		if bytes.Equal(it.key, c.current.key) {
			return true
		}
		found, ok = it, true
		return false
	})
	return c.land(found, ok)
}

func (c *cursor) Prev() ([]byte, []byte, bool, error) {
	if !c.valid {
		return nil, nil, false, nil
	}
	var found item
	ok := false
	c.bt.DescendLessOrEqual(c.current, func(it item) bool {
		if bytes.Equal(it.key, c.current.key) {
			return true
		}
		found, ok = it, true
		return false
	})
	return c.land(found, ok)
}

func (c *cursor) land(it item, ok bool) ([]byte, []byte, bool, error) {
	if !ok {
		c.valid = false
		return nil, nil, false, nil
	}
	c.current = it
	c.valid = true
	return it.key, it.value, true, nil
}

func (c *cursor) Put(key, value []byte) error {
	if !c.rw {
		return kv.ErrCorrupt
	}
	it := item{key: append([]byte(nil), key...), value: append([]byte(nil), value...)}
	c.bt.ReplaceOrInsert(it)
	c.current = it
	c.valid = true
	return nil
}

func (c *cursor) Delete() error {
	if !c.rw || !c.valid {
		return kv.ErrCorrupt
	}
	// The deleted key stays as the cursor's position so Next/Prev resume
	// from it, matching mdbx cursor-delete semantics.
	c.bt.Delete(c.current)
	return nil
}

func (c *cursor) Close() {}
