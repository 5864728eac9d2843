// Package mdbx backs kv.Env/Tx/RwTx/Cursor with libmdbx, the memory-mapped
// B+-tree engine this store is built on. This is the one concrete
// storage engine; everything above kv talks only to the interfaces in
// package kv.
package mdbx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	stdmdbx "github.com/erigontech/mdbx-go/mdbx"

	"github.com/starkcore/node/corelib/kv"
	"github.com/starkcore/node/corelib/xlog"
)

// defaultPageSize matches the OS page size on every platform erigon
// targets; MapSize must be a multiple of it.
const defaultPageSize = 4096

// errBusy is MDBX_BUSY (libmdbx/mdbx.h), which the installed mdbx-go binding
// does not expose as a named Errno.
const errBusy = stdmdbx.Errno(-30778)

// Env opens or creates a single memory-mapped file, exclusive to one
// writer at a time.
type Env struct {
	env *stdmdbx.Env

	mu sync.Mutex // serializes BeginRw: exactly one RwTx outstanding
	dbis map[string]stdmdbx.DBI
	closed bool
}

// Open creates or opens path as an mdbx environment sized per opts. It
// returns kv.ErrAlreadyOpenExclusive if another process already holds the
// file for writing.
func Open(path string, opts kv.Options) (*Env, error) {
	env, err := stdmdbx.NewEnv(stdmdbx.Default)
	if err != nil {
		return nil, fmt.Errorf("mdbx: new env: %w", err)
	}
	if err := env.SetOption(stdmdbx.OptMaxDB, uint64(len(kv.AllTables))); err != nil {
		return nil, fmt.Errorf("mdbx: set max dbs: %w", err)
	}
	mapSize := opts.MapSize
	if mapSize == 0 {
		mapSize = 1 << 30 // 1 GiB default
	}
	if mapSize%defaultPageSize != 0 {
		return nil, fmt.Errorf("mdbx: map size %d is not a multiple of the page size", mapSize)
	}
	growth := opts.GrowthStep
	if growth == 0 {
		growth = mapSize / 8
	}
	if err := env.SetGeometry(-1, -1, int(mapSize), int(growth), -1, defaultPageSize); err != nil {
		return nil, fmt.Errorf("mdbx: set geometry: %w", err)
	}

	flags := uint(stdmdbx.NoSubdir | stdmdbx.Coalesce | stdmdbx.LifoReclaim)
	if err := env.Open(path, flags, 0o664); err != nil {
		if errors.Is(err, errBusy) {
			return nil, kv.ErrAlreadyOpenExclusive
		}
		return nil, fmt.Errorf("mdbx: open %s: %w", path, err)
	}

	e := &Env{env: env, dbis: make(map[string]stdmdbx.DBI, len(kv.AllTables))}
	if err := e.createTables(); err != nil {
		env.Close()
		return nil, err
	}
	xlog.Info("mdbx env opened", "path", path, "mapSize", mapSize)
	return e, nil
}

func (e *Env) createTables() error {
	return e.env.Update(func(txn *stdmdbx.Txn) error {
		for _, name := range kv.AllTables {
			dbi, err := txn.OpenDBI(name, stdmdbx.Create, nil, nil)
			if err != nil {
				return fmt.Errorf("mdbx: open table %s: %w", name, err)
			}
			e.dbis[name] = dbi
		}
		return nil
	})
}

func (e *Env) dbi(table string) (stdmdbx.DBI, error) {
	dbi, ok := e.dbis[table]
	if !ok {
		return 0, fmt.Errorf("mdbx: unknown table %q", table)
	}
	return dbi, nil
}

// Close releases the memory map. No transaction may be open.
func (e *Env) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.env.Close()
	return nil
}

// BeginRo opens a read-only transaction observing the current committed
// snapshot.
func (e *Env) BeginRo(ctx context.Context) (kv.Tx, error) {
	txn, err := e.env.BeginTxn(nil, stdmdbx.Readonly)
	if err != nil {
		return nil, fmt.Errorf("mdbx: begin ro: %w", err)
	}
	return &roTx{env: e, txn: txn}, nil
}

// BeginRw opens the single writable transaction, blocking until any
// previous RwTx has committed or aborted.
func (e *Env) BeginRw(ctx context.Context) (kv.RwTx, error) {
	e.mu.Lock()
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("mdbx: begin rw: %w", err)
	}
	return &rwTx{roTx: roTx{env: e, txn: txn}}, nil
}

type roTx struct {
	env *Env
	txn *stdmdbx.Txn
}

func (t *roTx) Get(table string, key []byte) ([]byte, error) {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if err != nil {
		if errors.Is(err, stdmdbx.ErrNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("mdbx: get %s: %w", table, err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *roTx) Cursor(table string) (kv.Cursor, error) {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, fmt.Errorf("mdbx: open cursor %s: %w", table, err)
	}
	return &cursor{c: c}, nil
}

func (t *roTx) Rollback() {
	if t.txn != nil {
		t.txn.Abort()
		t.txn = nil
	}
}

type rwTx struct {
	roTx
}

func (t *rwTx) Insert(table string, key, value []byte) error {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return err
	}
	err = t.txn.Put(dbi, key, value, stdmdbx.NoOverwrite)
	if errors.Is(err, stdmdbx.KeyExist) {
		return kv.ErrKeyExists
	}
	if err != nil {
		return fmt.Errorf("mdbx: insert %s: %w", table, err)
	}
	return nil
}

func (t *rwTx) Upsert(table string, key, value []byte) error {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(dbi, key, value, 0); err != nil {
		return fmt.Errorf("mdbx: upsert %s: %w", table, err)
	}
	return nil
}

func (t *rwTx) Delete(table string, key []byte) (bool, error) {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return false, err
	}
	err = t.txn.Del(dbi, key, nil)
	if errors.Is(err, stdmdbx.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mdbx: delete %s: %w", table, err)
	}
	return true, nil
}

func (t *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	dbi, err := t.env.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, fmt.Errorf("mdbx: open rw cursor %s: %w", table, err)
	}
	return &cursor{c: c}, nil
}

func (t *rwTx) Commit() error {
	if t.txn == nil {
		return nil
	}
	_, err := t.txn.Commit()
	t.txn = nil
	t.env.mu.Unlock()
	if errors.Is(err, stdmdbx.MapFull) {
		return kv.ErrMapFull
	}
	if err != nil {
		return fmt.Errorf("mdbx: commit: %w", err)
	}
	return nil
}

func (t *rwTx) Abort() {
	if t.txn != nil {
		t.txn.Abort()
		t.txn = nil
		t.env.mu.Unlock()
	}
}

// Rollback on a write transaction is an abort; the embedded roTx version
// would leave the writer slot held.
func (t *rwTx) Rollback() { t.Abort() }

type cursor struct {
	c *stdmdbx.Cursor
}

func (c *cursor) SeekGE(seek []byte) ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(seek, nil, stdmdbx.SetRange)
	return closeOrReturn(k, v, err)
}

func (c *cursor) SeekLE(seek []byte) ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(seek, nil, stdmdbx.SetRange)
	if errors.Is(err, stdmdbx.ErrNotFound) {
		// Nothing >= seek; the last key overall (if any) is <= seek.
		return c.last()
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("mdbx: cursor seek_le: %w", err)
	}
	if string(k) == string(seek) {
		return k, v, true, nil
	}
	// k > seek: step back one.
	return c.Prev()
}

func (c *cursor) last() ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(nil, nil, stdmdbx.Last)
	return closeOrReturn(k, v, err)
}

func (c *cursor) Next() ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(nil, nil, stdmdbx.Next)
	return closeOrReturn(k, v, err)
}

func (c *cursor) Prev() ([]byte, []byte, bool, error) {
	k, v, err := c.c.Get(nil, nil, stdmdbx.Prev)
	return closeOrReturn(k, v, err)
}

func (c *cursor) Put(key, value []byte) error {
	return c.c.Put(key, value, 0)
}

func (c *cursor) Delete() error {
	return c.c.Del(0)
}

func (c *cursor) Close() {
	c.c.Close()
}

func closeOrReturn(k, v []byte, err error) ([]byte, []byte, bool, error) {
	if errors.Is(err, stdmdbx.ErrNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("mdbx: cursor: %w", err)
	}
	return k, v, true, nil
}
