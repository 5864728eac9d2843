// Package kv defines the storage-engine contract: typed, ordered tables
// with ACID semantics over a single-writer memory-mapped B+-tree file.
// Concrete engines (kv/mdbx) implement these interfaces;
// every other package talks to Tx/RwTx, never to the engine directly.
package kv

import (
	"context"
	"errors"
)

var (
	ErrAlreadyOpenExclusive = errors.New("kv: store already open for exclusive write access")
	ErrKeyExists = errors.New("kv: key already exists")
	ErrNotFound = errors.New("kv: key not found")
	ErrMapFull = errors.New("kv: memory map exhausted, reopen with a larger size")
	ErrCorrupt = errors.New("kv: store corrupt")
)

// Scope restricts which streams the store keeps. The engine stores
// whatever it is handed; the block store consults the scope on append.
type Scope int

const (
	FullArchive Scope = iota
	StateOnly
)

// Options configure mdbx.Open.
type Options struct {
	// MapSize is the maximum file size; must be a multiple of the OS page
	// size.
	MapSize uint64
	// GrowthStep is the increment by which the engine grows the file on
	// its way up to MapSize; kv/mdbx uses MapSize/8 when it is 0.
	GrowthStep uint64
}

// Env is a handle to one opened store. Exactly one process may hold it
// for read-write access at a time.
type Env interface {
	// BeginRo opens a cheap, read-only transaction that observes a
	// consistent snapshot. Any number may be held concurrently with the
	// one writer.
	BeginRo(ctx context.Context) (Tx, error)
	// BeginRw opens the single read-write transaction. A second
	// concurrent call blocks until the first transaction finishes.
	BeginRw(ctx context.Context) (RwTx, error)
	// Close releases the memory map. No transaction may be open.
	Close() error
}

// Tx is a read-only transaction: a consistent point-in-time view of every
// table.
type Tx interface {
	// Get returns the value stored for key in table, or ErrNotFound.
	Get(table string, key []byte) ([]byte, error)
	// Cursor opens a read cursor over table.
	Cursor(table string) (Cursor, error)
	// Rollback releases the transaction's snapshot. Safe to call more
	// than once.
	Rollback()
}

// RwTx is the single writable transaction. All writes within one RwTx are
// atomic and fully ordered; none become visible to RoTxns until Commit.
type RwTx interface {
	Tx
	// Insert writes key->value, failing with ErrKeyExists if key is
	// already present.
	Insert(table string, key, value []byte) error
	// Upsert writes key->value unconditionally.
	Upsert(table string, key, value []byte) error
	// Delete removes key, reporting whether it was present.
	Delete(table string, key []byte) (bool, error)
	// RwCursor opens a read-write cursor over table.
	RwCursor(table string) (RwCursor, error)
	// Commit makes all writes in this transaction visible to
	// subsequently started read-only transactions. May fail with
	// ErrMapFull.
	Commit() error
	// Abort discards every write. Safe to call after Commit (no-op).
	Abort()
}

// Cursor supports ordered range scans obeying the key ordering defined by
// codec: lexicographic byte order over the encoded key.
type Cursor interface {
	// SeekGE positions at the first key >= seek, or returns ok=false if
	// none exists.
	SeekGE(seek []byte) (key, value []byte, ok bool, err error)
	// SeekLE positions at the last key <= seek, or returns ok=false if
	// none exists.
	SeekLE(seek []byte) (key, value []byte, ok bool, err error)
	// Next advances to the following key in increasing order.
	Next() (key, value []byte, ok bool, err error)
	// Prev steps to the preceding key in increasing order.
	Prev() (key, value []byte, ok bool, err error)
	Close()
}

// RwCursor is a Cursor that may also mutate the table it was opened over,
// at its current position.
type RwCursor interface {
	Cursor
	Put(key, value []byte) error
	Delete() error
}
