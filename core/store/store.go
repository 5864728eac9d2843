// Package store implements the append-only, marker-ordered block store:
// headers, bodies, state diffs, casm, and base-layer confirmations, each
// its own stream with its own marker, written by a single writer and read
// by any number of concurrent snapshots.
package store

import (
	"context"
	"fmt"

	"github.com/starkcore/node/corelib/kv"
	"github.com/starkcore/node/corelib/xlog"
)

// BlockStore is the single entry point onto one opened kv.Env. Exactly one
// writer goroutine should hold it for appends at a time; BeginRo snapshots
// may be taken freely from any goroutine.
type BlockStore struct {
	env   kv.Env
	scope kv.Scope
	log   xlog.Logger

	casm *casmGap
}

// Open wraps an already-opened kv.Env. The caller owns the Env's lifetime
// (created via kv/mdbx.Open), keeping engine construction and domain
// wrapping as separate steps. A StateOnly scope keeps the state streams
// but drops transaction bodies, outputs, and events on append.
func Open(env kv.Env, scope kv.Scope, log xlog.Logger) *BlockStore {
	if log == nil {
		log = xlog.New("component", "store")
	}
	return &BlockStore{env: env, scope: scope, log: log, casm: newCasmGap()}
}

// Close releases the underlying Env.
func (s *BlockStore) Close() error {
	return s.env.Close()
}

// ReadTx runs fn against a fresh read-only snapshot, always rolling it
// back afterward.
func (s *BlockStore) ReadTx(ctx context.Context, fn func(tx kv.Tx) error) error {
	tx, err := s.env.BeginRo(ctx)
	if err != nil {
		return fmt.Errorf("store: begin ro: %w", err)
	}
	defer tx.Rollback()
	return fn(tx)
}

// WriteTx runs fn against the single read-write transaction, committing on
// a nil return and aborting otherwise. Concurrent WriteTx calls serialize
// on the Env.
func (s *BlockStore) WriteTx(ctx context.Context, fn func(tx kv.RwTx) error) error {
	tx, err := s.env.BeginRw(ctx)
	if err != nil {
		return fmt.Errorf("store: begin rw: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Markers returns a consistent snapshot of every stream marker.
func (s *BlockStore) Markers(ctx context.Context) (Markers, error) {
	var m Markers
	err := s.ReadTx(ctx, func(tx kv.Tx) error {
		var err error
		if m.Header, err = getMarker(tx, kv.MarkerHeader); err != nil {
			return err
		}
		if m.Body, err = getMarker(tx, kv.MarkerBody); err != nil {
			return err
		}
		if m.State, err = getMarker(tx, kv.MarkerState); err != nil {
			return err
		}
		if m.Casm, err = getMarker(tx, kv.MarkerCasm); err != nil {
			return err
		}
		if m.Base, err = getMarker(tx, kv.MarkerBase); err != nil {
			return err
		}
		return nil
	})
	return m, err
}
