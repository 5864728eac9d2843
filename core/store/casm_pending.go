package store

import (
	"context"
	"sort"

	"github.com/starkcore/node/corelib/codec"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
)

// missingFor reports the class hashes block n is still waiting on,
// according to the cache's waiter index. It takes the lock on its own;
// a class resolving between a status call and this one just means the
// caller fetches a casm body it already has, which AppendCasm absorbs
// as an upsert.
func (g *casmGap) missingFor(n common.BlockNumber) []common.ClassHash {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []common.ClassHash
	for ch, blocks := range g.waiters {
		if _, ok := blocks[n]; ok {
			out = append(out, ch)
		}
	}
	sortClassHashes(out)
	return out
}

func sortClassHashes(hs []common.ClassHash) {
	sort.Slice(hs, func(i, j int) bool {
		return common.FieldElement(hs[i]).Cmp(common.FieldElement(hs[j])) < 0
	})
}

// PendingCasmClasses implements T-Casm's gating check: the
// class hashes the earliest block at or after marker(Casm) is still
// waiting on, or nil if marker(Casm) has caught up with marker(State).
// Used by the sync controller to decide what to fetch from
// stream_casm before calling AppendCasm.
func (s *BlockStore) PendingCasmClasses(ctx context.Context) ([]common.ClassHash, error) {
	var out []common.ClassHash
	err := s.ReadTx(ctx, func(tx kv.Tx) error {
		casmMarker, err := getMarker(tx, kv.MarkerCasm)
		if err != nil {
			return err
		}
		stateMarker, err := getMarker(tx, kv.MarkerState)
		if err != nil {
			return err
		}
		if casmMarker >= stateMarker {
			return nil
		}

		if known, gapped := s.casm.status(casmMarker); known {
			if gapped {
				out = s.casm.missingFor(casmMarker)
			}
			return nil
		}

		key := codec.PutBlockNumber(casmMarker)
		raw, err := tx.Get(kv.StateDiffs, key[:])
		if err == kv.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		diff, err := DecodeStateDiff(raw)
		if err != nil {
			return err
		}
		for ch := range diff.DeclaredClasses {
			classKey := ch.Bytes()
			if _, err := tx.Get(kv.Casm, classKey[:]); err == kv.ErrNotFound {
				out = append(out, ch)
			} else if err != nil {
				return err
			}
		}
		sortClassHashes(out)
		return nil
	})
	return out, err
}
