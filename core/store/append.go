package store

import (
	"bytes"
	"context"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/codec"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
)

// AppendHeader implements append_header: the header stream
// advances by exactly one block, chained to the previous header's hash.
func (s *BlockStore) AppendHeader(ctx context.Context, n common.BlockNumber, h *types.BlockHeader) error {
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		return appendHeaderTx(tx, n, h)
	})
}

// AppendBody implements append_body: the transaction/output
// pair for block n, gated by marker(Body) < marker(Header) so it never
// overtakes the header stream.
func (s *BlockStore) AppendBody(ctx context.Context, n common.BlockNumber, txs []*types.Transaction, outputs []*types.TransactionOutput) error {
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		return appendBodyTx(tx, s.scope, n, txs, outputs)
	})
}

// AppendBlock writes a header and its body in a single RwTxn so there is
// no point at which one is visible without the other.
func (s *BlockStore) AppendBlock(ctx context.Context, n common.BlockNumber, h *types.BlockHeader, txs []*types.Transaction, outputs []*types.TransactionOutput) error {
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		if err := appendHeaderTx(tx, n, h); err != nil {
			return err
		}
		return appendBodyTx(tx, s.scope, n, txs, outputs)
	})
}

func appendHeaderTx(tx kv.RwTx, n common.BlockNumber, h *types.BlockHeader) error {
	marker, err := getMarker(tx, kv.MarkerHeader)
	if err != nil {
		return err
	}
	if marker != n {
		return ErrMarkerMismatch
	}

	if n > 0 {
		prevKey := codec.PutBlockNumber(n - 1)
		prevRaw, err := tx.Get(kv.Headers, prevKey[:])
		if err != nil {
			if err == kv.ErrNotFound {
				return ErrParentHashMismatch
			}
			return err
		}
		prev, err := DecodeHeader(prevRaw)
		if err != nil {
			return err
		}
		if h.ParentHash != prev.BlockHash {
			return ErrParentHashMismatch
		}
	} else if h.ParentHash != types.GenesisParentHash {
		return ErrParentHashMismatch
	}

	hashKey := h.BlockHash.Bytes()
	if existingRaw, err := tx.Get(kv.HashToNumber, hashKey[:]); err == nil {
		existing, decErr := codec.BlockNumber(existingRaw)
		if decErr != nil {
			return decErr
		}
		if existing != n {
			return ErrHashCollision
		}
	} else if err != kv.ErrNotFound {
		return err
	}

	keyN := codec.PutBlockNumber(n)
	if err := tx.Upsert(kv.Headers, keyN[:], EncodeHeader(h)); err != nil {
		return err
	}
	bn := codec.PutBlockNumber(n)
	if err := tx.Upsert(kv.HashToNumber, hashKey[:], bn[:]); err != nil {
		return err
	}
	return setMarker(tx, kv.MarkerHeader, n+1)
}

func appendBodyTx(tx kv.RwTx, scope kv.Scope, n common.BlockNumber, txs []*types.Transaction, outputs []*types.TransactionOutput) error {
	bodyMarker, err := getMarker(tx, kv.MarkerBody)
	if err != nil {
		return err
	}
	if bodyMarker != n {
		return ErrMarkerMismatch
	}
	headerMarker, err := getMarker(tx, kv.MarkerHeader)
	if err != nil {
		return err
	}
	if bodyMarker >= headerMarker {
		return ErrMarkerMismatch
	}

	hdrKey := codec.PutBlockNumber(n)
	hdrRaw, err := tx.Get(kv.Headers, hdrKey[:])
	if err != nil {
		return err
	}
	hdr, err := DecodeHeader(hdrRaw)
	if err != nil {
		return err
	}
	if len(txs) != len(outputs) || uint32(len(txs)) != hdr.NTransactions {
		return ErrBodyCountMismatch
	}
	var totalEvents uint32
	for _, o := range outputs {
		totalEvents += uint32(len(o.Events))
	}
	if totalEvents != hdr.NEvents {
		return ErrBodyCountMismatch
	}

	// StateOnly scope validates the body against its header but keeps
	// none of it: the store serves state queries only, so the bodies,
	// outputs, events, and tx-hash tables stay empty.
	if scope == kv.StateOnly {
		return setMarker(tx, kv.MarkerBody, n+1)
	}

	for i, t := range txs {
		loc := codec.KeyTxLocation(n, common.TxOffsetInBlock(i))

		hashKey := t.Hash.Bytes()
		if _, err := tx.Get(kv.TxHashToLocation, hashKey[:]); err == nil {
			return ErrDuplicateTxHash
		} else if err != kv.ErrNotFound {
			return err
		}

		encTx, err := EncodeTransaction(t)
		if err != nil {
			return err
		}
		if err := tx.Upsert(kv.Bodies, loc, encTx); err != nil {
			return err
		}
		if err := tx.Upsert(kv.Outputs, loc, EncodeOutput(outputs[i])); err != nil {
			return err
		}
		if err := tx.Insert(kv.TxHashToLocation, hashKey[:], loc); err != nil {
			if err == kv.ErrKeyExists {
				return ErrDuplicateTxHash
			}
			return err
		}

		for j, ev := range outputs[i].Events {
			idx := common.EventIndex{
				Block: n,
				TxIndex: common.TxOffsetInBlock(i),
				EvIndex: common.EventOffsetInOutput(j),
			}
			key := codec.KeyEventIndex(ev.FromAddress, idx)
			if err := tx.Upsert(kv.Events, key, nil); err != nil {
				return err
			}
		}
	}

	return setMarker(tx, kv.MarkerBody, n+1)
}

// AppendStateDiff implements append_state_diff, fanning the
// diff out into the deployed_at/replaced_at/class_history/nonces/storage
// secondary indexes the reader relies on.
func (s *BlockStore) AppendStateDiff(ctx context.Context, n common.BlockNumber, d *types.StateDiff) error {
	var missingCasm []common.ClassHash
	err := s.WriteTx(ctx, func(tx kv.RwTx) error {
		marker, err := getMarker(tx, kv.MarkerState)
		if err != nil {
			return err
		}
		if marker != n {
			return ErrMarkerMismatch
		}
		headerMarker, err := getMarker(tx, kv.MarkerHeader)
		if err != nil {
			return err
		}
		if marker >= headerMarker {
			return ErrMarkerMismatch
		}

		key := codec.PutBlockNumber(n)
		if err := tx.Upsert(kv.StateDiffs, key[:], EncodeStateDiff(d)); err != nil {
			return err
		}

		for addr, ch := range d.DeployedContracts {
			addrKey := addr.Bytes()
			if _, err := tx.Get(kv.DeployedAt, addrKey[:]); err == nil {
				return ErrContractAlreadyDeployed
			} else if err != kv.ErrNotFound {
				return err
			}
			bn := codec.PutBlockNumber(n)
			chBytes := ch.Bytes()
			val := make([]byte, 0, len(bn)+len(chBytes))
			val = append(val, bn[:]...)
			val = append(val, chBytes[:]...)
			if err := tx.Insert(kv.DeployedAt, addrKey[:], val); err != nil {
				if err == kv.ErrKeyExists {
					return ErrContractAlreadyDeployed
				}
				return err
			}
		}

		for ch := range d.DeclaredClasses {
			if err := declareClassOnce(tx, ch, n); err != nil {
				return err
			}
		}
		for ch := range d.DeprecatedDeclaredClasses {
			if err := declareClassOnce(tx, ch, n); err != nil {
				return err
			}
		}

		missingCasm = missingCasm[:0]
		for ch := range d.DeclaredClasses {
			key := ch.Bytes()
			if _, err := tx.Get(kv.Casm, key[:]); err == kv.ErrNotFound {
				missingCasm = append(missingCasm, ch)
			} else if err != nil {
				return err
			}
		}

		for addr, nonce := range d.Nonces {
			k := codec.KeyAddrBlock(addr, n)
			v := nonce.Bytes()
			if err := tx.Upsert(kv.Nonces, k, v[:]); err != nil {
				return err
			}
		}

		for addr, upd := range d.StorageUpdates {
			for sk, val := range upd {
				k := codec.KeyAddrStorageBlock(addr, sk, n)
				v := val.Bytes()
				if err := tx.Upsert(kv.Storage, k, v[:]); err != nil {
					return err
				}
			}
		}

		for addr, ch := range d.ReplacedClasses {
			k := codec.KeyAddrBlock(addr, n)
			v := ch.Bytes()
			if err := tx.Upsert(kv.ReplacedAt, k, v[:]); err != nil {
				return err
			}
		}

		return setMarker(tx, kv.MarkerState, n+1)
	})
	if err != nil {
		return err
	}
	// The cache only learns about the block once its diff is durably
	// committed, so an aborted transaction never leaves a stale entry.
	s.casm.markPending(n, missingCasm)
	return nil
}

// declareClassOnce records the first block a class hash was declared at;
// later redeclarations of the same hash are no-ops (the actual class body
// comparison happens in AppendClassBody).
func declareClassOnce(tx kv.RwTx, ch common.ClassHash, n common.BlockNumber) error {
	key := ch.Bytes()
	if _, err := tx.Get(kv.ClassHistory, key[:]); err == nil {
		return nil
	} else if err != kv.ErrNotFound {
		return err
	}
	bn := codec.PutBlockNumber(n)
	return tx.Upsert(kv.ClassHistory, key[:], bn[:])
}

// AppendClassBody implements append_class_body. It is
// independent of block markers: a class body may arrive any time after
// its declaration.
func (s *BlockStore) AppendClassBody(ctx context.Context, classHash common.ClassHash, body *types.ContractClass) error {
	enc, err := EncodeClass(body)
	if err != nil {
		return err
	}
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		key := classHash.Bytes()
		existing, err := tx.Get(kv.Classes, key[:])
		if err == nil {
			if !bytes.Equal(existing, enc) {
				return ErrClassBodyMismatch
			}
			return nil
		}
		if err != kv.ErrNotFound {
			return err
		}
		return tx.Upsert(kv.Classes, key[:], enc)
	})
}

// AppendCasm implements append_casm: stores the compiled
// class, then advances marker(Casm) past every consecutive block whose
// Sierra declarations are now fully backed by casm rows.
func (s *BlockStore) AppendCasm(ctx context.Context, classHash common.ClassHash, casm *types.CasmClass) error {
	enc := EncodeCasm(casm)
	err := s.WriteTx(ctx, func(tx kv.RwTx) error {
		key := classHash.Bytes()
		if err := tx.Upsert(kv.Casm, key[:], enc); err != nil {
			return err
		}
		return advanceCasmMarker(tx, s.casm)
	})
	if err != nil {
		return err
	}
	s.casm.resolve(classHash)
	return nil
}

// advanceCasmMarker pushes marker(Casm) forward over every block whose
// state diff's Sierra declarations all have a stored casm row, stopping at
// the first block missing one (or at marker(State)). The cache is a
// skip-hint only: a block it positively knows is gap-free advances
// without a table read, every other block is checked against the Casm
// table directly. The cache is never written here, so an aborted
// transaction leaves it untouched.
func advanceCasmMarker(tx kv.RwTx, cache *casmGap) error {
	casmMarker, err := getMarker(tx, kv.MarkerCasm)
	if err != nil {
		return err
	}
	stateMarker, err := getMarker(tx, kv.MarkerState)
	if err != nil {
		return err
	}

	n := casmMarker
	for n < stateMarker {
		if known, gapped := cache.status(n); known && !gapped {
			n++
			continue
		}

		key := codec.PutBlockNumber(n)
		raw, err := tx.Get(kv.StateDiffs, key[:])
		if err != nil {
			if err == kv.ErrNotFound {
				break
			}
			return err
		}
		diff, err := DecodeStateDiff(raw)
		if err != nil {
			return err
		}
		complete := true
		for ch := range diff.DeclaredClasses {
			classKey := ch.Bytes()
			if _, err := tx.Get(kv.Casm, classKey[:]); err == kv.ErrNotFound {
				complete = false
				break
			} else if err != nil {
				return err
			}
		}
		if !complete {
			break
		}
		n++
	}
	if n != casmMarker {
		return setMarker(tx, kv.MarkerCasm, n)
	}
	return nil
}

// UpdateBaseLayerMarker implements update_base_layer_marker: only monotonic, never-exceeding-header updates are accepted.
func (s *BlockStore) UpdateBaseLayerMarker(ctx context.Context, n common.BlockNumber) error {
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		headerMarker, err := getMarker(tx, kv.MarkerHeader)
		if err != nil {
			return err
		}
		if n > headerMarker {
			return ErrMarkerMismatch
		}
		current, err := getMarker(tx, kv.MarkerBase)
		if err != nil {
			return err
		}
		if n < current {
			return ErrMarkerMismatch
		}
		return setMarker(tx, kv.MarkerBase, n)
	})
}

// RevertTo implements revert_to: atomically truncates every
// stream whose marker exceeds n back down to n, deleting the rows
// produced by blocks >= n. Reserved for reorg handling; the core sync
// controller invokes it after a ParentHashMismatch from T-Writer and when
// detectReorg finds the stored tip hash differs from the upstream one.
func (s *BlockStore) RevertTo(ctx context.Context, n common.BlockNumber) error {
	return s.WriteTx(ctx, func(tx kv.RwTx) error {
		headerMarker, err := getMarker(tx, kv.MarkerHeader)
		if err != nil {
			return err
		}
		if headerMarker > n {
			if err := truncateHeaders(tx, n, headerMarker); err != nil {
				return err
			}
			if err := setMarker(tx, kv.MarkerHeader, n); err != nil {
				return err
			}
		}

		bodyMarker, err := getMarker(tx, kv.MarkerBody)
		if err != nil {
			return err
		}
		if bodyMarker > n {
			if err := truncateBodies(tx, n, bodyMarker); err != nil {
				return err
			}
			if err := setMarker(tx, kv.MarkerBody, n); err != nil {
				return err
			}
		}

		stateMarker, err := getMarker(tx, kv.MarkerState)
		if err != nil {
			return err
		}
		if stateMarker > n {
			if err := truncateState(tx, n, stateMarker); err != nil {
				return err
			}
			if err := setMarker(tx, kv.MarkerState, n); err != nil {
				return err
			}
		}

		casmMarker, err := getMarker(tx, kv.MarkerCasm)
		if err != nil {
			return err
		}
		if casmMarker > n {
			if err := setMarker(tx, kv.MarkerCasm, n); err != nil {
				return err
			}
		}

		baseMarker, err := getMarker(tx, kv.MarkerBase)
		if err != nil {
			return err
		}
		if baseMarker > n {
			if err := setMarker(tx, kv.MarkerBase, n); err != nil {
				return err
			}
		}

		return nil
	})
}

func truncateHeaders(tx kv.RwTx, n, upTo common.BlockNumber) error {
	for i := n; i < upTo; i++ {
		key := codec.PutBlockNumber(i)
		raw, err := tx.Get(kv.Headers, key[:])
		if err != nil {
			if err == kv.ErrNotFound {
				continue
			}
			return err
		}
		hdr, err := DecodeHeader(raw)
		if err != nil {
			return err
		}
		if _, err := tx.Delete(kv.Headers, key[:]); err != nil {
			return err
		}
		hashKey := hdr.BlockHash.Bytes()
		if _, err := tx.Delete(kv.HashToNumber, hashKey[:]); err != nil {
			return err
		}
	}
	return nil
}

func truncateBodies(tx kv.RwTx, n, upTo common.BlockNumber) error {
	for i := n; i < upTo; i++ {
		c, err := tx.RwCursor(kv.Bodies)
		if err != nil {
			return err
		}
		prefix := codec.PutBlockNumber(i)
		key, val, ok, err := c.SeekGE(prefix[:])
		for ok && err == nil && bytes.HasPrefix(key, prefix[:]) {
			tx2, decErr := DecodeTransaction(val)
			if decErr != nil {
				c.Close()
				return decErr
			}
			hashKey := tx2.Hash.Bytes()
			if _, derr := tx.Delete(kv.TxHashToLocation, hashKey[:]); derr != nil {
				c.Close()
				return derr
			}
			if derr := c.Delete(); derr != nil {
				c.Close()
				return derr
			}
			key, val, ok, err = c.Next()
		}
		c.Close()
		if err != nil {
			return err
		}

		oc, err := tx.RwCursor(kv.Outputs)
		if err != nil {
			return err
		}
		okey, _, ook, oerr := oc.SeekGE(prefix[:])
		for ook && oerr == nil && bytes.HasPrefix(okey, prefix[:]) {
			if derr := oc.Delete(); derr != nil {
				oc.Close()
				return derr
			}
			okey, _, ook, oerr = oc.Next()
		}
		oc.Close()
		if oerr != nil {
			return oerr
		}
	}

	// The events table is keyed by address first, so the reverted blocks'
	// rows are scattered through it; one full pass removes them all
	// instead of rescanning per block.
	ec, err := tx.RwCursor(kv.Events)
	if err != nil {
		return err
	}
	defer ec.Close()
	ekey, _, eok, eerr := ec.SeekGE(nil)
	for eok && eerr == nil {
		idx, perr := eventIndexFromKey(ekey)
		if perr != nil {
			return perr
		}
		if idx.Block >= n && idx.Block < upTo {
			if derr := ec.Delete(); derr != nil {
				return derr
			}
		}
		ekey, _, eok, eerr = ec.Next()
	}
	return eerr
}

// eventIndexFromKey extracts the EventIndex suffix from an
// (Address, EventIndex) events-table key.
func eventIndexFromKey(key []byte) (common.EventIndex, error) {
	if len(key) <= common.FeltBytes {
		return common.EventIndex{}, kv.ErrCorrupt
	}
	return codec.DecodeContinuationToken(key[common.FeltBytes:])
}

func truncateState(tx kv.RwTx, n, upTo common.BlockNumber) error {
	for i := n; i < upTo; i++ {
		key := codec.PutBlockNumber(i)
		raw, err := tx.Get(kv.StateDiffs, key[:])
		if err != nil {
			if err == kv.ErrNotFound {
				continue
			}
			return err
		}
		diff, err := DecodeStateDiff(raw)
		if err != nil {
			return err
		}
		if _, err := tx.Delete(kv.StateDiffs, key[:]); err != nil {
			return err
		}

		for addr := range diff.DeployedContracts {
			addrKey := addr.Bytes()
			if _, err := tx.Delete(kv.DeployedAt, addrKey[:]); err != nil {
				return err
			}
		}
		for ch := range diff.DeclaredClasses {
			if err := deleteClassHistoryIfAt(tx, ch, i); err != nil {
				return err
			}
		}
		for ch := range diff.DeprecatedDeclaredClasses {
			if err := deleteClassHistoryIfAt(tx, ch, i); err != nil {
				return err
			}
		}
		for addr := range diff.Nonces {
			k := codec.KeyAddrBlock(addr, i)
			if _, err := tx.Delete(kv.Nonces, k); err != nil {
				return err
			}
		}
		for addr, upd := range diff.StorageUpdates {
			for sk := range upd {
				k := codec.KeyAddrStorageBlock(addr, sk, i)
				if _, err := tx.Delete(kv.Storage, k); err != nil {
					return err
				}
			}
		}
		for addr := range diff.ReplacedClasses {
			k := codec.KeyAddrBlock(addr, i)
			if _, err := tx.Delete(kv.ReplacedAt, k); err != nil {
				return err
			}
		}
	}
	return nil
}

func deleteClassHistoryIfAt(tx kv.RwTx, ch common.ClassHash, n common.BlockNumber) error {
	key := ch.Bytes()
	raw, err := tx.Get(kv.ClassHistory, key[:])
	if err != nil {
		if err == kv.ErrNotFound {
			return nil
		}
		return err
	}
	declaredAt, err := codec.BlockNumber(raw)
	if err != nil {
		return err
	}
	if declaredAt != n {
		return nil
	}
	_, err = tx.Delete(kv.ClassHistory, key[:])
	return err
}
