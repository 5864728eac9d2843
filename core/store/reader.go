package store

import (
	"context"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/codec"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
)

// StateNumber identifies a point in the state's history relative to a
// block boundary.
type StateNumber struct {
	block common.BlockNumber
	inclusive bool
}

// RightAfter reads reflect state through the end of block n.
func RightAfter(n common.BlockNumber) StateNumber { return StateNumber{block: n, inclusive: true} }

// RightBefore reads reflect state through the end of block n-1.
func RightBefore(n common.BlockNumber) StateNumber { return StateNumber{block: n, inclusive: false} }

// asOf returns the highest block number whose writes are visible.
func (s StateNumber) asOf() (common.BlockNumber, bool) {
	if s.inclusive {
		return s.block, true
	}
	if s.block == 0 {
		return 0, false
	}
	return s.block - 1, true
}

// StateReader answers point-in-time reads against one RoTxn snapshot,
// implementing the state-query operations that Reader dispatches to
// Snapshot().
type StateReader struct {
	tx kv.Tx
}

// Snapshot captures tx (already begun by the caller) as a StateReader.
func Snapshot(tx kv.Tx) *StateReader { return &StateReader{tx: tx} }

// ClassHashAt resolves the class deployed at address, as of state,
// overlaying any later class replacement.
func (r *StateReader) ClassHashAt(state StateNumber, addr common.Address) (common.ClassHash, error) {
	asOf, ok := state.asOf()
	if !ok {
		return common.ClassHash{}, &QueryError{Code: CodeContractNotFound, Msg: "query: contract not found"}
	}

	addrKey := addr.Bytes()
	raw, err := r.tx.Get(kv.DeployedAt, addrKey[:])
	if err == kv.ErrNotFound {
		return common.ClassHash{}, ErrContractNotFound
	}
	if err != nil {
		return common.ClassHash{}, err
	}
	if len(raw) != 8+common.FeltBytes {
		return common.ClassHash{}, kv.ErrCorrupt
	}
	deployedAt, err := codec.BlockNumber(raw[:8])
	if err != nil {
		return common.ClassHash{}, err
	}
	if deployedAt > asOf {
		return common.ClassHash{}, ErrContractNotFound
	}
	deployedClass, err := common.FeltFromBytes(raw[8:])
	if err != nil {
		return common.ClassHash{}, err
	}
	current := common.ClassHash(deployedClass)

	c, err := r.tx.Cursor(kv.ReplacedAt)
	if err != nil {
		return common.ClassHash{}, err
	}
	defer c.Close()
	seek := codec.KeyAddrBlock(addr, asOf)
	key, val, ok, err := c.SeekLE(seek)
	if err != nil {
		return common.ClassHash{}, err
	}
	prefix := codec.KeyAddrPrefix(addr)
	if ok && len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix) {
		f, err := common.FeltFromBytes(val)
		if err != nil {
			return common.ClassHash{}, err
		}
		current = common.ClassHash(f)
	}
	return current, nil
}

// NonceAt returns the nonce written at or before state, ZERO if absent.
func (r *StateReader) NonceAt(state StateNumber, addr common.Address) (common.Nonce, error) {
	asOf, ok := state.asOf()
	if !ok {
		return common.NonceZero, nil
	}
	c, err := r.tx.Cursor(kv.Nonces)
	if err != nil {
		return common.Nonce{}, err
	}
	defer c.Close()
	seek := codec.KeyAddrBlock(addr, asOf)
	key, val, ok, err := c.SeekLE(seek)
	if err != nil {
		return common.Nonce{}, err
	}
	prefix := codec.KeyAddrPrefix(addr)
	if !ok || len(key) < len(prefix) || string(key[:len(prefix)]) != string(prefix) {
		return common.NonceZero, nil
	}
	f, err := common.FeltFromBytes(val)
	if err != nil {
		return common.Nonce{}, err
	}
	return common.Nonce(f), nil
}

// StorageAt returns the value written at (addr, key) at or before state,
// ZERO if absent.
func (r *StateReader) StorageAt(state StateNumber, addr common.Address, key common.StorageKey) (common.FieldElement, error) {
	asOf, ok := state.asOf()
	if !ok {
		return common.FeltZero, nil
	}
	c, err := r.tx.Cursor(kv.Storage)
	if err != nil {
		return common.FieldElement{}, err
	}
	defer c.Close()
	seek := codec.KeyAddrStorageBlock(addr, key, asOf)
	k, val, ok, err := c.SeekLE(seek)
	if err != nil {
		return common.FieldElement{}, err
	}
	prefix := make([]byte, 0, common.FeltBytes*2)
	ab := addr.Bytes()
	kb := key.Bytes()
	prefix = append(prefix, ab[:]...)
	prefix = append(prefix, kb[:]...)
	if !ok || len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
		return common.FeltZero, nil
	}
	return common.FeltFromBytes(val)
}

// Class returns the stored class body for classHash.
func (r *StateReader) Class(classHash common.ClassHash) (*types.ContractClass, error) {
	key := classHash.Bytes()
	raw, err := r.tx.Get(kv.Classes, key[:])
	if err == kv.ErrNotFound {
		return nil, ErrClassHashNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeClass(raw)
}

// Casm returns the compiled class for classHash.
func (r *StateReader) Casm(classHash common.ClassHash) (*types.CasmClass, error) {
	key := classHash.Bytes()
	raw, err := r.tx.Get(kv.Casm, key[:])
	if err == kv.ErrNotFound {
		return nil, ErrClassHashNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeCasm(raw)
}

// Header returns the stored header at n.
func (r *StateReader) Header(n common.BlockNumber) (*types.BlockHeader, error) {
	key := codec.PutBlockNumber(n)
	raw, err := r.tx.Get(kv.Headers, key[:])
	if err == kv.ErrNotFound {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeHeader(raw)
}

// HeaderByHash resolves a block by its hash.
func (r *StateReader) HeaderByHash(h common.Hash) (*types.BlockHeader, error) {
	hashKey := h.Bytes()
	raw, err := r.tx.Get(kv.HashToNumber, hashKey[:])
	if err == kv.ErrNotFound {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	n, err := codec.BlockNumber(raw)
	if err != nil {
		return nil, err
	}
	return r.Header(n)
}

// Body returns the transactions and outputs stored for block n.
func (r *StateReader) Body(n common.BlockNumber, count uint32) ([]*types.Transaction, []*types.TransactionOutput, error) {
	txs := make([]*types.Transaction, 0, count)
	outs := make([]*types.TransactionOutput, 0, count)
	for i := common.TxOffsetInBlock(0); uint32(i) < count; i++ {
		loc := codec.KeyTxLocation(n, i)
		raw, err := r.tx.Get(kv.Bodies, loc)
		if err != nil {
			return nil, nil, err
		}
		t, err := DecodeTransaction(raw)
		if err != nil {
			return nil, nil, err
		}
		oraw, err := r.tx.Get(kv.Outputs, loc)
		if err != nil {
			return nil, nil, err
		}
		o, err := DecodeOutput(oraw)
		if err != nil {
			return nil, nil, err
		}
		txs = append(txs, t)
		outs = append(outs, o)
	}
	return txs, outs, nil
}

// TxLocation resolves a transaction hash to its block location.
func (r *StateReader) TxLocation(h common.TransactionHash) (common.BlockLocation, error) {
	key := h.Bytes()
	raw, err := r.tx.Get(kv.TxHashToLocation, key[:])
	if err == kv.ErrNotFound {
		return common.BlockLocation{}, ErrTransactionHashNotFound
	}
	if err != nil {
		return common.BlockLocation{}, err
	}
	loc, err := codec.TxLocation(raw)
	if err != nil {
		return common.BlockLocation{}, kv.ErrCorrupt
	}
	return loc, nil
}

// StateDiffAt returns the full stored state diff for block n (the value
// get_state_update returns).
func (r *StateReader) StateDiffAt(n common.BlockNumber) (*types.StateDiff, error) {
	key := codec.PutBlockNumber(n)
	raw, err := r.tx.Get(kv.StateDiffs, key[:])
	if err == kv.ErrNotFound {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeStateDiff(raw)
}

// WithSnapshot opens a RoTxn, builds a StateReader, and runs fn before
// rolling the transaction back.
func (s *BlockStore) WithSnapshot(ctx context.Context, fn func(r *StateReader) error) error {
	return s.ReadTx(ctx, func(tx kv.Tx) error {
		return fn(Snapshot(tx))
	})
}
