package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/codec"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
)

// BlockIDKind tags how a caller identified a block in a gateway-style
// request.
type BlockIDKind int

const (
	ByNumber BlockIDKind = iota
	ByHash
	Latest
	Pending
)

// BlockID is the union type get_block_by_id and friends accept.
type BlockID struct {
	Kind BlockIDKind
	Number common.BlockNumber
	Hash common.Hash
}

// BlockIDNumber, BlockIDHash, BlockIDLatest, BlockIDPending build a BlockID
// of the matching kind.
func BlockIDNumber(n common.BlockNumber) BlockID { return BlockID{Kind: ByNumber, Number: n} }
func BlockIDHash(h common.Hash) BlockID { return BlockID{Kind: ByHash, Hash: h} }
func BlockIDLatest() BlockID { return BlockID{Kind: Latest} }
func BlockIDPending() BlockID { return BlockID{Kind: Pending} }

// Finality reports whether a block has been observed confirmed on the
// base layer, per the GLOSSARY's Finality definition.
type Finality int

const (
	AcceptedOnL2 Finality = iota
	AcceptedOnL1
)

// BlockResult is the result of get_block_by_id.
type BlockResult struct {
	Header *types.BlockHeader
	Transactions []*types.Transaction
	Outputs []*types.TransactionOutput
}

// Receipt is the result of get_receipt.
type Receipt struct {
	TransactionHash common.TransactionHash
	BlockNumber common.BlockNumber
	Output *types.TransactionOutput
	Finality Finality
}

// StateUpdate is the result of get_state_update.
type StateUpdate struct {
	OldRoot common.FieldElement
	NewRoot common.FieldElement
	Diff *types.StateDiff
}

// EventWithLocation is one matched event plus the coordinates a gateway
// response needs to attribute it.
type EventWithLocation struct {
	types.Event
	BlockNumber common.BlockNumber
	TransactionHash common.TransactionHash
	EventIndex common.EventOffsetInOutput
}

// EventFilter is the input to get_events.
type EventFilter struct {
	FromBlock common.BlockNumber
	ToBlock common.BlockNumber
	Address *common.Address
	Keys []common.FieldElement
	ChunkSize int
	// ContinuationToken, if non-empty, resumes a prior page.
	ContinuationToken string
}

// EventsPage is the result of get_events.
type EventsPage struct {
	Events []EventWithLocation
	NextContinuationToken string
}

// PendingSource is the read-through hook the pending overlay (package
// core/pending) implements; Reader consults it for BlockIDPending and for
// every query that needs to see the in-flight block. A nil PendingSource
// makes every pending query behave as BlockIDLatest, matching an
// integrator with sync-only (no mempool) use.
type PendingSource interface {
	// Peek returns the in-flight block content if the overlay is fresh
	// (its ParentHash matches the current chain head), or ok=false if it
	// is empty or stale.
	Peek(headHash common.Hash) (header *types.BlockHeader, txs []*types.Transaction, outputs []*types.TransactionOutput, diff *types.StateDiff, classes map[common.ClassHash]*types.ContractClass, ok bool)
}

// Reader answers the gateway-facing queries, composing a BlockStore
// snapshot with an optional PendingSource.
type Reader struct {
	store *BlockStore
	pending PendingSource
	maxPageSize int
	maxKeysInFilter int
}

// NewReader builds a Reader. maxPageSize/maxKeysInFilter are the
// limits behind PageSizeTooBig/TooManyKeysInFilter, configurable via
// Config.
func NewReader(s *BlockStore, maxPageSize, maxKeysInFilter int) *Reader {
	return &Reader{store: s, maxPageSize: maxPageSize, maxKeysInFilter: maxKeysInFilter}
}

// SetPendingSource attaches (or detaches, with nil) the pending overlay.
func (r *Reader) SetPendingSource(p PendingSource) { r.pending = p }

// resolve maps a BlockID to a concrete block number. It does not consult
// the pending overlay: callers that serve Pending check the overlay first,
// and a Pending id that reaches resolve is answered as Latest. ok is true
// whenever err is nil.
func (r *Reader) resolve(tx kv.Tx, id BlockID) (n common.BlockNumber, ok bool, err error) {
	switch id.Kind {
	case ByNumber:
		return id.Number, true, nil
	case ByHash:
		sr := Snapshot(tx)
		h, err := sr.HeaderByHash(id.Hash)
		if err != nil {
			return 0, false, err
		}
		return h.BlockNumber, true, nil
	case Latest, Pending:
		m, err := getMarker(tx, kv.MarkerHeader)
		if err != nil {
			return 0, false, err
		}
		if m == 0 {
			return 0, false, ErrNoBlocks
		}
		return m - 1, true, nil
	default:
		return 0, false, fmt.Errorf("store: unknown block id kind %d", id.Kind)
	}
}

func (r *Reader) headHash(tx kv.Tx) (common.Hash, bool, error) {
	m, err := getMarker(tx, kv.MarkerHeader)
	if err != nil {
		return common.Hash{}, false, err
	}
	if m == 0 {
		return common.Hash{}, false, nil
	}
	h, err := Snapshot(tx).Header(m - 1)
	if err != nil {
		return common.Hash{}, false, err
	}
	return h.BlockHash, true, nil
}

// GetBlockByID implements get_block_by_id.
func (r *Reader) GetBlockByID(ctx context.Context, id BlockID) (*BlockResult, error) {
	var res *BlockResult
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if id.Kind == Pending && r.pending != nil {
			head, hasHead, err := r.headHash(tx)
			if err != nil {
				return err
			}
			if hasHead {
				if hdr, txs, outs, _, _, ok := r.pending.Peek(head); ok {
					res = &BlockResult{Header: hdr, Transactions: txs, Outputs: outs}
					return nil
				}
			}
			id = BlockIDLatest()
		}
		n, ok, err := r.resolve(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoBlocks
		}
		sr := Snapshot(tx)
		hdr, err := sr.Header(n)
		if err != nil {
			return err
		}
		txs, outs, err := sr.Body(n, hdr.NTransactions)
		if err != nil {
			return err
		}
		res = &BlockResult{Header: hdr, Transactions: txs, Outputs: outs}
		return nil
	})
	return res, err
}

// GetTxByHash implements get_tx_by_hash.
func (r *Reader) GetTxByHash(ctx context.Context, h common.TransactionHash) (*types.Transaction, error) {
	var out *types.Transaction
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		sr := Snapshot(tx)
		loc, err := sr.TxLocation(h)
		if err != nil {
			return err
		}
		raw, err := tx.Get(kv.Bodies, codec.KeyTxLocation(loc.Block, loc.Index))
		if err != nil {
			return err
		}
		out, err = DecodeTransaction(raw)
		return err
	})
	return out, err
}

// GetTxByLocation implements get_tx_by_location.
func (r *Reader) GetTxByLocation(ctx context.Context, block common.BlockNumber, idx common.TxOffsetInBlock) (*types.Transaction, error) {
	var out *types.Transaction
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		raw, err := tx.Get(kv.Bodies, codec.KeyTxLocation(block, idx))
		if err == kv.ErrNotFound {
			return ErrInvalidTransactionIndex
		}
		if err != nil {
			return err
		}
		out, err = DecodeTransaction(raw)
		return err
	})
	return out, err
}

// GetReceipt implements get_receipt, deriving Finality from marker(Base)
// per the GLOSSARY definition.
func (r *Reader) GetReceipt(ctx context.Context, h common.TransactionHash) (*Receipt, error) {
	var out *Receipt
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		sr := Snapshot(tx)
		loc, err := sr.TxLocation(h)
		if err != nil {
			return err
		}
		raw, err := tx.Get(kv.Outputs, codec.KeyTxLocation(loc.Block, loc.Index))
		if err != nil {
			return err
		}
		output, err := DecodeOutput(raw)
		if err != nil {
			return err
		}
		baseMarker, err := getMarker(tx, kv.MarkerBase)
		if err != nil {
			return err
		}
		finality := AcceptedOnL2
		if loc.Block <= baseMarker {
			finality = AcceptedOnL1
		}
		out = &Receipt{TransactionHash: h, BlockNumber: loc.Block, Output: output, Finality: finality}
		return nil
	})
	return out, err
}

// GetClass implements get_class: direct lookup, independent of block id
// (class bodies are immutable once stored).
func (r *Reader) GetClass(ctx context.Context, classHash common.ClassHash) (*types.ContractClass, error) {
	var out *types.ContractClass
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		var err error
		out, err = Snapshot(tx).Class(classHash)
		return err
	})
	return out, err
}

// GetClassHashAt implements get_class_hash_at, consulting the pending
// overlay first per the supplemented read-through feature.
func (r *Reader) GetClassHashAt(ctx context.Context, id BlockID, addr common.Address) (common.ClassHash, error) {
	var out common.ClassHash
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if id.Kind == Pending && r.pending != nil {
			head, hasHead, err := r.headHash(tx)
			if err != nil {
				return err
			}
			if hasHead {
				if _, _, _, diff, _, ok := r.pending.Peek(head); ok {
					if ch, found := diff.DeployedContracts[addr]; found {
						out = ch
						return nil
					}
					if ch, found := diff.ReplacedClasses[addr]; found {
						out = ch
						return nil
					}
				}
			}
			id = BlockIDLatest()
		}
		n, ok, err := r.resolve(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoBlocks
		}
		out, err = Snapshot(tx).ClassHashAt(RightAfter(n), addr)
		return err
	})
	return out, err
}

// GetClassAt implements get_class_at.
func (r *Reader) GetClassAt(ctx context.Context, id BlockID, addr common.Address) (*types.ContractClass, error) {
	ch, err := r.GetClassHashAt(ctx, id, addr)
	if err != nil {
		return nil, err
	}
	return r.GetClass(ctx, ch)
}

// GetNonce implements get_nonce, consulting the pending overlay first.
func (r *Reader) GetNonce(ctx context.Context, id BlockID, addr common.Address) (common.Nonce, error) {
	var out common.Nonce
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if id.Kind == Pending && r.pending != nil {
			head, hasHead, err := r.headHash(tx)
			if err != nil {
				return err
			}
			if hasHead {
				if _, _, _, diff, _, ok := r.pending.Peek(head); ok {
					if n, found := diff.Nonces[addr]; found {
						out = n
						return nil
					}
				}
			}
			id = BlockIDLatest()
		}
		n, ok, err := r.resolve(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoBlocks
		}
		out, err = Snapshot(tx).NonceAt(RightAfter(n), addr)
		return err
	})
	return out, err
}

// GetStorageAt implements get_storage_at, consulting the pending overlay
// first.
func (r *Reader) GetStorageAt(ctx context.Context, id BlockID, addr common.Address, key common.StorageKey) (common.FieldElement, error) {
	var out common.FieldElement
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if id.Kind == Pending && r.pending != nil {
			head, hasHead, err := r.headHash(tx)
			if err != nil {
				return err
			}
			if hasHead {
				if _, _, _, diff, _, ok := r.pending.Peek(head); ok {
					if upd, found := diff.StorageUpdates[addr]; found {
						if v, found := upd[key]; found {
							out = v
							return nil
						}
					}
				}
			}
			id = BlockIDLatest()
		}
		n, ok, err := r.resolve(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoBlocks
		}
		out, err = Snapshot(tx).StorageAt(RightAfter(n), addr, key)
		return err
	})
	return out, err
}

// GetStateUpdate implements get_state_update.
func (r *Reader) GetStateUpdate(ctx context.Context, id BlockID) (*StateUpdate, error) {
	var out *StateUpdate
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if id.Kind == Pending && r.pending != nil {
			head, hasHead, err := r.headHash(tx)
			if err != nil {
				return err
			}
			if hasHead {
				if _, _, _, diff, _, ok := r.pending.Peek(head); ok {
					out = &StateUpdate{Diff: diff}
					return nil
				}
			}
			id = BlockIDLatest()
		}
		n, ok, err := r.resolve(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoBlocks
		}
		sr := Snapshot(tx)
		hdr, err := sr.Header(n)
		if err != nil {
			return err
		}
		diff, err := sr.StateDiffAt(n)
		if err != nil {
			return err
		}
		var oldRoot common.FieldElement
		if n > 0 {
			prev, err := sr.Header(n - 1)
			if err != nil {
				return err
			}
			oldRoot = prev.StateRoot
		}
		out = &StateUpdate{OldRoot: oldRoot, NewRoot: hdr.StateRoot, Diff: diff}
		return nil
	})
	return out, err
}

// EncodeEventToken/DecodeEventToken implement the continuation-token wire
// format: base64url of the fixed-width (BlockNumber, TxOffsetInBlock,
// EventOffsetInOutput) tuple.
func EncodeEventToken(idx common.EventIndex) string {
	return base64.URLEncoding.EncodeToString(codec.EncodeContinuationToken(idx))
}

func DecodeEventToken(tok string) (common.EventIndex, error) {
	raw, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		return common.EventIndex{}, ErrInvalidContinuationToken
	}
	idx, err := codec.DecodeContinuationToken(raw)
	if err != nil {
		return common.EventIndex{}, ErrInvalidContinuationToken
	}
	return idx, nil
}

// GetEvents implements get_events. When filter.Address is set it uses the
// (Address, EventIndex) index directly; otherwise it scans the block
// range's bodies, which is the only layout this table set supports for
// an address-unconstrained filter.
func (r *Reader) GetEvents(ctx context.Context, filter EventFilter) (*EventsPage, error) {
	if filter.ChunkSize <= 0 || filter.ChunkSize > r.maxPageSize {
		return nil, ErrPageSizeTooBig
	}
	if len(filter.Keys) > r.maxKeysInFilter {
		return nil, ErrTooManyKeysInFilter
	}

	var start common.EventIndex
	if filter.ContinuationToken != "" {
		idx, err := DecodeEventToken(filter.ContinuationToken)
		if err != nil {
			return nil, err
		}
		start = idx
		start.EvIndex++ // resume strictly after the last-yielded event
	} else {
		start = common.EventIndex{Block: filter.FromBlock}
	}

	var out EventsPage
	err := r.store.ReadTx(ctx, func(tx kv.Tx) error {
		if filter.Address != nil {
			return r.scanEventsByAddress(tx, *filter.Address, filter, start, &out)
		}
		return r.scanEventsByBlockRange(tx, filter, start, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func matchesKeys(ev types.Event, keys []common.FieldElement) bool {
	if len(keys) == 0 {
		return true
	}
	if len(keys) > len(ev.Keys) {
		return false
	}
	for i, k := range keys {
		if k.Cmp(ev.Keys[i]) != 0 {
			return false
		}
	}
	return true
}

func (r *Reader) scanEventsByAddress(tx kv.Tx, addr common.Address, filter EventFilter, start common.EventIndex, out *EventsPage) error {
	c, err := tx.Cursor(kv.Events)
	if err != nil {
		return err
	}
	defer c.Close()

	prefix := codec.KeyAddrPrefix(addr)
	seek := codec.KeyEventIndex(addr, start)
	key, _, ok, err := c.SeekGE(seek)
	if err != nil {
		return err
	}
	for ok && len(key) >= len(prefix) && string(key[:len(prefix)]) == string(prefix) {
		idx, perr := eventIndexFromKey(key)
		if perr != nil {
			return perr
		}
		if idx.Block >= filter.ToBlock {
			break
		}
		if err := r.appendIfMatch(tx, addr, idx, filter.Keys, out); err != nil {
			return err
		}
		if len(out.Events) == filter.ChunkSize {
			out.NextContinuationToken = EncodeEventToken(idx)
			return nil
		}
		key, _, ok, err = c.Next()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) scanEventsByBlockRange(tx kv.Tx, filter EventFilter, start common.EventIndex, out *EventsPage) error {
	sr := Snapshot(tx)
	for n := start.Block; n < filter.ToBlock; n++ {
		hdr, err := sr.Header(n)
		if err == ErrBlockNotFound {
			break
		}
		if err != nil {
			return err
		}
		_, outs, err := sr.Body(n, hdr.NTransactions)
		if err != nil {
			return err
		}
		for ti, o := range outs {
			if n == start.Block && common.TxOffsetInBlock(ti) < start.TxIndex {
				continue
			}
			for ei, ev := range o.Events {
				if n == start.Block && common.TxOffsetInBlock(ti) == start.TxIndex && common.EventOffsetInOutput(ei) < start.EvIndex {
					continue
				}
				if !matchesKeys(ev, filter.Keys) {
					continue
				}
				loc := common.BlockLocation{Block: n, Index: common.TxOffsetInBlock(ti)}
				raw, err := tx.Get(kv.Bodies, codec.KeyTxLocation(loc.Block, loc.Index))
				if err != nil {
					return err
				}
				t, err := DecodeTransaction(raw)
				if err != nil {
					return err
				}
				out.Events = append(out.Events, EventWithLocation{
					Event: ev,
					BlockNumber: n,
					TransactionHash: t.Hash,
					EventIndex: common.EventOffsetInOutput(ei),
				})
				if len(out.Events) == filter.ChunkSize {
					out.NextContinuationToken = EncodeEventToken(common.EventIndex{
						Block: n, TxIndex: common.TxOffsetInBlock(ti), EvIndex: common.EventOffsetInOutput(ei),
					})
					return nil
				}
			}
		}
	}
	return nil
}

func (r *Reader) appendIfMatch(tx kv.Tx, addr common.Address, idx common.EventIndex, keys []common.FieldElement, out *EventsPage) error {
	raw, err := tx.Get(kv.Outputs, codec.KeyTxLocation(idx.Block, idx.TxIndex))
	if err != nil {
		return err
	}
	output, err := DecodeOutput(raw)
	if err != nil {
		return err
	}
	if int(idx.EvIndex) >= len(output.Events) {
		return kv.ErrCorrupt
	}
	ev := output.Events[idx.EvIndex]
	if ev.FromAddress != addr || !matchesKeys(ev, keys) {
		return nil
	}
	traw, err := tx.Get(kv.Bodies, codec.KeyTxLocation(idx.Block, idx.TxIndex))
	if err != nil {
		return err
	}
	t, err := DecodeTransaction(traw)
	if err != nil {
		return err
	}
	out.Events = append(out.Events, EventWithLocation{
		Event: ev,
		BlockNumber: idx.Block,
		TransactionHash: t.Hash,
		EventIndex: idx.EvIndex,
	})
	return nil
}
