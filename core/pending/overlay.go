// Package pending implements the mutable pending-block overlay: a
// partially filled header, an ordered list of in-flight transactions, a
// cumulative state diff, and newly declared but not-yet-stored class
// bodies, refreshed by the sync controller on its own poll interval and
// read atomically by gateway queries.
package pending

import (
	"sync"

	"github.com/google/btree"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
)

// txItem is one in-flight transaction, ordered by its position within the
// pending block (the ordering the btree index exists to maintain cheaply
// across repeated partial refreshes).
type txItem struct {
	idx int
	tx *types.Transaction
	output *types.TransactionOutput
}

func lessTxItem(a, b txItem) bool { return a.idx < b.idx }

// Overlay is the single mutable cell holding the in-flight block's
// content, guarded by a reader-writer lock. The zero value is empty
// (ok=false from Peek).
type Overlay struct {
	mu sync.RWMutex

	valid bool
	parentHash common.Hash
	header *types.BlockHeader
	txs *btree.BTreeG[txItem]
	diff *types.StateDiff
	classes map[common.ClassHash]*types.ContractClass
}

// New returns an empty overlay.
func New() *Overlay {
	return &Overlay{
		txs: btree.NewG(32, lessTxItem),
		diff: types.NewStateDiff(),
		classes: make(map[common.ClassHash]*types.ContractClass),
	}
}

// Reset replaces the overlay's content with a fresh in-flight block built
// on top of parentHash. Called once per sync-controller poll.
func (o *Overlay) Reset(parentHash common.Hash, header *types.BlockHeader) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid = true
	o.parentHash = parentHash
	o.header = header
	o.txs = btree.NewG(32, lessTxItem)
	o.diff = types.NewStateDiff()
	o.classes = make(map[common.ClassHash]*types.ContractClass)
}

// Clear empties the overlay; subsequent Peek calls report ok=false until
// the next Reset.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.valid = false
}

// AppendTx records one in-flight transaction at position idx.
func (o *Overlay) AppendTx(idx int, tx *types.Transaction, output *types.TransactionOutput) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.valid {
		return
	}
	o.txs.ReplaceOrInsert(txItem{idx: idx, tx: tx, output: output})
}

// MergeStateDiff folds diff into the overlay's cumulative diff.
func (o *Overlay) MergeStateDiff(diff *types.StateDiff) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.valid {
		return
	}
	o.diff.Merge(diff)
}

// AddClass records a newly declared but not-yet-stored class body.
func (o *Overlay) AddClass(classHash common.ClassHash, body *types.ContractClass) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.valid {
		return
	}
	o.classes[classHash] = body
}

// Peek implements store.PendingSource: it returns the in-flight block's
// content if the overlay is fresh relative to headHash, or ok=false if the
// overlay is empty or its parent hash no longer matches the chain head.
func (o *Overlay) Peek(headHash common.Hash) (header *types.BlockHeader, txs []*types.Transaction, outputs []*types.TransactionOutput, diff *types.StateDiff, classes map[common.ClassHash]*types.ContractClass, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.valid || o.parentHash != headHash {
		return nil, nil, nil, nil, nil, false
	}

	txs = make([]*types.Transaction, 0, o.txs.Len())
	outputs = make([]*types.TransactionOutput, 0, o.txs.Len())
	o.txs.Ascend(func(item txItem) bool {
		txs = append(txs, item.tx)
		outputs = append(outputs, item.output)
		return true
	})

	classesCopy := make(map[common.ClassHash]*types.ContractClass, len(o.classes))
	for k, v := range o.classes {
		classesCopy[k] = v
	}

	return o.header, txs, outputs, o.diff, classesCopy, true
}
