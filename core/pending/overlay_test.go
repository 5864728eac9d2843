package pending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
)

func TestPeekEmptyOverlay(t *testing.T) {
	o := New()
	_, _, _, _, _, ok := o.Peek(common.Hash(common.FeltFromUint64(1)))
	assert.False(t, ok)
}

func TestPeekMismatchedParentIsTreatedAsEmpty(t *testing.T) {
	o := New()
	parent := common.Hash(common.FeltFromUint64(1))
	o.Reset(parent, &types.BlockHeader{})

	_, _, _, _, _, ok := o.Peek(common.Hash(common.FeltFromUint64(2)))
	assert.False(t, ok)
}

func TestPeekReturnsOrderedTransactions(t *testing.T) {
	o := New()
	parent := common.Hash(common.FeltFromUint64(1))
	o.Reset(parent, &types.BlockHeader{ParentHash: parent})

	tx0 := &types.Transaction{Hash: common.TransactionHash(common.FeltFromUint64(100))}
	tx1 := &types.Transaction{Hash: common.TransactionHash(common.FeltFromUint64(101))}
	out0 := &types.TransactionOutput{}
	out1 := &types.TransactionOutput{}

	// inserted out of order; Peek must still return them by idx.
	o.AppendTx(1, tx1, out1)
	o.AppendTx(0, tx0, out0)

	_, txs, outputs, _, _, ok := o.Peek(parent)
	require.True(t, ok)
	require.Len(t, txs, 2)
	assert.Equal(t, tx0.Hash, txs[0].Hash)
	assert.Equal(t, tx1.Hash, txs[1].Hash)
	assert.Len(t, outputs, 2)
}

func TestMergeStateDiffAccumulates(t *testing.T) {
	o := New()
	parent := common.Hash(common.FeltFromUint64(1))
	o.Reset(parent, &types.BlockHeader{})

	addr := common.Address(common.FeltFromUint64(7))
	ch := common.ClassHash(common.FeltFromUint64(8))

	d1 := types.NewStateDiff()
	d1.DeployedContracts[addr] = ch
	o.MergeStateDiff(d1)

	nonce := common.Nonce(common.FeltFromUint64(3))
	d2 := types.NewStateDiff()
	d2.Nonces[addr] = nonce
	o.MergeStateDiff(d2)

	_, _, _, diff, _, ok := o.Peek(parent)
	require.True(t, ok)
	assert.Equal(t, ch, diff.DeployedContracts[addr])
	assert.Equal(t, nonce, diff.Nonces[addr])
}

func TestAddClassAndResetClearsPriorContent(t *testing.T) {
	o := New()
	parent := common.Hash(common.FeltFromUint64(1))
	o.Reset(parent, &types.BlockHeader{})

	ch := common.ClassHash(common.FeltFromUint64(9))
	o.AddClass(ch, &types.ContractClass{Deprecated: &types.DeprecatedClass{}})

	_, _, _, _, classes, ok := o.Peek(parent)
	require.True(t, ok)
	assert.Contains(t, classes, ch)

	newParent := common.Hash(common.FeltFromUint64(2))
	o.Reset(newParent, &types.BlockHeader{})
	_, _, _, _, classes, ok = o.Peek(newParent)
	require.True(t, ok)
	assert.Empty(t, classes)
}

func TestClearMakesOverlayEmpty(t *testing.T) {
	o := New()
	parent := common.Hash(common.FeltFromUint64(1))
	o.Reset(parent, &types.BlockHeader{})
	o.Clear()

	_, _, _, _, _, ok := o.Peek(parent)
	assert.False(t, ok)
}
