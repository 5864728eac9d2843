package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
	"github.com/starkcore/node/corelib/kv/memdb"
)

func newTestStore(t *testing.T) *BlockStore {
	t.Helper()
	s := Open(memdb.New(), kv.FullArchive, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testHeader(n common.BlockNumber, parent common.Hash) *types.BlockHeader {
	return &types.BlockHeader{
		BlockHash: common.Hash(common.FeltFromUint64(uint64(n) + 1000)),
		ParentHash: parent,
		BlockNumber: n,
		Timestamp: uint64(n) * 10,
		ProtocolVersion: "0.13.0",
	}
}

func appendEmptyBlock(t *testing.T, ctx context.Context, s *BlockStore, n common.BlockNumber, parent common.Hash) *types.BlockHeader {
	t.Helper()
	h := testHeader(n, parent)
	require.NoError(t, s.AppendBlock(ctx, n, h, nil, nil))
	return h
}

func TestAppendHeaderChainsAndAdvancesMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)
	h1 := appendEmptyBlock(t, ctx, s, 1, h0.BlockHash)
	_ = h1

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(2), markers.Header)
	assert.Equal(t, common.BlockNumber(2), markers.Body)
}

func TestAppendHeaderRejectsOutOfOrderMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h := testHeader(1, types.GenesisParentHash)
	err := s.AppendHeader(ctx, 1, h)
	assert.ErrorIs(t, err, ErrMarkerMismatch)
}

func TestAppendHeaderRejectsWrongParentHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)

	bad := testHeader(1, common.Hash(common.FeltFromUint64(999999)))
	err := s.AppendHeader(ctx, 1, bad)
	assert.ErrorIs(t, err, ErrParentHashMismatch)
}

func TestAppendHeaderRejectsWrongGenesisParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := testHeader(0, common.Hash(common.FeltFromUint64(1)))
	err := s.AppendHeader(ctx, 0, bad)
	assert.ErrorIs(t, err, ErrParentHashMismatch)
}

func TestAppendBodyRejectsCountMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h := testHeader(0, types.GenesisParentHash)
	h.NTransactions = 1
	require.NoError(t, s.AppendHeader(ctx, 0, h))

	err := s.AppendBody(ctx, 0, nil, nil)
	assert.ErrorIs(t, err, ErrBodyCountMismatch)
}

func TestAppendBodyRejectsOvertakingHeader(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.AppendBody(ctx, 0, nil, nil)
	assert.ErrorIs(t, err, ErrMarkerMismatch)
}

func TestAppendStateDiffGatedByHeaderMarker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)

	diff := types.NewStateDiff()
	require.NoError(t, s.AppendStateDiff(ctx, 0, diff))

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(1), markers.State)

	err = s.AppendStateDiff(ctx, 1, diff)
	assert.ErrorIs(t, err, ErrMarkerMismatch)
}

func TestAppendStateDiffRejectsDoubleDeploy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)
	appendEmptyBlock(t, ctx, s, 1, h0.BlockHash)

	addr := common.Address(common.FeltFromUint64(42))
	ch := common.ClassHash(common.FeltFromUint64(7))

	d0 := types.NewStateDiff()
	d0.DeployedContracts[addr] = ch
	require.NoError(t, s.AppendStateDiff(ctx, 0, d0))

	d1 := types.NewStateDiff()
	d1.DeployedContracts[addr] = ch
	err := s.AppendStateDiff(ctx, 1, d1)
	assert.ErrorIs(t, err, ErrContractAlreadyDeployed)
}

func TestAppendClassBodyIdempotentAndDetectsMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ch := common.ClassHash(common.FeltFromUint64(5))
	body := &types.ContractClass{Deprecated: &types.DeprecatedClass{Program: []byte("p1")}}

	require.NoError(t, s.AppendClassBody(ctx, ch, body))
	require.NoError(t, s.AppendClassBody(ctx, ch, body))

	other := &types.ContractClass{Deprecated: &types.DeprecatedClass{Program: []byte("p2")}}
	err := s.AppendClassBody(ctx, ch, other)
	assert.ErrorIs(t, err, ErrClassBodyMismatch)
}

func TestAppendCasmAdvancesMarkerOnlyWhenComplete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)

	ch1 := common.ClassHash(common.FeltFromUint64(1))
	ch2 := common.ClassHash(common.FeltFromUint64(2))

	diff := types.NewStateDiff()
	diff.DeclaredClasses[ch1] = common.CompiledClassHash(common.FeltFromUint64(11))
	diff.DeclaredClasses[ch2] = common.CompiledClassHash(common.FeltFromUint64(22))
	require.NoError(t, s.AppendStateDiff(ctx, 0, diff))

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(0), markers.Casm)

	require.NoError(t, s.AppendCasm(ctx, ch1, &types.CasmClass{}))
	markers, err = s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(0), markers.Casm, "still missing ch2")

	require.NoError(t, s.AppendCasm(ctx, ch2, &types.CasmClass{}))
	markers, err = s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(1), markers.Casm)
}

func TestUpdateBaseLayerMarkerRejectsBeyondHeaderOrBackwards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)

	assert.ErrorIs(t, s.UpdateBaseLayerMarker(ctx, 5), ErrMarkerMismatch)

	require.NoError(t, s.UpdateBaseLayerMarker(ctx, 1))
	assert.ErrorIs(t, s.UpdateBaseLayerMarker(ctx, 0), ErrMarkerMismatch)
}

func feltTx(hash uint64) *types.Transaction {
	return &types.Transaction{
		Hash: common.TransactionHash(common.FeltFromUint64(hash)),
		Kind: types.TxInvoke,
		Invoke: &types.InvokeFields{Version: 1},
	}
}

func outputWithEvents(from common.Address, n int) *types.TransactionOutput {
	o := &types.TransactionOutput{}
	for i := 0; i < n; i++ {
		o.Events = append(o.Events, types.Event{
			FromAddress: from,
			Keys: []common.FieldElement{common.FeltFromUint64(uint64(i))},
		})
	}
	return o
}

func TestAppendBodyRejectsDuplicateTxHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := testHeader(0, types.GenesisParentHash)
	h0.NTransactions = 1
	require.NoError(t, s.AppendHeader(ctx, 0, h0))
	h1 := testHeader(1, h0.BlockHash)
	h1.NTransactions = 1
	require.NoError(t, s.AppendHeader(ctx, 1, h1))

	require.NoError(t, s.AppendBody(ctx, 0, []*types.Transaction{feltTx(77)}, []*types.TransactionOutput{{}}))

	err := s.AppendBody(ctx, 1, []*types.Transaction{feltTx(77)}, []*types.TransactionOutput{{}})
	require.ErrorIs(t, err, ErrDuplicateTxHash)

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(1), markers.Body, "failed append must not advance the marker")
}

func TestStorageAtReflectsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)
	h1 := appendEmptyBlock(t, ctx, s, 1, h0.BlockHash)
	appendEmptyBlock(t, ctx, s, 2, h1.BlockHash)

	addr := common.Address(common.FeltFromUint64(5))
	key := common.StorageKey(common.FeltFromUint64(6))
	v0 := common.FeltFromUint64(100)
	v1 := common.FeltFromUint64(200)

	d0 := types.NewStateDiff()
	d0.StorageUpdates[addr] = map[common.StorageKey]common.FieldElement{key: v0}
	require.NoError(t, s.AppendStateDiff(ctx, 0, d0))
	d1 := types.NewStateDiff()
	d1.StorageUpdates[addr] = map[common.StorageKey]common.FieldElement{key: v1}
	require.NoError(t, s.AppendStateDiff(ctx, 1, d1))
	require.NoError(t, s.AppendStateDiff(ctx, 2, types.NewStateDiff()))

	require.NoError(t, s.WithSnapshot(ctx, func(r *StateReader) error {
		got, err := r.StorageAt(RightAfter(0), addr, key)
		require.NoError(t, err)
		assert.Equal(t, 0, v0.Cmp(got))

		got, err = r.StorageAt(RightAfter(1), addr, key)
		require.NoError(t, err)
		assert.Equal(t, 0, v1.Cmp(got))

		got, err = r.StorageAt(RightAfter(2), addr, key)
		require.NoError(t, err)
		assert.Equal(t, 0, v1.Cmp(got), "an empty block leaves the previous value visible")

		got, err = r.StorageAt(RightBefore(0), addr, key)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
		return nil
	}))
}

func TestClassHashAtSeesReplacement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)
	h1 := appendEmptyBlock(t, ctx, s, 1, h0.BlockHash)
	appendEmptyBlock(t, ctx, s, 2, h1.BlockHash)

	addr := common.Address(common.FeltFromUint64(9))
	classC := common.ClassHash(common.FeltFromUint64(10))
	classC2 := common.ClassHash(common.FeltFromUint64(11))

	d0 := types.NewStateDiff()
	d0.DeclaredClasses[classC] = common.CompiledClassHash(common.FeltFromUint64(1))
	d0.DeployedContracts[addr] = classC
	require.NoError(t, s.AppendStateDiff(ctx, 0, d0))
	require.NoError(t, s.AppendStateDiff(ctx, 1, types.NewStateDiff()))
	d2 := types.NewStateDiff()
	d2.ReplacedClasses[addr] = classC2
	require.NoError(t, s.AppendStateDiff(ctx, 2, d2))

	require.NoError(t, s.WithSnapshot(ctx, func(r *StateReader) error {
		got, err := r.ClassHashAt(RightAfter(1), addr)
		require.NoError(t, err)
		assert.Equal(t, classC, got)

		got, err = r.ClassHashAt(RightAfter(2), addr)
		require.NoError(t, err)
		assert.Equal(t, classC2, got)
		return nil
	}))
}

func TestGetEventsPaginatesWithoutDuplicatesOrGaps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	addrA := common.Address(common.FeltFromUint64(1))
	addrB := common.Address(common.FeltFromUint64(2))

	h0 := testHeader(0, types.GenesisParentHash)
	h0.NTransactions = 2
	h0.NEvents = 4
	require.NoError(t, s.AppendHeader(ctx, 0, h0))
	txs := []*types.Transaction{feltTx(1), feltTx(2)}
	outs := []*types.TransactionOutput{outputWithEvents(addrA, 3), outputWithEvents(addrB, 1)}
	require.NoError(t, s.AppendBody(ctx, 0, txs, outs))

	r := NewReader(s, 1024, 16)

	page1, err := r.GetEvents(ctx, EventFilter{ToBlock: 1, Address: &addrA, ChunkSize: 2})
	require.NoError(t, err)
	require.Len(t, page1.Events, 2)
	require.NotEmpty(t, page1.NextContinuationToken)

	page2, err := r.GetEvents(ctx, EventFilter{ToBlock: 1, Address: &addrA, ChunkSize: 2, ContinuationToken: page1.NextContinuationToken})
	require.NoError(t, err)
	require.Len(t, page2.Events, 1)
	assert.Empty(t, page2.NextContinuationToken)

	seen := make(map[common.EventOffsetInOutput]bool)
	for _, ev := range append(page1.Events, page2.Events...) {
		assert.Equal(t, addrA, ev.FromAddress)
		assert.False(t, seen[ev.EventIndex], "no duplicates across pages")
		seen[ev.EventIndex] = true
	}
	assert.Len(t, seen, 3)
}

func TestStateOnlyScopeDropsBodies(t *testing.T) {
	ctx := context.Background()
	s := Open(memdb.New(), kv.StateOnly, nil)
	t.Cleanup(func() { _ = s.Close() })

	h0 := testHeader(0, types.GenesisParentHash)
	h0.NTransactions = 1
	require.NoError(t, s.AppendHeader(ctx, 0, h0))
	require.NoError(t, s.AppendBody(ctx, 0, []*types.Transaction{feltTx(50)}, []*types.TransactionOutput{{}}))

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(1), markers.Body)

	require.NoError(t, s.WithSnapshot(ctx, func(r *StateReader) error {
		_, err := r.TxLocation(common.TransactionHash(common.FeltFromUint64(50)))
		assert.ErrorIs(t, err, ErrTransactionHashNotFound)
		return nil
	}))
}

func TestRevertToTruncatesEveryStream(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h0 := appendEmptyBlock(t, ctx, s, 0, types.GenesisParentHash)
	h1 := appendEmptyBlock(t, ctx, s, 1, h0.BlockHash)
	appendEmptyBlock(t, ctx, s, 2, h1.BlockHash)

	require.NoError(t, s.AppendStateDiff(ctx, 0, types.NewStateDiff()))
	require.NoError(t, s.AppendStateDiff(ctx, 1, types.NewStateDiff()))

	require.NoError(t, s.RevertTo(ctx, 1))

	markers, err := s.Markers(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.BlockNumber(1), markers.Header)
	assert.Equal(t, common.BlockNumber(1), markers.Body)
	assert.Equal(t, common.BlockNumber(1), markers.State)

	// block 1 can now be re-appended with a different header (the
	// reorg-recovery path RevertTo exists for).
	replacement := testHeader(1, h0.BlockHash)
	replacement.BlockHash = common.Hash(common.FeltFromUint64(9001))
	require.NoError(t, s.AppendHeader(ctx, 1, replacement))
}
