package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starkcore/node/central"
	"github.com/starkcore/node/core/pending"
	"github.com/starkcore/node/core/store"
	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/kv"
	"github.com/starkcore/node/corelib/kv/memdb"
	"github.com/starkcore/node/corelib/xlog"
)

// fakeCentral is an in-memory CentralSource backing only the handful of
// blocks a test seeds: a small hand-written fake rather than a mock
// framework, matching how this repo's narrow interfaces get tested.
type fakeCentral struct {
	mu sync.Mutex
	headers map[common.BlockNumber]central.HeaderItem
	head common.BlockNumber
	base common.BlockNumber
}

func newFakeCentral() *fakeCentral {
	return &fakeCentral{headers: make(map[common.BlockNumber]central.HeaderItem)}
}

func (f *fakeCentral) seed(n common.BlockNumber, h *types.BlockHeader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.NTransactions = 0
	h.NEvents = 0
	f.headers[n] = central.HeaderItem{Number: n, Header: h}
	if n+1 > f.head {
		f.head = n + 1
	}
}

func (f *fakeCentral) HeadMarker(ctx context.Context) (common.BlockNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeCentral) StreamHeaders(ctx context.Context, lo, hi common.BlockNumber) ([]central.HeaderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []central.HeaderItem
	for n := lo; n < hi; n++ {
		item, ok := f.headers[n]
		if !ok {
			break
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeCentral) StreamStateDiffs(ctx context.Context, lo, hi common.BlockNumber) ([]central.StateDiffItem, error) {
	return nil, nil
}

func (f *fakeCentral) StreamCasm(ctx context.Context, classHashes []common.ClassHash) (map[common.ClassHash]*types.CasmClass, error) {
	return nil, nil
}

func (f *fakeCentral) BaseLayerConfirmed(ctx context.Context) (common.BlockNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base, nil
}

func (f *fakeCentral) PendingBlock(ctx context.Context) (*central.PendingBlockItem, error) {
	return nil, context.Canceled
}

func testHeader(n common.BlockNumber, parent common.Hash) *types.BlockHeader {
	return &types.BlockHeader{
		BlockHash: common.Hash(common.FeltFromUint64(uint64(n) + 1000)),
		ParentHash: parent,
	}
}

func TestHeaderTaskCatchesUpToCentralHead(t *testing.T) {
	bs := store.Open(memdb.New(), kv.FullArchive, nil)
	t.Cleanup(func() { _ = bs.Close() })

	fc := newFakeCentral()
	h0 := testHeader(0, types.GenesisParentHash)
	fc.seed(0, h0)
	h1 := testHeader(1, h0.BlockHash)
	fc.seed(1, h1)

	cfg := DefaultConfig()
	cfg.BlockPropagationSleep = 10 * time.Millisecond
	c := New(bs, fc, nil, cfg, xlog.New("test", "header"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = c.runWriter(ctx) }()

	done := make(chan struct{})
	go func() {
		_ = c.runHeaderTask(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		markers, err := bs.Markers(ctx)
		return err == nil && markers.Header == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestBaseTaskAdvancesBaseMarker(t *testing.T) {
	bs := store.Open(memdb.New(), kv.FullArchive, nil)
	t.Cleanup(func() { _ = bs.Close() })

	fc := newFakeCentral()
	h0 := testHeader(0, types.GenesisParentHash)
	fc.seed(0, h0)
	require.NoError(t, bs.AppendBlock(context.Background(), 0, h0, nil, nil))
	fc.base = 1

	cfg := DefaultConfig()
	cfg.BaseLayerPollInterval = 10 * time.Millisecond
	c := New(bs, fc, nil, cfg, xlog.New("test", "base"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() { _ = c.runWriter(ctx) }()
	done := make(chan struct{})
	go func() {
		_ = c.runBaseTask(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		markers, err := bs.Markers(ctx)
		return err == nil && markers.Base == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunStopsCleanlyOnCancellation(t *testing.T) {
	bs := store.Open(memdb.New(), kv.FullArchive, nil)
	t.Cleanup(func() { _ = bs.Close() })

	fc := newFakeCentral()
	overlay := pending.New()
	c := New(bs, fc, overlay, DefaultConfig(), xlog.New("test", "run"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	assert.NoError(t, err)
}
