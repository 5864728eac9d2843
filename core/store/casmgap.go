package store

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/starkcore/node/corelib/common"
)

// casmGap is an in-memory accelerator for advanceCasmMarker: a bitmap of
// block numbers at or beyond marker(Casm) known to still be missing at
// least one declared class's casm body, plus a reverse index from class
// hash to the blocks waiting on it. It never holds correctness on its
// own — a block the cache knows about and holds no gap bit for is
// assumed complete, and advanceCasmMarker checks the Casm table directly
// for every block the cache has never heard of (e.g. right after process
// start); it does not record that result, so such a block is checked
// again on every pass. Bits are block
// numbers truncated to uint32, which starknet block numbers fit inside
// for the foreseeable lifetime of a chain.
type casmGap struct {
	mu sync.Mutex
	gaps *roaring.Bitmap
	waiters map[common.ClassHash]map[common.BlockNumber]struct{}
	known *roaring.Bitmap // blocks the cache has an opinion about at all
}

func newCasmGap() *casmGap {
	return &casmGap{
		gaps: roaring.New(),
		waiters: make(map[common.ClassHash]map[common.BlockNumber]struct{}),
		known: roaring.New(),
	}
}

// markPending records that block n is still waiting on the casm bodies in
// missing. Re-marking a block (after revert_to rewound and the block was
// appended again) replaces whatever the cache previously believed.
func (g *casmGap) markPending(n common.BlockNumber, missing []common.ClassHash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.known.Add(uint32(n))
	for ch, blocks := range g.waiters {
		delete(blocks, n)
		if len(blocks) == 0 {
			delete(g.waiters, ch)
		}
	}
	if len(missing) == 0 {
		g.gaps.Remove(uint32(n))
		return
	}
	g.gaps.Add(uint32(n))
	for _, ch := range missing {
		if g.waiters[ch] == nil {
			g.waiters[ch] = make(map[common.BlockNumber]struct{})
		}
		g.waiters[ch][n] = struct{}{}
	}
}

// resolve reports that classHash's casm body is now available, clearing
// the gap bit for any block that was waiting on only that hash. Blocks
// that needed more than one hash stay pending until resolve has been
// called for each of them; we don't track per-block remaining counts
// separately from the waiter map, so a block only clears once it has no
// waiter entries left under any class hash.
func (g *casmGap) resolve(classHash common.ClassHash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	blocks := g.waiters[classHash]
	delete(g.waiters, classHash)
	for n := range blocks {
		if !g.blockStillWaiting(n) {
			g.gaps.Remove(uint32(n))
		}
	}
}

// blockStillWaiting reports whether any class hash still lists n as a
// waiter. Callers hold g.mu.
func (g *casmGap) blockStillWaiting(n common.BlockNumber) bool {
	for _, blocks := range g.waiters {
		if _, ok := blocks[n]; ok {
			return true
		}
	}
	return false
}

// status reports whether the cache has an opinion on block n, and if so
// whether it's still gapped.
func (g *casmGap) status(n common.BlockNumber) (known, gapped bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	known = g.known.Contains(uint32(n))
	gapped = g.gaps.Contains(uint32(n))
	return known, gapped
}
