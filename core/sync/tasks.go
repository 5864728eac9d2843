package sync

import (
	"context"
	"errors"

	"github.com/starkcore/node/core/store"
	"github.com/starkcore/node/corelib/common"
)

// runHeaderTask is T-Header: advances marker(Header) one
// block at a time from the central source, gated only by the upstream
// head and by detectReorg's tip-hash check. It never blocks on any other
// stream.
func (c *Controller) runHeaderTask(ctx context.Context) error {
	every := c.cfg.ReorgCheckEvery
	if every <= 0 {
		every = 1
	}
	iterations := 0
	for !ctxDone(ctx) {
		if iterations%every == 0 {
			if err := c.detectReorg(ctx); err != nil {
				c.log.Warn("reorg check failed", "err", err)
			}
		}

		markers, err := c.store.Markers(ctx)
		if err != nil {
			return err
		}
		head, err := c.central.HeadMarker(ctx)
		if err != nil {
			c.log.Warn("head_marker failed", "err", err)
			if err := sleep(ctx, c.cfg.BlockPropagationSleep); err != nil {
				return nil
			}
			continue
		}
		if head <= markers.Header {
			if err := sleep(ctx, c.cfg.BlockPropagationSleep); err != nil {
				return nil
			}
			continue
		}

		items, err := c.central.StreamHeaders(ctx, markers.Header, head)
		for _, it := range items {
			it := it
			appendErr := c.send(ctx, func(ctx context.Context) error {
				return c.store.AppendBlock(ctx, it.Number, it.Header, it.Transactions, it.Outputs)
			})
			if appendErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(appendErr, store.ErrParentHashMismatch) {
					c.log.Warn("parent hash mismatch, reverting", "block", it.Number)
					if revertErr := c.send(ctx, func(ctx context.Context) error {
						return c.store.RevertTo(ctx, it.Number-1)
					}); revertErr != nil {
						return revertErr
					}
					break
				}
				c.log.Warn("append header failed", "block", it.Number, "err", appendErr)
				break
			}
			if err := yield(ctx); err != nil {
				return nil
			}
		}
		if err != nil && len(items) == 0 {
			c.log.Warn("stream_headers failed", "err", err)
			if err := sleep(ctx, c.cfg.BlockPropagationSleep); err != nil {
				return nil
			}
		}

		iterations++
	}
	return nil
}

// detectReorg polls the central source's header at marker(Header)-1 and
// compares its hash against the one already stored, reverting one block
// back on mismatch. This catches a reorg the forward-append
// ParentHashMismatch path would otherwise only notice one block later.
func (c *Controller) detectReorg(ctx context.Context) error {
	markers, err := c.store.Markers(ctx)
	if err != nil {
		return err
	}
	if markers.Header == 0 {
		return nil
	}
	tip := markers.Header - 1
	items, err := c.central.StreamHeaders(ctx, tip, tip+1)
	if err != nil || len(items) == 0 {
		return err
	}
	var storedHash common.Hash
	err = c.store.WithSnapshot(ctx, func(r *store.StateReader) error {
		hdr, err := r.Header(tip)
		if err != nil {
			return err
		}
		storedHash = hdr.BlockHash
		return nil
	})
	if err != nil {
		return err
	}
	if storedHash == items[0].Header.BlockHash {
		return nil
	}
	c.log.Warn("reorg detected", "block", tip, "stored", storedHash, "upstream", items[0].Header.BlockHash)
	return c.send(ctx, func(ctx context.Context) error {
		return c.store.RevertTo(ctx, tip)
	})
}

// runStateTask is T-State: mirrors T-Header over stream_state_diffs,
// gated by marker(State) < marker(Header) so it never overtakes the
// header stream.
func (c *Controller) runStateTask(ctx context.Context) error {
	for !ctxDone(ctx) {
		markers, err := c.store.Markers(ctx)
		if err != nil {
			return err
		}
		if markers.State >= markers.Header {
			if err := sleep(ctx, c.cfg.StateGateSleep); err != nil {
				return nil
			}
			continue
		}

		items, err := c.central.StreamStateDiffs(ctx, markers.State, markers.Header)
		for _, it := range items {
			it := it
			for ch, body := range it.NewClasses {
				ch, body := ch, body
				if err := c.send(ctx, func(ctx context.Context) error {
					return c.store.AppendClassBody(ctx, ch, body)
				}); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					c.log.Warn("append class body failed", "class", ch, "err", err)
				}
			}
			appendErr := c.send(ctx, func(ctx context.Context) error {
				return c.store.AppendStateDiff(ctx, it.Number, it.Diff)
			})
			if appendErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Warn("append state diff failed", "block", it.Number, "err", appendErr)
				break
			}
			if err := yield(ctx); err != nil {
				return nil
			}
		}
		if err != nil && len(items) == 0 {
			c.log.Warn("stream_state_diffs failed", "err", err)
			if err := sleep(ctx, c.cfg.StateGateSleep); err != nil {
				return nil
			}
		}
	}
	return nil
}

// runCasmTask is T-Casm: fetches the compiled classes the earliest
// unresolved block (at or after marker(Casm)) still needs, gated against
// marker(State) via PendingCasmClasses.
func (c *Controller) runCasmTask(ctx context.Context) error {
	for !ctxDone(ctx) {
		classHashes, err := c.store.PendingCasmClasses(ctx)
		if err != nil {
			return err
		}
		if len(classHashes) == 0 {
			if err := sleep(ctx, c.cfg.CasmGateSleep); err != nil {
				return nil
			}
			continue
		}

		casms, err := c.central.StreamCasm(ctx, classHashes)
		if err != nil && len(casms) == 0 {
			c.log.Warn("stream_casm failed", "err", err)
			if err := sleep(ctx, c.cfg.CasmGateSleep); err != nil {
				return nil
			}
			continue
		}
		for ch, casm := range casms {
			ch, casm := ch, casm
			if err := c.send(ctx, func(ctx context.Context) error {
				return c.store.AppendCasm(ctx, ch, casm)
			}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Warn("append casm failed", "class", ch, "err", err)
			}
			if err := yield(ctx); err != nil {
				return nil
			}
		}
	}
	return nil
}

// runBaseTask is T-Base: periodically polls L1 confirmation and sends
// UpdateBaseMarker.
func (c *Controller) runBaseTask(ctx context.Context) error {
	for !ctxDone(ctx) {
		n, err := c.central.BaseLayerConfirmed(ctx)
		if err != nil {
			c.log.Warn("base_layer_confirmed failed", "err", err)
		} else if err := c.send(ctx, func(ctx context.Context) error {
			return c.store.UpdateBaseLayerMarker(ctx, n)
		}); err != nil && ctx.Err() == nil {
			c.log.Warn("update base layer marker failed", "block", n, "err", err)
		}
		if err := sleep(ctx, c.cfg.BaseLayerPollInterval); err != nil {
			return nil
		}
	}
	return nil
}

// runPendingTask refreshes the pending overlay on its own poll interval.
// It does not go through T-Writer: the overlay is a separate in-memory
// cell guarded by its own lock, not a store append.
func (c *Controller) runPendingTask(ctx context.Context) error {
	for !ctxDone(ctx) {
		if err := c.refreshPending(ctx); err != nil {
			c.log.Warn("pending refresh failed", "err", err)
		}
		if err := sleep(ctx, c.cfg.PendingPollInterval); err != nil {
			return nil
		}
	}
	return nil
}

// refreshPending rebuilds the overlay wholesale from one poll of the
// central source's pending block. Overlay.Peek (package core/pending,
// called by store.Reader through PendingSource) is what actually compares
// item.ParentHash against the
// current chain head at query time: if the overlay's parent hash no
// longer matches the snapshot head, the overlay is treated as empty;
// refreshPending itself does not need to know the head.
//
// Pending class bodies live in the overlay only until the corresponding
// block is accepted into the classes table, so a stale overlay is simply
// replaced wholesale on the next poll rather than merged with the new
// one.
func (c *Controller) refreshPending(ctx context.Context) error {
	item, err := c.central.PendingBlock(ctx)
	if err != nil {
		return err
	}

	c.overlay.Reset(item.ParentHash, item.Header)
	for i, tx := range item.Transactions {
		c.overlay.AppendTx(i, tx, item.Outputs[i])
	}
	c.overlay.MergeStateDiff(item.Diff)
	for ch, body := range item.NewClasses {
		c.overlay.AddClass(ch, body)
	}
	return nil
}
