// Package sync implements the sync controller: a set of cooperative
// tasks, one per append stream, that fetch from a central source and
// append through core/store while respecting the marker-ordering
// invariants of each stream and tolerating partial upstream failure.
//
// Scheduling mirrors erigon's goroutine-per-subsystem style (its staged
// sync runs each stage as a function driven by a loop, not as
// OS-thread-per-task); here each task is a goroutine managed by
// golang.org/x/sync/errgroup, suspending only at network calls, the
// writer queue send/receive, and poll sleeps, matching a cooperative
// scheduling model. The global cancellation token is context.Context:
// every await point in every task takes ctx and returns promptly on
// ctx.Err() != nil, which is the idiomatic Go rendering of an explicit,
// checked-at-each-suspension-point cancellation token (DESIGN.md
// records this as the resolution of the corresponding design note).
package sync

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starkcore/node/central"
	"github.com/starkcore/node/core/pending"
	"github.com/starkcore/node/core/store"
	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/xlog"
)

// CentralSource is the subset of *central.Client the controller depends
// on, narrowed to an interface so tests can supply a fake.
type CentralSource interface {
	HeadMarker(ctx context.Context) (common.BlockNumber, error)
	StreamHeaders(ctx context.Context, lo, hi common.BlockNumber) ([]central.HeaderItem, error)
	StreamStateDiffs(ctx context.Context, lo, hi common.BlockNumber) ([]central.StateDiffItem, error)
	StreamCasm(ctx context.Context, classHashes []common.ClassHash) (map[common.ClassHash]*types.CasmClass, error)
	BaseLayerConfirmed(ctx context.Context) (common.BlockNumber, error)
	PendingBlock(ctx context.Context) (*central.PendingBlockItem, error)
}

// Config tunes every task's poll/backoff interval.
type Config struct {
	BlockPropagationSleep time.Duration
	StateGateSleep time.Duration
	CasmGateSleep time.Duration
	BaseLayerPollInterval time.Duration
	PendingPollInterval time.Duration
	// ReorgCheckEvery throttles detectReorg: it only re-checks the tip
	// hash once per this many T-Header iterations, not on every one.
	ReorgCheckEvery int
}

// DefaultConfig returns conservative poll intervals for a feeder-gateway
// integration.
func DefaultConfig() Config {
	return Config{
		BlockPropagationSleep: 3 * time.Second,
		StateGateSleep: 500 * time.Millisecond,
		CasmGateSleep: 500 * time.Millisecond,
		BaseLayerPollInterval: 30 * time.Second,
		PendingPollInterval: 2 * time.Second,
		ReorgCheckEvery: 1,
	}
}

// Controller owns the writer message queue and runs T-Header, T-State,
// T-Casm, T-Base, T-Pending as cooperative tasks, serializing every
// append through a single writer goroutine.
type Controller struct {
	store *store.BlockStore
	central CentralSource
	overlay *pending.Overlay
	cfg Config
	log xlog.Logger

	queue chan writeRequest
}

type writeRequest struct {
	fn func(ctx context.Context) error
	ack chan error
}

// New builds a Controller. overlay may be nil if the caller has no
// pending-overlay consumer; T-Pending then does not run.
func New(s *store.BlockStore, c CentralSource, overlay *pending.Overlay, cfg Config, log xlog.Logger) *Controller {
	if log == nil {
		log = xlog.New("component", "sync")
	}
	return &Controller{
		store: s,
		central: c,
		overlay: overlay,
		cfg: cfg,
		log: log,
		queue: make(chan writeRequest),
	}
}

// Run starts every task and blocks until ctx is cancelled or a task
// returns a non-nil, non-cancellation error. On return, every task has
// drained its ack channel and exited and no RwTxn remains
// open (the writer only ever holds one transaction for the duration of a
// single append call).
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.runWriter(ctx) })
	g.Go(func() error { return c.runHeaderTask(ctx) })
	g.Go(func() error { return c.runStateTask(ctx) })
	g.Go(func() error { return c.runCasmTask(ctx) })
	g.Go(func() error { return c.runBaseTask(ctx) })
	if c.overlay != nil {
		g.Go(func() error { return c.runPendingTask(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// runWriter is T-Writer: the single consumer of the append queue.
func (c *Controller) runWriter(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-c.queue:
			req.ack <- req.fn(ctx)
		}
	}
}

// send hands one append to T-Writer and awaits its result, respecting
// cancellation at both the send and the receive.
func (c *Controller) send(ctx context.Context, fn func(ctx context.Context) error) error {
	req := writeRequest{fn: fn, ack: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.queue <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.ack:
		return err
	}
}

// sleep is a cancellable poll-interval wait.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// yield hands control back to the scheduler after each append, so a long
// catch-up doesn't monopolize the executor. Go's goroutines are preemptible, but this keeps other tasks'
// network calls interleaved with a fast-catching-up writer instead of
// starving them between queue sends.
func yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	runtime.Gosched()
	return nil
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
