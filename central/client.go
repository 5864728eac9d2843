// Package central implements the central-source client: it translates
// the upstream feeder-gateway HTTP API into ordered sequences of domain
// items, with retry/backoff on transient failure.
package central

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/starkcore/node/core/types"
	"github.com/starkcore/node/corelib/common"
	"github.com/starkcore/node/corelib/xlog"
)

// Config tunes the client's retry/backoff and rate limiting: a small
// typed Config per subsystem, same as every other component here.
type Config struct {
	BaseURL string
	RetryBaseMs int
	RetryMaxDelayMs int
	MaxRetries int
	RequestTimeout time.Duration
	// RatePerSecond limits outbound request rate; 0 disables limiting.
	RatePerSecond float64
	RateBurst int
}

// DefaultConfig mirrors a conservative feeder-gateway polling client.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		RetryBaseMs: 250,
		RetryMaxDelayMs: 8000,
		MaxRetries: 5,
		RequestTimeout: 10 * time.Second,
		RatePerSecond: 10,
		RateBurst: 20,
	}
}

// Client is the central-source HTTP client.
type Client struct {
	http *retryablehttp.Client
	limiter *rate.Limiter
	base *url.URL
	log xlog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, log xlog.Logger) (*Client, error) {
	if log == nil {
		log = xlog.New("component", "central")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("central: parse base url: %w", err)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryWaitMin = time.Duration(cfg.RetryBaseMs) * time.Millisecond
	rc.RetryWaitMax = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
	rc.RetryMax = cfg.MaxRetries
	rc.HTTPClient.Timeout = cfg.RequestTimeout
	rc.CheckRetry = checkRetry
	rc.Backoff = retryablehttp.DefaultBackoff

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	}

	return &Client{http: rc, limiter: limiter, base: base, log: log}, nil
}

// checkRetry implements retry policy: it stops once ctx is done and
// otherwise defers to retryablehttp.DefaultRetryPolicy, which retries
// transport errors such as timeouts and connection resets, 429, and 5xx,
// and no other 4xx. A successful-but-malformed body is never retried:
// decoding happens after the retry loop returns, and callers report it
// as ErrSchemaMismatch.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	u := *c.base
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("central: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var envelope struct {
		Code string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Code != "" {
		return nil, &StarknetError{Code: envelope.Code, Message: envelope.Message}
	}
	return nil, &BadStatusError{Status: resp.StatusCode, Body: string(body)}
}

// HeadMarker implements head_marker: the first block not yet available
// upstream.
func (c *Client) HeadMarker(ctx context.Context) (common.BlockNumber, error) {
	body, err := c.get(ctx, "/feeder_gateway/get_block", url.Values{"blockNumber": {"latest"}})
	if err != nil {
		if IsBlockNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	var raw rawBlock
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}
	return common.BlockNumber(raw.BlockNumber + 1), nil
}

// HeaderItem is one block's header plus its body, as stream_headers
// yields.
type HeaderItem struct {
	Number common.BlockNumber
	Header *types.BlockHeader
	Transactions []*types.Transaction
	Outputs []*types.TransactionOutput
}

// StreamHeaders implements stream_headers(lo, hi): yields items for n in
// [lo, hi), fetched sequentially (the upstream feeder gateway has no bulk
// range endpoint).
func (c *Client) StreamHeaders(ctx context.Context, lo, hi common.BlockNumber) ([]HeaderItem, error) {
	items := make([]HeaderItem, 0, hi-lo)
	for n := lo; n < hi; n++ {
		body, err := c.get(ctx, "/feeder_gateway/get_block", url.Values{"blockNumber": {strconv.FormatUint(uint64(n), 10)}})
		if err != nil {
			return items, err
		}
		item, err := mapBlock(body)
		if err != nil {
			return items, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// StateDiffItem is one block's state diff plus the bodies of classes
// newly declared at that block.
type StateDiffItem struct {
	Number common.BlockNumber
	Diff *types.StateDiff
	NewClasses map[common.ClassHash]*types.ContractClass
}

// StreamStateDiffs implements stream_state_diffs(lo, hi).
func (c *Client) StreamStateDiffs(ctx context.Context, lo, hi common.BlockNumber) ([]StateDiffItem, error) {
	items := make([]StateDiffItem, 0, hi-lo)
	for n := lo; n < hi; n++ {
		body, err := c.get(ctx, "/feeder_gateway/get_state_update", url.Values{"blockNumber": {strconv.FormatUint(uint64(n), 10)}})
		if err != nil {
			return items, err
		}
		diff, declared, err := mapStateUpdate(body)
		if err != nil {
			return items, err
		}
		classes := make(map[common.ClassHash]*types.ContractClass, len(declared))
		for _, ch := range declared {
			body, err := c.get(ctx, "/feeder_gateway/get_class_by_hash", url.Values{"classHash": {ch.String()}})
			if err != nil {
				return items, err
			}
			class, err := mapContractClass(body)
			if err != nil {
				return items, err
			}
			classes[ch] = class
		}
		items = append(items, StateDiffItem{Number: n, Diff: diff, NewClasses: classes})
	}
	return items, nil
}

// StreamCasm implements stream_casm(class_hashes).
func (c *Client) StreamCasm(ctx context.Context, classHashes []common.ClassHash) (map[common.ClassHash]*types.CasmClass, error) {
	out := make(map[common.ClassHash]*types.CasmClass, len(classHashes))
	for _, ch := range classHashes {
		body, err := c.get(ctx, "/feeder_gateway/get_compiled_class_by_class_hash", url.Values{"classHash": {ch.String()}})
		if err != nil {
			return out, err
		}
		casm, err := mapCasmClass(body)
		if err != nil {
			return out, err
		}
		out[ch] = casm
	}
	return out, nil
}

// BaseLayerConfirmed implements base_layer_confirmed: the highest block
// for which L1 confirmation was observed.
func (c *Client) BaseLayerConfirmed(ctx context.Context) (common.BlockNumber, error) {
	body, err := c.get(ctx, "/feeder_gateway/get_last_batch_id", nil)
	if err != nil {
		return 0, err
	}
	var raw struct {
		BlockNumber uint64 `json:"block_number"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("central: %w: %v", ErrSchemaMismatch, err)
	}
	return common.BlockNumber(raw.BlockNumber), nil
}

// PendingBlockItem is the in-flight block content the pending
// read-through overlay polls for: a header with no BlockHash/BlockNumber
// (the feeder gateway never assigns those to a pending block), its
// transactions/outputs so far, the cumulative state diff, and the bodies
// of any classes newly declared in it.
type PendingBlockItem struct {
	ParentHash common.Hash
	Header *types.BlockHeader
	Transactions []*types.Transaction
	Outputs []*types.TransactionOutput
	Diff *types.StateDiff
	NewClasses map[common.ClassHash]*types.ContractClass
}

// PendingBlock polls `get_block?blockNumber=pending` and
// `get_state_update?blockNumber=pending`, feeding core/pending's overlay
// through the sync controller's T-Pending task. It is part of the
// CentralSource interface alongside head_marker/stream_headers/... and
// shares the same HTTP surface and retry/decode machinery.
func (c *Client) PendingBlock(ctx context.Context) (*PendingBlockItem, error) {
	blockBody, err := c.get(ctx, "/feeder_gateway/get_block", url.Values{"blockNumber": {"pending"}})
	if err != nil {
		return nil, err
	}
	item, err := mapBlock(blockBody)
	if err != nil {
		return nil, err
	}
	// A pending block has no hash or number yet; the feeder gateway
	// either omits them or echoes the parent's, neither of which this
	// store's semantics should adopt.
	item.Header.BlockHash = common.Hash{}
	item.Header.BlockNumber = 0

	stateBody, err := c.get(ctx, "/feeder_gateway/get_state_update", url.Values{"blockNumber": {"pending"}})
	if err != nil {
		return nil, err
	}
	diff, declared, err := mapStateUpdate(stateBody)
	if err != nil {
		return nil, err
	}

	classes := make(map[common.ClassHash]*types.ContractClass, len(declared))
	for _, ch := range declared {
		body, err := c.get(ctx, "/feeder_gateway/get_class_by_hash", url.Values{"classHash": {ch.String()}})
		if err != nil {
			return nil, err
		}
		class, err := mapContractClass(body)
		if err != nil {
			return nil, err
		}
		classes[ch] = class
	}

	return &PendingBlockItem{
		ParentHash: item.Header.ParentHash,
		Header: item.Header,
		Transactions: item.Transactions,
		Outputs: item.Outputs,
		Diff: diff,
		NewClasses: classes,
	}, nil
}
