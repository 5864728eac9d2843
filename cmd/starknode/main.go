// Command starknode wires up the block store and sync controller this
// repository implements. No JSON-RPC gateway, P2P layer, or VM is
// started here; those live outside this module, which only runs the
// storage and sync core.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/inconshreveable/log15"

	"github.com/starkcore/node/central"
	"github.com/starkcore/node/core/pending"
	syncctl "github.com/starkcore/node/core/sync"
	"github.com/starkcore/node/core/store"
	"github.com/starkcore/node/corelib/kv"
	"github.com/starkcore/node/corelib/kv/mdbx"
	"github.com/starkcore/node/corelib/xlog"
)

// Config is starknode's flag/env surface: data directory, store sizing,
// and the retry/poll tunables the sync controller runs with.
type Config struct {
	DataDir string `help:"Directory holding the block store's mdbx file." default:"./data" env:"STARKNODE_DATA_DIR"`
	MapSize uint64 `help:"Maximum store file size in bytes; must be a multiple of the page size." default:"${default_map_size}" env:"STARKNODE_MAP_SIZE"`
	Archive bool `help:"Keep the FullArchive scope instead of StateOnly." default:"true"`

	CentralURL string `help:"Base URL of the central-source feeder gateway." default:"https://alpha-mainnet.starknet.io" env:"STARKNODE_CENTRAL_URL"`
	RetryBaseMs int `help:"Initial retry backoff, in milliseconds." default:"250"`
	RetryMaxDelayMs int `help:"Maximum retry backoff, in milliseconds." default:"8000"`
	MaxRetries int `help:"Maximum retries per central-source request." default:"5"`
	RequestTimeout time.Duration `help:"Per-request deadline." default:"10s"`
	RatePerSecond float64 `help:"Outbound request rate limit to the central source; 0 disables it." default:"10"`
	RateBurst int `help:"Burst size for RatePerSecond." default:"20"`

	BlockPropagationSleep time.Duration `help:"T-Header's sleep when caught up with the central source's head." default:"3s"`
	StateGateSleep time.Duration `help:"T-State's sleep while gated behind marker(Header)." default:"500ms"`
	CasmGateSleep time.Duration `help:"T-Casm's sleep while no block is waiting on a casm body." default:"500ms"`
	BaseLayerPollInterval time.Duration `help:"T-Base's poll interval against L1." default:"30s"`
	PendingPollInterval time.Duration `help:"Pending-overlay refresh interval." default:"2s"`

	MaxPageSize int `help:"get_events chunk_size ceiling (Query::PageSizeTooBig)." default:"1024"`
	MaxKeysInFilter int `help:"get_events filter key-count ceiling (Query::TooManyKeysInFilter)." default:"16"`

	Verbose int `help:"Log verbosity: 0=info, 1=debug." short:"v" type:"counter"`
}

// defaultMapSize feeds kong's ${default_map_size} interpolation: 16GiB,
// a multiple of the 4096-byte mdbx page size as Open requires.
const defaultMapSize = uint64(16) << 30

func main() {
	var cfg Config
	kong.Parse(&cfg,
		kong.Name("starknode"),
		kong.Description("Starknet block-store + sync-controller core."),
		kong.Vars{"default_map_size": strconv.FormatUint(defaultMapSize, 10)},
	)

	if cfg.Verbose > 0 {
		xlog.SetVerbosity(log15.LvlDebug)
	} else {
		xlog.SetVerbosity(log15.LvlInfo)
	}
	log := xlog.New("component", "starknode")

	if err := run(cfg, log); err != nil {
		log.Error("starknode exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, log xlog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}

	scope := kv.StateOnly
	if cfg.Archive {
		scope = kv.FullArchive
	}
	env, err := mdbx.Open(cfg.DataDir+"/starknode.mdbx", kv.Options{
		MapSize: cfg.MapSize,
	})
	if err != nil {
		return err
	}
	defer env.Close()

	bs := store.Open(env, scope, log.New("component", "store"))
	defer bs.Close()

	// reader is the query-side component; no transport wraps it here
	// since the JSON-RPC gateway lives outside this module, but the
	// pending overlay is wired in so an embedding caller sees pending
	// reads.
	reader := store.NewReader(bs, cfg.MaxPageSize, cfg.MaxKeysInFilter)
	overlay := pending.New()
	reader.SetPendingSource(overlay)

	centralCfg := central.Config{
		BaseURL: cfg.CentralURL,
		RetryBaseMs: cfg.RetryBaseMs,
		RetryMaxDelayMs: cfg.RetryMaxDelayMs,
		MaxRetries: cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst: cfg.RateBurst,
	}
	client, err := central.NewClient(centralCfg, log.New("component", "central"))
	if err != nil {
		return err
	}

	syncCfg := syncctl.Config{
		BlockPropagationSleep: cfg.BlockPropagationSleep,
		StateGateSleep: cfg.StateGateSleep,
		CasmGateSleep: cfg.CasmGateSleep,
		BaseLayerPollInterval: cfg.BaseLayerPollInterval,
		PendingPollInterval: cfg.PendingPollInterval,
		ReorgCheckEvery: 1,
	}
	controller := syncctl.New(bs, client, overlay, syncCfg, log.New("component", "sync"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starknode starting", "data_dir", cfg.DataDir, "central_url", cfg.CentralURL)
	return controller.Run(ctx)
}
