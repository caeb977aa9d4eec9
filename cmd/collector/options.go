package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Options of the collector. Every flag falls back to its env variable.
type Options struct {
	ChainID      string `arg:"--chain-id,env:CHAIN_ID" default:"columbus-5"`
	LCDURI       string `arg:"--lcd-uri,env:LCD_URI,required"`
	RPCURI       string `arg:"--rpc-uri,env:RPC_URI,required"`
	WSURI        string `arg:"--ws-uri,env:WS_URI" help:"defaults to the websocket endpoint of the rpc"`
	NativeDenom  string `arg:"--native-denom,env:NATIVE_DENOM" default:"uluna"`
	StableDenom  string `arg:"--stable-denom,env:STABLE_DENOM" default:"uusd"`
	Bech32Prefix string `arg:"--bech32-prefix,env:BECH32_PREFIX" default:"terra"`
	StartHeight  int64  `arg:"--start-height,env:START_HEIGHT" help:"first height when the store is empty"`

	NodeRPS           float64 `arg:"--node-rps,env:NODE_RPS" default:"20"`
	NodeWorkers       int     `arg:"--node-workers,env:NODE_WORKERS" default:"8"`
	PruningKeepRecent int64   `arg:"--pruning-keep-recent,env:PRUNING_KEEP_RECENT" default:"100"`
	PruningKeepEvery  int64   `arg:"--pruning-keep-every,env:PRUNING_KEEP_EVERY" default:"100"`
	DefaultTaxCap     string  `arg:"--default-tax-cap,env:DEFAULT_TAX_CAP" default:"1000000"`

	SyncInterval      time.Duration `arg:"--sync-interval,env:SYNC_INTERVAL" default:"50ms"`
	SyncErrorBackoff  time.Duration `arg:"--sync-error-backoff,env:SYNC_ERROR_BACKOFF" default:"1s"`
	WatcherRetryDelay time.Duration `arg:"--watcher-retry-delay,env:WATCHER_RETRY_DELAY" default:"1s"`
	WatcherMaxRetry   int           `arg:"--watcher-max-retry,env:WATCHER_MAX_RETRY" help:"0 retries forever"`
	HeartbeatWindow   time.Duration `arg:"--heartbeat-window,env:HEARTBEAT_WINDOW" default:"60s"`

	PollSpec      string        `arg:"--poll-spec,env:POLL_SPEC" default:"*/5 * * * * *"`
	ValidatorSpec string        `arg:"--validator-spec,env:VALIDATOR_SPEC" default:"0 */5 * * * *"`
	ReturnSpec    string        `arg:"--return-spec,env:RETURN_SPEC" default:"0 20 0 * * *"`
	DashboardSpec string        `arg:"--dashboard-spec,env:DASHBOARD_SPEC" default:"0 30 0 * * *"`
	SnapshotSpec  string        `arg:"--snapshot-spec,env:SNAPSHOT_SPEC" default:"0 0 * * * *"`
	GovSpec       string        `arg:"--gov-spec,env:GOV_SPEC" default:"0 */10 * * * *"`
	MempoolSpec   string        `arg:"--mempool-spec,env:MEMPOOL_SPEC" default:"*/15 * * * * *"`
	JobTimeout    time.Duration `arg:"--job-timeout,env:JOB_TIMEOUT" default:"10m"`

	RichListSize int      `arg:"--richlist-size,env:RICHLIST_SIZE" default:"1000"`
	CW20Tokens   []string `arg:"--cw20-tokens,env:CW20_TOKENS"`
	UnvestedURL  string   `arg:"--unvested-url,env:UNVESTED_URL"`

	InternalAddr string `arg:"--internal-addr,env:INTERNAL_ADDR" default:":9453"`
	ResetDB      bool   `arg:"--reset-db,env:RESET_DB"`
	RewindHeight int64  `arg:"--rewind-height,env:REWIND_HEIGHT" help:"delete stored blocks from this height on before syncing"`
}

// Validate fills derived values and checks the rest.
func (o *Options) Validate() error {
	if o.WSURI == "" {
		ws, err := websocketURI(o.RPCURI)
		if err != nil {
			return err
		}
		o.WSURI = ws
	}
	if _, err := o.TaxCap(); err != nil {
		return fmt.Errorf("default tax cap %q: %w", o.DefaultTaxCap, err)
	}
	if o.NodeWorkers <= 0 {
		return fmt.Errorf("node workers must be positive, got %d", o.NodeWorkers)
	}
	if o.NativeDenom == o.StableDenom {
		return fmt.Errorf("native and stable denom are both %s", o.NativeDenom)
	}
	return nil
}

// TaxCap returns the cap of denoms without their own.
func (o *Options) TaxCap() (decimal.Decimal, error) {
	return decimal.NewFromString(o.DefaultTaxCap)
}

// Tokens returns the configured cw20 contracts, splitting comma lists given through env.
func (o *Options) Tokens() []string {
	var out []string
	for _, t := range o.CW20Tokens {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// websocketURI maps an rpc base url onto its /websocket endpoint.
func websocketURI(rpc string) (string, error) {
	u, err := url.Parse(rpc)
	if err != nil {
		return "", fmt.Errorf("rpc uri %q: %w", rpc, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("rpc uri %q: unsupported scheme %q", rpc, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	u.RawQuery = ""
	return u.String(), nil
}
