package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	cerrors "github.com/mcdexio/chain-collector/common/errors"
	"github.com/mcdexio/chain-collector/common/logging"
	"go.uber.org/atomic"
)

// NewBlockQuery is the subscription query of committed blocks.
const NewBlockQuery = "tm.event='NewBlock'"

// State of the connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Event is a pushed subscription result.
type Event struct {
	Query  string              `json:"query"`
	Data   json.RawMessage     `json:"data"`
	Events map[string][]string `json:"events"`
}

// Subscription binds a query to its callback. Callbacks run on the read loop and should not
// block.
type Subscription struct {
	Query    string
	Callback func(Event)
}

// Options tune reconnection.
type Options struct {
	// RetryDelay is the base of the linear reconnect delay.
	RetryDelay time.Duration
	// MaxRetry bounds consecutive failed connections; 0 retries forever.
	MaxRetry         int
	HandshakeTimeout time.Duration
	// OnReconnect, when set, is called before every reconnect.
	OnReconnect func(attempt int64)
}

type subscribeFrame struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int    `json:"id"`
	Params  struct {
		Query string `json:"query"`
	} `json:"params"`
}

type frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  Event           `json:"result"`
}

// Watcher keeps a websocket subscription to the node alive.
type Watcher struct {
	logger logging.Logger
	url    string
	opts   Options
	subs   []Subscription
	dialer websocket.Dialer

	state    atomic.Int32
	attempts atomic.Int64
	closed   atomic.Bool
	restart  atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn

	startOnce sync.Once
	done      chan struct{}
}

// New creates a watcher of url for subs.
func New(logger logging.Logger, url string, opts Options, subs ...Subscription) *Watcher {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Watcher{
		logger: logger,
		url:    url,
		opts:   opts,
		subs:   subs,
		dialer: websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		done:   make(chan struct{}),
	}
}

// State returns the connection state.
func (w *Watcher) State() State { return State(w.state.Load()) }

// Done is closed when the watcher stopped for good.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Start connects in the background. The watcher runs until Close, ctx cancellation or the
// retry budget is spent.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

// Restart drops the live connection and reconnects at once. Without a live connection the
// watcher is already dialing or backing off, and the call is a no-op.
func (w *Watcher) Restart() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		w.logger.Debug("websocket %s not connected, restart skipped", w.url)
		return
	}
	w.logger.Warn("restarting websocket %s", w.url)
	w.restart.Store(true)
	_ = w.conn.Close()
}

// Close stops reconnecting and closes the live connection.
func (w *Watcher) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.logger.Info("closing websocket %s", w.url)
	w.closeConn()
}

func (w *Watcher) closeConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

func (w *Watcher) setConn(c *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c != nil && w.closed.Load() {
		return false
	}
	w.conn = c
	return true
}

func (w *Watcher) stopped(ctx context.Context) bool {
	return w.closed.Load() || ctx.Err() != nil
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer w.state.Store(int32(Disconnected))
	defer cerrors.CatchWithLogger(w.logger)

	for !w.stopped(ctx) {
		err := w.session(ctx)
		w.state.Store(int32(Disconnected))
		if w.stopped(ctx) {
			return
		}
		if w.restart.Swap(false) {
			w.attempts.Store(0)
			continue
		}

		attempt := w.attempts.Inc()
		if w.opts.MaxRetry > 0 && attempt > int64(w.opts.MaxRetry) {
			w.logger.Error("websocket %s: giving up after %d reconnect attempts: %v", w.url, w.opts.MaxRetry, err)
			return
		}
		delay := w.opts.RetryDelay * time.Duration(attempt)
		w.logger.Warn("websocket %s: %v, reconnecting in %s (attempt %d)", w.url, err, delay, attempt)
		if w.opts.OnReconnect != nil {
			w.opts.OnReconnect(attempt)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session runs one connection until it fails.
func (w *Watcher) session(ctx context.Context) error {
	w.state.Store(int32(Connecting))
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if !w.setConn(conn) {
		_ = conn.Close()
		return fmt.Errorf("closed")
	}
	defer func() {
		w.setConn(nil)
		_ = conn.Close()
	}()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for i, sub := range w.subs {
		f := subscribeFrame{JSONRPC: "2.0", Method: "subscribe", ID: i}
		f.Params.Query = sub.Query
		if err := conn.WriteJSON(f); err != nil {
			return fmt.Errorf("subscribe %q: %w", sub.Query, err)
		}
	}
	w.state.Store(int32(Connected))
	w.logger.Info("websocket %s connected, %d subscriptions", w.url, len(w.subs))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		w.attempts.Store(0)
		w.dispatch(msg)
	}
}

func (w *Watcher) dispatch(msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return
	}
	if f.JSONRPC == "" || len(f.ID) == 0 {
		return
	}
	for _, sub := range w.subs {
		if sub.Query == f.Result.Query {
			w.call(sub, f.Result)
		}
	}
}

func (w *Watcher) call(sub Subscription, ev Event) {
	defer cerrors.CatchWithLogger(w.logger)
	sub.Callback(ev)
}
