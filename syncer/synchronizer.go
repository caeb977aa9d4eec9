package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/aggregator"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"github.com/mcdexio/chain-collector/parser"
	"github.com/shopspring/decimal"
)

// Config of a Synchronizer.
type Config struct {
	ChainID     string
	NativeDenom string
	// StartHeight is the first height synced into an empty store.
	StartHeight   int64
	DefaultTaxCap decimal.Decimal
}

// Synchronizer ingests blocks one height at a time. Every block is committed with its reward,
// txs, account index rows, delegation events, account counters and, when it opens a new minute,
// the aggregation of the previous one, in a single transaction.
type Synchronizer struct {
	logger    logging.Logger
	cfg       Config
	lcd       LCD
	rpc       RPC
	store     Store
	sealer    Sealer
	extractor *parser.Extractor
	pool      pond.Pool

	mu        sync.Mutex
	listeners []func(*Indexed)
}

// NewSynchronizer creates a synchronizer. pool bounds the parallel tx fetches of a block.
func NewSynchronizer(
	logger logging.Logger, cfg Config, lcd LCD, rpc RPC, store Store, sealer Sealer,
	extractor *parser.Extractor, pool pond.Pool,
) *Synchronizer {
	return &Synchronizer{
		logger:    logger,
		cfg:       cfg,
		lcd:       lcd,
		rpc:       rpc,
		store:     store,
		sealer:    sealer,
		extractor: extractor,
		pool:      pool,
	}
}

// OnIndexed registers fn to be called after every committed block.
func (s *Synchronizer) OnIndexed(fn func(*Indexed)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// pending is a block fetched and decoded, ready to be written.
type pending struct {
	block    *node.BlockInfo
	height   int64
	reward   *chain.BlockReward
	hashes   []string
	txs      []*parser.TxInfo
	window   *time.Time
	snapshot *aggregator.MarketSnapshot
}

// SyncNext ingests the block after the last stored one. more reports that the node already
// has further blocks.
func (s *Synchronizer) SyncNext(ctx context.Context) (more bool, err error) {
	start := time.Now()
	last, err := s.store.LastBlock(ctx, s.cfg.ChainID)
	if err != nil {
		return false, fmt.Errorf("last block: %w", err)
	}
	latest, err := s.lcd.GetLatestBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("latest block: %w", err)
	}
	if latest == nil {
		return false, errors.New("node has no latest block")
	}

	head := latest.Height()
	next := s.cfg.StartHeight
	if last != nil {
		next = last.Height + 1
	} else if next <= 0 {
		next = 1
	}
	if head < next {
		return false, nil
	}

	block := latest
	if next < head {
		more = true
		if block, err = s.lcd.GetBlock(ctx, next); err != nil {
			return false, fmt.Errorf("block %d: %w", next, err)
		}
		if block == nil {
			return false, fmt.Errorf("block %d not found on node", next)
		}
	}

	p, err := s.prepare(ctx, block, last)
	if err != nil {
		return false, fmt.Errorf("prepare block %d: %w", next, err)
	}
	var indexed *Indexed
	if err := s.store.Transaction(ctx, func(ctx context.Context) error {
		var err error
		indexed, err = s.commit(ctx, p)
		return err
	}); err != nil {
		return false, fmt.Errorf("commit block %d: %w", next, err)
	}

	indexed.Elapsed = time.Since(start)
	s.logger.Info("indexed block %d (%d txs) in %s", indexed.Height, indexed.TxCount, indexed.Elapsed)
	s.notify(indexed)
	return more, nil
}

// SyncAll ingests blocks until the store reaches the node head.
func (s *Synchronizer) SyncAll(ctx context.Context) error {
	for {
		more, err := s.SyncNext(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Synchronizer) notify(ev *Indexed) {
	s.mu.Lock()
	listeners := append([]func(*Indexed){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// prepare does every node read of a block so the transaction only writes.
func (s *Synchronizer) prepare(ctx context.Context, block *node.BlockInfo, last *chain.Block) (*pending, error) {
	p := &pending{block: block, height: block.Height()}

	results, err := s.rpc.GetBlockResults(ctx, p.height)
	if err != nil {
		return nil, fmt.Errorf("block results: %w", err)
	}
	if results == nil {
		return nil, errors.New("block results not found")
	}
	if p.reward, err = BlockReward(results); err != nil {
		return nil, err
	}

	if p.hashes, err = block.TxHashes(); err != nil {
		return nil, err
	}
	if len(p.hashes) > 0 {
		if p.txs, err = s.fetchTxs(ctx, p.hashes); err != nil {
			return nil, err
		}
		params, err := s.taxParams(ctx, p.height)
		if err != nil {
			return nil, err
		}
		for _, tx := range p.txs {
			parser.SplitTaxFromFee(tx, params)
		}
	}

	if last != nil && s.sealer != nil {
		prev := last.Timestamp.UTC().Truncate(time.Minute)
		if !block.Time().Truncate(time.Minute).Equal(prev) {
			if p.snapshot, err = s.sealer.Prepare(ctx, p.height); err != nil {
				return nil, fmt.Errorf("market snapshot: %w", err)
			}
			p.window = &prev
		}
	}
	return p, nil
}

func (s *Synchronizer) taxParams(ctx context.Context, height int64) (parser.TaxParams, error) {
	rate, err := s.lcd.GetTaxRate(ctx, height)
	if err != nil {
		return parser.TaxParams{}, fmt.Errorf("tax rate: %w", err)
	}
	caps, err := s.lcd.GetTaxCaps(ctx, height)
	if err != nil {
		return parser.TaxParams{}, fmt.Errorf("tax caps: %w", err)
	}
	return parser.TaxParams{Rate: rate, Caps: caps, DefaultCap: s.cfg.DefaultTaxCap, ExemptDenom: s.cfg.NativeDenom}, nil
}

// fetchTxs loads and decodes the txs of a block in parallel. A missing tx fails the block.
func (s *Synchronizer) fetchTxs(ctx context.Context, hashes []string) ([]*parser.TxInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]*parser.TxInfo, len(hashes))
	var once sync.Once
	var firstErr error
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	group := s.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, hash := range hashes {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			raw, err := s.lcd.GetTx(groupCtx, hash)
			if err != nil {
				fail(fmt.Errorf("tx %s: %w", hash, err))
				return
			}
			if raw == nil {
				fail(fmt.Errorf("tx %s not found on node", hash))
				return
			}
			info, err := parser.Decode(raw)
			if err != nil {
				fail(fmt.Errorf("tx %s: %w", hash, err))
				return
			}
			out[i] = info
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		fail(err)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Synchronizer) commit(ctx context.Context, p *pending) (*Indexed, error) {
	ts := p.block.Time()
	block := &chain.Block{
		ChainID:   s.cfg.ChainID,
		Height:    p.height,
		Timestamp: ts,
		Proposer:  p.block.Block.Header.ProposerAddress,
		TxCount:   len(p.txs),
		Data:      models.JSON(p.block.Raw),
	}
	if err := s.store.SaveBlock(ctx, block, p.reward); err != nil {
		return nil, fmt.Errorf("save block: %w", err)
	}

	rows := make([]*chain.Tx, len(p.txs))
	for i, info := range p.txs {
		data, err := json.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("encode tx %s: %w", p.hashes[i], err)
		}
		txTime := info.Timestamp.UTC()
		if txTime.IsZero() {
			txTime = ts
		}
		rows[i] = &chain.Tx{
			BlockID:   block.ID,
			ChainID:   s.cfg.ChainID,
			Height:    p.height,
			Hash:      p.hashes[i],
			Success:   info.Success(),
			Timestamp: txTime,
			Data:      models.JSON(data),
		}
	}
	if err := s.store.SaveTxs(ctx, rows); err != nil {
		return nil, fmt.Errorf("save txs: %w", err)
	}

	var accountTxs []*chain.AccountTx
	var delegations []*chain.DelegationEvent
	operators := map[string]struct{}{}
	for i, row := range rows {
		accountTxs = append(accountTxs, s.extractor.AccountTxs(row, p.txs[i])...)
		for _, d := range parser.DelegationEvents(p.txs[i], s.cfg.NativeDenom) {
			delegations = append(delegations, &chain.DelegationEvent{
				ChainID:         s.cfg.ChainID,
				TxID:            row.ID,
				Hash:            row.Hash,
				MsgIndex:        d.MsgIndex,
				OperatorAddress: d.Operator,
				Type:            d.Type,
				Amount:          d.Amount,
				Timestamp:       row.Timestamp,
			})
			operators[d.Operator] = struct{}{}
		}
	}
	if err := s.store.SaveAccountTxs(ctx, accountTxs); err != nil {
		return nil, fmt.Errorf("save account txs: %w", err)
	}
	if err := s.store.SaveDelegationEvents(ctx, delegations); err != nil {
		return nil, fmt.Errorf("save delegation events: %w", err)
	}
	if err := s.store.IncrementAccounts(ctx, countAccounts(s.cfg.ChainID, accountTxs)); err != nil {
		return nil, fmt.Errorf("update accounts: %w", err)
	}

	if p.window != nil {
		if err := s.sealer.Seal(ctx, *p.window, p.snapshot); err != nil {
			return nil, fmt.Errorf("seal minute %s: %w", p.window.Format(time.RFC3339), err)
		}
	}

	indexed := &Indexed{
		ChainID:   s.cfg.ChainID,
		Height:    p.height,
		Timestamp: ts,
		TxCount:   len(rows),
		Sealed:    p.window,
	}
	for op := range operators {
		indexed.Operators = append(indexed.Operators, op)
	}
	sort.Strings(indexed.Operators)
	return indexed, nil
}

// countAccounts turns account index rows into per-account counter increments: one per tx the
// account appears in, first seen at its earliest tx.
func countAccounts(chainID string, rows []*chain.AccountTx) []*chain.Account {
	type seen struct {
		txs   map[int64]struct{}
		first time.Time
	}
	byAddr := map[string]*seen{}
	for _, r := range rows {
		a, ok := byAddr[r.Account]
		if !ok {
			a = &seen{txs: map[int64]struct{}{}, first: r.Timestamp}
			byAddr[r.Account] = a
		}
		a.txs[r.TxID] = struct{}{}
		if r.Timestamp.Before(a.first) {
			a.first = r.Timestamp
		}
	}
	out := make([]*chain.Account, 0, len(byAddr))
	for addr, a := range byAddr {
		out = append(out, &chain.Account{
			ChainID:   chainID,
			Address:   addr,
			TxCount:   int64(len(a.txs)),
			FirstSeen: a.first,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
