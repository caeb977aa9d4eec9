package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/aggregator"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"github.com/mcdexio/chain-collector/parser"
	"github.com/mcdexio/chain-collector/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

var (
	alice = "terra1" + strings.Repeat("q", 38)
	bob   = "terra1" + strings.Repeat("p", 38)
)

const valA = "terravaloper1aaaa"

var genesis = time.Date(2021, 10, 1, 12, 0, 40, 0, time.UTC)

// fakeChain serves blocks of one tx each, six seconds apart.
type fakeChain struct {
	mu      sync.Mutex
	head    int64
	txs     map[string]json.RawMessage
	missing map[string]bool
	blocks  map[int64]*node.BlockInfo
	calls   atomic.Int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{txs: map[string]json.RawMessage{}, missing: map[string]bool{}, blocks: map[int64]*node.BlockInfo{}}
}

// addBlock appends a block holding docs and returns the tx hashes.
func (c *fakeChain) addBlock(docs ...string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head++
	b := &node.BlockInfo{}
	b.Block.Header.Height = fmt.Sprint(c.head)
	b.Block.Header.Time = genesis.Add(time.Duration(c.head-1) * 6 * time.Second)
	b.Raw = json.RawMessage(fmt.Sprintf(`{"height":%d}`, c.head))
	for i := range docs {
		b.Block.Data.Txs = append(b.Block.Data.Txs, base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("tx-%d-%d", c.head, i))))
	}
	hashes, _ := b.TxHashes()
	for i, h := range hashes {
		c.txs[h] = json.RawMessage(docs[i])
	}
	c.blocks[c.head] = b
	return hashes
}

func (c *fakeChain) GetLatestBlock(context.Context) (*node.BlockInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[c.head], nil
}

func (c *fakeChain) GetBlock(_ context.Context, h int64) (*node.BlockInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[h], nil
}

func (c *fakeChain) GetTx(_ context.Context, hash string) (json.RawMessage, error) {
	c.calls.Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.missing[hash] {
		return nil, nil
	}
	return c.txs[hash], nil
}

func (c *fakeChain) GetTaxRate(context.Context, int64) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.005"), nil
}

func (c *fakeChain) GetTaxCaps(context.Context, int64) (coins.DenomMap, error) {
	return coins.DenomMap{}, nil
}

func (c *fakeChain) GetBlockResults(_ context.Context, h int64) (*node.BlockResults, error) {
	return &node.BlockResults{
		Height: fmt.Sprint(h),
		BeginBlockEvents: []node.Event{{
			Type: "rewards",
			Attributes: []node.Attribute{
				{Key: "amount", Value: "10uluna,2uusd"},
				{Key: "validator", Value: valA},
			},
		}},
	}, nil
}

type txKey struct{}

// memTx stages writes until the transaction body returns.
type memTx struct {
	blocks      []*chain.Block
	txs         []*chain.Tx
	accountTxs  []*chain.AccountTx
	delegations []*chain.DelegationEvent
	accounts    []*chain.Account
}

type memStore struct {
	mu     sync.Mutex
	nextID int64
	memTx
}

func (m *memStore) staged(ctx context.Context) *memTx {
	if tx, ok := ctx.Value(txKey{}).(*memTx); ok {
		return tx
	}
	return &m.memTx
}

func (m *memStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, tx.blocks...)
	m.txs = append(m.txs, tx.txs...)
	m.accountTxs = append(m.accountTxs, tx.accountTxs...)
	m.delegations = append(m.delegations, tx.delegations...)
	m.accounts = append(m.accounts, tx.accounts...)
	return nil
}

func (m *memStore) LastBlock(context.Context, string) (*chain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.blocks) == 0 {
		return nil, nil
	}
	return m.blocks[len(m.blocks)-1], nil
}

func (m *memStore) SaveBlock(ctx context.Context, block *chain.Block, _ *chain.BlockReward) error {
	m.mu.Lock()
	m.nextID++
	block.ID = m.nextID
	m.mu.Unlock()
	tx := m.staged(ctx)
	tx.blocks = append(tx.blocks, block)
	return nil
}

func (m *memStore) SaveTxs(ctx context.Context, rows []*chain.Tx) error {
	m.mu.Lock()
	for _, r := range rows {
		m.nextID++
		r.ID = m.nextID
	}
	m.mu.Unlock()
	tx := m.staged(ctx)
	tx.txs = append(tx.txs, rows...)
	return nil
}

func (m *memStore) SaveAccountTxs(ctx context.Context, rows []*chain.AccountTx) error {
	tx := m.staged(ctx)
	tx.accountTxs = append(tx.accountTxs, rows...)
	return nil
}

func (m *memStore) SaveDelegationEvents(ctx context.Context, rows []*chain.DelegationEvent) error {
	tx := m.staged(ctx)
	tx.delegations = append(tx.delegations, rows...)
	return nil
}

func (m *memStore) IncrementAccounts(ctx context.Context, rows []*chain.Account) error {
	tx := m.staged(ctx)
	tx.accounts = append(tx.accounts, rows...)
	return nil
}

type fakeSealer struct {
	mu       sync.Mutex
	prepared []int64
	sealed      []time.Time
	fail        error
	prepareFail error
}

func (f *fakeSealer) Prepare(_ context.Context, h int64) (*aggregator.MarketSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareFail != nil {
		return nil, f.prepareFail
	}
	f.prepared = append(f.prepared, h)
	return &aggregator.MarketSnapshot{Height: h}, nil
}

func (f *fakeSealer) Seal(_ context.Context, window time.Time, snap *aggregator.MarketSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sealed = append(f.sealed, window)
	return nil
}

func sendDoc(amount string) string {
	return fmt.Sprintf(`{"height":"1","txhash":"X","logs":[{"msg_index":0,"log":"","events":[]}],"gas_wanted":"1","gas_used":"1",`+
		`"tx":{"type":"core/StdTx","value":{"msg":[{"type":"bank/MsgSend","value":{"from_address":%q,"to_address":%q,`+
		`"amount":[{"denom":"uusd","amount":%q}]}}],"fee":{"amount":[{"denom":"uusd","amount":"6000"}],"gas":"1"}}},`+
		`"timestamp":"2021-10-01T12:00:40Z"}`, alice, bob, amount)
}

func delegateDoc() string {
	return fmt.Sprintf(`{"height":"1","txhash":"Y","logs":[{"msg_index":0,"log":"","events":[]}],"gas_wanted":"1","gas_used":"1",`+
		`"tx":{"type":"core/StdTx","value":{"msg":[{"type":"staking/MsgDelegate","value":{"delegator_address":%q,`+
		`"validator_address":%q,"amount":{"denom":"uluna","amount":"500"}}}],"fee":{"amount":[],"gas":"1"}}},`+
		`"timestamp":"2021-10-01T12:00:40Z"}`, alice, valA)
}

type SynchronizerSuite struct {
	suite.Suite
	pool   pond.Pool
	chain  *fakeChain
	store  *memStore
	sealer *fakeSealer
	sync   *Synchronizer
	events []*Indexed
}

func (s *SynchronizerSuite) SetupSuite() {
	s.pool = pond.NewPool(4)
}

func (s *SynchronizerSuite) TearDownSuite() {
	s.pool.StopAndWait()
}

func (s *SynchronizerSuite) SetupTest() {
	s.chain = newFakeChain()
	s.store = &memStore{}
	s.sealer = &fakeSealer{}
	s.events = nil
	s.sync = NewSynchronizer(logging.NewLoggerTag("syncer"), Config{
		ChainID:       "columbus-5",
		NativeDenom:   "uluna",
		StartHeight:   1,
		DefaultTaxCap: decimal.NewFromInt(1000000),
	}, s.chain, s.chain, s.store, s.sealer, parser.NewExtractor("terra"), s.pool)
	s.sync.OnIndexed(func(ev *Indexed) { s.events = append(s.events, ev) })
}

func (s *SynchronizerSuite) TestUpToDate() {
	more, err := s.sync.SyncNext(context.Background())
	s.Require().NoError(err)
	s.False(more)
	s.Empty(s.store.blocks)
}

func (s *SynchronizerSuite) TestSyncAllIsGapless() {
	for i := 0; i < 5; i++ {
		s.chain.addBlock()
	}
	s.Require().NoError(s.sync.SyncAll(context.Background()))
	s.Require().Len(s.store.blocks, 5)
	for i, b := range s.store.blocks {
		s.Equal(int64(i+1), b.Height)
	}
	s.Len(s.events, 5)

	more, err := s.sync.SyncNext(context.Background())
	s.Require().NoError(err)
	s.False(more)
	s.Len(s.store.blocks, 5)
}

func (s *SynchronizerSuite) TestStartHeight() {
	for i := 0; i < 4; i++ {
		s.chain.addBlock()
	}
	s.sync.cfg.StartHeight = 3
	s.Require().NoError(s.sync.SyncAll(context.Background()))
	s.Require().Len(s.store.blocks, 2)
	s.Equal(int64(3), s.store.blocks[0].Height)
}

func (s *SynchronizerSuite) TestBlockWithTxs() {
	s.chain.addBlock(sendDoc("1000000"), delegateDoc())
	more, err := s.sync.SyncNext(context.Background())
	s.Require().NoError(err)
	s.False(more)

	s.Require().Len(s.store.txs, 2)
	send, err := parser.FromRecord(s.store.txs[0])
	s.Require().NoError(err)
	s.Equal("5000uusd", send.Logs[0].Log["tax"])
	s.Equal("1000uusd", send.Tx.Value.Fee.Amount.String())
	s.Equal(s.store.blocks[0].ID, s.store.txs[0].BlockID)

	var sendTypes []types.ActionType
	for _, r := range s.store.accountTxs {
		if r.TxID == s.store.txs[0].ID {
			sendTypes = append(sendTypes, r.Type)
		}
	}
	s.ElementsMatch([]types.ActionType{types.ActionSend, types.ActionReceive}, sendTypes)

	s.Require().Len(s.store.delegations, 1)
	s.Equal(valA, s.store.delegations[0].OperatorAddress)
	s.Equal("500", s.store.delegations[0].Amount.String())

	s.Require().Len(s.events, 1)
	s.Equal([]string{valA}, s.events[0].Operators)
	s.Equal(2, s.events[0].TxCount)

	var aliceCount int64
	for _, a := range s.store.accounts {
		if a.Address == alice {
			aliceCount = a.TxCount
		}
	}
	s.Equal(int64(2), aliceCount)
}

func (s *SynchronizerSuite) TestMissingTxFailsBlock() {
	s.chain.addBlock(sendDoc("10"))
	hashes := s.chain.addBlock(sendDoc("20"), sendDoc("30"))
	s.chain.missing[hashes[1]] = true

	_, err := s.sync.SyncNext(context.Background())
	s.Require().NoError(err)
	_, err = s.sync.SyncNext(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "not found")

	s.Len(s.store.blocks, 1)
	s.Len(s.store.txs, 1)
	s.Len(s.events, 1)

	s.chain.missing = map[string]bool{}
	_, err = s.sync.SyncNext(context.Background())
	s.Require().NoError(err)
	s.Len(s.store.blocks, 2)
	s.Len(s.store.txs, 3)
}

func (s *SynchronizerSuite) TestMinuteRolloverSeals() {
	// 12:00:40, 12:00:46, 12:00:52, 12:00:58, 12:01:04
	for i := 0; i < 5; i++ {
		s.chain.addBlock()
	}
	s.Require().NoError(s.sync.SyncAll(context.Background()))
	s.Equal([]int64{5}, s.sealer.prepared)
	s.Equal([]time.Time{time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)}, s.sealer.sealed)
	s.Require().NotNil(s.events[4].Sealed)
	s.Nil(s.events[3].Sealed)
}

func (s *SynchronizerSuite) TestSealFailureRollsBackBlock() {
	for i := 0; i < 5; i++ {
		s.chain.addBlock()
	}
	s.sealer.fail = errors.New("db down")
	err := s.sync.SyncAll(context.Background())
	s.Require().Error(err)
	s.Len(s.store.blocks, 4)

	s.sealer.fail = nil
	s.Require().NoError(s.sync.SyncAll(context.Background()))
	s.Len(s.store.blocks, 5)
	s.Len(s.sealer.sealed, 1)
}

func (s *SynchronizerSuite) TestSnapshotFailureFailsBlock() {
	for i := 0; i < 5; i++ {
		s.chain.addBlock()
	}
	s.sealer.prepareFail = errors.New("lcd unavailable")
	err := s.sync.SyncAll(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "market snapshot")
	s.Len(s.store.blocks, 4)
	s.Empty(s.sealer.sealed)

	s.sealer.prepareFail = nil
	s.Require().NoError(s.sync.SyncAll(context.Background()))
	s.Len(s.store.blocks, 5)
	s.Equal([]int64{5}, s.sealer.prepared)
	s.Len(s.sealer.sealed, 1)
}

func TestSynchronizer(t *testing.T) {
	suite.Run(t, new(SynchronizerSuite))
}

func TestBlockReward(t *testing.T) {
	r, err := BlockReward(&node.BlockResults{
		BeginBlockEvents: []node.Event{
			{Type: "commission", Attributes: []node.Attribute{
				{Key: "amount", Value: "1uluna"}, {Key: "validator", Value: "v1"},
				{Key: "amount", Value: "2uluna"}, {Key: "validator", Value: "v2"},
			}},
			{Type: "rewards", Attributes: []node.Attribute{
				{Key: "amount", Value: "10uluna,3uusd"}, {Key: "validator", Value: "v1"},
			}},
			{Type: "transfer", Attributes: []node.Attribute{{Key: "amount", Value: "99uluna"}}},
		},
		EndBlockEvents: []node.Event{
			{Type: "rewards", Attributes: []node.Attribute{{Key: "amount", Value: "5uluna"}, {Key: "validator", Value: "v2"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "15", r.Reward.Get("uluna").String())
	assert.Equal(t, "3", r.Reward.Get("uusd").String())
	assert.Equal(t, "3", r.Commission.Get("uluna").String())
	assert.Equal(t, "2", r.CommissionPerVal["v2"].Get("uluna").String())
	assert.Equal(t, "10", r.RewardPerVal["v1"].Get("uluna").String())

	_, err = BlockReward(&node.BlockResults{BeginBlockEvents: []node.Event{
		{Type: "rewards", Attributes: []node.Attribute{{Key: "amount", Value: "garbage!"}}},
	}})
	assert.Error(t, err)
}

type stepper struct {
	remaining atomic.Int64
	failures  atomic.Int64
	calls     atomic.Int64
}

func (st *stepper) SyncNext(context.Context) (bool, error) {
	st.calls.Inc()
	if st.failures.Load() > 0 {
		st.failures.Dec()
		return false, errors.New("node unreachable")
	}
	return st.remaining.Dec() > 0, nil
}

func TestDriverDrainsWhenDirty(t *testing.T) {
	st := &stepper{}
	st.remaining.Store(3)
	d := NewDriver(logging.NewLoggerTag("driver"), st, 5*time.Millisecond, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, st.calls.Load())

	d.MarkDirty()
	assert.Eventually(t, func() bool { return st.calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.Dirty())

	cancel()
	require.NoError(t, <-done)
}

func TestDriverRetriesAfterError(t *testing.T) {
	st := &stepper{}
	st.remaining.Store(1)
	st.failures.Store(2)
	d := NewDriver(logging.NewLoggerTag("driver"), st, 5*time.Millisecond, 5*time.Millisecond)
	var errs atomic.Int64
	d.OnError = func(error) { errs.Inc() }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.MarkDirty()
	assert.Eventually(t, func() bool { return st.calls.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(2), errs.Load())
}

func TestCountAccounts(t *testing.T) {
	t0 := time.Unix(100, 0)
	rows := []*chain.AccountTx{
		{Account: "b", TxID: 1, Type: types.ActionSend, Timestamp: t0},
		{Account: "b", TxID: 1, Type: types.ActionStaking, Timestamp: t0},
		{Account: "a", TxID: 2, Type: types.ActionReceive, Timestamp: t0.Add(time.Second)},
		{Account: "b", TxID: 2, Type: types.ActionSend, Timestamp: t0.Add(time.Second)},
	}
	out := countAccounts("c", rows)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Address)
	assert.Equal(t, int64(1), out[0].TxCount)
	assert.Equal(t, int64(2), out[1].TxCount)
	assert.Equal(t, t0, out[1].FirstSeen)
}
