package aggregator

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/shopspring/decimal"
)

// SealStore is the persistence of the minute rollups.
type SealStore interface {
	TxsInRange(ctx context.Context, chainID string, from, to time.Time) ([]*chain.Tx, error)
	BlockRewardsInRange(ctx context.Context, chainID string, from, to time.Time) ([]*chain.BlockReward, error)
	FirstBlockRewardFrom(ctx context.Context, chainID string, at time.Time) (*chain.BlockReward, error)
	UpsertPrices(ctx context.Context, rows []*chain.Price) error
	UpsertRewards(ctx context.Context, rows []*chain.Reward) error
	UpsertSwaps(ctx context.Context, rows []*chain.Swap) error
	UpsertNetworks(ctx context.Context, rows []*chain.Network) error
}

// DashboardStore is the persistence of the daily rollup.
type DashboardStore interface {
	RewardsInRange(ctx context.Context, from, to time.Time) ([]*chain.Reward, error)
	NetworksInRange(ctx context.Context, from, to time.Time) ([]*chain.Network, error)
	SumAvgVotingPower(ctx context.Context, day time.Time) (decimal.Decimal, error)
	CountActiveAccounts(ctx context.Context, chainID string, from, to time.Time) (int64, error)
	CountAccounts(ctx context.Context, chainID string, before time.Time) (int64, error)
	UpsertDashboard(ctx context.Context, row *chain.Dashboard) error
	LastDashboard(ctx context.Context, chainID string) (*chain.Dashboard, error)
	FirstBlock(ctx context.Context, chainID string) (*chain.Block, error)
}

// Store is everything the aggregator persists.
type Store interface {
	SealStore
	DashboardStore
}

// LCD is the node surface of market snapshots.
type LCD interface {
	GetExchangeRates(ctx context.Context, height int64) (coins.DenomMap, error)
	GetTotalSupply(ctx context.Context, height int64) (coins.Coins, error)
	GetSwapRate(ctx context.Context, offer coins.Coin, askDenom string) (*coins.Coin, error)
}

// Config of an Aggregator.
type Config struct {
	ChainID     string
	NativeDenom string
	StableDenom string
}

// Aggregator builds the minute and daily rollups.
type Aggregator struct {
	logger logging.Logger
	cfg    Config
	lcd    LCD
	store  Store
	pool   pond.Pool
}

// New creates an aggregator. pool bounds the parallel swap rate queries of a snapshot.
func New(logger logging.Logger, cfg Config, lcd LCD, store Store, pool pond.Pool) *Aggregator {
	return &Aggregator{logger: logger, cfg: cfg, lcd: lcd, store: store, pool: pool}
}

// Day returns the UTC day containing t.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
