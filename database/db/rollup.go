package db

import (
	"context"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/shopspring/decimal"
)

var minuteKey = []string{"denom", "datetime"}

// UpsertRewards writes reward rollups keyed by (denom, datetime).
func (s *Store) UpsertRewards(ctx context.Context, rows []*chain.Reward) error {
	return upsert(s, ctx, rows, minuteKey,
		"tax", "tax_usd", "gas", "gas_usd", "oracle", "oracle_usd", "sum", "sum_usd", "commission", "commission_usd")
}

// UpsertSwaps writes swap rollups keyed by (denom, datetime).
func (s *Store) UpsertSwaps(ctx context.Context, rows []*chain.Swap) error {
	return upsert(s, ctx, rows, minuteKey,
		"swap_in", "swap_in_usd", "swap_out", "swap_out_usd", "fee", "fee_usd", "spread")
}

// UpsertNetworks writes network rollups keyed by (denom, datetime).
func (s *Store) UpsertNetworks(ctx context.Context, rows []*chain.Network) error {
	return upsert(s, ctx, rows, minuteKey, "supply", "market_cap", "tx_volume")
}

// UpsertPrices writes price rows keyed by (denom, datetime).
func (s *Store) UpsertPrices(ctx context.Context, rows []*chain.Price) error {
	return upsert(s, ctx, rows, minuteKey, "price")
}

// RewardsInRange returns reward rollups with datetime in [from, to).
func (s *Store) RewardsInRange(ctx context.Context, from, to time.Time) ([]*chain.Reward, error) {
	var out []*chain.Reward
	err := s.conn(ctx).Where("datetime >= ? AND datetime < ?", from, to).Find(&out).Error
	return out, err
}

// NetworksInRange returns network rollups with datetime in [from, to).
func (s *Store) NetworksInRange(ctx context.Context, from, to time.Time) ([]*chain.Network, error) {
	var out []*chain.Network
	err := s.conn(ctx).Where("datetime >= ? AND datetime < ?", from, to).Find(&out).Error
	return out, err
}

// AveragePrices returns the mean price per denom over [from, to).
func (s *Store) AveragePrices(ctx context.Context, from, to time.Time) (coins.DenomMap, error) {
	var rows []struct {
		Denom string
		Price decimal.Decimal
	}
	err := s.conn(ctx).Model(&chain.Price{}).
		Select("denom, AVG(price) AS price").
		Where("datetime >= ? AND datetime < ?", from, to).
		Group("denom").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := coins.DenomMap{}
	for _, r := range rows {
		out[r.Denom] = r.Price
	}
	return out, nil
}
