package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/shopspring/decimal"
)

// Dashboard folds the rollups of the UTC day starting at day into its dashboard row.
func (a *Aggregator) Dashboard(ctx context.Context, day time.Time) (*chain.Dashboard, error) {
	from := Day(day)
	to := from.AddDate(0, 0, 1)

	networks, err := a.store.NetworksInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("networks: %w", err)
	}
	rewards, err := a.store.RewardsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("rewards: %w", err)
	}
	avgStaking, err := a.store.SumAvgVotingPower(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("voting power: %w", err)
	}
	active, err := a.store.CountActiveAccounts(ctx, a.cfg.ChainID, from, to)
	if err != nil {
		return nil, fmt.Errorf("active accounts: %w", err)
	}
	total, err := a.store.CountAccounts(ctx, a.cfg.ChainID, to)
	if err != nil {
		return nil, fmt.Errorf("total accounts: %w", err)
	}

	row := &chain.Dashboard{
		ChainID:       a.cfg.ChainID,
		Timestamp:     from,
		TxVolume:      coins.DenomMap{},
		Reward:        decimal.Zero,
		TaxReward:     decimal.Zero,
		AvgStaking:    avgStaking,
		ActiveAccount: active,
		TotalAccount:  total,
	}
	for _, n := range networks {
		row.TxVolume.Add(n.Denom, n.TxVolume)
	}
	for _, r := range rewards {
		row.Reward = row.Reward.Add(r.SumUsd)
		row.TaxReward = row.TaxReward.Add(r.TaxUsd)
	}
	if err := a.store.UpsertDashboard(ctx, row); err != nil {
		return nil, fmt.Errorf("upsert dashboard: %w", err)
	}
	return row, nil
}

// CatchUpDashboards builds every day from the last stored dashboard (rebuilt in place) or the
// first synced block, up to the day before until.
func (a *Aggregator) CatchUpDashboards(ctx context.Context, until time.Time) (int, error) {
	var start time.Time
	last, err := a.store.LastDashboard(ctx, a.cfg.ChainID)
	if err != nil {
		return 0, fmt.Errorf("last dashboard: %w", err)
	}
	if last != nil {
		start = Day(last.Timestamp)
	} else {
		first, err := a.store.FirstBlock(ctx, a.cfg.ChainID)
		if err != nil {
			return 0, fmt.Errorf("first block: %w", err)
		}
		if first == nil {
			return 0, nil
		}
		start = Day(first.Timestamp)
	}

	end := Day(until)
	n := 0
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := a.Dashboard(ctx, day); err != nil {
			return n, fmt.Errorf("dashboard %s: %w", day.Format("2006-01-02"), err)
		}
		n++
	}
	if n > 0 {
		a.logger.Info("built %d dashboards up to %s", n, end.Format("2006-01-02"))
	}
	return n, nil
}
