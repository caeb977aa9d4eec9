package db

import (
	"context"
	"time"

	"github.com/mcdexio/chain-collector/database/models/chain"
)

// UpsertDashboard writes a daily summary keyed by (chain_id, timestamp).
func (s *Store) UpsertDashboard(ctx context.Context, row *chain.Dashboard) error {
	return upsert(s, ctx, []*chain.Dashboard{row}, []string{"chain_id", "timestamp"},
		"tx_volume", "reward", "tax_reward", "avg_staking", "active_account", "total_account")
}

// LastDashboard returns the latest daily summary of chainID, nil when none.
func (s *Store) LastDashboard(ctx context.Context, chainID string) (*chain.Dashboard, error) {
	return first[chain.Dashboard](s.conn(ctx).Where("chain_id = ?", chainID).Order("timestamp desc"))
}

// CountActiveAccounts counts distinct accounts with a tx in [from, to).
func (s *Store) CountActiveAccounts(ctx context.Context, chainID string, from, to time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&chain.AccountTx{}).
		Where("chain_id = ? AND timestamp >= ? AND timestamp < ?", chainID, from, to).
		Distinct("account").Count(&n).Error
	return n, err
}

// CountAccounts counts accounts first seen before t.
func (s *Store) CountAccounts(ctx context.Context, chainID string, before time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&chain.Account{}).
		Where("chain_id = ? AND first_seen < ?", chainID, before).Count(&n).Error
	return n, err
}
