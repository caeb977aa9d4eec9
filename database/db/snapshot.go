package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/types"
	"gorm.io/gorm"
)

// TopAccounts returns up to limit addresses of chainID ordered by tx count.
func (s *Store) TopAccounts(ctx context.Context, chainID string, limit int) ([]string, error) {
	var out []string
	err := s.conn(ctx).Model(&chain.Account{}).
		Where("chain_id = ?", chainID).
		Order("tx_count desc").Limit(limit).Pluck("address", &out).Error
	return out, err
}

// ReplaceRichList swaps the rich list of denom for rows in one transaction.
func (s *Store) ReplaceRichList(ctx context.Context, denom string, rows []*chain.RichList) error {
	return s.Transaction(ctx, func(ctx context.Context) error {
		if err := s.conn(ctx).Where("denom = ?", denom).Delete(&chain.RichList{}).Error; err != nil {
			return fmt.Errorf("fail to clear rich list %s: %w", denom, err)
		}
		if len(rows) == 0 {
			return nil
		}
		return s.conn(ctx).CreateInBatches(rows, insertBatchSize).Error
	})
}

// UpsertUnvested writes unvested amounts keyed by (denom, datetime).
func (s *Store) UpsertUnvested(ctx context.Context, rows []*chain.Unvested) error {
	return upsert(s, ctx, rows, minuteKey, "amount")
}

// UpsertProposals writes proposals keyed by (chain_id, proposal_id).
func (s *Store) UpsertProposals(ctx context.Context, rows []*chain.Proposal) error {
	return upsert(s, ctx, rows, []string{"chain_id", "proposal_id"},
		"title", "type", "status", "submit_time", "deposit_end_time", "voting_start_time",
		"voting_end_time", "total_deposit", "data")
}

// SetSystemVar stores a system variable.
func (s *Store) SetSystemVar(ctx context.Context, name types.SysVar, value string) error {
	return upsert(s, ctx, []*models.System{{Name: name, Value: value}}, []string{"name"}, "value")
}

// GetSystemVar reads a system variable; ok is false when unset.
func (s *Store) GetSystemVar(ctx context.Context, name types.SysVar) (value string, ok bool, err error) {
	var row models.System
	err = s.conn(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}
