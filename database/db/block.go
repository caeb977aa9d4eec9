package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// LastBlock returns the highest stored block of chainID, nil when none.
func (s *Store) LastBlock(ctx context.Context, chainID string) (*chain.Block, error) {
	b, err := first[chain.Block](s.conn(ctx).Omit("data").Where("chain_id = ?", chainID).Order("height desc"))
	if err != nil {
		return nil, fmt.Errorf("fail to get last block %w", err)
	}
	return b, nil
}

// FirstBlock returns the lowest stored block of chainID, nil when none.
func (s *Store) FirstBlock(ctx context.Context, chainID string) (*chain.Block, error) {
	b, err := first[chain.Block](s.conn(ctx).Omit("data").Where("chain_id = ?", chainID).Order("height asc"))
	if err != nil {
		return nil, fmt.Errorf("fail to get first block %w", err)
	}
	return b, nil
}

// SaveBlock inserts the block, then its reward with the new block id.
func (s *Store) SaveBlock(ctx context.Context, block *chain.Block, reward *chain.BlockReward) error {
	if err := s.conn(ctx).Create(block).Error; err != nil {
		return fmt.Errorf("fail to create block %d: %w", block.Height, err)
	}
	if reward == nil {
		return nil
	}
	reward.BlockID = block.ID
	if err := s.conn(ctx).Create(reward).Error; err != nil {
		return fmt.Errorf("fail to create block reward %d: %w", block.Height, err)
	}
	return nil
}

// SaveTxs inserts txs and fills their ids.
func (s *Store) SaveTxs(ctx context.Context, txs []*chain.Tx) error {
	if len(txs) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(txs, insertBatchSize).Error
}

// SaveAccountTxs inserts account-tx links.
func (s *Store) SaveAccountTxs(ctx context.Context, rows []*chain.AccountTx) error {
	if len(rows) == 0 {
		return nil
	}
	return s.conn(ctx).CreateInBatches(rows, insertBatchSize).Error
}

// SaveDelegationEvents inserts events, ignoring ones already recorded.
func (s *Store) SaveDelegationEvents(ctx context.Context, rows []*chain.DelegationEvent) error {
	if len(rows) == 0 {
		return nil
	}
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   columns("hash", "msg_index", "operator_address", "type"),
		DoNothing: true,
	}).Create(&rows).Error
}

// IncrementAccounts adds TxCount of every row to the stored counter and keeps the earliest
// FirstSeen. Rows must be unique by address.
func (s *Store) IncrementAccounts(ctx context.Context, rows []*chain.Account) error {
	if len(rows) == 0 {
		return nil
	}
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns: columns("chain_id", "address"),
		DoUpdates: clause.Assignments(map[string]interface{}{
			"tx_count":   gorm.Expr(`"account"."tx_count" + EXCLUDED."tx_count"`),
			"first_seen": gorm.Expr(`LEAST("account"."first_seen", EXCLUDED."first_seen")`),
			"updated_at": gorm.Expr(`EXCLUDED."updated_at"`),
		}),
	}).Create(&rows).Error
}

// DeleteBlocksFrom removes blocks of chainID at or above height; their rewards, txs, account
// txs and delegation events go with them.
func (s *Store) DeleteBlocksFrom(ctx context.Context, chainID string, height int64) (int64, error) {
	res := s.conn(ctx).Where("chain_id = ? AND height >= ?", chainID, height).Delete(&chain.Block{})
	return res.RowsAffected, res.Error
}

// FindTxAfter returns the first tx of chainID whose id is greater than cursor.
func (s *Store) FindTxAfter(ctx context.Context, chainID string, cursor int64) (*chain.Tx, error) {
	return first[chain.Tx](s.conn(ctx).Where("chain_id = ? AND id > ?", chainID, cursor).Order("id asc"))
}

// TxsInRange returns the txs of chainID with timestamp in [from, to), in id order.
func (s *Store) TxsInRange(ctx context.Context, chainID string, from, to time.Time) ([]*chain.Tx, error) {
	var txs []*chain.Tx
	err := s.conn(ctx).
		Where("chain_id = ? AND timestamp >= ? AND timestamp < ?", chainID, from, to).
		Order("id asc").Find(&txs).Error
	return txs, err
}

func (s *Store) blockRewards(ctx context.Context, chainID string) *gorm.DB {
	return s.conn(ctx).Model(&chain.BlockReward{}).
		Select(`"block_reward".*`).
		Joins(`JOIN "block" ON "block"."id" = "block_reward"."block_id"`).
		Where(`"block"."chain_id" = ?`, chainID)
}

// BlockRewardsInRange returns rewards of the blocks with timestamp in [from, to), by height.
func (s *Store) BlockRewardsInRange(ctx context.Context, chainID string, from, to time.Time) ([]*chain.BlockReward, error) {
	var out []*chain.BlockReward
	err := s.blockRewards(ctx, chainID).
		Where(`"block"."timestamp" >= ? AND "block"."timestamp" < ?`, from, to).
		Order(`"block"."height" asc`).Find(&out).Error
	return out, err
}

// FirstBlockRewardFrom returns the reward of the first block at or after at.
func (s *Store) FirstBlockRewardFrom(ctx context.Context, chainID string, at time.Time) (*chain.BlockReward, error) {
	return first[chain.BlockReward](s.blockRewards(ctx, chainID).
		Where(`"block"."timestamp" >= ?`, at).
		Order(`"block"."height" asc`))
}

// SumValidatorRewards folds per-validator rewards and commissions of blocks in [from, to).
func (s *Store) SumValidatorRewards(ctx context.Context, chainID string, from, to time.Time) (coins.ValDenomMap, coins.ValDenomMap, error) {
	reward, commission := coins.ValDenomMap{}, coins.ValDenomMap{}
	var batch []*chain.BlockReward
	err := s.blockRewards(ctx, chainID).
		Where(`"block"."timestamp" >= ? AND "block"."timestamp" < ?`, from, to).
		FindInBatches(&batch, 1000, func(*gorm.DB, int) error {
			for _, r := range batch {
				reward.Merge(r.RewardPerVal)
				commission.Merge(r.CommissionPerVal)
			}
			return nil
		}).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fail to sum validator rewards %w", err)
	}
	return reward, commission, nil
}
