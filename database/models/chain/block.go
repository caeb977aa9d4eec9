package chain

import (
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models"
)

// Block is one committed block. (chain_id, height) is unique and heights are gapless from the
// first synced one.
type Block struct {
	ID        int64       `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID   string      `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	Height    int64       `gorm:"column:height;type:bigint;not null" json:"height"`
	Timestamp time.Time   `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
	Proposer  string      `gorm:"column:proposer;type:varchar(128)" json:"proposer"`
	TxCount   int         `gorm:"column:tx_count;type:integer;not null;default:0" json:"txCount"`
	Data      models.JSON `gorm:"column:data;type:jsonb" json:"data"`

	models.Base
}

// Indexes returns information to create index.
func (*Block) Indexes() []models.CustomIndex {
	return []models.CustomIndex{
		{Name: "chain_height_uniq", Unique: true, Fields: []string{"chain_id", "height"}},
		{Name: "chain_timestamp", Fields: []string{"chain_id", "timestamp"}},
	}
}

// BlockReward holds the distribution events of a block, totals and per validator operator.
type BlockReward struct {
	ID               int64             `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	BlockID          int64             `gorm:"column:block_id;type:bigint;not null" json:"blockId"`
	Reward           coins.DenomMap    `gorm:"column:reward;type:jsonb" json:"reward"`
	Commission       coins.DenomMap    `gorm:"column:commission;type:jsonb" json:"commission"`
	RewardPerVal     coins.ValDenomMap `gorm:"column:reward_per_val;type:jsonb" json:"rewardPerVal"`
	CommissionPerVal coins.ValDenomMap `gorm:"column:commission_per_val;type:jsonb" json:"commissionPerVal"`

	models.Base
}

// ForeignKeyConstraints create foreign key constraints.
func (*BlockReward) ForeignKeyConstraints() []models.ForeignKeyConstraint {
	return []models.ForeignKeyConstraint{models.Cascade("block_id", `"block"(id)`)}
}

// Indexes returns information to create index.
func (*BlockReward) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "block_uniq", Unique: true, Fields: []string{"block_id"}}}
}
