package chain

import (
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/shopspring/decimal"
)

// ValidatorInfo is the latest known state of a validator.
type ValidatorInfo struct {
	ID              int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	OperatorAddress string          `gorm:"column:operator_address;type:varchar(128);not null" json:"operatorAddress"`
	Moniker         string          `gorm:"column:moniker;type:varchar(256)" json:"moniker"`
	Status          string          `gorm:"column:status;type:varchar(32)" json:"status"`
	Jailed          bool            `gorm:"column:jailed;not null" json:"jailed"`
	Tokens          decimal.Decimal `gorm:"column:tokens;type:decimal(78,18);not null" json:"tokens"`
	DelegatorShares decimal.Decimal `gorm:"column:delegator_shares;type:decimal(78,18);not null" json:"delegatorShares"`
	CommissionRate  decimal.Decimal `gorm:"column:commission_rate;type:decimal(38,18);not null" json:"commissionRate"`
	SelfBondRewards coins.DenomMap  `gorm:"column:self_bond_rewards;type:jsonb" json:"selfBondRewards"`
	Commission      coins.DenomMap  `gorm:"column:commission;type:jsonb" json:"commission"`
	// RefreshedAt is when Tokens was read from the node.
	RefreshedAt time.Time `gorm:"column:refreshed_at;type:timestamp with time zone;not null" json:"refreshedAt"`

	models.Base
}

// Indexes returns information to create index.
func (*ValidatorInfo) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "operator_uniq", Unique: true, Fields: []string{"operator_address"}}}
}

// ValidatorReturnInfo is the daily return of a validator, amounts in the native denom.
type ValidatorReturnInfo struct {
	ID               int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	OperatorAddress  string          `gorm:"column:operator_address;type:varchar(128);not null" json:"operatorAddress"`
	Timestamp        time.Time       `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
	Reward           decimal.Decimal `gorm:"column:reward;type:decimal(78,18);not null" json:"reward"`
	Commission       decimal.Decimal `gorm:"column:commission;type:decimal(78,18);not null" json:"commission"`
	AvgVotingPower   decimal.Decimal `gorm:"column:avg_voting_power;type:decimal(78,18);not null" json:"avgVotingPower"`
	AnnualizedReturn decimal.Decimal `gorm:"column:annualized_return;type:decimal(38,18);not null" json:"annualizedReturn"`

	models.Base
}

// Indexes returns information to create index.
func (*ValidatorReturnInfo) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "operator_timestamp_uniq", Unique: true, Fields: []string{"operator_address", "timestamp"}}}
}
