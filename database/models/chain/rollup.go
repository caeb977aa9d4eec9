package chain

import (
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/shopspring/decimal"
)

// Minute rollups are keyed by (denom, datetime) where datetime is the start of the minute.
var minuteKey = []models.CustomIndex{{Name: "denom_datetime_uniq", Unique: true, Fields: []string{"denom", "datetime"}}}

// Reward is the staking reward collected in one minute, by source.
type Reward struct {
	ID            int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom         string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Datetime      time.Time       `gorm:"column:datetime;type:timestamp with time zone;not null" json:"datetime"`
	Tax           decimal.Decimal `gorm:"column:tax;type:decimal(78,18);not null" json:"tax"`
	TaxUsd        decimal.Decimal `gorm:"column:tax_usd;type:decimal(78,18);not null" json:"taxUsd"`
	Gas           decimal.Decimal `gorm:"column:gas;type:decimal(78,18);not null" json:"gas"`
	GasUsd        decimal.Decimal `gorm:"column:gas_usd;type:decimal(78,18);not null" json:"gasUsd"`
	Oracle        decimal.Decimal `gorm:"column:oracle;type:decimal(78,18);not null" json:"oracle"`
	OracleUsd     decimal.Decimal `gorm:"column:oracle_usd;type:decimal(78,18);not null" json:"oracleUsd"`
	Sum           decimal.Decimal `gorm:"column:sum;type:decimal(78,18);not null" json:"sum"`
	SumUsd        decimal.Decimal `gorm:"column:sum_usd;type:decimal(78,18);not null" json:"sumUsd"`
	Commission    decimal.Decimal `gorm:"column:commission;type:decimal(78,18);not null" json:"commission"`
	CommissionUsd decimal.Decimal `gorm:"column:commission_usd;type:decimal(78,18);not null" json:"commissionUsd"`

	models.Base
}

// Indexes returns information to create index.
func (*Reward) Indexes() []models.CustomIndex { return minuteKey }

// Swap is the market module activity of one minute for a denom.
type Swap struct {
	ID       int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom    string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Datetime time.Time       `gorm:"column:datetime;type:timestamp with time zone;not null" json:"datetime"`
	In       decimal.Decimal `gorm:"column:swap_in;type:decimal(78,18);not null" json:"in"`
	InUsd    decimal.Decimal `gorm:"column:swap_in_usd;type:decimal(78,18);not null" json:"inUsd"`
	Out      decimal.Decimal `gorm:"column:swap_out;type:decimal(78,18);not null" json:"out"`
	OutUsd   decimal.Decimal `gorm:"column:swap_out_usd;type:decimal(78,18);not null" json:"outUsd"`
	Fee      decimal.Decimal `gorm:"column:fee;type:decimal(78,18);not null" json:"fee"`
	FeeUsd   decimal.Decimal `gorm:"column:fee_usd;type:decimal(78,18);not null" json:"feeUsd"`
	Spread   decimal.Decimal `gorm:"column:spread;type:decimal(38,18);not null" json:"spread"`

	models.Base
}

// Indexes returns information to create index.
func (*Swap) Indexes() []models.CustomIndex { return minuteKey }

// Network is the supply and transfer volume of a denom in one minute.
type Network struct {
	ID        int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom     string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Datetime  time.Time       `gorm:"column:datetime;type:timestamp with time zone;not null" json:"datetime"`
	Supply    decimal.Decimal `gorm:"column:supply;type:decimal(78,18);not null" json:"supply"`
	MarketCap decimal.Decimal `gorm:"column:market_cap;type:decimal(78,18);not null" json:"marketCap"`
	TxVolume  decimal.Decimal `gorm:"column:tx_volume;type:decimal(78,18);not null" json:"txVolume"`

	models.Base
}

// Indexes returns information to create index.
func (*Network) Indexes() []models.CustomIndex { return minuteKey }

// Price is the oracle exchange rate of a denom against the native denom at a minute.
type Price struct {
	ID       int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom    string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Datetime time.Time       `gorm:"column:datetime;type:timestamp with time zone;not null" json:"datetime"`
	Price    decimal.Decimal `gorm:"column:price;type:decimal(38,18);not null" json:"price"`

	models.Base
}

// Indexes returns information to create index.
func (*Price) Indexes() []models.CustomIndex { return minuteKey }

// Dashboard is the daily summary of a chain.
type Dashboard struct {
	ID            int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID       string          `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	Timestamp     time.Time       `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
	TxVolume      coins.DenomMap  `gorm:"column:tx_volume;type:jsonb" json:"txVolume"`
	Reward        decimal.Decimal `gorm:"column:reward;type:decimal(78,18);not null" json:"reward"`
	TaxReward     decimal.Decimal `gorm:"column:tax_reward;type:decimal(78,18);not null" json:"taxReward"`
	AvgStaking    decimal.Decimal `gorm:"column:avg_staking;type:decimal(78,18);not null" json:"avgStaking"`
	ActiveAccount int64           `gorm:"column:active_account;type:bigint;not null" json:"activeAccount"`
	TotalAccount  int64           `gorm:"column:total_account;type:bigint;not null" json:"totalAccount"`

	models.Base
}

// Indexes returns information to create index.
func (*Dashboard) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "chain_timestamp_uniq", Unique: true, Fields: []string{"chain_id", "timestamp"}}}
}
