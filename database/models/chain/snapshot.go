package chain

import (
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/shopspring/decimal"
)

// RichList is one row of the top holders of a denom at a snapshot time.
type RichList struct {
	ID         int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom      string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Account    string          `gorm:"column:account;type:varchar(128);not null" json:"account"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(78,18);not null" json:"amount"`
	Percentage decimal.Decimal `gorm:"column:percentage;type:decimal(38,18);not null" json:"percentage"`
	Timestamp  time.Time       `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
}

// Indexes returns information to create index.
func (*RichList) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "denom_amount", Fields: []string{"denom", "amount"}}}
}

// Unvested is the amount of a denom still locked in vesting, per snapshot hour.
type Unvested struct {
	ID       int64           `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	Denom    string          `gorm:"column:denom;type:varchar(128);not null" json:"denom"`
	Datetime time.Time       `gorm:"column:datetime;type:timestamp with time zone;not null" json:"datetime"`
	Amount   decimal.Decimal `gorm:"column:amount;type:decimal(78,18);not null" json:"amount"`

	models.Base
}

// Indexes returns information to create index.
func (*Unvested) Indexes() []models.CustomIndex { return minuteKey }

// Proposal is a governance proposal as last seen on the node.
type Proposal struct {
	ID              int64          `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID         string         `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	ProposalID      int64          `gorm:"column:proposal_id;type:bigint;not null" json:"proposalId"`
	Title           string         `gorm:"column:title;type:text" json:"title"`
	Type            string         `gorm:"column:type;type:varchar(128)" json:"type"`
	Status          string         `gorm:"column:status;type:varchar(64)" json:"status"`
	SubmitTime      time.Time      `gorm:"column:submit_time;type:timestamp with time zone" json:"submitTime"`
	DepositEndTime  time.Time      `gorm:"column:deposit_end_time;type:timestamp with time zone" json:"depositEndTime"`
	VotingStartTime time.Time      `gorm:"column:voting_start_time;type:timestamp with time zone" json:"votingStartTime"`
	VotingEndTime   time.Time      `gorm:"column:voting_end_time;type:timestamp with time zone" json:"votingEndTime"`
	TotalDeposit    coins.DenomMap `gorm:"column:total_deposit;type:jsonb" json:"totalDeposit"`
	Data            models.JSON    `gorm:"column:data;type:jsonb" json:"data"`

	models.Base
}

// Indexes returns information to create index.
func (*Proposal) Indexes() []models.CustomIndex {
	return []models.CustomIndex{{Name: "chain_proposal_uniq", Unique: true, Fields: []string{"chain_id", "proposal_id"}}}
}
