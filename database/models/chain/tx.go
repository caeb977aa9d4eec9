package chain

import (
	"time"

	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/types"
	"github.com/shopspring/decimal"
)

// Tx is a decoded transaction. Data holds the normalized tx document with the tax split out of
// the fee.
type Tx struct {
	ID        int64       `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	BlockID   int64       `gorm:"column:block_id;type:bigint;not null" json:"blockId"`
	ChainID   string      `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	Height    int64       `gorm:"column:height;type:bigint;not null" json:"height"`
	Hash      string      `gorm:"column:hash;type:varchar(64);not null" json:"hash"`
	Success   bool        `gorm:"column:success;not null" json:"success"`
	Timestamp time.Time   `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
	Data      models.JSON `gorm:"column:data;type:jsonb" json:"data"`

	models.Base
}

// ForeignKeyConstraints create foreign key constraints.
func (*Tx) ForeignKeyConstraints() []models.ForeignKeyConstraint {
	return []models.ForeignKeyConstraint{models.Cascade("block_id", `"block"(id)`)}
}

// Indexes returns information to create index.
func (*Tx) Indexes() []models.CustomIndex {
	return []models.CustomIndex{
		{Name: "chain_hash_uniq", Unique: true, Fields: []string{"chain_id", "hash"}},
		{Name: "chain_timestamp", Fields: []string{"chain_id", "timestamp"}},
		{Name: "block", Fields: []string{"block_id"}},
	}
}

// AccountTx links an account to a tx it took part in, with the kind of involvement.
type AccountTx struct {
	ID        int64            `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID   string           `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	Account   string           `gorm:"column:account;type:varchar(128);not null" json:"account"`
	TxID      int64            `gorm:"column:tx_id;type:bigint;not null" json:"txId"`
	Hash      string           `gorm:"column:hash;type:varchar(64);not null" json:"hash"`
	Type      types.ActionType `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Timestamp time.Time        `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
}

// ForeignKeyConstraints create foreign key constraints.
func (*AccountTx) ForeignKeyConstraints() []models.ForeignKeyConstraint {
	return []models.ForeignKeyConstraint{models.Cascade("tx_id", `"tx"(id)`)}
}

// Indexes returns information to create index.
func (*AccountTx) Indexes() []models.CustomIndex {
	return []models.CustomIndex{
		{Name: "account_timestamp", Fields: []string{"account", "timestamp"}},
		{Name: "chain_timestamp", Fields: []string{"chain_id", "timestamp"}},
		{Name: "tx", Fields: []string{"tx_id"}},
	}
}

// Account keeps per-address counters.
type Account struct {
	ID        int64     `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID   string    `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	Address   string    `gorm:"column:address;type:varchar(128);not null" json:"address"`
	TxCount   int64     `gorm:"column:tx_count;type:bigint;not null;default:0" json:"txCount"`
	FirstSeen time.Time `gorm:"column:first_seen;type:timestamp with time zone;not null" json:"firstSeen"`

	models.Base
}

// Indexes returns information to create index.
func (*Account) Indexes() []models.CustomIndex {
	return []models.CustomIndex{
		{Name: "chain_address_uniq", Unique: true, Fields: []string{"chain_id", "address"}},
		{Name: "first_seen", Fields: []string{"first_seen"}},
	}
}

// DelegationEvent is one voting-power change of a validator caused by a tx message.
type DelegationEvent struct {
	ID              int64                `gorm:"column:id;primary_key;AUTO_INCREMENT;not null" json:"id"`
	ChainID         string               `gorm:"column:chain_id;type:varchar(64);not null" json:"chainId"`
	TxID            int64                `gorm:"column:tx_id;type:bigint;not null" json:"txId"`
	Hash            string               `gorm:"column:hash;type:varchar(64);not null" json:"hash"`
	MsgIndex        int                  `gorm:"column:msg_index;type:integer;not null" json:"msgIndex"`
	OperatorAddress string               `gorm:"column:operator_address;type:varchar(128);not null" json:"operatorAddress"`
	Type            types.DelegationType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Amount          decimal.Decimal      `gorm:"column:amount;type:decimal(78,18);not null" json:"amount"`
	Timestamp       time.Time            `gorm:"column:timestamp;type:timestamp with time zone;not null" json:"timestamp"`
}

// ForeignKeyConstraints create foreign key constraints.
func (*DelegationEvent) ForeignKeyConstraints() []models.ForeignKeyConstraint {
	return []models.ForeignKeyConstraint{models.Cascade("tx_id", `"tx"(id)`)}
}

// Indexes returns information to create index.
func (*DelegationEvent) Indexes() []models.CustomIndex {
	return []models.CustomIndex{
		{Name: "msg_uniq", Unique: true, Fields: []string{"hash", "msg_index", "operator_address", "type"}},
		{Name: "operator_timestamp", Fields: []string{"operator_address", "timestamp"}},
	}
}
