package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcdexio/chain-collector/aggregator"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"github.com/shopspring/decimal"
)

// Store is the persistence the synchronizer needs. Calls made with the ctx handed to a
// Transaction body join that transaction.
type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	LastBlock(ctx context.Context, chainID string) (*chain.Block, error)
	SaveBlock(ctx context.Context, block *chain.Block, reward *chain.BlockReward) error
	SaveTxs(ctx context.Context, txs []*chain.Tx) error
	SaveAccountTxs(ctx context.Context, rows []*chain.AccountTx) error
	SaveDelegationEvents(ctx context.Context, rows []*chain.DelegationEvent) error
	IncrementAccounts(ctx context.Context, rows []*chain.Account) error
}

// TxFinder looks up stored txs by id.
type TxFinder interface {
	FindTxAfter(ctx context.Context, chainID string, cursor int64) (*chain.Tx, error)
}

// LCD is the node surface used while syncing.
type LCD interface {
	GetLatestBlock(ctx context.Context) (*node.BlockInfo, error)
	GetBlock(ctx context.Context, height int64) (*node.BlockInfo, error)
	GetTx(ctx context.Context, hash string) (json.RawMessage, error)
	GetTaxRate(ctx context.Context, height int64) (decimal.Decimal, error)
	GetTaxCaps(ctx context.Context, height int64) (coins.DenomMap, error)
}

// RPC provides block results.
type RPC interface {
	GetBlockResults(ctx context.Context, height int64) (*node.BlockResults, error)
}

// Sealer aggregates a finished minute. Prepare runs before the block transaction, Seal inside it.
type Sealer interface {
	Prepare(ctx context.Context, height int64) (*aggregator.MarketSnapshot, error)
	Seal(ctx context.Context, window time.Time, snapshot *aggregator.MarketSnapshot) error
}

// Indexed describes a committed block to post-commit listeners.
type Indexed struct {
	ChainID   string
	Height    int64
	Timestamp time.Time
	TxCount   int
	// Operators are the validators whose delegation changed in the block.
	Operators []string
	// Sealed is the minute aggregated with the block, if any.
	Sealed  *time.Time
	Elapsed time.Duration
}
