package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/env"
	"github.com/mcdexio/chain-collector/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testChain = "localterra"

var genesis = time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)

type StoreTestSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupSuite() {
	if !env.HasDatabase() {
		s.T().Skip("DB_ARGS is not set")
	}
	Initialize()
	s.store = NewStore(GetDB())
	s.ctx = context.Background()
}

func (s *StoreTestSuite) SetupTest() {
	s.Require().NoError(Reset(GetDB(), types.Collector, true))
}

func (s *StoreTestSuite) TearDownSuite() {
	if s.store != nil {
		Finalize()
	}
}

// saveBlock stores a block at height with one tx from sender, as the synchronizer does.
func (s *StoreTestSuite) saveBlock(height int64, sender string) *chain.Block {
	ts := genesis.Add(time.Duration(height) * 6 * time.Second)
	block := &chain.Block{ChainID: testChain, Height: height, Timestamp: ts, TxCount: 1}
	reward := &chain.BlockReward{
		Reward:       coins.DenomMap{"uluna": decimal.NewFromInt(height)},
		RewardPerVal: coins.ValDenomMap{"valA": {"uluna": decimal.NewFromInt(height)}},
	}
	err := s.store.Transaction(s.ctx, func(ctx context.Context) error {
		if err := s.store.SaveBlock(ctx, block, reward); err != nil {
			return err
		}
		tx := &chain.Tx{BlockID: block.ID, ChainID: testChain, Height: height, Hash: hashOf(height), Success: true, Timestamp: ts}
		if err := s.store.SaveTxs(ctx, []*chain.Tx{tx}); err != nil {
			return err
		}
		if err := s.store.SaveAccountTxs(ctx, []*chain.AccountTx{{
			ChainID: testChain, Account: sender, TxID: tx.ID, Hash: tx.Hash, Type: types.ActionSend, Timestamp: ts,
		}}); err != nil {
			return err
		}
		return s.store.IncrementAccounts(ctx, []*chain.Account{{ChainID: testChain, Address: sender, TxCount: 1, FirstSeen: ts}})
	})
	s.Require().NoError(err)
	return block
}

func hashOf(height int64) string {
	return fmt.Sprintf("%064X", height)
}

func (s *StoreTestSuite) TestEmptyStore() {
	last, err := s.store.LastBlock(s.ctx, testChain)
	s.Require().NoError(err)
	s.Nil(last)
	tx, err := s.store.FindTxAfter(s.ctx, testChain, 0)
	s.Require().NoError(err)
	s.Nil(tx)
}

func (s *StoreTestSuite) TestBlocksAndAccounts() {
	s.saveBlock(1, "alice")
	s.saveBlock(2, "alice")
	s.saveBlock(3, "bob")

	first, err := s.store.FirstBlock(s.ctx, testChain)
	s.Require().NoError(err)
	s.Equal(int64(1), first.Height)
	last, err := s.store.LastBlock(s.ctx, testChain)
	s.Require().NoError(err)
	s.Equal(int64(3), last.Height)

	top, err := s.store.TopAccounts(s.ctx, testChain, 10)
	s.Require().NoError(err)
	s.Equal([]string{"alice", "bob"}, top)

	n, err := s.store.CountAccounts(s.ctx, testChain, genesis.Add(15*time.Second))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	active, err := s.store.CountActiveAccounts(s.ctx, testChain, genesis, genesis.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(2), active)

	rewards, err := s.store.BlockRewardsInRange(s.ctx, testChain, genesis, genesis.Add(13*time.Second))
	s.Require().NoError(err)
	s.Require().Len(rewards, 2)
	next, err := s.store.FirstBlockRewardFrom(s.ctx, testChain, genesis.Add(13*time.Second))
	s.Require().NoError(err)
	s.True(next.Reward.Get("uluna").Equal(decimal.NewFromInt(3)))

	perVal, _, err := s.store.SumValidatorRewards(s.ctx, testChain, genesis, genesis.Add(time.Minute))
	s.Require().NoError(err)
	s.True(perVal["valA"].Get("uluna").Equal(decimal.NewFromInt(6)))
}

func (s *StoreTestSuite) TestTransactionRollsBack() {
	s.saveBlock(1, "alice")
	err := s.store.Transaction(s.ctx, func(ctx context.Context) error {
		if err := s.store.SaveBlock(ctx, &chain.Block{ChainID: testChain, Height: 2, Timestamp: genesis}, nil); err != nil {
			return err
		}
		return errors.New("tx fetch failed")
	})
	s.Error(err)
	last, err := s.store.LastBlock(s.ctx, testChain)
	s.Require().NoError(err)
	s.Equal(int64(1), last.Height)
}

func (s *StoreTestSuite) TestDeleteBlocksFromCascades() {
	s.saveBlock(1, "alice")
	s.saveBlock(2, "alice")
	s.saveBlock(3, "alice")

	n, err := s.store.DeleteBlocksFrom(s.ctx, testChain, 2)
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	last, err := s.store.LastBlock(s.ctx, testChain)
	s.Require().NoError(err)
	s.Equal(int64(1), last.Height)
	txs, err := s.store.TxsInRange(s.ctx, testChain, genesis, genesis.Add(time.Hour))
	s.Require().NoError(err)
	s.Len(txs, 1)
}

func (s *StoreTestSuite) TestSystemVar() {
	// the system table survives resets
	s.Require().NoError(s.store.SetSystemVar(s.ctx, types.SysVarGovMinDeposit, "512000000uluna"))
	s.Require().NoError(s.store.SetSystemVar(s.ctx, types.SysVarGovMinDeposit, "100uluna"))
	v, ok, err := s.store.GetSystemVar(s.ctx, types.SysVarGovMinDeposit)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("100uluna", v)
}

func TestStore(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestBuildForeignKeyName(t *testing.T) {
	require.Equal(t, "tx_block_id_block_id_foreign", buildForeignKeyName("tx", "block_id", `"block"(id)`))
}
