package gov

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"github.com/mcdexio/chain-collector/types"
)

// LCD is the governance surface of the node.
type LCD interface {
	GetProposals(ctx context.Context) ([]*node.Proposal, error)
	GetDepositParams(ctx context.Context) (*node.DepositParams, error)
}

// Store persists governance state.
type Store interface {
	UpsertProposals(ctx context.Context, rows []*chain.Proposal) error
	SetSystemVar(ctx context.Context, name types.SysVar, value string) error
}

// Syncer mirrors the governance proposals and deposit parameters of the node.
type Syncer struct {
	logger  logging.Logger
	chainID string
	lcd     LCD
	store   Store
}

func NewSyncer(logger logging.Logger, chainID string, lcd LCD, store Store) *Syncer {
	return &Syncer{logger: logger, chainID: chainID, lcd: lcd, store: store}
}

// Run upserts every proposal and stores the deposit parameters.
func (s *Syncer) Run(ctx context.Context) error {
	proposals, err := s.lcd.GetProposals(ctx)
	if err != nil {
		return fmt.Errorf("proposals: %w", err)
	}
	rows := make([]*chain.Proposal, 0, len(proposals))
	for _, p := range proposals {
		row, err := s.record(p)
		if err != nil {
			s.logger.Warn("skip proposal: %s", err)
			continue
		}
		rows = append(rows, row)
	}
	if err := s.store.UpsertProposals(ctx, rows); err != nil {
		return fmt.Errorf("save proposals: %w", err)
	}

	params, err := s.lcd.GetDepositParams(ctx)
	if err != nil {
		return fmt.Errorf("deposit params: %w", err)
	}
	if params != nil {
		if err := s.store.SetSystemVar(ctx, types.SysVarGovMinDeposit, params.MinDeposit.String()); err != nil {
			return err
		}
		if err := s.store.SetSystemVar(ctx, types.SysVarGovDepositPeriod, string(params.MaxDepositPeriod)); err != nil {
			return err
		}
	}
	s.logger.Info("synced %d proposals", len(rows))
	return nil
}

func (s *Syncer) record(p *node.Proposal) (*chain.Proposal, error) {
	id, err := strconv.ParseInt(string(p.ID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("proposal id %q: %w", p.ID, err)
	}
	return &chain.Proposal{
		ChainID:         s.chainID,
		ProposalID:      id,
		Title:           p.Content.Value.Title,
		Type:            p.Content.Type,
		Status:          p.StatusName(),
		SubmitTime:      p.SubmitTime,
		DepositEndTime:  p.DepositEndTime,
		VotingStartTime: p.VotingStartTime,
		VotingEndTime:   p.VotingEndTime,
		TotalDeposit:    coins.NewDenomMap(p.TotalDeposit),
		Data:            models.JSON(p.Raw),
	}, nil
}
