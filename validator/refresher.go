package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"go.uber.org/atomic"
)

// LCD is the node surface of the refresher.
type LCD interface {
	GetValidators(ctx context.Context, status string) ([]*node.Validator, error)
	GetValidatorDistribution(ctx context.Context, operator string) (*node.ValidatorDistribution, error)
}

// Store persists validator state.
type Store interface {
	UpsertValidators(ctx context.Context, rows []*chain.ValidatorInfo) error
	UpdateValidatorDetails(ctx context.Context, v *chain.ValidatorInfo) error
}

// Refresher keeps validator_info in line with the node. Every run rewrites the staking state of
// all validators; distribution details are refreshed for every validator on the first run and
// afterwards only for the tracked addresses whose delegations changed.
type Refresher struct {
	logger  logging.Logger
	lcd     LCD
	store   Store
	pool    pond.Pool
	tracked *AddressSet
	warm    atomic.Bool

	now func() time.Time
}

func NewRefresher(logger logging.Logger, lcd LCD, store Store, pool pond.Pool, tracked *AddressSet) *Refresher {
	return &Refresher{logger: logger, lcd: lcd, store: store, pool: pool, tracked: tracked, now: time.Now}
}

// Run refreshes the validators once.
func (r *Refresher) Run(ctx context.Context) error {
	validators, err := r.lcd.GetValidators(ctx, "")
	if err != nil {
		return fmt.Errorf("list validators: %w", err)
	}
	refreshedAt := r.now().UTC()
	rows := make([]*chain.ValidatorInfo, 0, len(validators))
	for _, v := range validators {
		rows = append(rows, &chain.ValidatorInfo{
			OperatorAddress: v.OperatorAddress,
			Moniker:         v.Description.Moniker,
			Status:          v.StatusName(),
			Jailed:          v.Jailed,
			Tokens:          v.Tokens,
			DelegatorShares: v.DelegatorShares,
			CommissionRate:  v.Commission.CommissionRates.Rate,
			SelfBondRewards: coins.DenomMap{},
			Commission:      coins.DenomMap{},
			RefreshedAt:     refreshedAt,
		})
	}
	if err := r.store.UpsertValidators(ctx, rows); err != nil {
		return fmt.Errorf("save validators: %w", err)
	}

	targets := r.tracked.Drain()
	if !r.warm.Load() {
		targets = targets[:0]
		for _, row := range rows {
			targets = append(targets, row.OperatorAddress)
		}
	}
	failed := r.refreshDetails(ctx, targets)
	if len(failed) > 0 {
		r.tracked.Add(failed...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.warm.Store(true)
	r.logger.Info("refreshed %d validators, details of %d (%d failed)", len(rows), len(targets)-len(failed), len(failed))
	return nil
}

// refreshDetails updates the distribution state of operators in parallel and returns the ones
// that failed.
func (r *Refresher) refreshDetails(ctx context.Context, operators []string) []string {
	failed := NewAddressSet()
	group := r.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, op := range operators {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				failed.Add(op)
				return
			}
			if err := r.refreshOne(groupCtx, op); err != nil {
				r.logger.Warn("refresh validator %s: %s", op, err)
				failed.Add(op)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		r.logger.Warn("validator details: %s", err)
	}
	return failed.Drain()
}

func (r *Refresher) refreshOne(ctx context.Context, operator string) error {
	dist, err := r.lcd.GetValidatorDistribution(ctx, operator)
	if err != nil {
		return err
	}
	if dist == nil {
		// unknown to the distribution module, nothing to track
		return nil
	}
	return r.store.UpdateValidatorDetails(ctx, &chain.ValidatorInfo{
		OperatorAddress: operator,
		SelfBondRewards: coins.NewDenomMap(dist.SelfBondRewards),
		Commission:      coins.NewDenomMap(dist.ValCommission),
	})
}
