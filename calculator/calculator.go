package calculator

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdexio/chain-collector/aggregator"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/common/num"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.NewFromInt(365)

// Store is the persistence the calculator reads and writes.
type Store interface {
	Validators(ctx context.Context) ([]*chain.ValidatorInfo, error)
	DelegationEvents(ctx context.Context, operator string, from, to time.Time) ([]*chain.DelegationEvent, error)
	SumValidatorRewards(ctx context.Context, chainID string, from, to time.Time) (coins.ValDenomMap, coins.ValDenomMap, error)
	AveragePrices(ctx context.Context, from, to time.Time) (coins.DenomMap, error)
	UpsertValidatorReturn(ctx context.Context, row *chain.ValidatorReturnInfo) error
}

// Config of a Calculator.
type Config struct {
	ChainID     string
	NativeDenom string
	StableDenom string
}

// Calculator computes the daily return of every validator.
type Calculator struct {
	logger logging.Logger
	cfg    Config
	store  Store
}

// NewCalculator creates a calculator.
func NewCalculator(logger logging.Logger, cfg Config, store Store) *Calculator {
	return &Calculator{logger: logger, cfg: cfg, store: store}
}

// CalculateDay writes the return of every known validator for the UTC day containing day. A
// validator that fails is logged and skipped; the count of written rows is returned.
func (c *Calculator) CalculateDay(ctx context.Context, day time.Time) (int, error) {
	from := aggregator.Day(day)
	to := from.AddDate(0, 0, 1)

	validators, err := c.store.Validators(ctx)
	if err != nil {
		return 0, fmt.Errorf("validators: %w", err)
	}
	rewards, commissions, err := c.store.SumValidatorRewards(ctx, c.cfg.ChainID, from, to)
	if err != nil {
		return 0, err
	}
	rates, err := c.store.AveragePrices(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("average prices: %w", err)
	}
	prices := coins.Prices{Native: c.cfg.NativeDenom, Stable: c.cfg.StableDenom, Rates: rates}

	written := 0
	for _, v := range validators {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		row, err := c.validatorReturn(ctx, v, from, to, prices, rewards[v.OperatorAddress], commissions[v.OperatorAddress])
		if err != nil {
			c.logger.Warn("validator %s return on %s: %s", v.OperatorAddress, from.Format("2006-01-02"), err)
			continue
		}
		if err := c.store.UpsertValidatorReturn(ctx, row); err != nil {
			c.logger.Warn("save validator %s return: %s", v.OperatorAddress, err)
			continue
		}
		written++
	}
	c.logger.Info("validator returns of %s: %d/%d", from.Format("2006-01-02"), written, len(validators))
	return written, nil
}

func (c *Calculator) validatorReturn(
	ctx context.Context, v *chain.ValidatorInfo, from, to time.Time, prices coins.Prices, reward, commission coins.DenomMap,
) (*chain.ValidatorReturnInfo, error) {
	asOf := v.RefreshedAt.UTC()
	if asOf.IsZero() {
		asOf = to
	}
	start, end := from, to
	if asOf.Before(start) {
		start = asOf
	}
	if asOf.After(end) {
		end = asOf
	}
	events, err := c.store.DelegationEvents(ctx, v.OperatorAddress, start, end)
	if err != nil {
		return nil, fmt.Errorf("delegation events: %w", err)
	}
	avg := AverageVotingPower(v.Tokens, events, from, to, asOf)

	row := &chain.ValidatorReturnInfo{
		OperatorAddress:  v.OperatorAddress,
		Timestamp:        from,
		Reward:           prices.NativeValue(reward),
		Commission:       prices.NativeValue(commission),
		AvgVotingPower:   avg,
		AnnualizedReturn: decimal.Zero,
	}
	if avg.IsPositive() {
		row.AnnualizedReturn = num.SafeDiv(row.Reward, avg).Mul(daysPerYear)
	}
	return row, nil
}

func signed(e *chain.DelegationEvent) decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(e.Type.Sign()))
}

// AverageVotingPower integrates the voting power over [from, to) as a step function.
//
// current is the power observed at asOf. Events are the delegation changes between the earlier
// of from and asOf and the later of to and asOf, oldest first. The power at to is rebuilt by
// undoing the events in [to, asOf), or replaying those in [asOf, to) when the observation is
// older than the window end; the power at from then follows from the in-window events.
func AverageVotingPower(current decimal.Decimal, events []*chain.DelegationEvent, from, to, asOf time.Time) decimal.Decimal {
	span := to.Sub(from)
	if span <= 0 {
		return current
	}

	atTo := current
	var window []*chain.DelegationEvent
	for _, e := range events {
		ts := e.Timestamp
		if !ts.Before(from) && ts.Before(to) {
			window = append(window, e)
		}
		switch {
		case ts.Before(to) && !ts.Before(asOf):
			atTo = atTo.Add(signed(e))
		case !ts.Before(to) && ts.Before(asOf):
			atTo = atTo.Sub(signed(e))
		}
	}
	power := atTo
	for _, e := range window {
		power = power.Sub(signed(e))
	}

	total := decimal.Zero
	prev := from
	for _, e := range window {
		total = total.Add(power.Mul(decimal.NewFromInt(int64(e.Timestamp.Sub(prev)))))
		power = power.Add(signed(e))
		prev = e.Timestamp
	}
	total = total.Add(power.Mul(decimal.NewFromInt(int64(to.Sub(prev)))))
	return num.SafeDiv(total, decimal.NewFromInt(int64(span)))
}
