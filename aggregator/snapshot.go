package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/num"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
)

// spreadOffer is the native amount offered when probing swap spreads.
var spreadOffer = decimal.NewFromInt(1000000)

// MarketSnapshot is the market state a sealed minute is valued with.
type MarketSnapshot struct {
	Height  int64
	Prices  coins.Prices
	Supply  coins.DenomMap
	Spreads coins.DenomMap
}

// Prepare reads the market state at height: oracle rates, total supply and the swap spread of
// every denom with a rate. A denom whose swap query fails has no spread.
func (a *Aggregator) Prepare(ctx context.Context, height int64) (*MarketSnapshot, error) {
	rates, err := a.lcd.GetExchangeRates(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("exchange rates: %w", err)
	}
	if rates == nil {
		rates = coins.DenomMap{}
	}
	supply, err := a.lcd.GetTotalSupply(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}

	snap := &MarketSnapshot{
		Height:  height,
		Prices:  coins.Prices{Native: a.cfg.NativeDenom, Stable: a.cfg.StableDenom, Rates: rates},
		Supply:  coins.NewDenomMap(supply),
		Spreads: coins.DenomMap{},
	}

	spreads := xsync.NewMap[string, decimal.Decimal]()
	offer := coins.Coin{Denom: a.cfg.NativeDenom, Amount: spreadOffer}
	group := a.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, denom := range rates.Denoms() {
		rate := rates[denom]
		group.Submit(func() {
			if groupCtx.Err() != nil || !rate.IsPositive() {
				return
			}
			out, err := a.lcd.GetSwapRate(groupCtx, offer, denom)
			if err != nil || out == nil {
				a.logger.Warn("swap rate %s -> %s at %d: %v", offer, denom, height, err)
				return
			}
			spreads.Store(denom, Spread(out.Amount, spreadOffer, rate))
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		a.logger.Warn("spread queries at %d: %v", height, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spreads.Range(func(denom string, v decimal.Decimal) bool {
		snap.Spreads[denom] = v
		return true
	})
	return snap, nil
}

// Spread is the share of the oracle value lost by a swap: 1 - returned / (offer * rate).
func Spread(returned, offer, rate decimal.Decimal) decimal.Decimal {
	expected := offer.Mul(rate)
	if expected.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Sub(num.SafeDiv(returned, expected))
}
