package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/parser"
	"github.com/shopspring/decimal"
)

// minuteActivity is what the txs of one minute did, per denom.
type minuteActivity struct {
	tax      coins.DenomMap
	gas      coins.DenomMap
	oracle   coins.DenomMap
	swapIn   coins.DenomMap
	swapOut  coins.DenomMap
	swapFee  coins.DenomMap
	transfer coins.DenomMap
}

func newMinuteActivity() *minuteActivity {
	return &minuteActivity{
		tax:      coins.DenomMap{},
		gas:      coins.DenomMap{},
		oracle:   coins.DenomMap{},
		swapIn:   coins.DenomMap{},
		swapOut:  coins.DenomMap{},
		swapFee:  coins.DenomMap{},
		transfer: coins.DenomMap{},
	}
}

func (m *minuteActivity) add(tx *parser.TxInfo) {
	m.tax.Merge(parser.TaxCoins(tx))
	m.gas.Merge(parser.GasCoins(tx))
	m.transfer.Merge(parser.TransferCoins(tx))
	for _, s := range parser.SwapEvents(tx) {
		m.swapIn.Add(s.Offer.Denom, s.Offer.Amount)
		if s.Ask.Denom != "" {
			m.swapOut.Add(s.Ask.Denom, s.Ask.Amount)
		}
		if s.Fee.Denom != "" {
			m.swapFee.Add(s.Fee.Denom, s.Fee.Amount)
			m.oracle.Add(s.Fee.Denom, s.Fee.Amount)
		}
	}
}

// Seal writes the price, reward, swap and network rollups of the minute starting at window.
// Rows are upserted by (denom, minute), so sealing a minute again rewrites it.
func (a *Aggregator) Seal(ctx context.Context, window time.Time, snap *MarketSnapshot) error {
	window = window.UTC().Truncate(time.Minute)
	end := window.Add(time.Minute)
	if snap == nil {
		snap = &MarketSnapshot{
			Prices:  coins.Prices{Native: a.cfg.NativeDenom, Stable: a.cfg.StableDenom, Rates: coins.DenomMap{}},
			Supply:  coins.DenomMap{},
			Spreads: coins.DenomMap{},
		}
	}

	activity, err := a.activity(ctx, window, end)
	if err != nil {
		return err
	}
	reward, commission, err := a.blockRewards(ctx, window, end)
	if err != nil {
		return err
	}

	if err := a.store.UpsertPrices(ctx, priceRows(window, snap)); err != nil {
		return fmt.Errorf("upsert prices: %w", err)
	}
	if err := a.store.UpsertRewards(ctx, rewardRows(window, snap.Prices, activity, reward, commission)); err != nil {
		return fmt.Errorf("upsert rewards: %w", err)
	}
	if err := a.store.UpsertSwaps(ctx, swapRows(window, snap, activity)); err != nil {
		return fmt.Errorf("upsert swaps: %w", err)
	}
	if err := a.store.UpsertNetworks(ctx, networkRows(window, snap, activity)); err != nil {
		return fmt.Errorf("upsert networks: %w", err)
	}
	a.logger.Debug("sealed minute %s", window.Format(time.RFC3339))
	return nil
}

func (a *Aggregator) activity(ctx context.Context, from, to time.Time) (*minuteActivity, error) {
	txs, err := a.store.TxsInRange(ctx, a.cfg.ChainID, from, to)
	if err != nil {
		return nil, fmt.Errorf("txs in minute: %w", err)
	}
	m := newMinuteActivity()
	for _, tx := range txs {
		info, err := parser.FromRecord(tx)
		if err != nil {
			return nil, err
		}
		m.add(info)
	}
	return m, nil
}

// blockRewards sums the distribution rewards of the minute. A block's rewards pay the fees of
// the block before it, so the first block of the window is left out and the first block after
// it is counted.
func (a *Aggregator) blockRewards(ctx context.Context, from, to time.Time) (reward, commission coins.DenomMap, err error) {
	reward, commission = coins.DenomMap{}, coins.DenomMap{}
	rows, err := a.store.BlockRewardsInRange(ctx, a.cfg.ChainID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("block rewards: %w", err)
	}
	if len(rows) == 0 {
		return reward, commission, nil
	}
	for _, r := range rows[1:] {
		reward.Merge(r.Reward)
		commission.Merge(r.Commission)
	}
	next, err := a.store.FirstBlockRewardFrom(ctx, a.cfg.ChainID, to)
	if err != nil {
		return nil, nil, fmt.Errorf("next block reward: %w", err)
	}
	if next != nil {
		reward.Merge(next.Reward)
		commission.Merge(next.Commission)
	}
	return reward, commission, nil
}

// union returns the sorted denoms present in any of maps.
func union(maps ...coins.DenomMap) []string {
	all := coins.DenomMap{}
	for _, m := range maps {
		for d := range m {
			all.Add(d, decimal.Zero)
		}
	}
	return all.Denoms()
}

func priceRows(window time.Time, snap *MarketSnapshot) []*chain.Price {
	var rows []*chain.Price
	for _, d := range snap.Prices.Rates.Denoms() {
		rows = append(rows, &chain.Price{Denom: d, Datetime: window, Price: snap.Prices.Rates[d]})
	}
	return rows
}

func rewardRows(window time.Time, prices coins.Prices, m *minuteActivity, reward, commission coins.DenomMap) []*chain.Reward {
	var rows []*chain.Reward
	for _, d := range union(m.tax, m.gas, m.oracle, reward, commission) {
		rows = append(rows, &chain.Reward{
			Denom:         d,
			Datetime:      window,
			Tax:           m.tax.Get(d),
			TaxUsd:        prices.ToUSD(d, m.tax.Get(d)),
			Gas:           m.gas.Get(d),
			GasUsd:        prices.ToUSD(d, m.gas.Get(d)),
			Oracle:        m.oracle.Get(d),
			OracleUsd:     prices.ToUSD(d, m.oracle.Get(d)),
			Sum:           reward.Get(d),
			SumUsd:        prices.ToUSD(d, reward.Get(d)),
			Commission:    commission.Get(d),
			CommissionUsd: prices.ToUSD(d, commission.Get(d)),
		})
	}
	return rows
}

func swapRows(window time.Time, snap *MarketSnapshot, m *minuteActivity) []*chain.Swap {
	var rows []*chain.Swap
	p := snap.Prices
	for _, d := range union(m.swapIn, m.swapOut, m.swapFee, snap.Spreads) {
		rows = append(rows, &chain.Swap{
			Denom:    d,
			Datetime: window,
			In:       m.swapIn.Get(d),
			InUsd:    p.ToUSD(d, m.swapIn.Get(d)),
			Out:      m.swapOut.Get(d),
			OutUsd:   p.ToUSD(d, m.swapOut.Get(d)),
			Fee:      m.swapFee.Get(d),
			FeeUsd:   p.ToUSD(d, m.swapFee.Get(d)),
			Spread:   snap.Spreads.Get(d),
		})
	}
	return rows
}

func networkRows(window time.Time, snap *MarketSnapshot, m *minuteActivity) []*chain.Network {
	var rows []*chain.Network
	for _, d := range union(snap.Supply, m.transfer) {
		rows = append(rows, &chain.Network{
			Denom:     d,
			Datetime:  window,
			Supply:    snap.Supply.Get(d),
			MarketCap: snap.Prices.ToUSD(d, snap.Supply.Get(d)),
			TxVolume:  m.transfer.Get(d),
		})
	}
	return rows
}
