package parser

import (
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/num"
	"github.com/shopspring/decimal"
)

// TaxParams are the treasury parameters in force at a tx's height.
type TaxParams struct {
	Rate        decimal.Decimal
	Caps        coins.DenomMap
	DefaultCap  decimal.Decimal
	ExemptDenom string
}

func (p TaxParams) capOf(denom string) decimal.Decimal {
	if c, ok := p.Caps[denom]; ok {
		return c
	}
	return p.DefaultCap
}

// Tax returns the tax due on one transferred coin.
func (p TaxParams) Tax(c coins.Coin) decimal.Decimal {
	if c.Denom == p.ExemptDenom || !c.Amount.IsPositive() || !p.Rate.IsPositive() {
		return decimal.Zero
	}
	return num.MinDecimal(c.Amount.Mul(p.Rate).Floor(), p.capOf(c.Denom))
}

// SplitTaxFromFee separates the transfer tax from the gas fee of a successful tx. The tax of
// each message is written to its log under "tax" and the fee is reduced to the gas part. Txs
// that failed, or whose logs do not line up with their messages, are left untouched. It
// returns the total tax.
func SplitTaxFromFee(tx *TxInfo, p TaxParams) coins.DenomMap {
	total := coins.DenomMap{}
	msgs := tx.Msgs()
	if !tx.Success() || len(tx.Logs) != len(msgs) {
		return total
	}
	for i, m := range msgs {
		perMsg := coins.DenomMap{}
		for _, c := range taxableCoins(m) {
			if t := p.Tax(c); t.IsPositive() {
				perMsg.Add(c.Denom, t)
			}
		}
		if len(perMsg) == 0 {
			continue
		}
		if tx.Logs[i].Log == nil {
			tx.Logs[i].Log = LogPayload{}
		}
		tx.Logs[i].Log["tax"] = perMsg.Coins().String()
		total.Merge(perMsg)
	}
	if len(total) > 0 {
		tx.Tx.Value.Fee.Amount = tx.Tx.Value.Fee.Amount.SubClamped(total.Coins())
	}
	return total
}
