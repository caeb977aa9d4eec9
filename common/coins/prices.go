package coins

import (
	"github.com/mcdexio/chain-collector/common/num"
	"github.com/shopspring/decimal"
)

// Prices converts amounts using oracle exchange rates, where Rates[d] is the amount of d one
// native unit buys.
type Prices struct {
	Native string
	Stable string
	Rates  DenomMap
}

// ToNative converts amount of denom into the native denom. Unknown denoms convert to zero.
func (p Prices) ToNative(denom string, amount decimal.Decimal) decimal.Decimal {
	if denom == p.Native {
		return amount
	}
	return num.SafeDiv(amount, p.Rates.Get(denom))
}

// ToUSD converts amount of denom into the stable denom.
func (p Prices) ToUSD(denom string, amount decimal.Decimal) decimal.Decimal {
	if denom == p.Stable {
		return amount
	}
	return p.ToNative(denom, amount).Mul(p.Rates.Get(p.Stable))
}

// NativeValue sums m converted to native.
func (p Prices) NativeValue(m DenomMap) decimal.Decimal {
	total := decimal.Zero
	for d, v := range m {
		total = total.Add(p.ToNative(d, v))
	}
	return total
}

// USDValue sums m converted to the stable denom.
func (p Prices) USDValue(m DenomMap) decimal.Decimal {
	total := decimal.Zero
	for d, v := range m {
		total = total.Add(p.ToUSD(d, v))
	}
	return total
}
