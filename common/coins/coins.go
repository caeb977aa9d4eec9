package coins

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Coin is an amount of a denom as served by the LCD: {"denom":"uusd","amount":"1000"}.
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// Coins is a list of coins, not necessarily sorted or unique.
type Coins []Coin

var coinPattern = regexp.MustCompile(`^(-?[0-9]+(?:\.[0-9]+)?)([a-zA-Z][a-zA-Z0-9/:._-]{1,127})$`)

// NewCoin builds a coin from an integer amount.
func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: decimal.NewFromInt(amount)}
}

// ParseCoin parses "5000uusd".
func ParseCoin(s string) (Coin, error) {
	m := coinPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Coin{}, fmt.Errorf("invalid coin expression %q", s)
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return Coin{}, fmt.Errorf("invalid coin amount %q: %w", s, err)
	}
	return Coin{Denom: m[2], Amount: amount}, nil
}

// ParseCoins parses a comma separated list such as "5000uusd,12.5uluna". Empty input yields nil.
func ParseCoins(s string) (Coins, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make(Coins, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		c, err := ParseCoin(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// String renders "amount+denom" joined with commas.
func (c Coin) String() string { return c.Amount.String() + c.Denom }

func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// AmountOf sums the amounts of denom.
func (cs Coins) AmountOf(denom string) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		if c.Denom == denom {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// Normalize merges equal denoms, drops zero amounts and sorts by denom.
func (cs Coins) Normalize() Coins {
	return NewDenomMap(cs).Coins()
}

// SubClamped subtracts other per denom without going below zero; zero results are removed.
func (cs Coins) SubClamped(other Coins) Coins {
	m := NewDenomMap(cs)
	for _, c := range other {
		left := m[c.Denom].Sub(c.Amount)
		if left.IsNegative() {
			left = decimal.Zero
		}
		m[c.Denom] = left
	}
	return m.Coins()
}

// DenomMap maps denom to amount.
type DenomMap map[string]decimal.Decimal

// NewDenomMap sums cs per denom.
func NewDenomMap(cs Coins) DenomMap {
	m := DenomMap{}
	m.AddCoins(cs)
	return m
}

// Add adds amount to denom.
func (m DenomMap) Add(denom string, amount decimal.Decimal) {
	m[denom] = m[denom].Add(amount)
}

// AddCoins adds every coin.
func (m DenomMap) AddCoins(cs Coins) {
	for _, c := range cs {
		m.Add(c.Denom, c.Amount)
	}
}

// Sub subtracts amount from denom.
func (m DenomMap) Sub(denom string, amount decimal.Decimal) {
	m[denom] = m[denom].Sub(amount)
}

// Merge adds every entry of other.
func (m DenomMap) Merge(other DenomMap) {
	for d, v := range other {
		m.Add(d, v)
	}
}

// Get returns the amount of denom, zero when absent.
func (m DenomMap) Get(denom string) decimal.Decimal {
	return m[denom]
}

// Denoms returns the sorted denoms.
func (m DenomMap) Denoms() []string {
	out := make([]string, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Coins converts to a denom-sorted list without zero amounts.
func (m DenomMap) Coins() Coins {
	out := Coins{}
	for _, d := range m.Denoms() {
		if !m[d].IsZero() {
			out = append(out, Coin{Denom: d, Amount: m[d]})
		}
	}
	return out
}

// ValDenomMap maps a validator operator address to its DenomMap.
type ValDenomMap map[string]DenomMap

// Add adds amount of denom for operator.
func (v ValDenomMap) Add(operator, denom string, amount decimal.Decimal) {
	m, ok := v[operator]
	if !ok {
		m = DenomMap{}
		v[operator] = m
	}
	m.Add(denom, amount)
}

// Merge adds every entry of other.
func (v ValDenomMap) Merge(other ValDenomMap) {
	for op, m := range other {
		for d, amt := range m {
			v.Add(op, d, amt)
		}
	}
}

// Total folds every operator into one DenomMap.
func (v ValDenomMap) Total() DenomMap {
	out := DenomMap{}
	for _, m := range v {
		out.Merge(m)
	}
	return out
}
