package parser

import (
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/types"
	"github.com/shopspring/decimal"
)

// TransferCoins sums what a successful tx moved: sends, multi-send inputs, swap offers,
// contract funds and the same inside exec-authorized messages.
func TransferCoins(tx *TxInfo) coins.DenomMap {
	out := coins.DenomMap{}
	if !tx.Success() {
		return out
	}
	for _, m := range tx.Msgs() {
		out.AddCoins(movedCoins(m))
	}
	return out
}

// TaxCoins sums the tax SplitTaxFromFee recorded in the logs.
func TaxCoins(tx *TxInfo) coins.DenomMap {
	out := coins.DenomMap{}
	for _, l := range tx.Logs {
		if l == nil || l.Log["tax"] == "" {
			continue
		}
		if cs, err := coins.ParseCoins(l.Log["tax"]); err == nil {
			out.AddCoins(cs)
		}
	}
	return out
}

// GasCoins is the fee left after the tax split.
func GasCoins(tx *TxInfo) coins.DenomMap {
	return coins.NewDenomMap(tx.Tx.Value.Fee.Amount)
}

// SwapEvent is one market swap as reported by its log.
type SwapEvent struct {
	Offer coins.Coin
	Ask   coins.Coin
	Fee   coins.Coin
}

// SwapEvents returns the market swaps of a successful tx.
func SwapEvents(tx *TxInfo) []SwapEvent {
	if !tx.Success() {
		return nil
	}
	var out []SwapEvent
	for _, l := range tx.Logs {
		for _, ev := range l.EventsOf("swap") {
			offers, asks, fees := ev.Values("offer"), ev.Values("swap_coin"), ev.Values("swap_fee")
			for i := range offers {
				var se SwapEvent
				var err error
				if se.Offer, err = coins.ParseCoin(offers[i]); err != nil {
					continue
				}
				if i < len(asks) {
					se.Ask, _ = coins.ParseCoin(asks[i])
				}
				if i < len(fees) {
					se.Fee, _ = coins.ParseCoin(fees[i])
				}
				out = append(out, se)
			}
		}
	}
	return out
}

// DelegationChange is a voting power change of one validator caused by one message.
type DelegationChange struct {
	MsgIndex int
	Operator string
	Type     types.DelegationType
	Amount   decimal.Decimal
}

// DelegationEvents returns the voting power changes of a successful tx in bondDenom.
func DelegationEvents(tx *TxInfo, bondDenom string) []DelegationChange {
	if !tx.Success() {
		return nil
	}
	var out []DelegationChange
	for i, m := range tx.Msgs() {
		out = append(out, delegationChanges(i, m, bondDenom)...)
	}
	return out
}

func delegationChanges(index int, m *Msg, bondDenom string) []DelegationChange {
	change := func(op string, typ types.DelegationType, c coins.Coin) []DelegationChange {
		if op == "" || c.Denom != bondDenom || !c.Amount.IsPositive() {
			return nil
		}
		return []DelegationChange{{MsgIndex: index, Operator: op, Type: typ, Amount: c.Amount}}
	}
	switch m.Type {
	case MsgDelegate, MsgUndelegate, MsgCreateValidator:
		var v delegateValue
		if !decodeValue(m, &v) {
			return nil
		}
		switch m.Type {
		case MsgDelegate:
			return change(v.ValidatorAddress, types.DelegationDelegate, v.Amount)
		case MsgUndelegate:
			return change(v.ValidatorAddress, types.DelegationUndelegate, v.Amount)
		}
		return change(v.ValidatorAddress, types.DelegationCreateValidator, v.Value)
	case MsgBeginRedelegate:
		var v redelegateValue
		if !decodeValue(m, &v) {
			return nil
		}
		return append(change(v.ValidatorSrcAddress, types.DelegationRedelegateOut, v.Amount),
			change(v.ValidatorDstAddress, types.DelegationRedelegateIn, v.Amount)...)
	case MsgExecAuthorized:
		var out []DelegationChange
		for _, n := range nested(m) {
			out = append(out, delegationChanges(index, n, bondDenom)...)
		}
		return out
	}
	return nil
}
