package parser

import (
	"encoding/json"

	"github.com/mcdexio/chain-collector/common/coins"
)

// Message types the collector interprets.
const (
	MsgSend                = "bank/MsgSend"
	MsgMultiSend           = "bank/MsgMultiSend"
	MsgSwap                = "market/MsgSwap"
	MsgSwapSend            = "market/MsgSwapSend"
	MsgDelegate            = "staking/MsgDelegate"
	MsgUndelegate          = "staking/MsgUndelegate"
	MsgBeginRedelegate     = "staking/MsgBeginRedelegate"
	MsgCreateValidator     = "staking/MsgCreateValidator"
	MsgExecAuthorized      = "msgauth/MsgExecAuthorized"
	MsgInstantiateContract = "wasm/MsgInstantiateContract"
	MsgExecuteContract     = "wasm/MsgExecuteContract"
)

type sendValue struct {
	FromAddress string      `json:"from_address"`
	ToAddress   string      `json:"to_address"`
	Amount      coins.Coins `json:"amount"`
}

type multiSendValue struct {
	Inputs []struct {
		Address string      `json:"address"`
		Coins   coins.Coins `json:"coins"`
	} `json:"inputs"`
}

type swapValue struct {
	OfferCoin coins.Coin `json:"offer_coin"`
	AskDenom  string     `json:"ask_denom"`
}

type delegateValue struct {
	ValidatorAddress string     `json:"validator_address"`
	Amount           coins.Coin `json:"amount"`
	// create validator
	Value coins.Coin `json:"value"`
}

type redelegateValue struct {
	ValidatorSrcAddress string     `json:"validator_src_address"`
	ValidatorDstAddress string     `json:"validator_dst_address"`
	Amount              coins.Coin `json:"amount"`
}

type execValue struct {
	Grantee string `json:"grantee"`
	Msgs    []*Msg `json:"msgs"`
}

type contractValue struct {
	Coins     coins.Coins `json:"coins"`
	InitCoins coins.Coins `json:"init_coins"`
}

func decodeValue(m *Msg, out interface{}) bool {
	return len(m.Value) > 0 && json.Unmarshal(m.Value, out) == nil
}

// nested returns the messages wrapped by an exec-authorized message.
func nested(m *Msg) []*Msg {
	if m.Type != MsgExecAuthorized {
		return nil
	}
	var v execValue
	if !decodeValue(m, &v) {
		return nil
	}
	return v.Msgs
}

// movedCoins returns the coins a message transfers, nested messages included.
func movedCoins(m *Msg) coins.Coins {
	var out coins.Coins
	switch m.Type {
	case MsgSend:
		var v sendValue
		if decodeValue(m, &v) {
			out = append(out, v.Amount...)
		}
	case MsgMultiSend:
		var v multiSendValue
		if decodeValue(m, &v) {
			for _, in := range v.Inputs {
				out = append(out, in.Coins...)
			}
		}
	case MsgSwap, MsgSwapSend:
		var v swapValue
		if decodeValue(m, &v) && v.OfferCoin.Denom != "" {
			out = append(out, v.OfferCoin)
		}
	case MsgExecuteContract:
		var v contractValue
		if decodeValue(m, &v) {
			out = append(out, v.Coins...)
		}
	case MsgInstantiateContract:
		var v contractValue
		if decodeValue(m, &v) {
			out = append(out, v.InitCoins...)
		}
	case MsgExecAuthorized:
		for _, n := range nested(m) {
			out = append(out, movedCoins(n)...)
		}
	}
	return out
}

// taxableCoins returns the coins of m subject to transfer tax. Only bank sends and multi-sends
// are taxed; swaps, contract funds and exec-wrapped messages keep their fee as paid.
func taxableCoins(m *Msg) coins.Coins {
	switch m.Type {
	case MsgSend, MsgMultiSend:
		return movedCoins(m)
	}
	return nil
}
