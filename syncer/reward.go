package syncer

import (
	"fmt"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
)

// BlockReward sums the distribution events of a block: "rewards" and "commission" events of
// begin and end block, in total and per validator. Each event carries amount/validator pairs.
func BlockReward(results *node.BlockResults) (*chain.BlockReward, error) {
	r := &chain.BlockReward{
		Reward:           coins.DenomMap{},
		Commission:       coins.DenomMap{},
		RewardPerVal:     coins.ValDenomMap{},
		CommissionPerVal: coins.ValDenomMap{},
	}
	if results == nil {
		return r, nil
	}
	events := append(append([]node.Event{}, results.BeginBlockEvents...), results.EndBlockEvents...)
	for _, ev := range events {
		var total coins.DenomMap
		var perVal coins.ValDenomMap
		switch ev.Type {
		case "rewards":
			total, perVal = r.Reward, r.RewardPerVal
		case "commission":
			total, perVal = r.Commission, r.CommissionPerVal
		default:
			continue
		}
		var amount coins.Coins
		for _, attr := range ev.Attributes {
			switch attr.Key {
			case "amount":
				cs, err := coins.ParseCoins(attr.Value)
				if err != nil {
					return nil, fmt.Errorf("%s amount %q: %w", ev.Type, attr.Value, err)
				}
				amount = cs
			case "validator":
				for _, c := range amount {
					total.Add(c.Denom, c.Amount)
					perVal.Add(attr.Value, c.Denom, c.Amount)
				}
				amount = nil
			}
		}
	}
	return r, nil
}
