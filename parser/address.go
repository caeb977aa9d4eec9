package parser

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/types"
)

type fieldRef struct {
	action types.ActionType
	path   string
}

// participants lists, per message type, where account addresses sit in the message value.
// Paths step through objects and arrays alike. Oracle votes are not indexed.
var participants = map[string][]fieldRef{
	MsgSend:      {{types.ActionSend, "from_address"}, {types.ActionReceive, "to_address"}},
	MsgMultiSend: {{types.ActionSend, "inputs.address"}, {types.ActionReceive, "outputs.address"}},
	MsgSwap:      {{types.ActionMarket, "trader"}},
	MsgSwapSend:  {{types.ActionMarket, "from_address"}, {types.ActionReceive, "to_address"}},

	MsgDelegate:                                {{types.ActionStaking, "delegator_address"}},
	MsgUndelegate:                              {{types.ActionStaking, "delegator_address"}},
	MsgBeginRedelegate:                         {{types.ActionStaking, "delegator_address"}},
	MsgCreateValidator:                         {{types.ActionStaking, "delegator_address"}},
	"distribution/MsgWithdrawDelegationReward": {{types.ActionStaking, "delegator_address"}},
	"distribution/MsgModifyWithdrawAddress":    {{types.ActionStaking, "delegator_address"}, {types.ActionStaking, "withdraw_address"}},

	"gov/MsgSubmitProposal": {{types.ActionGovernance, "proposer"}},
	"gov/MsgDeposit":        {{types.ActionGovernance, "depositor"}},
	"gov/MsgVote":           {{types.ActionGovernance, "voter"}},

	"msgauth/MsgGrantAuthorization":  {{types.ActionMsgAuth, "granter"}, {types.ActionMsgAuth, "grantee"}},
	"msgauth/MsgRevokeAuthorization": {{types.ActionMsgAuth, "granter"}, {types.ActionMsgAuth, "grantee"}},
	// The exec message carries no granter; granters show up through the nested messages they signed.
	MsgExecAuthorized:                {{types.ActionMsgAuth, "grantee"}},

	"wasm/MsgStoreCode":           {{types.ActionContract, "sender"}},
	MsgInstantiateContract:        {{types.ActionContract, "owner"}, {types.ActionContract, "sender"}, {types.ActionContract, "admin"}},
	MsgExecuteContract:            {{types.ActionContract, "sender"}, {types.ActionContract, "contract"}},
	"wasm/MsgMigrateContract":     {{types.ActionContract, "owner"}, {types.ActionContract, "admin"}, {types.ActionContract, "contract"}},
	"wasm/MsgUpdateContractOwner": {{types.ActionContract, "owner"}, {types.ActionContract, "new_owner"}, {types.ActionContract, "contract"}},
	"wasm/MsgUpdateContractAdmin": {{types.ActionContract, "admin"}, {types.ActionContract, "new_admin"}, {types.ActionContract, "contract"}},
	"wasm/MsgClearContractAdmin":  {{types.ActionContract, "admin"}, {types.ActionContract, "contract"}},
}

// contractEvents are the log events scanned for contract addresses.
var contractEvents = map[string]struct{}{
	"wasm": {}, "from_contract": {}, "instantiate_contract": {}, "execute_contract": {},
	"migrate_contract": {}, "store_code": {},
}

// Addresses maps an action type to the accounts involved in it.
type Addresses map[types.ActionType][]string

func (a Addresses) add(action types.ActionType, addr string) {
	if addr == "" {
		return
	}
	for _, known := range a[action] {
		if known == addr {
			return
		}
	}
	a[action] = append(a[action], addr)
}

func (a Addresses) merge(other Addresses) {
	for action, addrs := range other {
		for _, addr := range addrs {
			a.add(action, addr)
		}
	}
}

// Extractor finds the accounts a tx involves.
type Extractor struct {
	contractAddr *regexp.Regexp
}

// NewExtractor creates an extractor for accounts with the given bech32 prefix.
func NewExtractor(prefix string) *Extractor {
	return &Extractor{
		contractAddr: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `1[qpzry9x8gf2tvdw0s3jn54khce6mua7l]{38}$`),
	}
}

// ExtractAddresses returns the accounts m and its log involve, by action type. Unknown
// message types yield only the contract addresses found in the log.
func (e *Extractor) ExtractAddresses(m *Msg, log *TxLog) Addresses {
	out := Addresses{}
	e.fromValue(m, out)
	if log != nil {
		for _, ev := range log.Events {
			if _, ok := contractEvents[ev.Type]; !ok {
				continue
			}
			for _, attr := range ev.Attributes {
				if e.contractAddr.MatchString(attr.Value) {
					out.add(types.ActionContract, attr.Value)
				}
			}
		}
	}
	return out
}

func (e *Extractor) fromValue(m *Msg, out Addresses) {
	refs, ok := participants[m.Type]
	if !ok {
		return
	}
	var value interface{}
	if len(m.Value) == 0 || json.Unmarshal(m.Value, &value) != nil {
		return
	}
	for _, ref := range refs {
		for _, addr := range lookup(value, strings.Split(ref.path, ".")) {
			out.add(ref.action, addr)
		}
	}
	for _, n := range nested(m) {
		e.fromValue(n, out)
	}
}

func lookup(v interface{}, path []string) []string {
	switch t := v.(type) {
	case []interface{}:
		var out []string
		for _, item := range t {
			out = append(out, lookup(item, path)...)
		}
		return out
	case map[string]interface{}:
		if len(path) == 0 {
			return nil
		}
		return lookup(t[path[0]], path[1:])
	case string:
		if len(path) == 0 {
			return []string{t}
		}
	}
	return nil
}

// GenerateAccountTxs derives the account index rows of a stored tx: one row per distinct
// (account, action type) over all of its messages, ordered by account then type.
func (e *Extractor) GenerateAccountTxs(tx *chain.Tx) ([]*chain.AccountTx, error) {
	info, err := FromRecord(tx)
	if err != nil {
		return nil, err
	}
	return e.AccountTxs(tx, info), nil
}

// AccountTxs is GenerateAccountTxs for an already decoded tx.
func (e *Extractor) AccountTxs(tx *chain.Tx, info *TxInfo) []*chain.AccountTx {
	all := Addresses{}
	for i, m := range info.Msgs() {
		all.merge(e.ExtractAddresses(m, info.LogAt(i)))
	}

	type key struct {
		account string
		action  types.ActionType
	}
	keys := make([]key, 0)
	for action, addrs := range all {
		for _, addr := range addrs {
			keys = append(keys, key{addr, action})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].account != keys[j].account {
			return keys[i].account < keys[j].account
		}
		return keys[i].action < keys[j].action
	})

	out := make([]*chain.AccountTx, 0, len(keys))
	for _, k := range keys {
		out = append(out, &chain.AccountTx{
			ChainID:   tx.ChainID,
			Account:   k.account,
			TxID:      tx.ID,
			Hash:      tx.Hash,
			Type:      k.action,
			Timestamp: tx.Timestamp,
		})
	}
	return out
}
