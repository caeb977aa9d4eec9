package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mcdexio/chain-collector/database/models/chain"
)

// legacyTypes renames message types of earlier network versions to their current names.
var legacyTypes = map[string]string{
	"pay/MsgSend":                               "bank/MsgSend",
	"pay/MsgMultiSend":                          "bank/MsgMultiSend",
	"cosmos-sdk/MsgSend":                        "bank/MsgSend",
	"cosmos-sdk/MsgMultiSend":                   "bank/MsgMultiSend",
	"cosmos-sdk/MsgCreateValidator":             "staking/MsgCreateValidator",
	"cosmos-sdk/MsgEditValidator":               "staking/MsgEditValidator",
	"cosmos-sdk/MsgDelegate":                    "staking/MsgDelegate",
	"cosmos-sdk/MsgUndelegate":                  "staking/MsgUndelegate",
	"cosmos-sdk/MsgBeginRedelegate":             "staking/MsgBeginRedelegate",
	"cosmos-sdk/MsgWithdrawDelegationReward":    "distribution/MsgWithdrawDelegationReward",
	"cosmos-sdk/MsgWithdrawValidatorCommission": "distribution/MsgWithdrawValidatorCommission",
	"cosmos-sdk/MsgModifyWithdrawAddress":       "distribution/MsgModifyWithdrawAddress",
	"cosmos-sdk/MsgSubmitProposal":              "gov/MsgSubmitProposal",
	"cosmos-sdk/MsgDeposit":                     "gov/MsgDeposit",
	"cosmos-sdk/MsgVote":                        "gov/MsgVote",
	"cosmos-sdk/MsgUnjail":                      "slashing/MsgUnjail",
	"oracle/MsgPriceVote":                       "oracle/MsgExchangeRateVote",
	"oracle/MsgPricePrevote":                    "oracle/MsgExchangeRatePrevote",
	"oracle/MsgDelegateFeederPermission":        "oracle/MsgDelegateFeedConsent",
}

var renamer = func() *strings.Replacer {
	keys := make([]string, 0, len(legacyTypes))
	for k := range legacyTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, `"`+k+`"`, `"`+legacyTypes[k]+`"`)
	}
	return strings.NewReplacer(pairs...)
}()

var (
	escapedNUL = []byte(`\u0000`)
	rawNUL     = []byte{0}
)

// Decode normalizes and parses a tx document as served by the LCD.
func Decode(raw []byte) (*TxInfo, error) {
	cleaned := bytes.ReplaceAll(raw, escapedNUL, nil)
	cleaned = bytes.ReplaceAll(cleaned, rawNUL, nil)
	cleaned = []byte(renamer.Replace(string(cleaned)))

	var tx TxInfo
	if err := json.Unmarshal(cleaned, &tx); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	for i, l := range tx.Logs {
		if l == nil {
			tx.Logs[i] = &TxLog{MsgIndex: i, Log: LogPayload{}}
		} else if l.Log == nil {
			l.Log = LogPayload{}
		}
	}
	return &tx, nil
}

// FromRecord decodes the document stored with a tx row.
func FromRecord(tx *chain.Tx) (*TxInfo, error) {
	var info TxInfo
	if err := json.Unmarshal(tx.Data, &info); err != nil {
		return nil, fmt.Errorf("decode stored tx %s: %w", tx.Hash, err)
	}
	return &info, nil
}
