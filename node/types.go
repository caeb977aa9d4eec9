package node

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/shopspring/decimal"
)

// FlexString accepts both JSON strings and numbers; several LCD fields changed type across
// releases.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(b)))
	return nil
}

// Header is the part of a block header the collector reads.
type Header struct {
	ChainID         string    `json:"chain_id"`
	Height          string    `json:"height"`
	Time            time.Time `json:"time"`
	ProposerAddress string    `json:"proposer_address"`
}

// BlockInfo is the LCD /blocks response. Raw keeps the original document.
type BlockInfo struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header Header `json:"header"`
		Data   struct {
			Txs []string `json:"txs"`
		} `json:"data"`
	} `json:"block"`

	Raw json.RawMessage `json:"-"`
}

// Height returns the block height, 0 when malformed.
func (b *BlockInfo) Height() int64 {
	h, _ := strconv.ParseInt(b.Block.Header.Height, 10, 64)
	return h
}

// Time returns the block time.
func (b *BlockInfo) Time() time.Time { return b.Block.Header.Time.UTC() }

// TxHashes derives the hashes of the block's txs: upper-case hex sha256 of the tx bytes.
func (b *BlockInfo) TxHashes() ([]string, error) {
	out := make([]string, 0, len(b.Block.Data.Txs))
	for i, encoded := range b.Block.Data.Txs {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode tx %d of block %s: %w", i, b.Block.Header.Height, err)
		}
		sum := sha256.Sum256(raw)
		out = append(out, strings.ToUpper(hex.EncodeToString(sum[:])))
	}
	return out, nil
}

// Validator is an LCD staking validator.
type Validator struct {
	OperatorAddress string          `json:"operator_address"`
	Jailed          bool            `json:"jailed"`
	Status          FlexString      `json:"status"`
	Tokens          decimal.Decimal `json:"tokens"`
	DelegatorShares decimal.Decimal `json:"delegator_shares"`
	Description     struct {
		Moniker  string `json:"moniker"`
		Identity string `json:"identity"`
		Website  string `json:"website"`
		Details  string `json:"details"`
	} `json:"description"`
	Commission struct {
		CommissionRates struct {
			Rate          decimal.Decimal `json:"rate"`
			MaxRate       decimal.Decimal `json:"max_rate"`
			MaxChangeRate decimal.Decimal `json:"max_change_rate"`
		} `json:"commission_rates"`
		UpdateTime time.Time `json:"update_time"`
	} `json:"commission"`
}

// StatusName maps legacy numeric statuses to their names.
func (v *Validator) StatusName() string {
	switch v.Status {
	case "0", "1", "BOND_STATUS_UNBONDED":
		return "unbonded"
	case "2", "BOND_STATUS_UNBONDING":
		return "unbonding"
	case "3", "BOND_STATUS_BONDED":
		return "bonded"
	}
	return strings.ToLower(string(v.Status))
}

// ValidatorDistribution is the LCD distribution state of a validator.
type ValidatorDistribution struct {
	OperatorAddress string      `json:"operator_address"`
	SelfBondRewards coins.Coins `json:"self_bond_rewards"`
	ValCommission   coins.Coins `json:"val_commission"`
}

// StakingPool is the LCD staking pool.
type StakingPool struct {
	NotBondedTokens decimal.Decimal `json:"not_bonded_tokens"`
	BondedTokens    decimal.Decimal `json:"bonded_tokens"`
}

// Proposal is an LCD governance proposal.
type Proposal struct {
	ID      FlexString `json:"id"`
	Content struct {
		Type  string `json:"type"`
		Value struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"value"`
	} `json:"content"`
	Status          FlexString  `json:"status"`
	ProposalStatus  FlexString  `json:"proposal_status"`
	SubmitTime      time.Time   `json:"submit_time"`
	DepositEndTime  time.Time   `json:"deposit_end_time"`
	TotalDeposit    coins.Coins `json:"total_deposit"`
	VotingStartTime time.Time   `json:"voting_start_time"`
	VotingEndTime   time.Time   `json:"voting_end_time"`

	Raw json.RawMessage `json:"-"`
}

// StatusName returns whichever status field the node filled.
func (p *Proposal) StatusName() string {
	if p.ProposalStatus != "" {
		return string(p.ProposalStatus)
	}
	return string(p.Status)
}

// DepositParams are the governance deposit parameters.
type DepositParams struct {
	MinDeposit       coins.Coins `json:"min_deposit"`
	MaxDepositPeriod FlexString  `json:"max_deposit_period"`
}

// Attribute is an ABCI event attribute after base64 normalization.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is an ABCI event.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// BlockResults is the RPC block_results payload.
type BlockResults struct {
	Height           string          `json:"height"`
	TxsResults       json.RawMessage `json:"txs_results"`
	BeginBlockEvents []Event         `json:"begin_block_events"`
	EndBlockEvents   []Event         `json:"end_block_events"`
}

// Mempool is the RPC unconfirmed_txs summary.
type Mempool struct {
	Count      int
	Total      int
	TotalBytes int64
}
