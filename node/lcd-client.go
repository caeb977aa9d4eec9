package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"
)

const validatorPageSize = 100

// LCDInterface is the read-only LCD surface used by the collector. Lookups of data the node
// does not have return a nil result and a nil error.
type LCDInterface interface {
	GetLatestBlock(ctx context.Context) (*BlockInfo, error)
	GetBlock(ctx context.Context, height int64) (*BlockInfo, error)
	GetTx(ctx context.Context, hash string) (json.RawMessage, error)
	GetValidators(ctx context.Context, status string) ([]*Validator, error)
	GetValidatorDistribution(ctx context.Context, operator string) (*ValidatorDistribution, error)
	GetStakingPool(ctx context.Context, height int64) (*StakingPool, error)
	GetTotalSupply(ctx context.Context, height int64) (coins.Coins, error)
	GetBalance(ctx context.Context, address string) (coins.Coins, error)
	GetExchangeRates(ctx context.Context, height int64) (coins.DenomMap, error)
	GetTaxRate(ctx context.Context, height int64) (decimal.Decimal, error)
	GetTaxCaps(ctx context.Context, height int64) (coins.DenomMap, error)
	GetSwapRate(ctx context.Context, offer coins.Coin, askDenom string) (*coins.Coin, error)
	GetProposals(ctx context.Context) ([]*Proposal, error)
	GetDepositParams(ctx context.Context) (*DepositParams, error)
	QueryContract(ctx context.Context, contract string, query interface{}, out interface{}) (bool, error)
}

// LCDClient talks to the legacy LCD REST interface.
type LCDClient struct {
	logger  logging.Logger
	client  httpUtils.IHttpClient
	pruning Pruning

	// latest is the head height seen by the last GetLatestBlock; it only steers pruning
	// resolution, so it may lag the chain by one poll.
	latest atomic.Int64
}

// NewLCDClient creates a client for the LCD at baseURL.
func NewLCDClient(logger logging.Logger, client httpUtils.IHttpClient, pruning Pruning) *LCDClient {
	return &LCDClient{
		logger:  logger,
		client:  client,
		pruning: pruning,
	}
}

// LatestHeight returns the cached head height.
func (c *LCDClient) LatestHeight() int64 { return c.latest.Load() }

func (c *LCDClient) heightParams(height int64) []httpUtils.KeyValue {
	if height <= 0 {
		return nil
	}
	resolved := c.pruning.Resolve(height, c.latest.Load())
	if resolved != height {
		c.logger.Debug("height %d is pruned, using %d", height, resolved)
	}
	return []httpUtils.KeyValue{{Key: "height", Value: strconv.FormatInt(resolved, 10)}}
}

// get fetches path into out. found is false when the node answered not-found.
func (c *LCDClient) get(ctx context.Context, path string, params []httpUtils.KeyValue, out interface{}, envelope bool) (found bool, err error) {
	body, err := getJSON(ctx, c.logger, c.client, path, params)
	if errors.Is(err, errNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if envelope {
		err = unwrap(body, out)
	} else {
		err = json.Unmarshal(body, out)
	}
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (c *LCDClient) getBlock(ctx context.Context, path string) (*BlockInfo, error) {
	body, err := getJSON(ctx, c.logger, c.client, path, nil)
	if errors.Is(err, errNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var block BlockInfo
	if err := json.Unmarshal(body, &block); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	block.Raw = body
	return &block, nil
}

func (c *LCDClient) GetLatestBlock(ctx context.Context) (*BlockInfo, error) {
	block, err := c.getBlock(ctx, "/blocks/latest")
	if err != nil || block == nil {
		return block, err
	}
	if h := block.Height(); h > 0 {
		c.latest.Store(h)
	}
	return block, nil
}

func (c *LCDClient) GetBlock(ctx context.Context, height int64) (*BlockInfo, error) {
	return c.getBlock(ctx, fmt.Sprintf("/blocks/%d", height))
}

// GetTx returns the tx document as served by the node.
func (c *LCDClient) GetTx(ctx context.Context, hash string) (json.RawMessage, error) {
	body, err := getJSON(ctx, c.logger, c.client, "/txs/"+hash, nil)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return body, err
}

// GetValidators pages through validators with the given status ("" for all).
func (c *LCDClient) GetValidators(ctx context.Context, status string) ([]*Validator, error) {
	var out []*Validator
	for page := 1; ; page++ {
		params := []httpUtils.KeyValue{
			{Key: "page", Value: strconv.Itoa(page)},
			{Key: "limit", Value: strconv.Itoa(validatorPageSize)},
		}
		if status != "" {
			params = append(params, httpUtils.KeyValue{Key: "status", Value: status})
		}
		var batch []*Validator
		found, err := c.get(ctx, "/staking/validators", params, &batch, true)
		if err != nil {
			return nil, fmt.Errorf("validators page %d: %w", page, err)
		}
		if !found {
			break
		}
		out = append(out, batch...)
		if len(batch) < validatorPageSize {
			break
		}
	}
	return out, nil
}

func (c *LCDClient) GetValidatorDistribution(ctx context.Context, operator string) (*ValidatorDistribution, error) {
	var out ValidatorDistribution
	if found, err := c.get(ctx, "/distribution/validators/"+operator, nil, &out, true); !found || err != nil {
		return nil, err
	}
	if out.OperatorAddress == "" {
		out.OperatorAddress = operator
	}
	return &out, nil
}

func (c *LCDClient) GetStakingPool(ctx context.Context, height int64) (*StakingPool, error) {
	var out StakingPool
	if found, err := c.get(ctx, "/staking/pool", c.heightParams(height), &out, true); !found || err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LCDClient) GetTotalSupply(ctx context.Context, height int64) (coins.Coins, error) {
	var out coins.Coins
	if _, err := c.get(ctx, "/supply/total", c.heightParams(height), &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LCDClient) GetBalance(ctx context.Context, address string) (coins.Coins, error) {
	var out coins.Coins
	if _, err := c.get(ctx, "/bank/balances/"+address, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetExchangeRates returns the oracle rates of every whitelisted denom against the native denom.
func (c *LCDClient) GetExchangeRates(ctx context.Context, height int64) (coins.DenomMap, error) {
	var out coins.Coins
	found, err := c.get(ctx, "/oracle/denoms/exchange_rates", c.heightParams(height), &out, true)
	if !found || err != nil {
		return nil, err
	}
	return coins.NewDenomMap(out), nil
}

func (c *LCDClient) GetTaxRate(ctx context.Context, height int64) (decimal.Decimal, error) {
	var out decimal.Decimal
	if _, err := c.get(ctx, "/treasury/tax_rate", c.heightParams(height), &out, true); err != nil {
		return decimal.Zero, err
	}
	return out, nil
}

func (c *LCDClient) GetTaxCaps(ctx context.Context, height int64) (coins.DenomMap, error) {
	var caps []struct {
		Denom  string          `json:"denom"`
		TaxCap decimal.Decimal `json:"tax_cap"`
	}
	if _, err := c.get(ctx, "/treasury/tax_caps", c.heightParams(height), &caps, true); err != nil {
		return nil, err
	}
	out := make(coins.DenomMap, len(caps))
	for _, cp := range caps {
		out[cp.Denom] = cp.TaxCap
	}
	return out, nil
}

// GetSwapRate simulates a market swap of offer into askDenom.
func (c *LCDClient) GetSwapRate(ctx context.Context, offer coins.Coin, askDenom string) (*coins.Coin, error) {
	params := []httpUtils.KeyValue{
		{Key: "offer_coin", Value: offer.String()},
		{Key: "ask_denom", Value: askDenom},
	}
	var out coins.Coin
	if found, err := c.get(ctx, "/market/swap", params, &out, true); !found || err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LCDClient) GetProposals(ctx context.Context) ([]*Proposal, error) {
	var raw []json.RawMessage
	if _, err := c.get(ctx, "/gov/proposals", nil, &raw, true); err != nil {
		return nil, err
	}
	out := make([]*Proposal, 0, len(raw))
	for _, r := range raw {
		var p Proposal
		if err := json.Unmarshal(r, &p); err != nil {
			return nil, fmt.Errorf("decode proposal: %w", err)
		}
		p.Raw = r
		out = append(out, &p)
	}
	return out, nil
}

func (c *LCDClient) GetDepositParams(ctx context.Context) (*DepositParams, error) {
	var out DepositParams
	if found, err := c.get(ctx, "/gov/parameters/deposit", nil, &out, true); !found || err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryContract runs a smart query against a wasm contract and decodes the answer into out.
// It reports false when the contract does not exist.
func (c *LCDClient) QueryContract(ctx context.Context, contract string, query interface{}, out interface{}) (bool, error) {
	msg, err := json.Marshal(query)
	if err != nil {
		return false, fmt.Errorf("encode query: %w", err)
	}
	params := []httpUtils.KeyValue{{Key: "query_msg", Value: string(msg)}}
	return c.get(ctx, "/wasm/contracts/"+url.PathEscape(contract)+"/store", params, out, true)
}
