package node

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mcdexio/chain-collector/common/logging"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
)

// RPCInterface is the Tendermint RPC surface used by the collector.
type RPCInterface interface {
	GetBlockResults(ctx context.Context, height int64) (*BlockResults, error)
	GetUnconfirmedTxs(ctx context.Context, limit int) (*Mempool, error)
}

// plaintextKeys are attribute keys some node versions already send decoded.
var plaintextKeys = map[string]struct{}{
	"amount": {}, "validator": {}, "sender": {}, "recipient": {}, "receiver": {}, "spender": {},
	"module": {}, "action": {}, "proposer": {}, "denom": {}, "feeder": {}, "voter": {},
	"offer": {}, "trader": {}, "swap_coin": {}, "swap_fee": {}, "contract_address": {},
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

// RPCClient talks to the Tendermint RPC over HTTP.
type RPCClient struct {
	logger logging.Logger
	client httpUtils.IHttpClient
}

// NewRPCClient creates an RPC client.
func NewRPCClient(logger logging.Logger, client httpUtils.IHttpClient) *RPCClient {
	return &RPCClient{logger: logger, client: client}
}

func (c *RPCClient) call(ctx context.Context, path string, params []httpUtils.KeyValue, out interface{}) (bool, error) {
	body, err := getJSON(ctx, c.logger, c.client, path, params)
	if errors.Is(err, errNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.Error != nil {
		if isNotFound(400, []byte(resp.Error.Message+" "+resp.Error.Data)) {
			return false, nil
		}
		return false, fmt.Errorf("%s: rpc error %d: %s %s", path, resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return false, fmt.Errorf("decode %s result: %w", path, err)
	}
	return true, nil
}

// GetBlockResults returns the begin/end block events of height with attributes decoded.
func (c *RPCClient) GetBlockResults(ctx context.Context, height int64) (*BlockResults, error) {
	var out BlockResults
	params := []httpUtils.KeyValue{{Key: "height", Value: strconv.FormatInt(height, 10)}}
	if found, err := c.call(ctx, "/block_results", params, &out); !found || err != nil {
		return nil, err
	}
	decodeEvents(out.BeginBlockEvents)
	decodeEvents(out.EndBlockEvents)
	return &out, nil
}

// GetUnconfirmedTxs summarizes the mempool.
func (c *RPCClient) GetUnconfirmedTxs(ctx context.Context, limit int) (*Mempool, error) {
	var out struct {
		NTxs       FlexString `json:"n_txs"`
		Total      FlexString `json:"total"`
		TotalBytes FlexString `json:"total_bytes"`
	}
	params := []httpUtils.KeyValue{{Key: "limit", Value: strconv.Itoa(limit)}}
	if found, err := c.call(ctx, "/unconfirmed_txs", params, &out); !found || err != nil {
		return nil, err
	}
	m := &Mempool{}
	m.Count, _ = strconv.Atoi(string(out.NTxs))
	m.Total, _ = strconv.Atoi(string(out.Total))
	m.TotalBytes, _ = strconv.ParseInt(string(out.TotalBytes), 10, 64)
	return m, nil
}

func decodeEvents(events []Event) {
	for i := range events {
		for j := range events[i].Attributes {
			decodeAttribute(&events[i].Attributes[j])
		}
	}
}

func decodeAttribute(a *Attribute) {
	if _, ok := plaintextKeys[a.Key]; ok {
		return
	}
	key, ok := decodePrintable(a.Key)
	if !ok {
		return
	}
	a.Key = key
	if value, ok := decodePrintable(a.Value); ok {
		a.Value = value
	}
}

func decodePrintable(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) == 0 {
		return "", false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
