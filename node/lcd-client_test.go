package node

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type LCDSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *LCDClient
}

func (s *LCDSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	logger := logging.NewLoggerTag("lcd-test")
	s.client = NewLCDClient(logger, httpUtils.NewHttpClient(nil, logger, s.server.URL), Pruning{KeepRecent: 100, KeepEvery: 100})
}

func (s *LCDSuite) TearDownTest() {
	s.server.Close()
}

func blockJSON(height int64, txs ...string) string {
	quoted := ""
	for i, tx := range txs {
		if i > 0 {
			quoted += ","
		}
		quoted += strconv.Quote(tx)
	}
	return fmt.Sprintf(`{"block_id":{"hash":"AB"},"block":{"header":{"chain_id":"columbus-5","height":"%d",`+
		`"time":"2021-10-01T00:00:05.5Z","proposer_address":"P"},"data":{"txs":[%s]}}}`, height, quoted)
}

func (s *LCDSuite) TestLatestBlock() {
	s.mux.HandleFunc("/blocks/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(blockJSON(1000, "dGVzdA==")))
	})
	block, err := s.client.GetLatestBlock(context.Background())
	s.Require().NoError(err)
	s.Require().Equal(int64(1000), block.Height())
	s.Require().Equal(int64(1000), s.client.LatestHeight())
	s.Require().Equal("columbus-5", block.Block.Header.ChainID)
	s.Require().NotEmpty(block.Raw)

	hashes, err := block.TxHashes()
	s.Require().NoError(err)
	s.Require().Equal([]string{"9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08"}, hashes)
}

func (s *LCDSuite) TestNotFound() {
	s.mux.HandleFunc("/blocks/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"block not found at height 7"}`))
	})
	block, err := s.client.GetBlock(context.Background(), 7)
	s.Require().NoError(err)
	s.Require().Nil(block)

	tx, err := s.client.GetTx(context.Background(), "ABCD")
	s.Require().NoError(err)
	s.Require().Nil(tx)

	dist, err := s.client.GetValidatorDistribution(context.Background(), "terravaloper1x")
	s.Require().NoError(err)
	s.Require().Nil(dist)
}

func (s *LCDSuite) TestRetryOnServerError() {
	var calls atomic.Int64
	s.mux.HandleFunc("/treasury/tax_rate", func(w http.ResponseWriter, r *http.Request) {
		if calls.Inc() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"height":"10","result":"0.005"}`))
	})
	rate, err := s.client.GetTaxRate(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().True(decimal.RequireFromString("0.005").Equal(rate))
	s.Require().Equal(int64(3), calls.Load())
}

func (s *LCDSuite) TestRetryExhausted() {
	var calls atomic.Int64
	s.mux.HandleFunc("/staking/pool", func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	pool, err := s.client.GetStakingPool(context.Background(), 0)
	s.Require().Nil(pool)
	var se *StatusError
	s.Require().ErrorAs(err, &se)
	s.Require().Equal(http.StatusServiceUnavailable, se.Code)
	s.Require().Equal(int64(maxAttempts), calls.Load())
}

func (s *LCDSuite) TestNoRetryOnBadRequest() {
	var calls atomic.Int64
	s.mux.HandleFunc("/gov/parameters/deposit", func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := s.client.GetDepositParams(context.Background())
	s.Require().Error(err)
	s.Require().Equal(int64(1), calls.Load())
}

func (s *LCDSuite) TestPrunedHeight() {
	var heights []string
	s.mux.HandleFunc("/blocks/latest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(blockJSON(1000)))
	})
	s.mux.HandleFunc("/staking/pool", func(w http.ResponseWriter, r *http.Request) {
		heights = append(heights, r.URL.Query().Get("height"))
		_, _ = w.Write([]byte(`{"height":"1","result":{"not_bonded_tokens":"1","bonded_tokens":"99"}}`))
	})
	_, err := s.client.GetLatestBlock(context.Background())
	s.Require().NoError(err)

	for _, h := range []int64{950, 150, 0} {
		pool, err := s.client.GetStakingPool(context.Background(), h)
		s.Require().NoError(err)
		s.Require().Equal("99", pool.BondedTokens.String())
	}
	s.Require().Equal([]string{"950", "100", ""}, heights)
}

func (s *LCDSuite) TestValidatorsPaging() {
	s.mux.HandleFunc("/staking/validators", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("bonded", r.URL.Query().Get("status"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		n := validatorPageSize
		if page == 2 {
			n = 50
		}
		body := `{"height":"1","result":[`
		for i := 0; i < n; i++ {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`{"operator_address":"terravaloper%d_%d","status":%d,"tokens":"10","delegator_shares":"10",`+
				`"description":{"moniker":"v"},"commission":{"commission_rates":{"rate":"0.1"}}}`, page, i, 3)
		}
		_, _ = w.Write([]byte(body + `]}`))
	})
	vals, err := s.client.GetValidators(context.Background(), "bonded")
	s.Require().NoError(err)
	s.Require().Len(vals, validatorPageSize+50)
	s.Require().Equal("bonded", vals[0].StatusName())
	s.Require().Equal("0.1", vals[0].Commission.CommissionRates.Rate.String())
}

func (s *LCDSuite) TestMarketAndOracle() {
	s.mux.HandleFunc("/oracle/denoms/exchange_rates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"height":"1","result":[{"denom":"uusd","amount":"40.5"},{"denom":"ukrw","amount":"48000"}]}`))
	})
	s.mux.HandleFunc("/market/swap", func(w http.ResponseWriter, r *http.Request) {
		s.Equal("1000000uluna", r.URL.Query().Get("offer_coin"))
		_, _ = w.Write([]byte(`{"height":"1","result":{"denom":"` + r.URL.Query().Get("ask_denom") + `","amount":"40000000"}}`))
	})
	s.mux.HandleFunc("/treasury/tax_caps", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"height":"1","result":[{"denom":"uusd","tax_cap":"1400000"}]}`))
	})

	rates, err := s.client.GetExchangeRates(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().Equal("40.5", rates.Get("uusd").String())

	out, err := s.client.GetSwapRate(context.Background(), coins.NewCoin("uluna", 1000000), "uusd")
	s.Require().NoError(err)
	s.Require().Equal("uusd", out.Denom)

	caps, err := s.client.GetTaxCaps(context.Background(), 0)
	s.Require().NoError(err)
	s.Require().Equal("1400000", caps.Get("uusd").String())
}

func (s *LCDSuite) TestQueryContract() {
	s.mux.HandleFunc("/wasm/contracts/terra1token/store", func(w http.ResponseWriter, r *http.Request) {
		s.JSONEq(`{"balance":{"address":"terra1me"}}`, r.URL.Query().Get("query_msg"))
		_, _ = w.Write([]byte(`{"height":"1","result":{"balance":"77"}}`))
	})
	var out struct {
		Balance string `json:"balance"`
	}
	found, err := s.client.QueryContract(context.Background(), "terra1token",
		map[string]interface{}{"balance": map[string]string{"address": "terra1me"}}, &out)
	s.Require().NoError(err)
	s.Require().True(found)
	s.Require().Equal("77", out.Balance)

	found, err = s.client.QueryContract(context.Background(), "terra1missing", map[string]string{}, &out)
	s.Require().NoError(err)
	s.Require().False(found)
}

func TestLCD(t *testing.T) {
	suite.Run(t, new(LCDSuite))
}

func TestPruningResolve(t *testing.T) {
	p := Pruning{KeepRecent: 100, KeepEvery: 100}
	for _, c := range []struct{ height, latest, want int64 }{
		{950, 1000, 950},
		{900, 1000, 900},
		{899, 1000, 800},
		{150, 1000, 100},
		{50, 1000, 100},
		{150, 0, 150},
	} {
		require.Equal(t, c.want, p.Resolve(c.height, c.latest), "height %d latest %d", c.height, c.latest)
	}
	require.Equal(t, int64(123), Pruning{}.Resolve(123, 100000))
}
