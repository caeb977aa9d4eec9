package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const token = "terra1cw20token"

type fakeLCD struct {
	balances map[string]coins.Coins
	cw20     map[string]string
	failing  map[string]bool
}

func (l *fakeLCD) GetBalance(_ context.Context, addr string) (coins.Coins, error) {
	if l.failing[addr] {
		return nil, errors.New("node busy")
	}
	return l.balances[addr], nil
}

func (l *fakeLCD) GetTotalSupply(context.Context, int64) (coins.Coins, error) {
	return coins.Coins{coins.NewCoin("uluna", 1000), coins.NewCoin("uusd", 200)}, nil
}

func (l *fakeLCD) QueryContract(_ context.Context, contract string, query interface{}, out interface{}) (bool, error) {
	if contract != token {
		return false, nil
	}
	q := query.(map[string]interface{})
	if _, ok := q["token_info"]; ok {
		return true, json.Unmarshal([]byte(`{"total_supply":"50"}`), out)
	}
	addr := q["balance"].(map[string]string)["address"]
	amount, ok := l.cw20[addr]
	if !ok {
		amount = "0"
	}
	return true, json.Unmarshal([]byte(`{"balance":"`+amount+`"}`), out)
}

type fakeStore struct {
	mu       sync.Mutex
	accounts []string
	rich     map[string][]*chain.RichList
	unvested map[string]*chain.Unvested
}

func (f *fakeStore) TopAccounts(_ context.Context, _ string, limit int) ([]string, error) {
	if limit < len(f.accounts) {
		return f.accounts[:limit], nil
	}
	return f.accounts, nil
}

func (f *fakeStore) ReplaceRichList(_ context.Context, denom string, rows []*chain.RichList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rich[denom] = rows
	return nil
}

func (f *fakeStore) UpsertUnvested(_ context.Context, rows []*chain.Unvested) error {
	for _, r := range rows {
		f.unvested[r.Denom+r.Datetime.Format(time.RFC3339)] = r
	}
	return nil
}

type ImporterSuite struct {
	suite.Suite
	pool   pond.Pool
	lcd    *fakeLCD
	store  *fakeStore
	server *httptest.Server
	body   string
}

func (s *ImporterSuite) SetupSuite() {
	s.pool = pond.NewPool(4)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(s.body))
	}))
}

func (s *ImporterSuite) TearDownSuite() {
	s.server.Close()
	s.pool.StopAndWait()
}

func (s *ImporterSuite) SetupTest() {
	s.lcd = &fakeLCD{
		balances: map[string]coins.Coins{
			"a": {coins.NewCoin("uluna", 100), coins.NewCoin("uusd", 10)},
			"b": {coins.NewCoin("uluna", 300)},
			"c": {coins.NewCoin("uluna", 200), coins.NewCoin("uusd", 30)},
			"d": {coins.NewCoin("uluna", 999)},
		},
		cw20:    map[string]string{"a": "5", "c": "20"},
		failing: map[string]bool{"d": true},
	}
	s.store = &fakeStore{
		accounts: []string{"a", "b", "c", "d", "e"},
		rich:     map[string][]*chain.RichList{},
		unvested: map[string]*chain.Unvested{},
	}
	s.body = `[{"denom":"uluna","amount":"700"},{"denom":"uusd","amount":"1"}]`
}

func (s *ImporterSuite) importer(unvested bool) *Importer {
	var client httpUtils.IHttpClient
	if unvested {
		client = httpUtils.NewHttpClient(nil, logging.NewLoggerTag("unvested"), s.server.URL)
	}
	im := NewImporter(logging.NewLoggerTag("snapshot"), Config{
		ChainID: "columbus-5", NativeDenom: "uluna", StableDenom: "uusd",
		Size: 2, Candidates: 4, CW20Tokens: []string{token},
	}, s.lcd, s.store, s.pool, client)
	im.now = func() time.Time { return time.Date(2021, 10, 1, 7, 42, 0, 0, time.UTC) }
	return im
}

func (s *ImporterSuite) TestRichList() {
	s.Require().NoError(s.importer(false).Run(context.Background()))

	luna := s.store.rich["uluna"]
	s.Require().Len(luna, 2)
	s.Equal("b", luna[0].Account)
	s.Equal("30", luna[0].Percentage.String())
	s.Equal("c", luna[1].Account)
	s.Equal(time.Date(2021, 10, 1, 7, 0, 0, 0, time.UTC), luna[0].Timestamp)

	usd := s.store.rich["uusd"]
	s.Require().Len(usd, 2)
	s.Equal([]string{"c", "a"}, []string{usd[0].Account, usd[1].Account})
	s.Equal("15", usd[0].Percentage.String())

	cw := s.store.rich[token]
	s.Require().Len(cw, 2)
	s.Equal("c", cw[0].Account)
	s.Equal("40", cw[0].Percentage.String())
	s.Empty(s.store.unvested)
}

func (s *ImporterSuite) TestUnvested() {
	im := s.importer(true)
	s.Require().NoError(im.Unvested(context.Background()))
	s.Require().NoError(im.Unvested(context.Background()))
	s.Len(s.store.unvested, 2)
	row := s.store.unvested["uluna"+time.Date(2021, 10, 1, 7, 0, 0, 0, time.UTC).Format(time.RFC3339)]
	s.Require().NotNil(row)
	s.True(decimal.NewFromInt(700).Equal(row.Amount))
}

func (s *ImporterSuite) TestUnvestedBadPayload() {
	s.body = `not json`
	err := s.importer(true).Run(context.Background())
	s.Require().Error(err)
	s.Contains(err.Error(), "decode unvested")
	s.NotEmpty(s.store.rich["uluna"])
}

func TestImporter(t *testing.T) {
	suite.Run(t, new(ImporterSuite))
}
