package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/common/num"
	"github.com/mcdexio/chain-collector/database/models/chain"
	httpUtils "github.com/mcdexio/chain-collector/utils/http"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Store persists snapshots.
type Store interface {
	TopAccounts(ctx context.Context, chainID string, limit int) ([]string, error)
	ReplaceRichList(ctx context.Context, denom string, rows []*chain.RichList) error
	UpsertUnvested(ctx context.Context, rows []*chain.Unvested) error
}

// LCD is the node surface of the importer.
type LCD interface {
	GetBalance(ctx context.Context, address string) (coins.Coins, error)
	GetTotalSupply(ctx context.Context, height int64) (coins.Coins, error)
	QueryContract(ctx context.Context, contract string, query interface{}, out interface{}) (bool, error)
}

// Config of an Importer.
type Config struct {
	ChainID     string
	NativeDenom string
	StableDenom string
	// Size is the number of rows kept per denom.
	Size int
	// Candidates is how many of the most active accounts have their balances read.
	Candidates int
	CW20Tokens []string
}

// Importer takes the hourly rich list and unvested supply snapshots.
type Importer struct {
	logger   logging.Logger
	cfg      Config
	lcd      LCD
	store    Store
	pool     pond.Pool
	unvested httpUtils.IHttpClient

	now func() time.Time
}

// NewImporter creates an importer. unvested may be nil, which disables the unvested import.
func NewImporter(logger logging.Logger, cfg Config, lcd LCD, store Store, pool pond.Pool, unvested httpUtils.IHttpClient) *Importer {
	if cfg.Candidates < cfg.Size {
		cfg.Candidates = cfg.Size
	}
	return &Importer{logger: logger, cfg: cfg, lcd: lcd, store: store, pool: pool, unvested: unvested, now: time.Now}
}

// Run imports both snapshots. A failure of one does not stop the other.
func (im *Importer) Run(ctx context.Context) error {
	return errors.Join(im.RichList(ctx), im.Unvested(ctx))
}

func (im *Importer) denoms() []string {
	out := []string{im.cfg.NativeDenom, im.cfg.StableDenom}
	return append(out, im.cfg.CW20Tokens...)
}

// RichList rebuilds the top holders of the native, stable and configured cw20 denoms.
func (im *Importer) RichList(ctx context.Context) error {
	accounts, err := im.store.TopAccounts(ctx, im.cfg.ChainID, im.cfg.Candidates)
	if err != nil {
		return fmt.Errorf("candidate accounts: %w", err)
	}
	balances, err := im.balances(ctx, accounts)
	if err != nil {
		return err
	}
	totals, err := im.totals(ctx)
	if err != nil {
		return err
	}

	ts := im.now().UTC().Truncate(time.Hour)
	for _, denom := range im.denoms() {
		rows := topHolders(denom, accounts, balances, im.cfg.Size, totals.Get(denom), ts)
		if err := im.store.ReplaceRichList(ctx, denom, rows); err != nil {
			return fmt.Errorf("rich list %s: %w", denom, err)
		}
	}
	im.logger.Info("rich list of %d denoms from %d accounts", len(im.denoms()), len(accounts))
	return nil
}

type cw20Balance struct {
	Balance decimal.Decimal `json:"balance"`
}

type cw20TokenInfo struct {
	TotalSupply decimal.Decimal `json:"total_supply"`
}

// balances reads the holdings of every account in parallel; balances[i] belongs to accounts[i].
func (im *Importer) balances(ctx context.Context, accounts []string) ([]coins.DenomMap, error) {
	out := make([]coins.DenomMap, len(accounts))
	group := im.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, addr := range accounts {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			held := coins.DenomMap{}
			bank, err := im.lcd.GetBalance(groupCtx, addr)
			if err != nil {
				im.logger.Warn("balance of %s: %s", addr, err)
			}
			held.AddCoins(bank)
			for _, token := range im.cfg.CW20Tokens {
				var b cw20Balance
				if ok, err := im.lcd.QueryContract(groupCtx, token, map[string]interface{}{
					"balance": map[string]string{"address": addr},
				}, &b); err != nil {
					im.logger.Warn("cw20 %s balance of %s: %s", token, addr, err)
				} else if ok {
					held.Add(token, b.Balance)
				}
			}
			out[i] = held
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// totals returns the circulating total of every rich list denom.
func (im *Importer) totals(ctx context.Context) (coins.DenomMap, error) {
	supply, err := im.lcd.GetTotalSupply(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}
	out := coins.NewDenomMap(supply)
	for _, token := range im.cfg.CW20Tokens {
		var info cw20TokenInfo
		if ok, err := im.lcd.QueryContract(ctx, token, map[string]interface{}{"token_info": struct{}{}}, &info); err != nil {
			return nil, fmt.Errorf("cw20 %s token info: %w", token, err)
		} else if ok {
			out[token] = info.TotalSupply
		}
	}
	return out, nil
}

func topHolders(denom string, accounts []string, balances []coins.DenomMap, size int, total decimal.Decimal, ts time.Time) []*chain.RichList {
	var rows []*chain.RichList
	for i, addr := range accounts {
		amount := balances[i].Get(denom)
		if !amount.IsPositive() {
			continue
		}
		rows = append(rows, &chain.RichList{Denom: denom, Account: addr, Amount: amount, Timestamp: ts})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Amount.Cmp(rows[j].Amount); c != 0 {
			return c > 0
		}
		return rows[i].Account < rows[j].Account
	})
	if len(rows) > size {
		rows = rows[:size]
	}
	for _, r := range rows {
		r.Percentage = num.SafeDiv(r.Amount, total).Mul(hundred)
	}
	return rows
}

// Unvested imports the locked supply per denom for the current hour. The source serves a coin
// list: [{"denom":"uluna","amount":"123"}].
func (im *Importer) Unvested(ctx context.Context) error {
	if im.unvested == nil {
		return nil
	}
	code, body, err := im.unvested.Get(ctx, "", nil)
	if err != nil {
		return fmt.Errorf("fetch unvested: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("fetch unvested: status %d", code)
	}
	var amounts coins.Coins
	if err := json.Unmarshal(body, &amounts); err != nil {
		return fmt.Errorf("decode unvested: %w", err)
	}

	hour := im.now().UTC().Truncate(time.Hour)
	held := coins.NewDenomMap(amounts)
	rows := make([]*chain.Unvested, 0, len(held))
	for _, denom := range held.Denoms() {
		rows = append(rows, &chain.Unvested{Denom: denom, Datetime: hour, Amount: held[denom]})
	}
	if err := im.store.UpsertUnvested(ctx, rows); err != nil {
		return fmt.Errorf("save unvested: %w", err)
	}
	im.logger.Info("unvested amounts of %d denoms", len(rows))
	return nil
}
