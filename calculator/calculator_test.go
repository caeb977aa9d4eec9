package calculator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	from = time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)
	to   = from.AddDate(0, 0, 1)
)

func event(at time.Time, typ types.DelegationType, amount string) *chain.DelegationEvent {
	return &chain.DelegationEvent{OperatorAddress: "val", Type: typ, Amount: d(amount), Timestamp: at}
}

func TestAverageVotingPower(t *testing.T) {
	mid := from.Add(12 * time.Hour)
	for _, tc := range []struct {
		name    string
		current string
		events  []*chain.DelegationEvent
		asOf    time.Time
		want    string
	}{
		{"flat", "100", nil, to, "100"},
		{"delegation at midpoint", "120", []*chain.DelegationEvent{event(mid, types.DelegationDelegate, "20")}, to, "110"},
		{"later events are undone", "150", []*chain.DelegationEvent{
			event(mid, types.DelegationDelegate, "20"),
			event(to, types.DelegationRedelegateIn, "40"),
			event(to.Add(time.Hour), types.DelegationUndelegate, "10"),
		}, to.Add(2 * time.Hour), "110"},
		{"events after the observation are ignored", "120", []*chain.DelegationEvent{
			event(mid, types.DelegationDelegate, "20"),
			event(to.Add(3*time.Hour), types.DelegationDelegate, "1000"),
		}, to.Add(time.Hour), "110"},
		{"stale observation replays the rest of the day", "100", []*chain.DelegationEvent{
			event(mid, types.DelegationDelegate, "20"),
		}, from.Add(6 * time.Hour), "110"},
		{"observation before the day replays earlier events", "100", []*chain.DelegationEvent{
			event(from.Add(-2*time.Hour), types.DelegationDelegate, "500"),
			event(from.Add(-30*time.Minute), types.DelegationDelegate, "20"),
		}, from.Add(-time.Hour), "120"},
		{"observation before the day with a change inside it", "100", []*chain.DelegationEvent{
			event(from.Add(-30*time.Minute), types.DelegationDelegate, "20"),
			event(mid, types.DelegationUndelegate, "40"),
		}, from.Add(-time.Hour), "100"},
		{"undelegation at a quarter", "60", []*chain.DelegationEvent{
			event(from.Add(6*time.Hour), types.DelegationUndelegate, "40"),
		}, to, "70"},
		{"created during the day", "100", []*chain.DelegationEvent{
			event(from.Add(18*time.Hour), types.DelegationCreateValidator, "100"),
		}, to, "25"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := AverageVotingPower(d(tc.current), tc.events, from, to, tc.asOf)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

type fakeStore struct {
	validators []*chain.ValidatorInfo
	events     map[string][]*chain.DelegationEvent
	failing    map[string]bool
	reward     coins.ValDenomMap
	commission coins.ValDenomMap
	prices     coins.DenomMap
	saved      map[string]*chain.ValidatorReturnInfo
	ranges     map[string][2]time.Time
}

func (f *fakeStore) Validators(context.Context) ([]*chain.ValidatorInfo, error) {
	return f.validators, nil
}

func (f *fakeStore) DelegationEvents(_ context.Context, op string, a, b time.Time) ([]*chain.DelegationEvent, error) {
	if f.failing[op] {
		return nil, errors.New("boom")
	}
	f.ranges[op] = [2]time.Time{a, b}
	return f.events[op], nil
}

func (f *fakeStore) SumValidatorRewards(context.Context, string, time.Time, time.Time) (coins.ValDenomMap, coins.ValDenomMap, error) {
	return f.reward, f.commission, nil
}

func (f *fakeStore) AveragePrices(context.Context, time.Time, time.Time) (coins.DenomMap, error) {
	return f.prices, nil
}

func (f *fakeStore) UpsertValidatorReturn(_ context.Context, row *chain.ValidatorReturnInfo) error {
	f.saved[row.OperatorAddress+row.Timestamp.Format(time.RFC3339)] = row
	return nil
}

type CalculatorSuite struct {
	suite.Suite
	store *fakeStore
	calc  *Calculator
}

func (s *CalculatorSuite) SetupTest() {
	s.store = &fakeStore{
		validators: []*chain.ValidatorInfo{
			{OperatorAddress: "valA", Tokens: d("120"), RefreshedAt: to.Add(5 * time.Minute)},
			{OperatorAddress: "valB", Tokens: d("50")},
			{OperatorAddress: "valC", Tokens: d("10")},
			{OperatorAddress: "valD", Tokens: d("100"), RefreshedAt: from.Add(-time.Hour)},
		},
		events: map[string][]*chain.DelegationEvent{
			"valA": {event(from.Add(12*time.Hour), types.DelegationDelegate, "20")},
			"valD": {event(from.Add(-30*time.Minute), types.DelegationDelegate, "20")},
		},
		failing: map[string]bool{"valB": true},
		reward: coins.ValDenomMap{
			"valA": {"uluna": d("0.1"), "uusd": d("5")},
		},
		commission: coins.ValDenomMap{"valA": {"uluna": d("0.01")}},
		prices:     coins.DenomMap{"uusd": d("50")},
		saved:      map[string]*chain.ValidatorReturnInfo{},
		ranges:     map[string][2]time.Time{},
	}
	s.calc = NewCalculator(logging.NewLoggerTag("calculator"),
		Config{ChainID: "columbus-5", NativeDenom: "uluna", StableDenom: "uusd"}, s.store)
}

func (s *CalculatorSuite) TestCalculateDay() {
	n, err := s.calc.CalculateDay(context.Background(), from.Add(7*time.Hour))
	s.Require().NoError(err)
	s.Equal(3, n)

	a := s.store.saved["valA"+from.Format(time.RFC3339)]
	s.Require().NotNil(a)
	s.Equal("110", a.AvgVotingPower.String())
	s.Equal("0.2", a.Reward.String())
	s.Equal("0.01", a.Commission.String())
	// 0.2 / 110 * 365
	s.Equal(d("0.2").DivRound(d("110"), 18).Mul(d("365")).String(), a.AnnualizedReturn.String())
	s.Equal([2]time.Time{from, to.Add(5 * time.Minute)}, s.store.ranges["valA"])

	c := s.store.saved["valC"+from.Format(time.RFC3339)]
	s.Require().NotNil(c)
	s.Equal("10", c.AvgVotingPower.String())
	s.True(c.AnnualizedReturn.IsZero())
	s.Equal([2]time.Time{from, to}, s.store.ranges["valC"])

	vd := s.store.saved["valD"+from.Format(time.RFC3339)]
	s.Require().NotNil(vd)
	s.Equal("120", vd.AvgVotingPower.String())
	s.Equal([2]time.Time{from.Add(-time.Hour), to}, s.store.ranges["valD"])

	s.NotContains(s.store.saved, "valB"+from.Format(time.RFC3339))
}

func (s *CalculatorSuite) TestCalculateDayIsIdempotent() {
	_, err := s.calc.CalculateDay(context.Background(), from)
	s.Require().NoError(err)
	_, err = s.calc.CalculateDay(context.Background(), from)
	s.Require().NoError(err)
	s.Len(s.store.saved, 3)
}

func TestCalculator(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}
