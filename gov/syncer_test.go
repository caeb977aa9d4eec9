package gov

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcdexio/chain-collector/common/coins"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/mcdexio/chain-collector/node"
	"github.com/mcdexio/chain-collector/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLCD struct{ proposals []*node.Proposal }

func (l *fakeLCD) GetProposals(context.Context) ([]*node.Proposal, error) { return l.proposals, nil }

func (l *fakeLCD) GetDepositParams(context.Context) (*node.DepositParams, error) {
	return &node.DepositParams{MinDeposit: coins.Coins{coins.NewCoin("uluna", 50000000)}, MaxDepositPeriod: "1209600000000000"}, nil
}

type fakeStore struct {
	rows map[int64]*chain.Proposal
	vars map[types.SysVar]string
}

func (f *fakeStore) UpsertProposals(_ context.Context, rows []*chain.Proposal) error {
	for _, r := range rows {
		f.rows[r.ProposalID] = r
	}
	return nil
}

func (f *fakeStore) SetSystemVar(_ context.Context, name types.SysVar, value string) error {
	f.vars[name] = value
	return nil
}

func proposal(t *testing.T, raw string) *node.Proposal {
	var p node.Proposal
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	p.Raw = json.RawMessage(raw)
	return &p
}

func TestSyncerRun(t *testing.T) {
	lcd := &fakeLCD{proposals: []*node.Proposal{
		proposal(t, `{"id":"12","content":{"type":"gov/TextProposal","value":{"title":"hello"}},"proposal_status":"VotingPeriod",`+
			`"total_deposit":[{"denom":"uluna","amount":"10"},{"denom":"uluna","amount":"5"}]}`),
		proposal(t, `{"id":13,"content":{"type":"distribution/CommunityPoolSpendProposal","value":{"title":"spend"}},"status":2}`),
		proposal(t, `{"id":"x"}`),
	}}
	store := &fakeStore{rows: map[int64]*chain.Proposal{}, vars: map[types.SysVar]string{}}
	s := NewSyncer(logging.NewLoggerTag("gov"), "columbus-5", lcd, store)

	require.NoError(t, s.Run(context.Background()))
	require.Len(t, store.rows, 2)
	assert.Equal(t, "hello", store.rows[12].Title)
	assert.Equal(t, "VotingPeriod", store.rows[12].Status)
	assert.Equal(t, "15", store.rows[12].TotalDeposit.Get("uluna").String())
	assert.Equal(t, "2", store.rows[13].Status)
	assert.Equal(t, "columbus-5", store.rows[13].ChainID)
	assert.Equal(t, "50000000uluna", store.vars[types.SysVarGovMinDeposit])
	assert.Equal(t, "1209600000000000", store.vars[types.SysVarGovDepositPeriod])

	// rerunning updates in place
	require.NoError(t, s.Run(context.Background()))
	assert.Len(t, store.rows, 2)
}
