package db

import (
	"context"
	"time"

	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/shopspring/decimal"
)

// UpsertValidators writes the staking state of validators keyed by operator address.
func (s *Store) UpsertValidators(ctx context.Context, rows []*chain.ValidatorInfo) error {
	return upsert(s, ctx, rows, []string{"operator_address"},
		"moniker", "status", "jailed", "tokens", "delegator_shares", "commission_rate", "refreshed_at")
}

// UpdateValidatorDetails stores the distribution state of one validator.
func (s *Store) UpdateValidatorDetails(ctx context.Context, v *chain.ValidatorInfo) error {
	return s.conn(ctx).Model(&chain.ValidatorInfo{}).
		Where("operator_address = ?", v.OperatorAddress).
		Updates(map[string]interface{}{
			"self_bond_rewards": v.SelfBondRewards,
			"commission":        v.Commission,
			"updated_at":        time.Now(),
		}).Error
}

// Validators returns every known validator.
func (s *Store) Validators(ctx context.Context) ([]*chain.ValidatorInfo, error) {
	var out []*chain.ValidatorInfo
	err := s.conn(ctx).Order("operator_address asc").Find(&out).Error
	return out, err
}

// DelegationEvents returns the events of operator with timestamp in [from, to), oldest first.
func (s *Store) DelegationEvents(ctx context.Context, operator string, from, to time.Time) ([]*chain.DelegationEvent, error) {
	var out []*chain.DelegationEvent
	err := s.conn(ctx).
		Where("operator_address = ? AND timestamp >= ? AND timestamp < ?", operator, from, to).
		Order("timestamp asc, id asc").Find(&out).Error
	return out, err
}

// UpsertValidatorReturn writes a daily return keyed by (operator_address, timestamp).
func (s *Store) UpsertValidatorReturn(ctx context.Context, row *chain.ValidatorReturnInfo) error {
	return upsert(s, ctx, []*chain.ValidatorReturnInfo{row}, []string{"operator_address", "timestamp"},
		"reward", "commission", "avg_voting_power", "annualized_return")
}

// SumAvgVotingPower adds the average voting power of every validator for the day starting at day.
func (s *Store) SumAvgVotingPower(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := s.conn(ctx).Model(&chain.ValidatorReturnInfo{}).
		Select("SUM(avg_voting_power)").Where("timestamp = ?", day).Row()
	if err := row.Scan(&total); err != nil || !total.Valid {
		return decimal.Zero, err
	}
	return total.Decimal, nil
}
