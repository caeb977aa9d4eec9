package types

// AppType specifies app type.
type AppType string

// Collector AppType enums.
const (
	Collector AppType = "collector"
)

// SysVar specifies the system variables.
type SysVar string

// SysVar enums.
const (
	SysVarSchemaVersion    SysVar = "schema_version"
	SysVarGovMinDeposit    SysVar = "gov_min_deposit"
	SysVarGovDepositPeriod SysVar = "gov_max_deposit_period"
)

// ActionType is the category of an account's involvement in a tx.
type ActionType string

// ActionType enums.
const (
	ActionSend       ActionType = "send"
	ActionReceive    ActionType = "receive"
	ActionStaking    ActionType = "staking"
	ActionMarket     ActionType = "market"
	ActionGovernance ActionType = "governance"
	ActionMsgAuth    ActionType = "msgauth"
	ActionContract   ActionType = "contract"
)

// DelegationType is the kind of a voting power change.
type DelegationType string

// DelegationType enums.
const (
	DelegationDelegate        DelegationType = "delegate"
	DelegationCreateValidator DelegationType = "create_validator"
	DelegationRedelegateIn    DelegationType = "redelegate_in"
	DelegationRedelegateOut   DelegationType = "redelegate_out"
	DelegationUndelegate      DelegationType = "undelegate"
)

// Sign returns +1 for types that add voting power and -1 for the others.
func (t DelegationType) Sign() int64 {
	switch t {
	case DelegationDelegate, DelegationCreateValidator, DelegationRedelegateIn:
		return 1
	}
	return -1
}
