package chain

import "github.com/mcdexio/chain-collector/database/models"

// AllModels collects available models, parents before children.
var AllModels = []interface{}{
	&models.System{},

	&Block{},
	&BlockReward{},
	&Tx{},
	&AccountTx{},
	&Account{},
	&DelegationEvent{},

	&Reward{},
	&Swap{},
	&Network{},
	&Price{},

	&ValidatorInfo{},
	&ValidatorReturnInfo{},
	&Dashboard{},

	&RichList{},
	&Unvested{},
	&Proposal{},
}
