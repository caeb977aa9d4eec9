package syncer

import (
	"context"

	"github.com/mcdexio/chain-collector/database/models/chain"
)

// GetTargetTx returns the first stored tx of chainID with an id above cursor, or nil. Readers
// resume their scan from it.
func GetTargetTx(ctx context.Context, finder TxFinder, chainID string, cursor int64) (*chain.Tx, error) {
	if cursor < 0 {
		cursor = 0
	}
	return finder.FindTxAfter(ctx, chainID, cursor)
}
