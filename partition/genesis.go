package partition

import (
	gocrypto "crypto"
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

// GenesisRound is the round of the genesis block, the first produced block is GenesisRound+1.
const GenesisRound uint64 = 1

var ErrStateIsNil = errors.New("state is nil")

/*
NewGenesisBlock creates the (empty) block which certifies the initial state
"summary" of the ledger. The block is signed by the "signer" ie the node key.
*/
func NewGenesisBlock(networkID types.NetworkID, summary txsystem.StateSummary, timestamp int64, signer types.Signer, algorithm gocrypto.Hash) (*types.Block, error) {
	if summary == nil {
		return nil, ErrStateIsNil
	}
	if signer == nil {
		return nil, ErrSignerIsNil
	}
	b := &types.Block{
		Header: &types.Header{
			NetworkID:         networkID,
			Round:             GenesisRound,
			Timestamp:         timestamp,
			PreviousBlockHash: make([]byte, algorithm.Size()),
			StateHash:         summary.Root(),
			SummaryValue:      summary.Summary(),
			Producer:          signer.PublicKey(),
		},
		Transactions: []*types.TransactionRecord{},
	}
	var err error
	if b.Header.TxHash, err = b.TxRecordsRoot(algorithm); err != nil {
		return nil, fmt.Errorf("calculating tx root: %w", err)
	}
	if err := b.Header.Sign(signer); err != nil {
		return nil, fmt.Errorf("signing genesis block: %w", err)
	}
	return b, nil
}
