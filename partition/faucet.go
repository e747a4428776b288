package partition

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

var ErrAirdropDisabled = errors.New("airdrop is not enabled on this node")

/*
RequestAirdrop transfers "lamports" from the faucet account to the account "to".
Returns the signature of the transfer transaction, the transfer is executed in
one of the following rounds.
*/
func (n *Node) RequestAirdrop(ctx context.Context, to types.Address, lamports uint64) (types.Signature, error) {
	faucet := n.configuration.faucet
	if faucet == nil {
		return types.Signature{}, ErrAirdropDisabled
	}
	if lamports == 0 {
		return types.Signature{}, errors.New("airdrop amount must be greater than zero")
	}

	refNo := uuid.New()
	tx := &types.TransactionOrder{
		Payload: &types.Payload{
			NetworkID: n.configuration.networkID,
			ProgramID: types.SystemProgramID,
			Type:      system.PayloadTypeTransfer,
			Signer:    faucet.PublicKey(),
			ClientMetadata: &types.ClientMetadata{
				Timeout:           n.LatestBlockNumber() + DefaultTxTimeoutRounds,
				MaxTransactionFee: n.transactionSystem.TxFee(),
				ReferenceNumber:   refNo[:],
			},
		},
	}
	if err := tx.Payload.SetAttributes(&system.TransferAttributes{To: to, Lamports: lamports}); err != nil {
		return types.Signature{}, fmt.Errorf("encoding airdrop attributes: %w", err)
	}
	if err := tx.Sign(faucet); err != nil {
		return types.Signature{}, fmt.Errorf("signing airdrop: %w", err)
	}
	sig, err := n.SubmitTx(ctx, tx, false)
	if err != nil {
		return types.Signature{}, fmt.Errorf("submitting airdrop: %w", err)
	}
	n.log.InfoContext(ctx, fmt.Sprintf("airdrop of %d lamports requested", lamports), logger.UnitID(to), logger.TxID(sig))
	return sig, nil
}
