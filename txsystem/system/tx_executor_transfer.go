package system

import (
	"fmt"

	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executeTransferTx(tx *types.TransactionOrder, attr *TransferAttributes, _ *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
	from := tx.Signer()
	unit, err := m.state.GetUnit(from, false)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	if owner := unit.Data().Owner(); owner != types.SystemProgramID {
		return nil, ErrInvalidAccountOwner.Wrap("account %s is owned by %s", from, owner)
	}
	if err := m.state.Apply(Transfer(from, attr.To, attr.Lamports)); err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: []types.Address{from, attr.To}}, nil
}
