package market

import (
	"fmt"

	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executeInitializeTx(tx *types.TransactionOrder, _ *InitializeAttributes, exeCtx *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
	configID, bump, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	// lamports sent to the config address before initialization don't block it
	if u, err := m.state.GetUnit(configID, false); err == nil {
		if _, ok := u.Data().(*system.Account); !ok {
			return nil, ErrAlreadyInitialized.Wrap("config %s", configID)
		}
	}
	config := &Config{
		Authority:     tx.Signer(),
		InitializedAt: exeCtx.BlockTime(),
		Bump:          bump,
	}
	if err := m.state.Apply(system.CreateAccount(tx.Signer(), configID, config, ConfigMaxSize)); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: []types.Address{configID, tx.Signer()}}, nil
}
