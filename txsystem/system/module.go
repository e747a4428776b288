package system

import (
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

const PayloadTypeTransfer = "transfer"

var _ txsystem.Module = (*Module)(nil)

type (
	// Module is the built-in program which owns wallet accounts and moves lamports between them.
	Module struct {
		state *state.State
	}

	TransferAttributes struct {
		_        struct{} `cbor:",toarray"`
		To       types.Address
		Lamports uint64
	}
)

func NewModule(s *state.State) (*Module, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	return &Module{state: s}, nil
}

func (m *Module) ProgramID() types.Address { return types.SystemProgramID }

func (m *Module) Name() string { return "system" }

func (m *Module) TxExecutors() map[string]txsystem.ExecuteFunc {
	return map[string]txsystem.ExecuteFunc{
		PayloadTypeTransfer: txsystem.GenericExecuteFunc[TransferAttributes](m.executeTransferTx).ExecuteFunc(),
	}
}

/*
NewTxSystem creates the transaction system hosting the system program and
given additional programs. Fees are credited to the "feeCollector" account.
*/
func NewTxSystem(networkID types.NetworkID, feeCollector types.Address, s *state.State, programs []txsystem.Module, observe txsystem.Observability, opts ...txsystem.Option) (*txsystem.GenericTxSystem, error) {
	systemModule, err := NewModule(s)
	if err != nil {
		return nil, fmt.Errorf("failed to load system module: %w", err)
	}
	return txsystem.NewGenericTxSystem(
		networkID,
		NewFeeHandler(feeCollector),
		append([]txsystem.Module{systemModule}, programs...),
		observe,
		append(opts, txsystem.WithState(s), txsystem.WithHashAlgorithm(s.HashAlgorithm()))...,
	)
}
