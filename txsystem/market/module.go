package market

import (
	"errors"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

var _ txsystem.Module = (*Module)(nil)

// Module is the prediction market program.
type Module struct {
	state *state.State
}

func NewModule(s *state.State) (*Module, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	return &Module{state: s}, nil
}

func (m *Module) ProgramID() types.Address { return ProgramID }

func (m *Module) Name() string { return ProgramName }

func (m *Module) TxExecutors() map[string]txsystem.ExecuteFunc {
	return map[string]txsystem.ExecuteFunc{
		PayloadTypeInitialize:       txsystem.GenericExecuteFunc[InitializeAttributes](m.executeInitializeTx).ExecuteFunc(),
		PayloadTypeInitializeMarket: txsystem.GenericExecuteFunc[InitializeMarketAttributes](m.executeInitializeMarketTx).ExecuteFunc(),
		PayloadTypePlaceBet:         txsystem.GenericExecuteFunc[PlaceBetAttributes](m.executePlaceBetTx).ExecuteFunc(),
		PayloadTypeResolveMarket:    txsystem.GenericExecuteFunc[ResolveMarketAttributes](m.executeResolveMarketTx).ExecuteFunc(),
		PayloadTypeClaimPayout:      txsystem.GenericExecuteFunc[ClaimPayoutAttributes](m.executeClaimPayoutTx).ExecuteFunc(),
	}
}

/*
getAccount loads account "id" which must hold data of type T.
*/
func getAccount[T state.UnitData](s *state.State, id types.Address) (T, error) {
	var data T
	u, err := s.GetUnit(id, false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return data, ErrAccountNotInitialized.Wrap("account %s", id)
		}
		return data, err
	}
	data, ok := u.Data().(T)
	if !ok {
		return data, ErrAccountDiscriminatorMismatch.Wrap("account %s holds %T, expected %T", id, u.Data(), data)
	}
	return data, nil
}
