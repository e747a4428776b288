package system

import (
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/types"
)

/*
NewGenesisState returns state with system accounts holding the initial supply,
ie the faucet and the fee collector. The state is not committed.
*/
func NewGenesisState(accounts map[types.Address]uint64, opts ...state.Option) (*state.State, error) {
	s := state.NewEmptyState(opts...)
	actions := make([]state.Action, 0, len(accounts))
	for id, lamports := range accounts {
		actions = append(actions, state.AddUnit(id, &Account{Lamports: lamports}))
	}
	if err := s.Apply(actions...); err != nil {
		return nil, fmt.Errorf("creating genesis accounts: %w", err)
	}
	return s, nil
}
