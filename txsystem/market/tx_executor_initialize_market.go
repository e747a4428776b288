package market

import (
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executeInitializeMarketTx(tx *types.TransactionOrder, attr *InitializeMarketAttributes, exeCtx *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
	if len(attr.MarketID) > MaxMarketIDLength {
		return nil, ErrMarketIdTooLong
	}
	if len(attr.Question) > MaxQuestionLength {
		return nil, ErrQuestionTooLong
	}
	marketID, bump, err := MarketAddress(attr.MarketID)
	if err != nil {
		return nil, err
	}

	market := &Market{
		Authority: tx.Signer(),
		MarketID:  attr.MarketID,
		Question:  attr.Question,
		Status:    StatusActive,
		CreatedAt: exeCtx.BlockTime(),
		Bump:      bump,
	}
	actions := []state.Action{system.CreateAccount(tx.Signer(), marketID, market, MarketMaxSize)}
	targets := []types.Address{marketID, tx.Signer()}

	// market counter is maintained only when the program has been initialized
	configID, _, err := ConfigAddress()
	if err != nil {
		return nil, err
	}
	if _, err := getAccount[*Config](m.state, configID); err == nil {
		actions = append(actions, state.UpdateUnitData(configID, func(data state.UnitData) (state.UnitData, error) {
			config := data.(*Config)
			config.MarketCount++
			return config, nil
		}))
		targets = append(targets, configID)
	} else if !errors.Is(err, ErrAccountNotInitialized) {
		return nil, err
	}

	if err := m.state.Apply(actions...); err != nil {
		return nil, fmt.Errorf("initialize market: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: targets}, nil
}
