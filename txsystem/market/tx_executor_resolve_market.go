package market

import (
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executeResolveMarketTx(tx *types.TransactionOrder, attr *ResolveMarketAttributes, exeCtx *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
	marketID, _, err := MarketAddress(attr.MarketID)
	if err != nil {
		return nil, err
	}
	market, err := getAccount[*Market](m.state, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status != StatusActive {
		return nil, ErrMarketNotActive.Wrap("market %q is %s", attr.MarketID, market.Status)
	}
	if market.Authority != tx.Signer() {
		return nil, ErrUnauthorized.Wrap("%s is not the authority of the market", tx.Signer())
	}
	if attr.WinningOutcome > OutcomeYes {
		return nil, ErrInvalidOutcome
	}

	if err := m.state.Apply(state.UpdateUnitData(marketID, func(data state.UnitData) (state.UnitData, error) {
		market := data.(*Market)
		outcome, resolvedAt := attr.WinningOutcome, exeCtx.BlockTime()
		market.Status = StatusResolved
		market.WinningOutcome = &outcome
		market.ResolvedAt = &resolvedAt
		return market, nil
	})); err != nil {
		return nil, fmt.Errorf("resolve market: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: []types.Address{marketID}}, nil
}
