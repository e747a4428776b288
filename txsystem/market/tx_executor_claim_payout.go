package market

import (
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executeClaimPayoutTx(tx *types.TransactionOrder, attr *ClaimPayoutAttributes, _ *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
	marketID, _, err := MarketAddress(attr.MarketID)
	if err != nil {
		return nil, err
	}
	market, err := getAccount[*Market](m.state, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status != StatusResolved {
		return nil, ErrMarketNotResolved.Wrap("market %q is %s", attr.MarketID, market.Status)
	}
	bet, err := getAccount[*Bet](m.state, attr.Bet)
	if err != nil {
		return nil, err
	}
	expectedID, _, err := BetAddress(marketID, bet.User, bet.PlacedAt)
	if err != nil {
		return nil, err
	}
	if expectedID != attr.Bet || bet.Market != marketID {
		return nil, ErrConstraintSeeds.Wrap("bet %s does not belong to market %q", attr.Bet, attr.MarketID)
	}
	if bet.User != tx.Signer() {
		return nil, ErrUnauthorized.Wrap("bet was placed by %s", bet.User)
	}
	if bet.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if market.WinningOutcome == nil || *market.WinningOutcome != bet.Outcome {
		return nil, ErrNotWinner
	}

	totalPool, err := market.TotalPool()
	if err != nil {
		return nil, err
	}
	payout, fee, err := CalculatePayout(bet.Amount, totalPool, market.Pool(bet.Outcome))
	if err != nil {
		return nil, err
	}
	escrowID, _, err := EscrowAddress(marketID)
	if err != nil {
		return nil, err
	}

	if err := m.state.Apply(
		system.Debit(escrowID, payout-fee),
		system.Credit(tx.Signer(), payout-fee),
		state.UpdateUnitData(attr.Bet, func(data state.UnitData) (state.UnitData, error) {
			bet := data.(*Bet)
			bet.Claimed = true
			return bet, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("claim payout: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: []types.Address{attr.Bet, escrowID, tx.Signer()}}, nil
}
