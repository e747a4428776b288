package market

import (
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

func (m *Module) executePlaceBetTx(tx *types.TransactionOrder, attr *PlaceBetAttributes, exeCtx *txsystem.TxExecutionContext) (*types.ServerMetadata, error) {
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
	user := tx.Signer()
	placedAt := exeCtx.BlockTime()
	betID, betBump, err := BetAddress(marketID, user, placedAt)
	if err != nil {
		return nil, err
	}
	escrowID, escrowBump, err := EscrowAddress(marketID)
	if err != nil {
		return nil, err
	}

	if attr.Outcome > OutcomeYes {
		return nil, ErrInvalidOutcome
	}
	if attr.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if attr.Amount < MinBetAmount {
		return nil, ErrBetTooSmall
	}

	bet := &Bet{
		Market:   marketID,
		User:     user,
		Outcome:  attr.Outcome,
		Amount:   attr.Amount,
		PlacedAt: placedAt,
		Bump:     betBump,
	}
	if err := m.state.Apply(
		system.CreateAccount(user, betID, bet, BetMaxSize),
		ensureEscrow(escrowID, marketID, escrowBump),
		system.Transfer(user, escrowID, attr.Amount),
		state.UpdateUnitData(marketID, func(data state.UnitData) (state.UnitData, error) {
			market := data.(*Market)
			if attr.Outcome == OutcomeYes {
				if market.TotalYesPool+attr.Amount < market.TotalYesPool {
					return nil, ErrOverflow
				}
				market.TotalYesPool += attr.Amount
			} else {
				if market.TotalNoPool+attr.Amount < market.TotalNoPool {
					return nil, ErrOverflow
				}
				market.TotalNoPool += attr.Amount
			}
			return market, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("place bet: %w", err)
	}
	return &types.ServerMetadata{TargetUnits: []types.Address{marketID, betID, escrowID, user}}, nil
}

/*
ensureEscrow creates the escrow account of the market when it doesn't exist yet.
Lamports sent to the escrow address before the first bet are kept.
*/
func ensureEscrow(escrowID, marketID types.Address, bump uint8) state.Action {
	return func(s state.ShardState) error {
		u, err := s.Get(escrowID)
		if err != nil {
			return state.AddUnit(escrowID, &Escrow{Market: marketID, Bump: bump})(s)
		}
		switch data := u.Data().(type) {
		case *Escrow:
			return nil
		case *system.Account:
			return state.UpdateUnitData(escrowID, func(state.UnitData) (state.UnitData, error) {
				return &Escrow{Lamports: data.Lamports, Market: marketID, Bump: bump}, nil
			})(s)
		default:
			return ErrAccountDiscriminatorMismatch.Wrap("escrow %s holds %T", escrowID, data)
		}
	}
}
