package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/client"
	marketprog "github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/types"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountOwnerMismatch = errors.New("account is not owned by the market program")
)

type (
	// Program is typed client of the prediction market program.
	Program struct {
		*client.Program
	}

	Methods struct {
		p *client.Program
	}

	BetAccount struct {
		Address types.Address `json:"address"`
		*marketprog.Bet
	}
)

func New(p *client.Program) *Program {
	return &Program{Program: p}
}

func (p *Program) Methods() *Methods {
	return &Methods{p: p.Program}
}

// Initialize creates the program configuration, the wallet of the provider becomes the authority.
func (m *Methods) Initialize() *client.MethodBuilder {
	return m.p.Method(marketprog.PayloadTypeInitialize, &marketprog.InitializeAttributes{})
}

func (m *Methods) InitializeMarket(marketID, question string) *client.MethodBuilder {
	return m.p.Method(marketprog.PayloadTypeInitializeMarket, &marketprog.InitializeMarketAttributes{
		MarketID: marketID,
		Question: question,
	})
}

// PlaceBet bets "amount" lamports on the "outcome" (OutcomeYes or OutcomeNo) of the market.
func (m *Methods) PlaceBet(marketID string, outcome uint8, amount uint64) *client.MethodBuilder {
	return m.p.Method(marketprog.PayloadTypePlaceBet, &marketprog.PlaceBetAttributes{
		MarketID: marketID,
		Outcome:  outcome,
		Amount:   amount,
	})
}

func (m *Methods) ResolveMarket(marketID string, winningOutcome uint8) *client.MethodBuilder {
	return m.p.Method(marketprog.PayloadTypeResolveMarket, &marketprog.ResolveMarketAttributes{
		MarketID:       marketID,
		WinningOutcome: winningOutcome,
	})
}

func (m *Methods) ClaimPayout(marketID string, bet types.Address) *client.MethodBuilder {
	return m.p.Method(marketprog.PayloadTypeClaimPayout, &marketprog.ClaimPayoutAttributes{
		MarketID: marketID,
		Bet:      bet,
	})
}

func (p *Program) FetchConfig(ctx context.Context) (*marketprog.Config, error) {
	addr, _, err := marketprog.ConfigAddress()
	if err != nil {
		return nil, err
	}
	cfg := &marketprog.Config{}
	if err := p.fetch(ctx, addr, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FetchMarket returns the market and its address.
func (p *Program) FetchMarket(ctx context.Context, marketID string) (types.Address, *marketprog.Market, error) {
	addr, _, err := marketprog.MarketAddress(marketID)
	if err != nil {
		return types.Address{}, nil, err
	}
	m := &marketprog.Market{}
	if err := p.fetch(ctx, addr, m); err != nil {
		return addr, nil, err
	}
	return addr, m, nil
}

func (p *Program) FetchBet(ctx context.Context, addr types.Address) (*marketprog.Bet, error) {
	bet := &marketprog.Bet{}
	if err := p.fetch(ctx, addr, bet); err != nil {
		return nil, err
	}
	return bet, nil
}

// FetchEscrowBalance returns lamports held by the escrow of the market.
func (p *Program) FetchEscrowBalance(ctx context.Context, market types.Address) (uint64, error) {
	addr, _, err := marketprog.EscrowAddress(market)
	if err != nil {
		return 0, err
	}
	return p.Provider().Connection().GetBalance(ctx, addr)
}

/*
BetsOf returns all the bets placed by the "user". Units owned by the user are
loaded from the owner index of the node, a unit is a bet when its address is
the bet address derived from the bet data.
*/
func (p *Program) BetsOf(ctx context.Context, user types.Address) ([]*BetAccount, error) {
	conn := p.Provider().Connection()
	ids, err := conn.GetUnitsByOwnerID(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("loading units of %s: %w", user, err)
	}
	var bets []*BetAccount
	for _, id := range ids {
		u, err := conn.GetUnit(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil || u.Owner != marketprog.ProgramID {
			continue
		}
		bet := &marketprog.Bet{}
		if err := json.Unmarshal(u.Data, bet); err != nil {
			continue
		}
		if bet.User != user {
			continue
		}
		if addr, _, err := marketprog.BetAddress(bet.Market, bet.User, bet.PlacedAt); err != nil || addr != id {
			continue
		}
		bets = append(bets, &BetAccount{Address: id, Bet: bet})
	}
	return bets, nil
}

func (p *Program) fetch(ctx context.Context, addr types.Address, data any) error {
	u, err := p.Provider().Connection().GetUnit(ctx, addr)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if u.Owner != p.ID() {
		return fmt.Errorf("%w: %s is owned by %s", ErrAccountOwnerMismatch, addr, u.Owner)
	}
	if err := json.Unmarshal(u.Data, data); err != nil {
		return fmt.Errorf("decoding account %s: %w", addr, err)
	}
	return nil
}
