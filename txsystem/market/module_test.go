package market

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/internal/testutils/observability"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

const (
	oneSOL      = 1_000_000_000
	startTime   = 1700000000
	totalSupply = 3 * oneSOL
	fee         = txsystem.DefaultTxFee
)

type testEnv struct {
	txs       *txsystem.GenericTxSystem
	state     *state.State
	round     uint64
	authority solana.PrivateKey
	alice     solana.PrivateKey
	bob       solana.PrivateKey
	collector types.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		round:     1,
		authority: test.NewKey(t),
		alice:     test.NewKey(t),
		bob:       test.NewKey(t),
		collector: test.RandomAddress(),
	}
	s, err := system.NewGenesisState(map[types.Address]uint64{
		env.authority.PublicKey(): oneSOL,
		env.alice.PublicKey():     oneSOL,
		env.bob.PublicKey():       oneSOL,
		env.collector:             0,
	})
	require.NoError(t, err)
	sv, h, err := s.CalculateRoot()
	require.NoError(t, err)
	require.NoError(t, s.Commit(env.round, sv, h))

	m, err := NewModule(s)
	require.NoError(t, err)
	env.txs, err = system.NewTxSystem(types.NetworkLocal, env.collector, s, []txsystem.Module{m}, observability.Default(t))
	require.NoError(t, err)
	env.state = s
	return env
}

/*
execute runs the instruction in a block of its own and commits the block.
Returns the server metadata of the transaction.
*/
func (env *testEnv) execute(t *testing.T, signer solana.PrivateKey, txType string, attr any) *types.ServerMetadata {
	t.Helper()
	env.round++
	require.NoError(t, env.txs.BeginBlock(env.round, env.blockTime()))

	tx := &types.TransactionOrder{
		Payload: &types.Payload{
			NetworkID:      types.NetworkLocal,
			ProgramID:      ProgramID,
			Type:           txType,
			Signer:         signer.PublicKey(),
			ClientMetadata: &types.ClientMetadata{Timeout: env.round + 10, MaxTransactionFee: fee},
		},
	}
	require.NoError(t, tx.Payload.SetAttributes(attr))
	require.NoError(t, tx.Sign(signer))
	sm, err := env.txs.Execute(tx)
	require.NoError(t, err)

	summary, err := env.txs.EndBlock()
	require.NoError(t, err)
	require.EqualValues(t, totalSupply, summary.Summary(), "lamports must be conserved")
	require.NoError(t, env.txs.Commit(&types.Header{Round: env.round, SummaryValue: summary.Summary(), StateHash: summary.Root()}))
	return sm
}

/*
prefund transfers lamports from "from" to the address "to" in a block of its own,
ie creates a system account at "to" when there is nothing there yet.
*/
func (env *testEnv) prefund(t *testing.T, from solana.PrivateKey, to types.Address, lamports uint64) {
	t.Helper()
	env.round++
	require.NoError(t, env.txs.BeginBlock(env.round, env.blockTime()))
	require.NoError(t, env.state.Apply(system.Transfer(from.PublicKey(), to, lamports)))
	summary, err := env.txs.EndBlock()
	require.NoError(t, err)
	require.NoError(t, env.txs.Commit(&types.Header{Round: env.round, SummaryValue: summary.Summary(), StateHash: summary.Root()}))
	u, err := env.state.GetUnit(to, true)
	require.NoError(t, err)
	require.IsType(t, &system.Account{}, u.Data())
}

func (env *testEnv) blockTime() int64 {
	return startTime + int64(env.round)
}

func (env *testEnv) mustSucceed(t *testing.T, signer solana.PrivateKey, txType string, attr any) *types.ServerMetadata {
	t.Helper()
	sm := env.execute(t, signer, txType, attr)
	require.Equal(t, types.TxStatusSuccessful, sm.SuccessIndicator, "tx failed: %v", sm.ProcessingDetails)
	return sm
}

func (env *testEnv) mustFail(t *testing.T, expErr error, signer solana.PrivateKey, txType string, attr any) {
	t.Helper()
	sm := env.execute(t, signer, txType, attr)
	require.Equal(t, types.TxStatusFailed, sm.SuccessIndicator)
	require.EqualValues(t, fee, sm.ActualFee)
	require.NotNil(t, sm.ProcessingDetails)
	require.ErrorIs(t, txsystem.ProgramErrorFromTx(sm.ProcessingDetails), expErr, "got %v", sm.ProcessingDetails)
}

func (env *testEnv) lamports(t *testing.T, id types.Address) uint64 {
	t.Helper()
	u, err := env.state.GetUnit(id, true)
	require.NoError(t, err)
	return u.Data().SummaryValueInput()
}

func (env *testEnv) market(t *testing.T, marketID string) (types.Address, *Market) {
	t.Helper()
	addr, _, err := MarketAddress(marketID)
	require.NoError(t, err)
	m, err := getAccount[*Market](env.state, addr)
	require.NoError(t, err)
	return addr, m
}

func TestNewModule(t *testing.T) {
	m, err := NewModule(nil)
	require.EqualError(t, err, "state is nil")
	require.Nil(t, m)

	m, err = NewModule(state.NewEmptyState())
	require.NoError(t, err)
	require.Equal(t, ProgramID, m.ProgramID())
	require.Equal(t, ProgramName, m.Name())
	require.Len(t, m.TxExecutors(), len(Instructions()))
	for _, name := range Instructions() {
		require.Contains(t, m.TxExecutors(), name)
	}
}

func TestInitialize(t *testing.T) {
	env := newTestEnv(t)

	sm := env.mustSucceed(t, env.authority, PayloadTypeInitialize, &InitializeAttributes{})
	configID, bump, err := ConfigAddress()
	require.NoError(t, err)
	require.Contains(t, sm.TargetUnits, configID)

	config, err := getAccount[*Config](env.state, configID)
	require.NoError(t, err)
	require.Equal(t, env.authority.PublicKey(), config.Authority)
	require.Equal(t, bump, config.Bump)
	require.Equal(t, env.blockTime(), config.InitializedAt)
	require.Equal(t, system.Rent(ConfigMaxSize), config.Lamports)
	require.EqualValues(t, oneSOL-fee-system.Rent(ConfigMaxSize), env.lamports(t, env.authority.PublicKey()))

	env.mustFail(t, ErrAlreadyInitialized, env.alice, PayloadTypeInitialize, &InitializeAttributes{})
}

func TestInitialize_PrefundedConfigAddress(t *testing.T) {
	env := newTestEnv(t)
	configID, _, err := ConfigAddress()
	require.NoError(t, err)
	env.prefund(t, env.bob, configID, 1)

	env.mustSucceed(t, env.authority, PayloadTypeInitialize, &InitializeAttributes{})
	config, err := getAccount[*Config](env.state, configID)
	require.NoError(t, err)
	require.Equal(t, env.authority.PublicKey(), config.Authority)
	require.Equal(t, system.Rent(ConfigMaxSize), config.Lamports)
	// the authority pays only the missing part of the rent
	require.EqualValues(t, oneSOL-fee-system.Rent(ConfigMaxSize)+1, env.lamports(t, env.authority.PublicKey()))

	env.mustFail(t, ErrAlreadyInitialized, env.alice, PayloadTypeInitialize, &InitializeAttributes{})
}

func TestInitializeMarket(t *testing.T) {
	env := newTestEnv(t)

	t.Run("market ID too long", func(t *testing.T) {
		env.mustFail(t, ErrMarketIdTooLong, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: strings.Repeat("x", 51), Question: "?"})
	})

	t.Run("market ID too long for the address seed", func(t *testing.T) {
		env.mustFail(t, ErrMaxSeedLengthExceeded, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: strings.Repeat("x", 50), Question: "?"})
	})

	t.Run("question too long", func(t *testing.T) {
		env.mustFail(t, ErrQuestionTooLong, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m", Question: strings.Repeat("?", 201)})
	})

	t.Run("success", func(t *testing.T) {
		balance := env.lamports(t, env.authority.PublicKey())
		env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "btc-100k", Question: strings.Repeat("?", 200)})

		_, market := env.market(t, "btc-100k")
		require.Equal(t, env.authority.PublicKey(), market.Authority)
		require.Equal(t, "btc-100k", market.MarketID)
		require.Equal(t, StatusActive, market.Status)
		require.Zero(t, market.TotalYesPool)
		require.Zero(t, market.TotalNoPool)
		require.Nil(t, market.WinningOutcome)
		require.Nil(t, market.ResolvedAt)
		require.Equal(t, env.blockTime(), market.CreatedAt)
		require.Equal(t, system.Rent(MarketMaxSize), market.Lamports)
		require.Equal(t, balance-fee-system.Rent(MarketMaxSize), env.lamports(t, env.authority.PublicKey()))
	})

	t.Run("duplicate", func(t *testing.T) {
		env.mustFail(t, system.ErrAccountAlreadyInUse, env.alice, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "btc-100k", Question: "again"})
	})

	t.Run("market count is maintained after initialize", func(t *testing.T) {
		env.mustSucceed(t, env.authority, PayloadTypeInitialize, &InitializeAttributes{})
		env.mustSucceed(t, env.alice, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "eth-10k", Question: "ETH over 10k?"})
		configID, _, err := ConfigAddress()
		require.NoError(t, err)
		config, err := getAccount[*Config](env.state, configID)
		require.NoError(t, err)
		require.EqualValues(t, 1, config.MarketCount)
	})
}

func TestInitializeMarket_PrefundedMarketAddress(t *testing.T) {
	env := newTestEnv(t)
	marketID, _, err := MarketAddress("btc-100k")
	require.NoError(t, err)
	env.prefund(t, env.bob, marketID, 5)

	balance := env.lamports(t, env.authority.PublicKey())
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "btc-100k", Question: "BTC over 100k?"})
	_, market := env.market(t, "btc-100k")
	require.Equal(t, env.authority.PublicKey(), market.Authority)
	require.Equal(t, StatusActive, market.Status)
	require.Equal(t, system.Rent(MarketMaxSize), market.Lamports)
	require.Equal(t, balance-fee-system.Rent(MarketMaxSize)+5, env.lamports(t, env.authority.PublicKey()))

	// program owned account can't be taken over
	env.mustFail(t, system.ErrAccountAlreadyInUse, env.alice, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "btc-100k", Question: "again"})
}

func TestPlaceBet_PrefundedBetAddress(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})
	marketID, _ := env.market(t, "m1")
	// the bet of the next block is placed at the block time of the round after the transfer
	betID, _, err := BetAddress(marketID, env.alice.PublicKey(), startTime+int64(env.round)+2)
	require.NoError(t, err)
	env.prefund(t, env.bob, betID, 3)

	balance := env.lamports(t, env.alice.PublicKey())
	env.mustSucceed(t, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeNo, Amount: MinBetAmount})
	bet, err := getAccount[*Bet](env.state, betID)
	require.NoError(t, err)
	require.Equal(t, env.alice.PublicKey(), bet.User)
	require.Equal(t, env.blockTime(), bet.PlacedAt)
	require.Equal(t, system.Rent(BetMaxSize), bet.Lamports)
	require.Equal(t, balance-fee-system.Rent(BetMaxSize)+3-MinBetAmount, env.lamports(t, env.alice.PublicKey()))
	_, market := env.market(t, "m1")
	require.EqualValues(t, MinBetAmount, market.TotalNoPool)
}

func TestPlaceBet(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})
	marketID, _ := env.market(t, "m1")
	escrowID, _, err := EscrowAddress(marketID)
	require.NoError(t, err)

	t.Run("unknown market", func(t *testing.T) {
		env.mustFail(t, ErrAccountNotInitialized, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m2", Outcome: OutcomeYes, Amount: MinBetAmount})
	})

	t.Run("invalid outcome", func(t *testing.T) {
		env.mustFail(t, ErrInvalidOutcome, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: 2, Amount: MinBetAmount})
	})

	t.Run("zero amount", func(t *testing.T) {
		env.mustFail(t, ErrInvalidAmount, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: 0})
	})

	t.Run("amount too small", func(t *testing.T) {
		env.mustFail(t, ErrBetTooSmall, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: MinBetAmount - 1})
	})

	t.Run("insufficient funds", func(t *testing.T) {
		env.mustFail(t, system.ErrInsufficientFunds, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: 2 * oneSOL})
		_, err := env.state.GetUnit(escrowID, true)
		require.ErrorIs(t, err, state.ErrUnitNotFound)
	})

	t.Run("success", func(t *testing.T) {
		balance := env.lamports(t, env.alice.PublicKey())
		sm := env.mustSucceed(t, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: MinBetAmount})

		betID, _, err := BetAddress(marketID, env.alice.PublicKey(), env.blockTime())
		require.NoError(t, err)
		require.Equal(t, []types.Address{marketID, betID, escrowID, env.alice.PublicKey(), env.collector}, sm.TargetUnits)
		bet, err := getAccount[*Bet](env.state, betID)
		require.NoError(t, err)
		require.Equal(t, &Bet{
			Lamports: system.Rent(BetMaxSize),
			Market:   marketID,
			User:     env.alice.PublicKey(),
			Outcome:  OutcomeYes,
			Amount:   MinBetAmount,
			PlacedAt: env.blockTime(),
			Bump:     bet.Bump,
		}, bet)

		_, market := env.market(t, "m1")
		require.EqualValues(t, MinBetAmount, market.TotalYesPool)
		require.Zero(t, market.TotalNoPool)
		require.EqualValues(t, MinBetAmount, env.lamports(t, escrowID))
		require.Equal(t, balance-fee-system.Rent(BetMaxSize)-MinBetAmount, env.lamports(t, env.alice.PublicKey()))

		env.mustSucceed(t, env.bob, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeNo, Amount: 2 * MinBetAmount})
		_, market = env.market(t, "m1")
		require.EqualValues(t, MinBetAmount, market.TotalYesPool)
		require.EqualValues(t, 2*MinBetAmount, market.TotalNoPool)
		require.EqualValues(t, 3*MinBetAmount, env.lamports(t, escrowID))
	})
}

func TestPlaceBet_EscrowHoldingLamports(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})
	marketID, _ := env.market(t, "m1")
	escrowID, _, err := EscrowAddress(marketID)
	require.NoError(t, err)

	// someone sends lamports to the escrow address before the first bet
	env.prefund(t, env.bob, escrowID, 7)

	env.mustSucceed(t, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: MinBetAmount})
	escrow, err := getAccount[*Escrow](env.state, escrowID)
	require.NoError(t, err)
	require.EqualValues(t, MinBetAmount+7, escrow.Lamports)
	require.Equal(t, marketID, escrow.Market)
}

func TestResolveMarket(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})

	env.mustFail(t, ErrAccountNotInitialized, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m2", WinningOutcome: OutcomeYes})
	env.mustFail(t, ErrUnauthorized, env.alice, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: OutcomeYes})
	env.mustFail(t, ErrInvalidOutcome, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: 2})

	env.mustSucceed(t, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: OutcomeNo})
	_, market := env.market(t, "m1")
	require.Equal(t, StatusResolved, market.Status)
	require.NotNil(t, market.WinningOutcome)
	require.Equal(t, OutcomeNo, *market.WinningOutcome)
	require.NotNil(t, market.ResolvedAt)
	require.Equal(t, env.blockTime(), *market.ResolvedAt)

	// resolved market can't be resolved again nor accept bets
	env.mustFail(t, ErrMarketNotActive, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: OutcomeYes})
	env.mustFail(t, ErrMarketNotActive, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: MinBetAmount})
}

func TestClaimPayout(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})
	marketID, _ := env.market(t, "m1")
	escrowID, _, err := EscrowAddress(marketID)
	require.NoError(t, err)

	env.mustSucceed(t, env.alice, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeYes, Amount: 300_000_000})
	aliceBet, _, err := BetAddress(marketID, env.alice.PublicKey(), env.blockTime())
	require.NoError(t, err)
	env.mustSucceed(t, env.bob, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeNo, Amount: 100_000_000})
	bobBet, _, err := BetAddress(marketID, env.bob.PublicKey(), env.blockTime())
	require.NoError(t, err)

	env.mustFail(t, ErrMarketNotResolved, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: aliceBet})
	env.mustSucceed(t, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: OutcomeYes})

	t.Run("bet not found", func(t *testing.T) {
		env.mustFail(t, ErrAccountNotInitialized, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: test.RandomAddress()})
	})

	t.Run("not a bet account", func(t *testing.T) {
		env.mustFail(t, ErrAccountDiscriminatorMismatch, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: escrowID})
	})

	t.Run("bet of another market", func(t *testing.T) {
		env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m2", Question: "?"})
		env.mustSucceed(t, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m2", WinningOutcome: OutcomeYes})
		env.mustFail(t, ErrConstraintSeeds, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m2", Bet: aliceBet})
	})

	t.Run("not the owner of the bet", func(t *testing.T) {
		env.mustFail(t, ErrUnauthorized, env.bob, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: aliceBet})
	})

	t.Run("losing bet", func(t *testing.T) {
		env.mustFail(t, ErrNotWinner, env.bob, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: bobBet})
	})

	t.Run("success", func(t *testing.T) {
		balance := env.lamports(t, env.alice.PublicKey())
		env.mustSucceed(t, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: aliceBet})

		// payout = 300M * 400M / 300M = 400M, fee = 8M
		require.Equal(t, balance-fee+392_000_000, env.lamports(t, env.alice.PublicKey()))
		require.EqualValues(t, 8_000_000, env.lamports(t, escrowID))
		bet, err := getAccount[*Bet](env.state, aliceBet)
		require.NoError(t, err)
		require.True(t, bet.Claimed)
	})

	t.Run("already claimed", func(t *testing.T) {
		env.mustFail(t, ErrAlreadyClaimed, env.alice, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: aliceBet})
	})
}

func TestClaimPayout_EmptyWinningPool(t *testing.T) {
	env := newTestEnv(t)
	env.mustSucceed(t, env.authority, PayloadTypeInitializeMarket, &InitializeMarketAttributes{MarketID: "m1", Question: "?"})
	env.mustSucceed(t, env.bob, PayloadTypePlaceBet, &PlaceBetAttributes{MarketID: "m1", Outcome: OutcomeNo, Amount: MinBetAmount})
	marketID, _ := env.market(t, "m1")
	bobBet, _, err := BetAddress(marketID, env.bob.PublicKey(), env.blockTime())
	require.NoError(t, err)
	env.mustSucceed(t, env.authority, PayloadTypeResolveMarket, &ResolveMarketAttributes{MarketID: "m1", WinningOutcome: OutcomeYes})

	// nobody bet on the winning outcome, the losing bet can't be claimed
	env.mustFail(t, ErrNotWinner, env.bob, PayloadTypeClaimPayout, &ClaimPayoutAttributes{MarketID: "m1", Bet: bobBet})
}
