package partition

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	testlogger "github.com/polysight-org/polysight/internal/testutils/logger"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

func TestOwnerIndexer(t *testing.T) {
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	betID := solana.NewWallet().PublicKey()
	escrowID := solana.NewWallet().PublicKey()

	t.Run("units are indexed by owner on load", func(t *testing.T) {
		s := state.NewEmptyState()
		require.NoError(t, s.Apply(
			state.AddUnit(alice, &system.Account{Lamports: 10}),
			state.AddUnit(betID, &market.Bet{Lamports: 1, User: bob}),
			state.AddUnit(escrowID, &market.Escrow{Lamports: 1}),
		))
		commitState(t, s, 1)

		ownerIndexer := NewOwnerIndexer(testlogger.New(t))
		require.NoError(t, ownerIndexer.LoadState(s.Committed()))

		units, err := ownerIndexer.GetOwnerUnits(alice)
		require.NoError(t, err)
		require.Equal(t, []types.Address{alice}, units)

		units, err = ownerIndexer.GetOwnerUnits(bob)
		require.NoError(t, err)
		require.Equal(t, []types.Address{betID}, units)

		// escrow has no owning wallet
		require.Len(t, ownerIndexer.ownerUnits, 2)
		require.NotContains(t, ownerIndexer.unitOwner, escrowID)
	})

	t.Run("unit is moved to the new owner", func(t *testing.T) {
		s := state.NewEmptyState()
		require.NoError(t, s.Apply(state.AddUnit(betID, &market.Bet{Lamports: 1, User: alice})))
		commitState(t, s, 1)

		ownerIndexer := NewOwnerIndexer(testlogger.New(t))
		require.NoError(t, ownerIndexer.LoadState(s.Committed()))

		require.NoError(t, s.Apply(state.UpdateUnitData(betID, func(data state.UnitData) (state.UnitData, error) {
			bet := data.(*market.Bet)
			bet.User = bob
			return bet, nil
		})))
		commitState(t, s, 2)

		require.NoError(t, ownerIndexer.IndexBlock(blockWithTargets(betID), s.Committed()))
		units, err := ownerIndexer.GetOwnerUnits(alice)
		require.NoError(t, err)
		require.Empty(t, units)
		require.NotContains(t, ownerIndexer.ownerUnits, alice)

		units, err = ownerIndexer.GetOwnerUnits(bob)
		require.NoError(t, err)
		require.Equal(t, []types.Address{betID}, units)
	})

	t.Run("deleted unit is removed from index", func(t *testing.T) {
		s := state.NewEmptyState()
		require.NoError(t, s.Apply(
			state.AddUnit(alice, &system.Account{Lamports: 10}),
			state.AddUnit(betID, &market.Bet{Lamports: 1, User: alice}),
		))
		commitState(t, s, 1)

		ownerIndexer := NewOwnerIndexer(testlogger.New(t))
		require.NoError(t, ownerIndexer.LoadState(s.Committed()))
		units, err := ownerIndexer.GetOwnerUnits(alice)
		require.NoError(t, err)
		require.ElementsMatch(t, []types.Address{alice, betID}, units)

		require.NoError(t, s.Apply(state.DeleteUnit(betID)))
		commitState(t, s, 2)

		require.NoError(t, ownerIndexer.IndexBlock(blockWithTargets(betID), s.Committed()))
		units, err = ownerIndexer.GetOwnerUnits(alice)
		require.NoError(t, err)
		require.Equal(t, []types.Address{alice}, units)
	})

	t.Run("new unit is added to index", func(t *testing.T) {
		s := state.NewEmptyState()
		ownerIndexer := NewOwnerIndexer(testlogger.New(t))
		require.NoError(t, ownerIndexer.LoadState(s.Committed()))

		require.NoError(t, s.Apply(state.AddUnit(bob, &system.Account{Lamports: 10})))
		commitState(t, s, 1)
		require.NoError(t, ownerIndexer.IndexBlock(blockWithTargets(bob, bob), s.Committed()))

		units, err := ownerIndexer.GetOwnerUnits(bob)
		require.NoError(t, err)
		require.Equal(t, []types.Address{bob}, units)
	})
}

func blockWithTargets(ids ...types.Address) *types.Block {
	return &types.Block{
		Header: &types.Header{Round: 2},
		Transactions: []*types.TransactionRecord{
			{
				TransactionOrder: &types.TransactionOrder{Payload: &types.Payload{}},
				ServerMetadata:   &types.ServerMetadata{TargetUnits: ids},
			},
		},
	}
}

func commitState(t *testing.T, s *state.State, round uint64) {
	t.Helper()
	summary, root, err := s.CalculateRoot()
	require.NoError(t, err)
	require.NoError(t, s.Commit(round, summary, root))
}
