package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/client"
	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/internal/testutils/localnet"
	"github.com/polysight-org/polysight/txsystem/market"
)

func newProvider(t *testing.T, net *localnet.Network, wallet client.Wallet) *client.Provider {
	t.Helper()
	conn, err := client.Dial(context.Background(), net.URL)
	require.NoError(t, err)
	opts := client.DefaultProviderOptions()
	opts.ConfirmTimeout = 10 * time.Second
	p := client.NewProvider(conn, wallet, opts)
	t.Cleanup(p.Close)
	return p
}

func TestWorkspace_Program(t *testing.T) {
	user := test.NewKey(t)
	net := localnet.Start(t, user)
	p := newProvider(t, net, user)
	ctx := context.Background()

	t.Run("name variants", func(t *testing.T) {
		for _, name := range []string{"polySightContracts", "poly_sight_contracts", "Poly-Sight-Contracts"} {
			prg, err := client.DefaultWorkspace().Program(ctx, p, name)
			require.NoError(t, err, name)
			require.Equal(t, market.ProgramID, prg.ID())
			require.Equal(t, market.ProgramName, prg.Name())
			require.Same(t, p, prg.Provider())
		}
	})

	t.Run("unknown program", func(t *testing.T) {
		_, err := client.DefaultWorkspace().Program(ctx, p, "tokenSwap")
		require.ErrorIs(t, err, client.ErrUnknownProgram)
	})

	t.Run("not deployed", func(t *testing.T) {
		w := client.NewWorkspace()
		w.Add("other", client.ProgramSpec{ID: test.RandomAddress(), Instructions: []string{"init"}})
		_, err := w.Program(ctx, p, "other")
		require.ErrorIs(t, err, client.ErrProgramNotDeployed)
	})

	t.Run("interface mismatch", func(t *testing.T) {
		w := client.NewWorkspace()
		w.Add(market.ProgramName, client.ProgramSpec{
			ID:           market.ProgramID,
			Instructions: append(market.Instructions(), "close_market"),
		})
		_, err := w.Program(ctx, p, "polySightContracts")
		require.ErrorIs(t, err, client.ErrInterfaceMismatch)
		require.ErrorContains(t, err, `"close_market"`)
	})

	t.Run("unknown instruction", func(t *testing.T) {
		prg, err := client.DefaultWorkspace().Program(ctx, p, "polySightContracts")
		require.NoError(t, err)
		_, err = prg.Method("close_market", nil).Transaction(ctx)
		require.ErrorIs(t, err, client.ErrUnknownInstruction)
	})
}

func TestProvider_Airdrop(t *testing.T) {
	user := test.NewKey(t)
	net := localnet.Start(t)
	p := newProvider(t, net, user)
	ctx := context.Background()
	conn := p.Connection()

	balance, err := conn.GetBalance(ctx, user.PublicKey())
	require.NoError(t, err)
	require.Zero(t, balance)

	sig, err := conn.RequestAirdrop(ctx, user.PublicKey(), 2*localnet.AccountFund)
	require.NoError(t, err)
	status, err := conn.ConfirmTransaction(ctx, sig, 10*time.Second)
	require.NoError(t, err)
	require.True(t, status.Success)

	balance, err = conn.GetBalance(ctx, user.PublicKey())
	require.NoError(t, err)
	require.EqualValues(t, 2*localnet.AccountFund, balance)

	round, err := conn.GetRoundNumber(ctx)
	require.NoError(t, err)
	b, err := conn.GetBlock(ctx, round)
	require.NoError(t, err)
	require.NotNil(t, b)
	require.EqualValues(t, round, b.GetRoundNumber())
}
