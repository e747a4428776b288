package localnet

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/internal/testutils/observability"
	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/rpc"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

const (
	FaucetFund  = 1000 * solana.LAMPORTS_PER_SOL
	AccountFund = 10 * solana.LAMPORTS_PER_SOL

	blockRate = 20 * time.Millisecond
)

// Network is a single node network with the market program, serving JSON-RPC over HTTP.
type Network struct {
	Node   *partition.Node
	Faucet solana.PrivateKey
	// URL of the JSON-RPC endpoint
	URL string
	// BaseURL of the HTTP server, REST API is served under /api/v1
	BaseURL string
}

/*
Start starts the network, every key in "accounts" is funded with AccountFund
lamports in the genesis. The network is stopped when the test ends.
*/
func Start(t *testing.T, accounts ...solana.PrivateKey) *Network {
	t.Helper()
	faucet := test.NewKey(t)
	funds := map[types.Address]uint64{faucet.PublicKey(): FaucetFund}
	for _, k := range accounts {
		funds[k.PublicKey()] = AccountFund
	}
	s, err := system.NewGenesisState(funds)
	require.NoError(t, err)
	m, err := market.NewModule(s)
	require.NoError(t, err)

	obs := observability.Default(t)
	txs, err := system.NewTxSystem(types.NetworkLocal, faucet.PublicKey(), s, []txsystem.Module{m}, obs)
	require.NoError(t, err)
	node, err := partition.NewNode(context.Background(), types.NetworkLocal, faucet, txs, obs,
		partition.WithFaucet(faucet),
		partition.WithOwnerIndex(partition.NewOwnerIndexer(obs.Logger())),
		partition.WithBlockRate(blockRate),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- node.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("node stopped with error: %v", err)
		}
	})

	conf := &rpc.ServerConfiguration{
		APIs: []rpc.API{{
			Namespace: "state",
			Service:   rpc.NewStateAPI(node, obs, rpc.WithOwnerIndex(node.OwnerIndex())),
		}},
	}
	srv, err := rpc.NewHTTPServer(conf, obs, rpc.InfoEndpoints(node, "localnet", obs.Logger()), rpc.NodeEndpoints(node, obs.Logger()))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &Network{
		Node:    node,
		Faucet:  faucet,
		URL:     ts.URL + "/rpc",
		BaseURL: ts.URL,
	}
}
