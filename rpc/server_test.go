package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/internal/testutils/observability"
	testtransaction "github.com/polysight-org/polysight/internal/testutils/transaction"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/types"
)

func startServer(t *testing.T, node partitionNode) *httptest.Server {
	t.Helper()
	obs := observability.Default(t)
	conf := &ServerConfiguration{
		APIs: []API{{Namespace: "state", Service: NewStateAPI(node, obs)}},
	}
	srv, err := NewHTTPServer(conf, obs, InfoEndpoints(node, "polysight node", obs.Logger()), NodeEndpoints(node, obs.Logger()))
	require.NoError(t, err)
	require.EqualValues(t, DefaultMaxBodyBytes, conf.MaxBodyBytes)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestJSONRPC(t *testing.T) {
	node := &MockNode{maxBlockNo: 5}
	ts := startServer(t, node)

	client, err := rpc.DialContext(context.Background(), ts.URL+"/rpc")
	require.NoError(t, err)
	t.Cleanup(client.Close)

	t.Run("getRoundNumber", func(t *testing.T) {
		var round uint64
		require.NoError(t, client.CallContext(context.Background(), &round, "state_getRoundNumber"))
		require.EqualValues(t, 5, round)
	})

	t.Run("sendTransaction", func(t *testing.T) {
		tx := testtransaction.NewTransactionOrder(t)
		txBytes, err := types.Cbor.Marshal(tx)
		require.NoError(t, err)

		var sig types.Signature
		require.NoError(t, client.CallContext(context.Background(), &sig, "state_sendTransaction", types.Bytes(txBytes), false))
		require.Equal(t, tx.ID(), sig)
	})

	t.Run("program error", func(t *testing.T) {
		ts := startServer(t, &MockNode{submitErr: fmt.Errorf("transaction simulation failed: %w", market.ErrMarketNotActive)})
		client, err := rpc.DialContext(context.Background(), ts.URL+"/rpc")
		require.NoError(t, err)
		defer client.Close()

		txBytes, err := types.Cbor.Marshal(testtransaction.NewTransactionOrder(t))
		require.NoError(t, err)

		var sig types.Signature
		err = client.CallContext(context.Background(), &sig, "state_sendTransaction", types.Bytes(txBytes), false)
		var rpcErr rpc.Error
		require.ErrorAs(t, err, &rpcErr)
		require.Equal(t, 6000, rpcErr.ErrorCode())
		require.ErrorContains(t, err, "MarketNotActive (6000)")

		var dataErr rpc.DataError
		require.ErrorAs(t, err, &dataErr)
		data, ok := dataErr.ErrorData().(map[string]any)
		require.True(t, ok, "unexpected data type %T", dataErr.ErrorData())
		require.Equal(t, "MarketNotActive", data["name"])
	})

	t.Run("getProgram", func(t *testing.T) {
		var p struct {
			ProgramID    types.Address `json:"programId"`
			Name         string        `json:"name"`
			Instructions []string      `json:"instructions"`
		}
		require.NoError(t, client.CallContext(context.Background(), &p, "state_getProgram", market.ProgramID))
		require.Equal(t, market.ProgramID, p.ProgramID)
		require.Equal(t, market.ProgramName, p.Name)
	})
}

func TestRESTServer_RequestInfo(t *testing.T) {
	node := &MockNode{maxBlockNo: 3}
	ts := startServer(t, node)

	rsp, err := http.Get(ts.URL + "/api/v1/info")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	require.Equal(t, applicationJson, rsp.Header.Get(headerContentType))

	response := &infoResponse{}
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(response))
	require.Equal(t, types.NetworkLocal, response.NetworkID)
	require.Equal(t, "polysight node", response.Name)
	require.EqualValues(t, 3, response.RoundNumber)
	require.EqualValues(t, 5000, response.TxFee)
	require.Len(t, response.Programs, 2)
}

func TestRESTServer_LatestRoundNumber(t *testing.T) {
	ts := startServer(t, &MockNode{maxBlockNo: 42})

	rsp, err := http.Get(ts.URL + "/api/v1/rounds/latest")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusOK, rsp.StatusCode)
	var round uint64
	require.NoError(t, types.Cbor.GetDecoder(rsp.Body).Decode(&round))
	require.EqualValues(t, 42, round)
}

func TestRESTServer_NotFound(t *testing.T) {
	ts := startServer(t, &MockNode{})

	rsp, err := http.Get(ts.URL + "/api/v1/unknown")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestMetricsEndpoints(t *testing.T) {
	obs := observability.Default(t)
	srv, err := NewHTTPServer(&ServerConfiguration{}, obs, MetricsEndpoints(nil))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	// metrics handler was not provided so there must be no endpoint
	rsp, err := http.Get(ts.URL + "/api/v1/metrics")
	require.NoError(t, err)
	defer rsp.Body.Close()
	require.Equal(t, http.StatusNotFound, rsp.StatusCode)
}
