package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

type rpcError struct {
	code int
	msg  string
	data any
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }
func (e *rpcError) ErrorData() any { return e.data }

func TestMapRPCError(t *testing.T) {
	t.Run("program error", func(t *testing.T) {
		err := mapRPCError(&rpcError{code: 6004, msg: "failed", data: map[string]any{"name": "BetTooSmall", "message": "too small"}})
		require.ErrorIs(t, err, market.ErrBetTooSmall)
		require.ErrorContains(t, err, "too small")
	})

	t.Run("default message", func(t *testing.T) {
		err := mapRPCError(&rpcError{code: 6005, msg: "failed", data: map[string]any{"name": "Unauthorized"}})
		require.ErrorIs(t, err, market.ErrUnauthorized)
		require.ErrorContains(t, err, market.ErrUnauthorized.Msg)
	})

	t.Run("system error", func(t *testing.T) {
		known := system.ErrorByCode(1)
		require.NotNil(t, known)
		err := mapRPCError(&rpcError{code: 1, msg: "failed", data: map[string]any{"name": known.Name}})
		require.ErrorIs(t, err, known)
	})

	t.Run("name mismatch", func(t *testing.T) {
		orig := &rpcError{code: 6004, msg: "failed", data: map[string]any{"name": "SomethingElse"}}
		require.Equal(t, error(orig), mapRPCError(orig))
	})

	t.Run("no data", func(t *testing.T) {
		orig := &rpcError{code: -32000, msg: "failed"}
		require.Equal(t, error(orig), mapRPCError(orig))
	})

	t.Run("not an RPC error", func(t *testing.T) {
		orig := errors.New("connection refused")
		require.Equal(t, orig, mapRPCError(orig))
	})
}

func TestTxError(t *testing.T) {
	require.EqualError(t, txError(nil), "unknown error")

	err := txError(&types.TxError{Code: market.ErrNotWinner.Code, Name: market.ErrNotWinner.Name, Message: "not a winner"})
	require.ErrorIs(t, err, market.ErrNotWinner)

	err = txError(&types.TxError{Message: "out of gas"})
	require.EqualError(t, err, "out of gas")
}
