package partition

import (
	gocrypto "crypto"
	"testing"

	"github.com/stretchr/testify/require"

	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

func TestNewGenesisBlock(t *testing.T) {
	signer := test.NewKey(t)
	summary := txsystem.NewStateSummary(test.RandomBytes(32), 1000)

	t.Run("summary is nil", func(t *testing.T) {
		b, err := NewGenesisBlock(types.NetworkLocal, nil, 0, signer, gocrypto.SHA256)
		require.ErrorIs(t, err, ErrStateIsNil)
		require.Nil(t, b)
	})

	t.Run("signer is nil", func(t *testing.T) {
		b, err := NewGenesisBlock(types.NetworkLocal, summary, 0, nil, gocrypto.SHA256)
		require.ErrorIs(t, err, ErrSignerIsNil)
		require.Nil(t, b)
	})

	t.Run("success", func(t *testing.T) {
		b, err := NewGenesisBlock(types.NetworkLocal, summary, 1700000000, signer, gocrypto.SHA256)
		require.NoError(t, err)
		require.NoError(t, b.IsValid(gocrypto.SHA256))
		require.NoError(t, b.Header.Verify())
		require.Equal(t, GenesisRound, b.GetRoundNumber())
		require.Equal(t, summary.Root(), b.Header.StateHash)
		require.EqualValues(t, 1000, b.Header.SummaryValue)
		require.Equal(t, make([]byte, 32), b.Header.PreviousBlockHash)
		require.Equal(t, signer.PublicKey(), b.Header.Producer)

		// genesis of the same state is deterministic
		b2, err := NewGenesisBlock(types.NetworkLocal, summary, 1700000000, signer, gocrypto.SHA256)
		require.NoError(t, err)
		require.Equal(t, b, b2)
	})
}
