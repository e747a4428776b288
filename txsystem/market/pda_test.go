package market

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/util"
)

func TestProgramAddresses(t *testing.T) {
	config, bump, err := ConfigAddress()
	require.NoError(t, err)
	exp, expBump, err := solana.FindProgramAddress([][]byte{[]byte("config")}, ProgramID)
	require.NoError(t, err)
	require.Equal(t, exp, config)
	require.Equal(t, expBump, bump)

	market, _, err := MarketAddress("btc-100k")
	require.NoError(t, err)
	exp, _, err = solana.FindProgramAddress([][]byte{[]byte("market"), []byte("btc-100k")}, ProgramID)
	require.NoError(t, err)
	require.Equal(t, exp, market)

	other, _, err := MarketAddress("btc-200k")
	require.NoError(t, err)
	require.NotEqual(t, market, other)

	escrow, _, err := EscrowAddress(market)
	require.NoError(t, err)
	exp, _, err = solana.FindProgramAddress([][]byte{[]byte("escrow"), market[:]}, ProgramID)
	require.NoError(t, err)
	require.Equal(t, exp, escrow)

	user := test.RandomAddress()
	bet, _, err := BetAddress(market, user, 1700000000)
	require.NoError(t, err)
	exp, _, err = solana.FindProgramAddress([][]byte{[]byte("bet"), market[:], user[:], util.Int64ToLE(1700000000)}, ProgramID)
	require.NoError(t, err)
	require.Equal(t, exp, bet)

	bet2, _, err := BetAddress(market, user, 1700000001)
	require.NoError(t, err)
	require.NotEqual(t, bet, bet2)
}

func TestMarketAddress_SeedTooLong(t *testing.T) {
	_, _, err := MarketAddress(strings.Repeat("x", 32))
	require.NoError(t, err)

	_, _, err = MarketAddress(strings.Repeat("x", 33))
	require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
}

func TestErrorByCode(t *testing.T) {
	require.Equal(t, ErrMarketNotActive, ErrorByCode(6000))
	require.Equal(t, ErrQuestionTooLong, ErrorByCode(6011))
	require.Equal(t, ErrAlreadyInitialized, ErrorByCode(6012))
	require.Nil(t, ErrorByCode(1))
}
