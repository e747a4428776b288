package cmd

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/client"
	test "github.com/polysight-org/polysight/internal/testutils"
	"github.com/polysight-org/polysight/internal/testutils/localnet"
)

// walletFile saves "key" into the temporary keypair file and returns its name.
func walletFile(t *testing.T, key solana.PrivateKey) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, client.SaveKeygenFile(file, key))
	return file
}

func TestAirdropAndBalance(t *testing.T) {
	net := localnet.Start(t)
	homeDir := t.TempDir()
	key := test.NewKey(t)
	wallet := walletFile(t, key)
	flags := fmt.Sprintf(" -u %s -w %s", net.URL, wallet)

	stdout, err := execCommand(t, homeDir, "balance"+flags)
	require.NoError(t, err)
	require.Equal(t, []string{"0 lamports (0 SOL)"}, stdout.lines)

	stdout, err = execCommand(t, homeDir, "airdrop -v 2000000000"+flags)
	require.NoError(t, err)
	verifyStdout(t, stdout, "Signature: ", fmt.Sprintf("Airdropped 2000000000 lamports (2 SOL) to %s", key.PublicKey()))

	stdout, err = execCommand(t, homeDir, "balance -q"+flags)
	require.NoError(t, err)
	require.Equal(t, []string{"2000000000"}, stdout.lines)

	// airdrop to address other than wallet, wallet file is not needed
	other := test.RandomAddress()
	stdout, err = execCommand(t, homeDir, fmt.Sprintf("airdrop -u %s -a %s", net.URL, other))
	require.NoError(t, err)
	verifyStdout(t, stdout, fmt.Sprintf("Airdropped 1000000000 lamports (1 SOL) to %s", other))

	stdout, err = execCommand(t, homeDir, fmt.Sprintf("balance -u %s -a %s", net.URL, other))
	require.NoError(t, err)
	require.Equal(t, []string{"1000000000 lamports (1 SOL)"}, stdout.lines)
}

func TestBalance_Errors(t *testing.T) {
	homeDir := t.TempDir()

	_, err := execCommand(t, homeDir, "balance -a not-an-address")
	require.ErrorContains(t, err, `invalid address "not-an-address"`)

	_, err = execCommand(t, homeDir, "balance -w "+filepath.Join(homeDir, "missing.json"))
	require.Error(t, err)
}

func TestFormatLamports(t *testing.T) {
	require.Equal(t, "0 lamports (0 SOL)", formatLamports(0))
	require.Equal(t, "1 lamports (0.000000001 SOL)", formatLamports(1))
	require.Equal(t, "1500000000 lamports (1.5 SOL)", formatLamports(1_500_000_000))
	require.Equal(t, "10000000 lamports (0.01 SOL)", formatLamports(10_000_000))
}
