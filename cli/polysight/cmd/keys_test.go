package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/client"
)

func TestKeysGenerate(t *testing.T) {
	homeDir := t.TempDir()
	keyFile := filepath.Join(homeDir, "id.json")

	stdout, err := execCommand(t, homeDir, "keys generate --no-passphrase -o "+keyFile)
	require.NoError(t, err)
	require.Len(t, stdout.lines, 4)
	verifyStdout(t, stdout, "Wrote new keypair to "+keyFile, "Save this seed phrase to recover your keypair:")

	key, err := client.LoadKeygenFile(keyFile)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey().String(), lineWithPrefix(t, stdout, "pubkey: "))
	mnemonic := stdout.lines[3]
	require.Len(t, strings.Fields(mnemonic), 12)

	// mnemonic recovers the same key
	recovered, err := client.KeyFromMnemonic(mnemonic, "")
	require.NoError(t, err)
	require.Equal(t, key, recovered)

	// existing file is not overwritten without --force
	_, err = execCommand(t, homeDir, "keys generate --no-passphrase -o "+keyFile)
	require.ErrorContains(t, err, "already exists")
	key2, err := client.LoadKeygenFile(keyFile)
	require.NoError(t, err)
	require.Equal(t, key, key2)

	stdout, err = execCommand(t, homeDir, "keys generate --no-passphrase --force -o "+keyFile)
	require.NoError(t, err)
	key2, err = client.LoadKeygenFile(keyFile)
	require.NoError(t, err)
	require.NotEqual(t, key, key2)
	require.Equal(t, key2.PublicKey().String(), lineWithPrefix(t, stdout, "pubkey: "))
}

func TestKeysRecover(t *testing.T) {
	homeDir := t.TempDir()
	keyFile := filepath.Join(homeDir, "recovered.json")
	mnemonic, err := client.NewMnemonic()
	require.NoError(t, err)
	expected, err := client.KeyFromMnemonic(mnemonic, "secret")
	require.NoError(t, err)

	stdout, err := execCommand(t, homeDir, "keys recover --passphrase secret -o "+keyFile, "--mnemonic", mnemonic)
	require.NoError(t, err)
	verifyStdout(t, stdout, "Wrote recovered keypair to "+keyFile, "pubkey: "+expected.PublicKey().String())

	key, err := client.LoadKeygenFile(keyFile)
	require.NoError(t, err)
	require.Equal(t, expected, key)

	// show prints the public key of the file
	stdout, err = execCommand(t, homeDir, "keys show -o "+keyFile)
	require.NoError(t, err)
	require.Equal(t, []string{expected.PublicKey().String()}, stdout.lines)
}

func TestKeysRecover_Errors(t *testing.T) {
	homeDir := t.TempDir()
	keyFile := filepath.Join(homeDir, "recovered.json")

	_, err := execCommand(t, homeDir, "keys recover --no-passphrase -o "+keyFile)
	require.ErrorContains(t, err, `required flag(s) "mnemonic" not set`)

	_, err = execCommand(t, homeDir, "keys recover --no-passphrase -o "+keyFile, "--mnemonic", "not a valid mnemonic")
	require.Error(t, err)
	require.NoFileExists(t, keyFile)
}

func TestKeysShow_NoFile(t *testing.T) {
	homeDir := t.TempDir()
	_, err := execCommand(t, homeDir, "keys show -o "+filepath.Join(homeDir, "missing.json"))
	require.Error(t, err)
}
