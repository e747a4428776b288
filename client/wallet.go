package client

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"

	"github.com/polysight-org/polysight/types"
)

const mnemonicEntropyBits = 128

// Wallet signs transactions, the public key of the wallet pays the transaction fees.
type Wallet interface {
	types.Signer
}

/*
LoadKeygenFile loads private key from file in "solana-keygen" format, ie JSON
array of the 64 bytes of the ed25519 private key.
*/
func LoadKeygenFile(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading keypair from %s: %w", path, err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair file %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(key))
	}
	return key, nil
}

// SaveKeygenFile writes the key into file in "solana-keygen" format, existing file is not overwritten.
func SaveKeygenFile(path string, key solana.PrivateKey) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("keypair file %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking keypair file: %w", err)
	}
	// []byte would be encoded as base64 string
	ints := make([]uint16, len(key))
	for i, b := range key {
		ints[i] = uint16(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return fmt.Errorf("encoding keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating keypair directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// NewMnemonic returns new random 12 word BIP39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

/*
KeyFromMnemonic derives the keypair from the BIP39 mnemonic the same way
"solana-keygen recover" does without derivation path, ie the first 32 bytes
of the BIP39 seed are the ed25519 seed.
*/
func KeyFromMnemonic(mnemonic, passphrase string) (solana.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])), nil
}
