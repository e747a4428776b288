package test

import (
	"crypto/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func RandomBytes(len int) []byte {
	bytes := make([]byte, len)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return bytes
}

// RandomAddress returns random public key which has no known private key.
func RandomAddress() solana.PublicKey {
	return solana.PublicKeyFromBytes(RandomBytes(solana.PublicKeyLength))
}

// NewKey generates new ed25519 key pair, failing the test on error.
func NewKey(t testing.TB) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}
