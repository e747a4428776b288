package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type (
	// NetworkID identifies the cluster the transaction is meant for.
	NetworkID uint32

	// Address is the identifier of a unit (account) in the state. Program IDs and
	// wallet public keys share the same address space.
	Address = solana.PublicKey

	// Signature is an ed25519 signature. The signature of the fee payer over
	// the transaction payload doubles as the transaction identifier.
	Signature = solana.Signature

	// Signer signs transaction payloads, typically a solana.PrivateKey.
	Signer interface {
		Sign(payload []byte) (solana.Signature, error)
		PublicKey() solana.PublicKey
	}
)

const (
	NetworkLocal   NetworkID = 1
	NetworkTestnet NetworkID = 2
)

// SystemProgramID is the ID of the built-in program which manages lamport balances.
var SystemProgramID = solana.SystemProgramID

func (id NetworkID) String() string {
	return fmt.Sprintf("%08X", uint32(id))
}

// AddressFromString parses base58 encoded address.
func AddressFromString(s string) (Address, error) {
	return solana.PublicKeyFromBase58(s)
}

// SignatureFromString parses base58 encoded signature.
func SignatureFromString(s string) (Signature, error) {
	return solana.SignatureFromBase58(s)
}
