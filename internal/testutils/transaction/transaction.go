package testtransaction

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/types"
)

type (
	Option func(*builder) error

	builder struct {
		tx     *types.TransactionOrder
		signer solana.PrivateKey
	}
)

// emptyAttributes is CBOR encoded empty array
var emptyAttributes = types.RawCBOR{0x80}

/*
NewTransactionOrder returns transaction order signed by random key (unless
WithSigner option is used). By default the transaction is a system program
"transfer" with empty attributes on the local network.
*/
func NewTransactionOrder(t testing.TB, options ...Option) *types.TransactionOrder {
	t.Helper()
	signer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	b := &builder{
		tx: &types.TransactionOrder{
			Payload: &types.Payload{
				NetworkID:  types.NetworkLocal,
				ProgramID:  types.SystemProgramID,
				Type:       "transfer",
				Attributes: emptyAttributes,
				ClientMetadata: &types.ClientMetadata{
					Timeout:           10,
					MaxTransactionFee: 5000,
				},
			},
		},
		signer: signer,
	}
	for _, o := range options {
		require.NoError(t, o(b))
	}
	b.tx.Payload.Signer = b.signer.PublicKey()
	require.NoError(t, b.tx.Sign(b.signer))
	return b.tx
}

func WithNetworkID(id types.NetworkID) Option {
	return func(b *builder) error {
		b.tx.Payload.NetworkID = id
		return nil
	}
}

func WithProgramID(id types.Address) Option {
	return func(b *builder) error {
		b.tx.Payload.ProgramID = id
		return nil
	}
}

func WithPayloadType(t string) Option {
	return func(b *builder) error {
		b.tx.Payload.Type = t
		return nil
	}
}

func WithAttributes(attr any) Option {
	return func(b *builder) error {
		return b.tx.Payload.SetAttributes(attr)
	}
}

func WithTimeout(timeout uint64) Option {
	return func(b *builder) error {
		b.tx.Payload.ClientMetadata.Timeout = timeout
		return nil
	}
}

func WithMaxFee(fee uint64) Option {
	return func(b *builder) error {
		b.tx.Payload.ClientMetadata.MaxTransactionFee = fee
		return nil
	}
}

func WithReferenceNumber(ref []byte) Option {
	return func(b *builder) error {
		b.tx.Payload.ClientMetadata.ReferenceNumber = ref
		return nil
	}
}

// WithSigner sets the key which signs the transaction (and pays the fee).
func WithSigner(key solana.PrivateKey) Option {
	return func(b *builder) error {
		b.signer = key
		return nil
	}
}
