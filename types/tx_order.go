package types

import (
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
)

var (
	ErrTxIsNil             = errors.New("transaction order is nil")
	ErrPayloadIsNil        = errors.New("transaction payload is nil")
	ErrSignatureMissing    = errors.New("transaction is not signed")
	ErrSignatureInvalid    = errors.New("transaction signature does not verify")
	ErrSignerMismatch      = errors.New("signer key does not match payload signer")
	ErrClientMetadataIsNil = errors.New("client metadata is nil")
)

type (
	TransactionOrder struct {
		_         struct{} `cbor:",toarray"`
		Payload   *Payload
		Signature Signature
	}

	Payload struct {
		_              struct{} `cbor:",toarray"`
		NetworkID      NetworkID
		ProgramID      Address
		Type           string
		Signer         Address // fee payer, must sign the payload
		Attributes     RawCBOR
		ClientMetadata *ClientMetadata
	}

	ClientMetadata struct {
		_                 struct{} `cbor:",toarray"`
		Timeout           uint64 // round number, tx is not valid in this or any later round
		MaxTransactionFee uint64
		ReferenceNumber   []byte // optional, lets otherwise identical orders have distinct signatures
	}
)

// ID returns the transaction identifier, ie the signature of the fee payer.
func (t *TransactionOrder) ID() Signature {
	return t.Signature
}

func (t *TransactionOrder) PayloadBytes() ([]byte, error) {
	if t == nil {
		return nil, ErrTxIsNil
	}
	return t.Payload.Bytes()
}

func (t *TransactionOrder) UnmarshalAttributes(v any) error {
	if t == nil {
		return ErrTxIsNil
	}
	return t.Payload.UnmarshalAttributes(v)
}

func (t *TransactionOrder) NetworkID() NetworkID {
	if t.Payload == nil {
		return 0
	}
	return t.Payload.NetworkID
}

func (t *TransactionOrder) ProgramID() Address {
	if t.Payload == nil {
		return Address{}
	}
	return t.Payload.ProgramID
}

func (t *TransactionOrder) PayloadType() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Type
}

func (t *TransactionOrder) Signer() Address {
	if t.Payload == nil {
		return Address{}
	}
	return t.Payload.Signer
}

func (t *TransactionOrder) Timeout() uint64 {
	if t.Payload == nil || t.Payload.ClientMetadata == nil {
		return 0
	}
	return t.Payload.ClientMetadata.Timeout
}

func (t *TransactionOrder) MaxFee() uint64 {
	if t.Payload == nil || t.Payload.ClientMetadata == nil {
		return 0
	}
	return t.Payload.ClientMetadata.MaxTransactionFee
}

/*
Sign signs the payload with given signer and assigns the result to the
Signature field. The signer's public key must be the payload signer.
*/
func (t *TransactionOrder) Sign(signer Signer) error {
	if t == nil {
		return ErrTxIsNil
	}
	if t.Payload == nil {
		return ErrPayloadIsNil
	}
	if !signer.PublicKey().Equals(t.Payload.Signer) {
		return ErrSignerMismatch
	}
	data, err := t.PayloadBytes()
	if err != nil {
		return fmt.Errorf("reading payload bytes to sign: %w", err)
	}
	if t.Signature, err = signer.Sign(data); err != nil {
		return fmt.Errorf("signing payload: %w", err)
	}
	return nil
}

// VerifySignature checks that the Signature is valid signature of the payload signer.
func (t *TransactionOrder) VerifySignature() error {
	if t == nil {
		return ErrTxIsNil
	}
	if t.Payload == nil {
		return ErrPayloadIsNil
	}
	if t.Signature.IsZero() {
		return ErrSignatureMissing
	}
	data, err := t.PayloadBytes()
	if err != nil {
		return fmt.Errorf("reading signed payload bytes: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(t.Payload.Signer[:]), data, t.Signature[:]) {
		return ErrSignatureInvalid
	}
	return nil
}

func (t *TransactionOrder) Hash(algorithm crypto.Hash) ([]byte, error) {
	bytes, err := Cbor.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding transaction order: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(bytes)
	return hasher.Sum(nil), nil
}

/*
SetAttributes serializes "attr" and assigns the result to payload's Attributes field.
The "attr" is expected to be one of the instruction attribute structs but there is
no validation!
*/
func (p *Payload) SetAttributes(attr any) error {
	bytes, err := Cbor.Marshal(attr)
	if err != nil {
		return fmt.Errorf("marshaling %T as tx attributes: %w", attr, err)
	}
	p.Attributes = bytes
	return nil
}

func (p *Payload) UnmarshalAttributes(v any) error {
	if p == nil {
		return ErrPayloadIsNil
	}
	return Cbor.Unmarshal(p.Attributes, v)
}

func (p *Payload) Bytes() ([]byte, error) {
	if p == nil {
		return nil, ErrPayloadIsNil
	}
	return Cbor.Marshal(p)
}
