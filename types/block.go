package types

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/tree/mt"
)

var (
	ErrBlockIsNil           = errors.New("block is nil")
	errBlockHeaderIsNil     = errors.New("block header is nil")
	errPrevBlockHashIsNil   = errors.New("previous block hash is nil")
	errStateHashIsNil       = errors.New("state hash is nil")
	errBlockProducerMissing = errors.New("block producer is missing")
	errTransactionsIsNil    = errors.New("transactions is nil")
	errNetworkIDIsUnset     = errors.New("network identifier is unassigned")
	errBlockSigInvalid      = errors.New("block signature does not verify")
)

type (
	Block struct {
		_            struct{} `cbor:",toarray"`
		Header       *Header
		Transactions []*TransactionRecord
	}

	Header struct {
		_                 struct{} `cbor:",toarray"`
		NetworkID         NetworkID
		Round             uint64
		Timestamp         int64 // unix seconds, the "clock" seen by programs during the round
		PreviousBlockHash []byte
		StateHash         []byte // root hash of the state after executing the block
		SummaryValue      uint64 // total lamports in the state after executing the block
		TxHash            []byte // root of the merkle tree of transaction record hashes
		Producer          Address
		Signature         Signature
	}
)

func (b *Block) GetRoundNumber() uint64 {
	if b == nil || b.Header == nil {
		return 0
	}
	return b.Header.Round
}

// TxRecordsRoot calculates the merkle root of the block's transaction records.
func (b *Block) TxRecordsRoot(algorithm crypto.Hash) ([]byte, error) {
	leaves := make([]mt.ByteHasher, len(b.Transactions))
	for i, tx := range b.Transactions {
		h, err := tx.Hash(algorithm)
		if err != nil {
			return nil, fmt.Errorf("hashing tx record %d: %w", i, err)
		}
		leaves[i] = h
	}
	return mt.EvalRootHash(algorithm, leaves), nil
}

// Hash returns the hash of the block, ie hash of the signed header.
func (b *Block) Hash(algorithm crypto.Hash) ([]byte, error) {
	if b == nil {
		return nil, ErrBlockIsNil
	}
	if b.Header == nil {
		return nil, errBlockHeaderIsNil
	}
	data, err := Cbor.Marshal(b.Header)
	if err != nil {
		return nil, fmt.Errorf("encoding block header: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(data)
	return hasher.Sum(nil), nil
}

func (b *Block) IsValid(algorithm crypto.Hash) error {
	if b == nil {
		return ErrBlockIsNil
	}
	if err := b.Header.IsValid(); err != nil {
		return fmt.Errorf("block header: %w", err)
	}
	if b.Transactions == nil {
		return errTransactionsIsNil
	}
	txHash, err := b.TxRecordsRoot(algorithm)
	if err != nil {
		return err
	}
	if !bytes.Equal(txHash, b.Header.TxHash) {
		return fmt.Errorf("transaction root hash mismatch, header %X, calculated %X", b.Header.TxHash, txHash)
	}
	return nil
}

func (h *Header) IsValid() error {
	if h == nil {
		return errBlockHeaderIsNil
	}
	if h.NetworkID == 0 {
		return errNetworkIDIsUnset
	}
	if h.PreviousBlockHash == nil {
		return errPrevBlockHashIsNil
	}
	if h.StateHash == nil {
		return errStateHashIsNil
	}
	if h.Producer.IsZero() {
		return errBlockProducerMissing
	}
	return nil
}

// SigBytes returns the header bytes signed by the producer (everything but the signature).
func (h *Header) SigBytes() ([]byte, error) {
	unsigned := *h
	unsigned.Signature = Signature{}
	return Cbor.Marshal(&unsigned)
}

func (h *Header) Sign(signer Signer) error {
	if !signer.PublicKey().Equals(h.Producer) {
		return ErrSignerMismatch
	}
	data, err := h.SigBytes()
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if h.Signature, err = signer.Sign(data); err != nil {
		return fmt.Errorf("signing header: %w", err)
	}
	return nil
}

func (h *Header) Verify() error {
	data, err := h.SigBytes()
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(h.Producer[:]), data, h.Signature[:]) {
		return errBlockSigInvalid
	}
	return nil
}
