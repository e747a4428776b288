package types

import (
	"crypto"
	"errors"
	"fmt"
)

const (
	// TxStatusFailed is the status code of a transaction that was included
	// into block but whose execution failed. The fee is still charged.
	TxStatusFailed TxStatus = 0
	// TxStatusSuccessful is the status code of a successfully executed transaction.
	TxStatusSuccessful TxStatus = 1
)

var ErrTxRecordIsNil = errors.New("transaction record is nil")

type (
	TxStatus uint64

	// TransactionRecord is a transaction order with "server metadata".
	TransactionRecord struct {
		_                struct{} `cbor:",toarray"`
		TransactionOrder *TransactionOrder
		ServerMetadata   *ServerMetadata
	}

	ServerMetadata struct {
		_                struct{} `cbor:",toarray"`
		ActualFee        uint64
		TargetUnits      []Address
		SuccessIndicator TxStatus
		// ProcessingDetails holds the program error of failed transaction.
		ProcessingDetails *TxError
	}

	// TxError describes why the transaction failed.
	TxError struct {
		_       struct{} `cbor:",toarray"`
		Code    uint32 // program specific error code
		Name    string // empty for errors which are not program errors
		Message string
	}
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusFailed:
		return "failed"
	case TxStatusSuccessful:
		return "successful"
	default:
		return fmt.Sprintf("TxStatus(%d)", uint64(s))
	}
}

func (t *TransactionRecord) Hash(algorithm crypto.Hash) ([]byte, error) {
	if t == nil {
		return nil, ErrTxRecordIsNil
	}
	bytes, err := Cbor.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding transaction record: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(bytes)
	return hasher.Sum(nil), nil
}

func (t *TransactionRecord) GetActualFee() uint64 {
	if t == nil || t.ServerMetadata == nil {
		return 0
	}
	return t.ServerMetadata.ActualFee
}

func (t *TransactionRecord) IsSuccessful() bool {
	return t != nil && t.ServerMetadata != nil && t.ServerMetadata.SuccessIndicator == TxStatusSuccessful
}

func (sm *ServerMetadata) GetTargetUnits() []Address {
	if sm == nil {
		return nil
	}
	return sm.TargetUnits
}

func (e *TxError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}
