package system

import (
	"fmt"
	"hash"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/types"
)

var _ LamportHolder = (*Account)(nil)

type (
	/*
	LamportHolder is implemented by the data of every account kind so that the
	system program can move lamports in and out of accounts owned by other programs.
	*/
	LamportHolder interface {
		state.UnitData
		SetLamports(v uint64)
	}

	// Account is a plain wallet account owned by the system program.
	Account struct {
		_        struct{} `cbor:",toarray"`
		Lamports uint64   `json:"lamports,string"`
	}
)

func (a *Account) Write(hasher hash.Hash) error {
	res, err := types.Cbor.Marshal(a)
	if err != nil {
		return fmt.Errorf("account serialization error: %w", err)
	}
	_, err = hasher.Write(res)
	return err
}

func (a *Account) SummaryValueInput() uint64 { return a.Lamports }

func (a *Account) Copy() state.UnitData {
	return &Account{Lamports: a.Lamports}
}

func (a *Account) Owner() types.Address { return types.SystemProgramID }

func (a *Account) SetLamports(v uint64) { a.Lamports = v }
