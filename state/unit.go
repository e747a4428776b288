package state

import (
	"bytes"
	"crypto"
	"fmt"
	"hash"

	"github.com/polysight-org/polysight/types"
	"github.com/polysight-org/polysight/util"
)

type (
	// UnitData is the content of an account. Every account holds lamports and
	// is owned by a program, only the owner program may change the data.
	UnitData interface {
		// Write writes the serialized data into the hasher.
		Write(hasher hash.Hash) error
		// SummaryValueInput returns the lamports held by the account.
		SummaryValueInput() uint64
		Copy() UnitData
		// Owner returns the ID of the program which owns the account.
		Owner() types.Address
	}

	// Unit is an account in the state.
	Unit struct {
		data UnitData
		// head of the hash chain of transaction records which modified the unit
		ledgerHead []byte
	}
)

func NewUnit(data UnitData) *Unit {
	return &Unit{data: data}
}

func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	return &Unit{
		data:       copyData(u.data),
		ledgerHead: bytes.Clone(u.ledgerHead),
	}
}

// Data returns copy of the unit data.
func (u *Unit) Data() UnitData {
	return copyData(u.data)
}

// LedgerHead returns the hash of the last transaction record which modified the unit,
// chained with all the previous ones.
func (u *Unit) LedgerHead() []byte {
	return bytes.Clone(u.ledgerHead)
}

func (u *Unit) String() string {
	return fmt.Sprintf("%T{lamports=%d}", u.data, u.data.SummaryValueInput())
}

/*
hash returns H(id, lamports, owner, H(data), ledgerHead), the leaf of the state tree.
*/
func (u *Unit) hash(id types.Address, algorithm crypto.Hash) ([]byte, error) {
	hasher := algorithm.New()
	if err := u.data.Write(hasher); err != nil {
		return nil, fmt.Errorf("hashing unit data: %w", err)
	}
	dataHash := hasher.Sum(nil)

	hasher.Reset()
	hasher.Write(id[:])
	hasher.Write(util.Uint64ToBytes(u.data.SummaryValueInput()))
	owner := u.data.Owner()
	hasher.Write(owner[:])
	hasher.Write(dataHash)
	hasher.Write(u.ledgerHead)
	return hasher.Sum(nil), nil
}

// MarshalUnitData encodes unit data the way it is written into the hasher.
func MarshalUnitData(u UnitData) ([]byte, error) {
	return types.Cbor.Marshal(u)
}

func copyData(data UnitData) UnitData {
	if data == nil {
		return nil
	}
	return data.Copy()
}
