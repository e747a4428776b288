package system

import (
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/types"
)

const (
	// AccountStorageOverhead is added to the size of the account data when calculating rent.
	AccountStorageOverhead = 128
	// LamportsPerByte is the rent exempt price of one byte of account storage.
	LamportsPerByte = 6960
)

// Rent returns the number of lamports which must be deposited into an account
// holding "space" bytes of data.
func Rent(space uint64) uint64 {
	return (space + AccountStorageOverhead) * LamportsPerByte
}

/*
Credit adds "amount" lamports to the account "id". When the account doesn't
exist new system Account is created.
*/
func Credit(id types.Address, amount uint64) state.Action {
	return func(s state.ShardState) error {
		if _, err := s.Get(id); err != nil {
			if !errors.Is(err, state.ErrUnitNotFound) {
				return err
			}
			return state.AddUnit(id, &Account{Lamports: amount})(s)
		}
		return state.UpdateUnitData(id, func(data state.UnitData) (state.UnitData, error) {
			h, ok := data.(LamportHolder)
			if !ok {
				return nil, ErrInvalidAccountData.Wrap("account %s", id)
			}
			v := h.SummaryValueInput()
			if v+amount < v {
				return nil, ErrArithmeticOverflow.Wrap("account %s", id)
			}
			h.SetLamports(v + amount)
			return h, nil
		})(s)
	}
}

// Debit removes "amount" lamports from the account "id".
func Debit(id types.Address, amount uint64) state.Action {
	return state.UpdateUnitData(id, func(data state.UnitData) (state.UnitData, error) {
		h, ok := data.(LamportHolder)
		if !ok {
			return nil, ErrInvalidAccountData.Wrap("account %s", id)
		}
		v := h.SummaryValueInput()
		if v < amount {
			return nil, ErrInsufficientFunds.Wrap("account %s has %d lamports, needs %d", id, v, amount)
		}
		h.SetLamports(v - amount)
		return h, nil
	})
}

// Transfer moves "amount" lamports from account "from" to account "to".
func Transfer(from, to types.Address, amount uint64) state.Action {
	return func(s state.ShardState) error {
		if err := Debit(from, amount)(s); err != nil {
			return err
		}
		return Credit(to, amount)(s)
	}
}

/*
CreateAccount creates new account "id" holding "data". Rent for "space" bytes
is paid by the "payer" and added to the lamports of the data.

When "id" is a system Account (ie lamports were sent to the address before) the
account is taken over: its lamports are kept and the payer pays only the part of
the rent the account is missing. Accounts owned by programs can't be taken over.
*/
func CreateAccount(payer, id types.Address, data LamportHolder, space uint64) state.Action {
	return func(s state.ShardState) error {
		var funded uint64
		u, err := s.Get(id)
		switch {
		case err == nil:
			acc, ok := u.Data().(*Account)
			if !ok {
				return ErrAccountAlreadyInUse.Wrap("address %s", id)
			}
			funded = acc.Lamports
		case !errors.Is(err, state.ErrUnitNotFound):
			return err
		}

		rent := Rent(space)
		if funded < rent {
			if err := Debit(payer, rent-funded)(s); err != nil {
				return fmt.Errorf("paying rent: %w", err)
			}
			funded = rent
		}
		v := data.SummaryValueInput()
		if v+funded < v {
			return ErrArithmeticOverflow.Wrap("account %s", id)
		}
		data.SetLamports(v + funded)
		if u == nil {
			return state.AddUnit(id, data)(s)
		}
		return state.UpdateUnitData(id, func(state.UnitData) (state.UnitData, error) {
			return data, nil
		})(s)
	}
}
