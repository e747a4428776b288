package system

import "github.com/polysight-org/polysight/txsystem"

var (
	ErrAccountAlreadyInUse = txsystem.NewProgramError(0, "AccountAlreadyInUse", "an account with the same address already exists")
	ErrInsufficientFunds   = txsystem.NewProgramError(1, "InsufficientFunds", "account does not have enough lamports to perform the operation")
	ErrInvalidAccountData  = txsystem.NewProgramError(2, "InvalidAccountData", "account data can not hold lamports")
	ErrArithmeticOverflow  = txsystem.NewProgramError(3, "ArithmeticOverflow", "lamport balance overflow")
	ErrInvalidAccountOwner = txsystem.NewProgramError(4, "InvalidAccountOwner", "account is not owned by the system program")
)

// ErrorByCode returns the error of the system program with given code, nil when there is no such error.
func ErrorByCode(code uint32) *txsystem.ProgramError {
	for _, e := range []*txsystem.ProgramError{ErrAccountAlreadyInUse, ErrInsufficientFunds, ErrInvalidAccountData, ErrArithmeticOverflow, ErrInvalidAccountOwner} {
		if e.Code == code {
			return e
		}
	}
	return nil
}
