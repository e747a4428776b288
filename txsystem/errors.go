package txsystem

import (
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/types"
)

var (
	ErrStateContainsUncommittedChanges = errors.New("state contains uncommitted changes")
	ErrInvalidNetworkID                = errors.New("invalid network identifier")
	ErrTransactionExpired              = errors.New("transaction timeout must be greater than current block number")
	ErrFeeExceedsMax                   = errors.New("transaction fee exceeds max fee set by the client")
	ErrUnknownProgram                  = errors.New("unknown program")
	ErrUnknownTxType                   = errors.New("unknown transaction type")
)

/*
ProgramError is an error returned by a program instruction. Code identifies
the error within the program, Name is the symbolic name of the error.

Two ProgramErrors match (errors.Is) when they have the same code and name,
regardless of the message.
*/
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func NewProgramError(code uint32, name, msg string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Msg: msg}
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code && t.Name == e.Name
}

// Wrap returns error which matches "e" but has additional detail in the message.
func (e *ProgramError) Wrap(format string, args ...any) *ProgramError {
	return &ProgramError{Code: e.Code, Name: e.Name, Msg: e.Msg + ": " + fmt.Sprintf(format, args...)}
}

/*
toTxError converts execution error into the form stored in the transaction record.
Errors which are not ProgramErrors are recorded with zero code and no name.
*/
func toTxError(err error) *types.TxError {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return &types.TxError{Code: pe.Code, Name: pe.Name, Message: pe.Msg}
	}
	return &types.TxError{Message: err.Error()}
}

// ProgramErrorFromTx converts transaction record error back to ProgramError, nil when it has no name.
func ProgramErrorFromTx(e *types.TxError) *ProgramError {
	if e == nil || e.Name == "" {
		return nil
	}
	return &ProgramError{Code: e.Code, Name: e.Name, Msg: e.Message}
}
