package rpc

import (
	"errors"

	"github.com/polysight-org/polysight/txsystem"
)

/*
ProgramErrorData is the "data" member of the JSON-RPC error returned when the
call failed because of a program error. The "code" member of the JSON-RPC
error is the code of the program error.
*/
type ProgramErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// programRPCError implements rpc.Error and rpc.DataError interfaces of the go-ethereum rpc package.
type programRPCError struct {
	err error
	pe  *txsystem.ProgramError
}

func (e *programRPCError) Error() string { return e.err.Error() }

func (e *programRPCError) Unwrap() error { return e.err }

func (e *programRPCError) ErrorCode() int { return int(e.pe.Code) }

func (e *programRPCError) ErrorData() interface{} {
	return &ProgramErrorData{Name: e.pe.Name, Message: e.pe.Msg}
}

/*
toRPCError returns error which carries the code of the program error found in
the chain of "err". Errors without program error are returned as is.
*/
func toRPCError(err error) error {
	var pe *txsystem.ProgramError
	if errors.As(err, &pe) {
		return &programRPCError{err: err, pe: pe}
	}
	return err
}
