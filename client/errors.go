package client

import (
	"errors"

	ethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

/*
mapRPCError converts JSON-RPC error which carries program error (the error
code is the program error code and the data contains the name of the error)
back into *txsystem.ProgramError. Other errors are returned as is.
*/
func mapRPCError(err error) error {
	var rpcErr ethrpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	var dataErr ethrpc.DataError
	if !errors.As(err, &dataErr) {
		return err
	}
	data, ok := dataErr.ErrorData().(map[string]any)
	if !ok {
		return err
	}
	name, _ := data["name"].(string)
	msg, _ := data["message"].(string)
	if pe := programError(rpcErr.ErrorCode(), name, msg); pe != nil {
		return pe
	}
	return err
}

// txError converts the error of the failed transaction record into error.
func txError(e *types.TxError) error {
	if e == nil {
		return errors.New("unknown error")
	}
	if pe := programError(int(e.Code), e.Name, e.Message); pe != nil {
		return pe
	}
	return errors.New(e.Message)
}

/*
programError returns ProgramError when "code" and "name" identify an error of a
known program.
*/
func programError(code int, name, msg string) *txsystem.ProgramError {
	if code < 0 || name == "" {
		return nil
	}
	known := market.ErrorByCode(uint32(code))
	if known == nil || known.Name != name {
		if known = system.ErrorByCode(uint32(code)); known == nil || known.Name != name {
			return nil
		}
	}
	if msg == "" {
		msg = known.Msg
	}
	return txsystem.NewProgramError(known.Code, known.Name, msg)
}
