package txsystem

import (
	"fmt"
	"slices"

	"github.com/polysight-org/polysight/types"
)

type (
	// Module is a program hosted by the tx system.
	Module interface {
		ProgramID() types.Address
		// Name is the human readable name of the program, ie "system".
		Name() string
		// TxExecutors returns instruction handlers of the program keyed by instruction name.
		TxExecutors() map[string]ExecuteFunc
	}

	ExecuteFunc func(tx *types.TransactionOrder, exeCtx *TxExecutionContext) (*types.ServerMetadata, error)

	GenericExecuteFunc[T any] func(tx *types.TransactionOrder, attributes *T, exeCtx *TxExecutionContext) (*types.ServerMetadata, error)

	// ProgramDescription describes a deployed program, ie the instructions it accepts.
	ProgramDescription struct {
		_            struct{} `cbor:",toarray"`
		ProgramID    types.Address `json:"programId"`
		Name         string        `json:"name"`
		Instructions []string      `json:"instructions"`
	}

	TxExecutors map[executorKey]ExecuteFunc

	executorKey struct {
		program types.Address
		txType  string
	}
)

func (g GenericExecuteFunc[T]) ExecuteFunc() ExecuteFunc {
	return func(tx *types.TransactionOrder, exeCtx *TxExecutionContext) (*types.ServerMetadata, error) {
		attr := new(T)
		if err := tx.UnmarshalAttributes(attr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s attributes: %w", tx.PayloadType(), err)
		}
		return g(tx, attr, exeCtx)
	}
}

func (e TxExecutors) Get(program types.Address, txType string) (ExecuteFunc, error) {
	if executor, ok := e[executorKey{program, txType}]; ok {
		return executor, nil
	}
	for k := range e {
		if k.program == program {
			return nil, fmt.Errorf("%w %q for program %s", ErrUnknownTxType, txType, program)
		}
	}
	return nil, fmt.Errorf("%w %s", ErrUnknownProgram, program)
}

func (e TxExecutors) Add(m Module) error {
	program := m.ProgramID()
	for name, handler := range m.TxExecutors() {
		if name == "" {
			return fmt.Errorf("tx executor must have non-empty tx type name")
		}
		if handler == nil {
			return fmt.Errorf("tx executor must not be nil (%s)", name)
		}
		key := executorKey{program, name}
		if _, ok := e[key]; ok {
			return fmt.Errorf("tx executor for %q of program %s is already registered", name, program)
		}
		e[key] = handler
	}
	return nil
}

func describe(m Module) *ProgramDescription {
	d := &ProgramDescription{ProgramID: m.ProgramID(), Name: m.Name()}
	for name := range m.TxExecutors() {
		d.Instructions = append(d.Instructions, name)
	}
	slices.Sort(d.Instructions)
	return d
}
