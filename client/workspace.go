package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/types"
)

var (
	ErrProgramNotDeployed = errors.New("program is not deployed")
	ErrInterfaceMismatch  = errors.New("program interface mismatch")
	ErrUnknownProgram     = errors.New("unknown program")
	ErrUnknownInstruction = errors.New("unknown instruction")
)

type (
	// ProgramSpec is what the client knows about the program: its address and instructions.
	ProgramSpec struct {
		ID           types.Address
		Instructions []string
	}

	// Workspace maps program names to program specs.
	Workspace struct {
		programs map[string]ProgramSpec
	}

	// Program is a handle of a program deployed on the node.
	Program struct {
		id           types.Address
		name         string
		instructions []string
		provider     *Provider
	}

	// MethodBuilder builds and sends one instruction of the program.
	MethodBuilder struct {
		program *Program
		name    string
		attr    any
	}
)

func NewWorkspace() *Workspace {
	return &Workspace{programs: map[string]ProgramSpec{}}
}

// DefaultWorkspace contains the prediction market program.
func DefaultWorkspace() *Workspace {
	w := NewWorkspace()
	w.Add(market.ProgramName, ProgramSpec{ID: market.ProgramID, Instructions: market.Instructions()})
	return w
}

// Add registers program under the "name", existing program with the same name is replaced.
func (w *Workspace) Add(name string, spec ProgramSpec) {
	w.programs[normalizeName(name)] = spec
}

/*
Program resolves the program "name" and checks that the program is deployed on
the node of the provider and that it exposes all the instructions known to the
workspace. Name is matched ignoring case and separators, ie "polySightContracts"
and "poly_sight_contracts" are the same program.
*/
func (w *Workspace) Program(ctx context.Context, provider *Provider, name string) (*Program, error) {
	spec, ok := w.programs[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, name)
	}
	desc, err := provider.Connection().GetProgram(ctx, spec.ID)
	if err != nil {
		return nil, fmt.Errorf("loading program %s description: %w", name, err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrProgramNotDeployed, name, spec.ID)
	}
	for _, instr := range spec.Instructions {
		if !slices.Contains(desc.Instructions, instr) {
			return nil, fmt.Errorf("%w: program %s doesn't have instruction %q", ErrInterfaceMismatch, name, instr)
		}
	}
	return &Program{
		id:           spec.ID,
		name:         desc.Name,
		instructions: slices.Clone(spec.Instructions),
		provider:     provider,
	}, nil
}

func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', ' ':
			return -1
		}
		return r
	}, strings.ToLower(name))
}

func (p *Program) ID() types.Address { return p.id }

func (p *Program) Name() string { return p.name }

func (p *Program) Provider() *Provider { return p.provider }

// Method returns builder of the instruction "name" with given attributes.
func (p *Program) Method(name string, attr any) *MethodBuilder {
	return &MethodBuilder{program: p, name: name, attr: attr}
}

// Transaction returns the signed transaction of the instruction.
func (b *MethodBuilder) Transaction(ctx context.Context) (*types.TransactionOrder, error) {
	if !slices.Contains(b.program.instructions, b.name) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownInstruction, b.program.name, b.name)
	}
	return b.program.provider.NewTransaction(ctx, b.program.id, b.name, b.attr)
}

/*
RPC signs and submits the instruction and waits until it's included into a
block. Returns the signature of the transaction.
*/
func (b *MethodBuilder) RPC(ctx context.Context) (types.Signature, error) {
	tx, err := b.Transaction(ctx)
	if err != nil {
		return types.Signature{}, err
	}
	sig, err := b.program.provider.SendAndConfirm(ctx, tx)
	if err != nil {
		return sig, fmt.Errorf("%s.%s: %w", b.program.name, b.name, err)
	}
	return sig, nil
}
