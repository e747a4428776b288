package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/txsystem/market"
	"github.com/polysight-org/polysight/types"
)

type (
	MockNode struct {
		nodeID       types.Address
		maxBlockNo   uint64
		transactions []*types.TransactionOrder
		blocks       map[uint64]*types.Block
		records      map[types.Signature]*types.TransactionRecord
		pending      map[types.Signature]bool
		rejected     map[types.Signature]error
		airdrops     map[types.Address]uint64
		state        *state.State
		err          error
		submitErr    error
	}

	MockOwnerIndex struct {
		err        error
		ownerUnits map[types.Address][]types.Address
	}
)

func (mn *MockNode) NetworkID() types.NetworkID {
	return types.NetworkLocal
}

func (mn *MockNode) NodeID() types.Address {
	return mn.nodeID
}

func (mn *MockNode) LatestBlockNumber() uint64 {
	return mn.maxBlockNo
}

func (mn *MockNode) SubmitTx(_ context.Context, tx *types.TransactionOrder, _ bool) (types.Signature, error) {
	if mn.submitErr != nil {
		return types.Signature{}, mn.submitErr
	}
	if tx == nil {
		return types.Signature{}, types.ErrTxIsNil
	}
	mn.transactions = append(mn.transactions, tx)
	return tx.ID(), nil
}

func (mn *MockNode) GetBlock(_ context.Context, blockNumber uint64) (*types.Block, error) {
	if mn.err != nil {
		return nil, mn.err
	}
	return mn.blocks[blockNumber], nil
}

func (mn *MockNode) GetTransactionRecord(_ context.Context, sig types.Signature) (*types.TransactionRecord, *partition.TxIndex, error) {
	if mn.err != nil {
		return nil, nil, mn.err
	}
	txr, ok := mn.records[sig]
	if !ok {
		return nil, nil, fmt.Errorf("unable to query tx index: %w", partition.ErrIndexNotFound)
	}
	return txr, &partition.TxIndex{RoundNumber: mn.maxBlockNo, TxOrderIndex: 0}, nil
}

func (mn *MockNode) IsPending(sig types.Signature) bool {
	return mn.pending[sig]
}

func (mn *MockNode) RejectionReason(sig types.Signature) error {
	return mn.rejected[sig]
}

func (mn *MockNode) RequestAirdrop(_ context.Context, to types.Address, lamports uint64) (types.Signature, error) {
	if mn.err != nil {
		return types.Signature{}, mn.err
	}
	if mn.airdrops == nil {
		mn.airdrops = map[types.Address]uint64{}
	}
	mn.airdrops[to] += lamports
	var sig types.Signature
	copy(sig[:], to[:])
	return sig, nil
}

func (mn *MockNode) Programs() []*txsystem.ProgramDescription {
	return []*txsystem.ProgramDescription{
		{ProgramID: types.SystemProgramID, Name: "system", Instructions: []string{"transfer"}},
		{ProgramID: market.ProgramID, Name: market.ProgramName, Instructions: market.Instructions()},
	}
}

func (mn *MockNode) TxFee() uint64 {
	return 5000
}

func (mn *MockNode) TransactionSystemState() txsystem.StateReader {
	if mn.state == nil {
		return state.NewEmptyState().Committed()
	}
	return mn.state.Committed()
}

func (m *MockOwnerIndex) GetOwnerUnits(ownerID types.Address) ([]types.Address, error) {
	if m.err != nil {
		return nil, m.err
	}
	units, ok := m.ownerUnits[ownerID]
	if !ok {
		return nil, errors.New("owner not found")
	}
	return units, nil
}
