package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

const (
	TxStatusPending   = "pending"
	TxStatusProcessed = "processed"
	TxStatusRejected  = "rejected"
	TxStatusUnknown   = "unknown"
)

type (
	partitionNode interface {
		NetworkID() types.NetworkID
		NodeID() types.Address
		LatestBlockNumber() uint64
		SubmitTx(ctx context.Context, tx *types.TransactionOrder, skipPreflight bool) (types.Signature, error)
		GetBlock(ctx context.Context, blockNr uint64) (*types.Block, error)
		GetTransactionRecord(ctx context.Context, sig types.Signature) (*types.TransactionRecord, *partition.TxIndex, error)
		IsPending(sig types.Signature) bool
		RejectionReason(sig types.Signature) error
		RequestAirdrop(ctx context.Context, to types.Address, lamports uint64) (types.Signature, error)
		Programs() []*txsystem.ProgramDescription
		TxFee() uint64
		TransactionSystemState() txsystem.StateReader
	}

	StateAPI struct {
		node       partitionNode
		ownerIndex partition.IndexReader
		log        *slog.Logger

		updMetrics func(ctx context.Context, method string, start time.Time, apiErr error)
		updTxCount func(ctx context.Context, txType string, apiErr error)
	}

	Unit struct {
		UnitID   types.Address `json:"unitId"`
		Owner    types.Address `json:"owner"` // program which owns the unit
		Lamports uint64        `json:"lamports,string"`
		Data     any           `json:"data"`
	}

	TransactionStatus struct {
		Signature types.Signature `json:"signature"`
		Status    string          `json:"status"`
		// round and index of the transaction in the block, set for processed transactions
		RoundNumber  uint64         `json:"roundNumber,omitempty,string"`
		TxOrderIndex int            `json:"txOrderIndex,omitempty"`
		Success      bool           `json:"success"`
		Fee          uint64         `json:"fee,omitempty,string"`
		Err          *types.TxError `json:"err,omitempty"`
		// Reason why the transaction was rejected
		Reason   string      `json:"reason,omitempty"`
		TxRecord types.Bytes `json:"txRecord,omitempty"`
	}
)

func NewStateAPI(node partitionNode, obs Observability, opts ...StateAPIOption) *StateAPI {
	options := defaultStateAPIOptions()
	for _, o := range opts {
		o(options)
	}
	mtr := obs.Meter(metricsScopeJRPCAPI)
	return &StateAPI{
		node:       node,
		ownerIndex: options.ownerIndex,
		log:        obs.Logger(),
		updMetrics: metricsUpdater(mtr, node, obs.Logger()),
		updTxCount: metricsUpdaterTxReceived(mtr, node, obs.Logger()),
	}
}

// GetRoundNumber returns the round number of the latest block committed by the node.
func (s *StateAPI) GetRoundNumber(ctx context.Context) (_ uint64, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getRoundNumber", start, retErr) }(time.Now())
	return s.node.LatestBlockNumber(), nil
}

// GetUnit returns the committed data of the unit, nil when the unit doesn't exist.
func (s *StateAPI) GetUnit(ctx context.Context, unitID types.Address) (_ *Unit, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getUnit", start, retErr) }(time.Now())

	unit, err := s.node.TransactionSystemState().GetUnit(unitID)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, nil
		}
		return nil, err
	}
	data := unit.Data()
	return &Unit{
		UnitID:   unitID,
		Owner:    data.Owner(),
		Lamports: data.SummaryValueInput(),
		Data:     data,
	}, nil
}

// GetUnitsByOwnerID returns list of unit identifiers that belong to the given owner.
func (s *StateAPI) GetUnitsByOwnerID(ctx context.Context, ownerID types.Address) (_ []types.Address, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getUnitsByOwnerID", start, retErr) }(time.Now())

	if s.ownerIndex == nil {
		return nil, errors.New("owner indexer is disabled")
	}
	unitIds, err := s.ownerIndex.GetOwnerUnits(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner units: %w", err)
	}
	return unitIds, nil
}

/*
SendTransaction adds the CBOR encoded transaction to the pending transactions of
the node and returns the signature (ID) of the transaction. Unless "skipPreflight"
is true the transaction is first simulated against the current state, failed
simulation is returned as program error.
*/
func (s *StateAPI) SendTransaction(ctx context.Context, txBytes types.Bytes, skipPreflight bool) (_ types.Signature, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "sendTransaction", start, retErr) }(time.Now())

	tx := &types.TransactionOrder{}
	if err := types.Cbor.Unmarshal(txBytes, tx); err != nil {
		return types.Signature{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	sig, err := s.node.SubmitTx(ctx, tx, skipPreflight)
	s.updTxCount(ctx, tx.PayloadType(), err)
	if err != nil {
		return types.Signature{}, toRPCError(fmt.Errorf("failed to submit transaction: %w", err))
	}
	return sig, nil
}

/*
GetTransactionStatus returns the status of the transaction. Status "unknown" means
that the node hasn't seen the transaction or has forgotten why it was rejected.
*/
func (s *StateAPI) GetTransactionStatus(ctx context.Context, sig types.Signature) (_ *TransactionStatus, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getTransactionStatus", start, retErr) }(time.Now())

	// check the buffer before the index, the tx might get processed in between
	pending := s.node.IsPending(sig)
	txr, idx, err := s.node.GetTransactionRecord(ctx, sig)
	switch {
	case err == nil:
		recBytes, err := types.Cbor.Marshal(txr)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tx record: %w", err)
		}
		return &TransactionStatus{
			Signature:    sig,
			Status:       TxStatusProcessed,
			RoundNumber:  idx.RoundNumber,
			TxOrderIndex: idx.TxOrderIndex,
			Success:      txr.IsSuccessful(),
			Fee:          txr.GetActualFee(),
			Err:          txr.ServerMetadata.ProcessingDetails,
			TxRecord:     recBytes,
		}, nil
	case !errors.Is(err, partition.ErrIndexNotFound):
		return nil, fmt.Errorf("failed to load tx record: %w", err)
	}

	if pending {
		return &TransactionStatus{Signature: sig, Status: TxStatusPending}, nil
	}
	if reason := s.node.RejectionReason(sig); reason != nil {
		return &TransactionStatus{Signature: sig, Status: TxStatusRejected, Reason: reason.Error()}, nil
	}
	return &TransactionStatus{Signature: sig, Status: TxStatusUnknown}, nil
}

// GetBlock returns CBOR encoded block of the given round, nil when the node doesn't have the block.
func (s *StateAPI) GetBlock(ctx context.Context, blockNumber uint64) (_ types.Bytes, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getBlock", start, retErr) }(time.Now())

	block, err := s.node.GetBlock(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	if block == nil {
		return nil, nil
	}
	blockCbor, err := types.Cbor.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("failed to encode block: %w", err)
	}
	return blockCbor, nil
}

// GetProgram returns description of the program deployed on the node, nil when there is no such program.
func (s *StateAPI) GetProgram(ctx context.Context, programID types.Address) (_ *txsystem.ProgramDescription, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "getProgram", start, retErr) }(time.Now())

	for _, p := range s.node.Programs() {
		if p.ProgramID == programID {
			return p, nil
		}
	}
	return nil, nil
}

// RequestAirdrop transfers lamports from the faucet of the node to the given address.
func (s *StateAPI) RequestAirdrop(ctx context.Context, to types.Address, lamports uint64) (_ types.Signature, retErr error) {
	defer func(start time.Time) { s.updMetrics(ctx, "requestAirdrop", start, retErr) }(time.Now())

	sig, err := s.node.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		return types.Signature{}, toRPCError(fmt.Errorf("airdrop failed: %w", err))
	}
	return sig, nil
}
