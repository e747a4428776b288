package txsystem

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/observability"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/types"
)

var _ TransactionSystem = (*GenericTxSystem)(nil)

type (
	TransactionSystem interface {
		// StateSummary returns the summary of the committed state, fails when
		// there are uncommitted changes.
		StateSummary() (StateSummary, error)
		BeginBlock(round uint64, timestamp int64) error
		// Execute validates and executes the transaction. Error is returned
		// for transactions which must not be included into the block, failed
		// program execution is reported via the returned server metadata.
		Execute(tx *types.TransactionOrder) (*types.ServerMetadata, error)
		EndBlock() (StateSummary, error)
		// Revert rolls back all changes made since the last commit.
		Revert()
		Commit(header *types.Header) error
		// Simulate executes the transaction against the current state and
		// discards all the changes.
		Simulate(tx *types.TransactionOrder) (*types.ServerMetadata, error)
		State() StateReader
		CurrentRound() uint64
		// TxFee returns the fee charged for every transaction.
		TxFee() uint64
		Programs() []*ProgramDescription
	}

	// StateReader gives read access to the committed state.
	StateReader interface {
		GetUnit(id types.Address) (*state.Unit, error)
		CommittedRound() uint64
		GetUnits(filter func(id types.Address, u *state.Unit) bool) []types.Address
		Traverse(traverser state.Traverser) error
	}

	StateSummary interface {
		Root() []byte
		Summary() uint64
	}

	/*
	FeeHandler is implemented by the system program which holds the lamport
	balances. ChargeFee returns the action which moves "fee" lamports from the
	"payer" to the fee collector and IDs of the units modified by the action.
	*/
	FeeHandler interface {
		ChargeFee(payer types.Address, fee uint64) (state.Action, []types.Address)
	}

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	stateSummary struct {
		rootHash []byte
		summary  uint64
	}
)

func NewStateSummary(rootHash []byte, summary uint64) StateSummary {
	return &stateSummary{rootHash: rootHash, summary: summary}
}

func (s *stateSummary) Root() []byte    { return s.rootHash }
func (s *stateSummary) Summary() uint64 { return s.summary }

type GenericTxSystem struct {
	// mu serializes block production and transaction simulation
	mu                  sync.Mutex
	networkID           types.NetworkID
	hashAlgorithm       crypto.Hash
	state               *state.State
	currentRound        uint64
	currentTimestamp    int64
	txFee               uint64
	executors           TxExecutors
	programs            []*ProgramDescription
	feeHandler          FeeHandler
	beginBlockFunctions []func(round uint64) error
	endBlockFunctions   []func(round uint64) error
	roundCommitted      bool
	log                 *slog.Logger

	execDur metric.Float64Histogram
	txCount metric.Int64Counter
}

func NewGenericTxSystem(networkID types.NetworkID, feeHandler FeeHandler, modules []Module, observe Observability, opts ...Option) (*GenericTxSystem, error) {
	if networkID == 0 {
		return nil, errors.New("network ID must be assigned")
	}
	if feeHandler == nil {
		return nil, errors.New("fee handler is nil")
	}
	options := DefaultOptions()
	for _, option := range opts {
		option(options)
	}
	txs := &GenericTxSystem{
		networkID:           networkID,
		hashAlgorithm:       options.hashAlgorithm,
		state:               options.state,
		currentRound:        options.state.CommittedRound(),
		txFee:               options.txFee,
		beginBlockFunctions: options.beginBlockFunctions,
		endBlockFunctions:   options.endBlockFunctions,
		executors:           make(TxExecutors),
		feeHandler:          feeHandler,
		log:                 observe.Logger(),
	}

	for _, module := range modules {
		if err := txs.executors.Add(module); err != nil {
			return nil, fmt.Errorf("registering tx executors: %w", err)
		}
		txs.programs = append(txs.programs, describe(module))
	}

	if err := txs.initMetrics(observe.Meter("txsystem")); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return txs, nil
}

func (m *GenericTxSystem) StateSummary() (StateSummary, error) {
	if !m.state.IsCommitted() {
		return nil, ErrStateContainsUncommittedChanges
	}
	return m.getStateSummary()
}

func (m *GenericTxSystem) getStateSummary() (StateSummary, error) {
	sv, hash, err := m.state.CalculateRoot()
	if err != nil {
		return nil, err
	}
	if hash == nil {
		return NewStateSummary(make([]byte, m.hashAlgorithm.Size()), sv), nil
	}
	return NewStateSummary(hash, sv), nil
}

func (m *GenericTxSystem) BeginBlock(round uint64, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentRound = round
	m.currentTimestamp = timestamp
	m.roundCommitted = false
	for _, function := range m.beginBlockFunctions {
		if err := function(round); err != nil {
			return fmt.Errorf("begin block function call failed: %w", err)
		}
	}
	return nil
}

func (m *GenericTxSystem) Execute(tx *types.TransactionOrder) (sm *types.ServerMetadata, rErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doExecute(tx)
}

func (m *GenericTxSystem) Simulate(tx *types.TransactionOrder) (*types.ServerMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	savepointID := m.state.Savepoint()
	defer m.state.RollbackToSavepoint(savepointID)
	return m.doExecute(tx)
}

func (m *GenericTxSystem) doExecute(tx *types.TransactionOrder) (sm *types.ServerMetadata, rErr error) {
	start := time.Now()
	var txType string
	if tx != nil {
		txType = tx.PayloadType()
	}
	defer func() {
		attrs := []attribute.KeyValue{observability.TxType(txType), observability.ErrStatus(rErr)}
		if sm != nil {
			attrs = append(attrs, attribute.String("tx.status", sm.SuccessIndicator.String()))
		}
		m.execDur.Record(context.Background(), time.Since(start).Seconds(), metric.WithAttributes(observability.TxType(txType)))
		m.txCount.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}()

	if err := m.validateGenericTransaction(tx); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	executor, err := m.executors.Get(tx.ProgramID(), tx.PayloadType())
	if err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}

	savepointID := m.state.Savepoint()
	defer func() {
		if rErr != nil {
			m.state.RollbackToSavepoint(savepointID)
			return
		}
		m.state.ReleaseToSavepoint(savepointID)
	}()

	chargeFee, feeUnits := m.feeHandler.ChargeFee(tx.Signer(), m.txFee)
	if err := m.state.Apply(chargeFee); err != nil {
		return nil, fmt.Errorf("charging transaction fee: %w", err)
	}

	m.log.Debug(fmt.Sprintf("execute %s", tx.PayloadType()), logger.TxID(tx.ID()), logger.Program(tx.ProgramID()), logger.Round(m.currentRound))
	exeCtx := NewExecutionContext(m.currentRound, m.currentTimestamp)
	exeSavepointID := m.state.Savepoint()
	sm, err = executor(tx, exeCtx)
	if err != nil {
		// failed transaction is still included into the block, only the fee is charged
		m.state.RollbackToSavepoint(exeSavepointID)
		m.log.Debug(fmt.Sprintf("%s failed", tx.PayloadType()), logger.TxID(tx.ID()), logger.Error(err))
		sm = &types.ServerMetadata{SuccessIndicator: types.TxStatusFailed, ProcessingDetails: toTxError(err)}
	} else {
		m.state.ReleaseToSavepoint(exeSavepointID)
		if sm == nil {
			sm = &types.ServerMetadata{}
		}
		sm.SuccessIndicator = types.TxStatusSuccessful
		sm.ProcessingDetails = nil
	}
	sm.ActualFee = m.txFee
	for _, id := range feeUnits {
		if !slices.Contains(sm.TargetUnits, id) {
			sm.TargetUnits = append(sm.TargetUnits, id)
		}
	}

	trx := &types.TransactionRecord{TransactionOrder: tx, ServerMetadata: sm}
	trxHash, err := trx.Hash(m.hashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("hashing transaction record: %w", err)
	}
	for _, targetID := range sm.TargetUnits {
		// add log for each target unit
		if err := m.state.AddUnitLog(targetID, trxHash); err != nil {
			return nil, fmt.Errorf("adding unit log: %w", err)
		}
	}
	return sm, nil
}

/*
validateGenericTransaction does the tx validation common to all programs:
  - the transaction is sent to this network;
  - it has not expired;
  - the signature of the fee payer verifies;
  - the fee does not exceed the max fee set by the client.

Program specific validity conditions must be checked by the tx handler.
*/
func (m *GenericTxSystem) validateGenericTransaction(tx *types.TransactionOrder) error {
	if tx == nil || tx.Payload == nil {
		return types.ErrPayloadIsNil
	}
	if tx.Payload.ClientMetadata == nil {
		return types.ErrClientMetadataIsNil
	}
	if m.networkID != tx.NetworkID() {
		return ErrInvalidNetworkID
	}
	if m.currentRound >= tx.Timeout() {
		return ErrTransactionExpired
	}
	if err := tx.VerifySignature(); err != nil {
		return err
	}
	if m.txFee > tx.MaxFee() {
		return ErrFeeExceedsMax
	}
	return nil
}

// State returns a view of the committed state, the view reflects later commits.
func (m *GenericTxSystem) State() StateReader {
	return m.state.Committed()
}

func (m *GenericTxSystem) CurrentRound() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentRound
}

// TxFee returns the fee charged for every transaction.
func (m *GenericTxSystem) TxFee() uint64 {
	return m.txFee
}

func (m *GenericTxSystem) Programs() []*ProgramDescription {
	return m.programs
}

func (m *GenericTxSystem) EndBlock() (StateSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, function := range m.endBlockFunctions {
		if err := function(m.currentRound); err != nil {
			return nil, fmt.Errorf("end block function call failed: %w", err)
		}
	}
	return m.getStateSummary()
}

func (m *GenericTxSystem) Revert() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.roundCommitted {
		return
	}
	m.state.Revert()
	m.currentRound = m.state.CommittedRound()
}

func (m *GenericTxSystem) Commit(header *types.Header) error {
	if header == nil {
		return errors.New("block header is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rootHash := header.StateHash
	if _, h, err := m.state.CalculateRoot(); err == nil && h == nil && bytes.Equal(rootHash, make([]byte, m.hashAlgorithm.Size())) {
		rootHash = nil
	}
	if err := m.state.Commit(header.Round, header.SummaryValue, rootHash); err != nil {
		return err
	}
	m.roundCommitted = true
	return nil
}

func (m *GenericTxSystem) initMetrics(mtr metric.Meter) error {
	var err error
	if m.execDur, err = mtr.Float64Histogram("exec.tx.time",
		metric.WithDescription("How long it took to execute a transaction"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("creating histogram for tx execution time: %w", err)
	}
	if m.txCount, err = mtr.Int64Counter("tx.count",
		metric.WithDescription("Number of transactions processed"),
		metric.WithUnit("{transaction}")); err != nil {
		return fmt.Errorf("creating tx counter: %w", err)
	}
	if _, err := mtr.Int64ObservableUpDownCounter(
		"unit.count",
		metric.WithDescription(`Number of units in the state.`),
		metric.WithUnit("{unit}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(m.state.Size()))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating state unit counter: %w", err)
	}
	return nil
}
