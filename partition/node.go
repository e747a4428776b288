package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/polysight-org/polysight/keyvaluedb"
	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/observability"
	"github.com/polysight-org/polysight/txbuffer"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
	"github.com/polysight-org/polysight/util"
)

var (
	ErrTxAlreadyProcessed = errors.New("transaction has been already processed")
	ErrTxRejected         = errors.New("transaction was rejected")
)

type (
	Observability interface {
		Tracer(name string, options ...trace.TracerOption) trace.Tracer
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	/*
	Node is a single leader validator: it orders the submitted transactions into
	blocks, executes them in the transaction system and persists the blocks.
	*/
	Node struct {
		configuration     *configuration
		transactionSystem txsystem.TransactionSystem
		txBuffer          *txbuffer.TxBuffer
		blockStore        keyvaluedb.KeyValueDB
		txIndexer         *TxIndexer
		ownerIndexer      *OwnerIndexer
		// the latest committed block
		lastBlock atomic.Pointer[types.Block]

		// reasons why transactions were dropped while producing a block
		rejectedMu sync.Mutex
		rejected   map[types.Signature]rejectedTx

		log    *slog.Logger
		tracer trace.Tracer

		execTxCnt metric.Int64Counter
		execTxDur metric.Float64Histogram
		blockSize metric.Int64Counter
	}

	rejectedTx struct {
		round uint64
		err   error
	}
)

/*
NewNode creates a new instance of the node. The state of the "txSystem" must
be the uncommitted genesis state, blocks found in the block store are replayed
on top of it.
*/
func NewNode(
	ctx context.Context,
	networkID types.NetworkID,
	signer types.Signer, // used to sign block headers
	txSystem txsystem.TransactionSystem,
	observe Observability,
	nodeOptions ...NodeOption,
) (*Node, error) {
	conf, err := loadAndValidateConfiguration(networkID, signer, txSystem, nodeOptions...)
	if err != nil {
		return nil, fmt.Errorf("invalid node configuration: %w", err)
	}

	tracer := observe.Tracer("partition.node", trace.WithInstrumentationAttributes(observability.NodeID(signer.PublicKey())))
	ctx, span := tracer.Start(ctx, "partition.NewNode")
	defer span.End()

	n := &Node{
		configuration:     conf,
		transactionSystem: txSystem,
		blockStore:        conf.blockStore,
		txIndexer:         NewTxIndexer(conf.txIndexStore, observe.Logger()),
		ownerIndexer:      conf.ownerIndexer,
		rejected:          make(map[types.Signature]rejectedTx),
		log:               observe.Logger(),
		tracer:            tracer,
	}
	if n.txBuffer, err = txbuffer.New(conf.txBufferSize, observe); err != nil {
		return nil, fmt.Errorf("creating tx buffer: %w", err)
	}
	if err := n.initMetrics(observe); err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	if err = n.initState(ctx); err != nil {
		return nil, fmt.Errorf("node state initialization failed: %w", err)
	}
	if n.ownerIndexer != nil {
		if err := n.ownerIndexer.LoadState(txSystem.State()); err != nil {
			return nil, fmt.Errorf("failed to initialize state in owner indexer: %w", err)
		}
	}
	return n, nil
}

func (n *Node) initMetrics(observe Observability) (err error) {
	m := observe.Meter("partition.node")

	_, err = m.Int64ObservableCounter("round", metric.WithDescription("current round"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(n.LatestBlockNumber())) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
			return nil
		}))
	if err != nil {
		return fmt.Errorf("creating counter for round number: %w", err)
	}
	n.blockSize, err = m.Int64Counter("block.size", metric.WithDescription("Number of transactions in the blocks produced by the node"), metric.WithUnit("{transaction}"))
	if err != nil {
		return fmt.Errorf("creating counter for block size: %w", err)
	}
	n.execTxCnt, err = m.Int64Counter("exec.tx.count", metric.WithDescription("Number of transactions processed by the node"), metric.WithUnit("{transaction}"))
	if err != nil {
		return fmt.Errorf("creating counter for processed tx: %w", err)
	}
	n.execTxDur, err = m.Float64Histogram("exec.tx.time",
		metric.WithDescription("How long it took to process transaction (validate and execute)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(200e-6, 400e-6, 800e-6, 0.0016, 0.003, 0.006, 0.015, 0.03))
	if err != nil {
		return fmt.Errorf("creating histogram for processed tx: %w", err)
	}
	return nil
}

// Run produces a block after every block rate period until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	n.log.InfoContext(ctx, fmt.Sprintf("starting block production, block rate %s", n.configuration.blockRate), logger.Round(n.LatestBlockNumber()))
	err := n.loop(ctx)
	n.log.DebugContext(ctx, "node main loop exit", logger.Error(err))
	return err
}

func (n *Node) loop(ctx context.Context) error {
	ticker := time.NewTicker(n.configuration.blockRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.produceBlock(ctx); err != nil {
				n.log.WarnContext(ctx, "producing block", logger.Error(err), logger.Round(n.LatestBlockNumber()+1))
			}
		}
	}
}

func (n *Node) initState(ctx context.Context) (err error) {
	ctx, span := n.tracer.Start(ctx, "node.initState")
	defer span.End()

	summary, err := n.transactionSystem.EndBlock()
	if err != nil {
		return fmt.Errorf("calculating genesis state: %w", err)
	}
	genesisKey := util.Uint64ToBytes(GenesisRound)
	genesis := &types.Block{}
	found, err := n.blockStore.Read(genesisKey, genesis)
	if err != nil {
		return fmt.Errorf("reading genesis block: %w", err)
	}
	if found {
		if err := verifyTxSystemState(summary, genesis.Header); err != nil {
			return fmt.Errorf("genesis block does not match genesis state: %w", err)
		}
	} else {
		genesis, err = NewGenesisBlock(n.configuration.networkID, summary, n.configuration.genesisTime, n.configuration.signer, n.configuration.hashAlgorithm)
		if err != nil {
			return fmt.Errorf("creating genesis block: %w", err)
		}
		if err := n.blockStore.Write(genesisKey, genesis); err != nil {
			return fmt.Errorf("storing genesis block: %w", err)
		}
		n.log.InfoContext(ctx, fmt.Sprintf("genesis block created, state hash %X", genesis.Header.StateHash))
	}
	if err := n.transactionSystem.Commit(genesis.Header); err != nil {
		return fmt.Errorf("committing genesis state: %w", err)
	}
	n.lastBlock.Store(genesis)

	// apply transactions from blocks that build on the genesis state
	dbIt := n.blockStore.Find(util.Uint64ToBytes(GenesisRound + 1))
	defer func() { err = errors.Join(err, dbIt.Close()) }()

	for ; dbIt.Valid(); dbIt.Next() {
		var b types.Block
		roundNo := util.BytesToUint64(dbIt.Key())
		if err = dbIt.Value(&b); err != nil {
			return fmt.Errorf("failed to read block %v from db: %w", roundNo, err)
		}
		if err = n.handleBlock(ctx, &b); err != nil {
			return fmt.Errorf("failed to handle block %v: %w", roundNo, err)
		}
	}

	n.log.InfoContext(ctx, fmt.Sprintf("State initialized from persistent store up to round %d", n.LatestBlockNumber()))
	return nil
}

func verifyTxSystemState(state txsystem.StateSummary, header *types.Header) error {
	if header == nil {
		return errors.New("block header is nil")
	}
	if !bytes.Equal(header.StateHash, state.Root()) {
		return fmt.Errorf("transaction system state does not match block, expected '%X', got '%X'", header.StateHash, state.Root())
	} else if header.SummaryValue != state.Summary() {
		return fmt.Errorf("transaction system summary value %d not equal to block value %d", state.Summary(), header.SummaryValue)
	}
	return nil
}

/*
handleBlock re-executes the transactions of a persisted block and commits the
result when the state matches the one certified by the block header.
*/
func (n *Node) handleBlock(ctx context.Context, b *types.Block) (rErr error) {
	ctx, span := n.tracer.Start(ctx, "node.handleBlock", trace.WithAttributes(observability.Round(b.GetRoundNumber())))
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	if err := n.validateBlock(b); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}
	round := b.Header.Round
	if err := n.transactionSystem.BeginBlock(round, b.Header.Timestamp); err != nil {
		return fmt.Errorf("begin block: %w", err)
	}
	for i, txr := range b.Transactions {
		sm, err := n.validateAndExecuteTx(ctx, txr.TransactionOrder)
		if err != nil {
			n.revertState()
			return fmt.Errorf("executing transaction %d of block %d: %w", i, round, err)
		}
		if sm.SuccessIndicator != txr.ServerMetadata.SuccessIndicator {
			n.revertState()
			return fmt.Errorf("transaction %d of block %d status %s, expected %s", i, round, sm.SuccessIndicator, txr.ServerMetadata.SuccessIndicator)
		}
	}
	summary, err := n.transactionSystem.EndBlock()
	if err != nil {
		n.revertState()
		return fmt.Errorf("end block: %w", err)
	}
	if err := verifyTxSystemState(summary, b.Header); err != nil {
		n.revertState()
		return fmt.Errorf("block %d: %w", round, err)
	}
	return n.finalizeBlock(ctx, b, false)
}

func (n *Node) validateBlock(b *types.Block) error {
	if err := b.IsValid(n.configuration.hashAlgorithm); err != nil {
		return err
	}
	if b.Header.NetworkID != n.configuration.networkID {
		return fmt.Errorf("block is for network %s, expected %s", b.Header.NetworkID, n.configuration.networkID)
	}
	last := n.lastBlock.Load()
	if b.Header.Round != last.GetRoundNumber()+1 {
		return fmt.Errorf("expected block of round %d, got %d", last.GetRoundNumber()+1, b.Header.Round)
	}
	prevHash, err := last.Hash(n.configuration.hashAlgorithm)
	if err != nil {
		return fmt.Errorf("hashing previous block: %w", err)
	}
	if !bytes.Equal(prevHash, b.Header.PreviousBlockHash) {
		return fmt.Errorf("previous block hash mismatch, got %X expected %X", b.Header.PreviousBlockHash, prevHash)
	}
	if b.Header.Producer != n.configuration.signer.PublicKey() {
		return fmt.Errorf("block is produced by %s, expected %s", b.Header.Producer, n.configuration.signer.PublicKey())
	}
	return b.Header.Verify()
}

/*
produceBlock starts a new round, executes transactions from the buffer and
persists the resulting block.
*/
func (n *Node) produceBlock(ctx context.Context) (rErr error) {
	last := n.lastBlock.Load()
	round := last.GetRoundNumber() + 1
	ctx, span := n.tracer.Start(ctx, "node.produceBlock", trace.WithNewRoot(), trace.WithAttributes(observability.Round(round)))
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	timestamp := n.configuration.now().Unix()
	if timestamp < last.Header.Timestamp {
		timestamp = last.Header.Timestamp
	}
	if err := n.transactionSystem.BeginBlock(round, timestamp); err != nil {
		n.revertState()
		return fmt.Errorf("begin block: %w", err)
	}

	txs := []*types.TransactionRecord{}
	inBlock := map[types.Signature]struct{}{}
	for len(txs) < n.configuration.maxTxPerBlock {
		tx := n.txBuffer.TryRemove(ctx)
		if tx == nil {
			break
		}
		if _, ok := inBlock[tx.ID()]; ok || n.isProcessed(tx.ID()) {
			n.rejectTx(tx.ID(), round, ErrTxAlreadyProcessed)
			continue
		}
		sm, err := n.validateAndExecuteTx(ctx, tx)
		if err != nil {
			n.log.DebugContext(ctx, "transaction dropped", logger.TxID(tx.ID()), logger.Error(err), logger.Round(round))
			n.rejectTx(tx.ID(), round, err)
			continue
		}
		inBlock[tx.ID()] = struct{}{}
		txs = append(txs, &types.TransactionRecord{TransactionOrder: tx, ServerMetadata: sm})
	}

	summary, err := n.transactionSystem.EndBlock()
	if err != nil {
		n.revertState()
		return fmt.Errorf("end block: %w", err)
	}
	prevHash, err := last.Hash(n.configuration.hashAlgorithm)
	if err != nil {
		n.revertState()
		return fmt.Errorf("hashing previous block: %w", err)
	}
	b := &types.Block{
		Header: &types.Header{
			NetworkID:         n.configuration.networkID,
			Round:             round,
			Timestamp:         timestamp,
			PreviousBlockHash: prevHash,
			StateHash:         summary.Root(),
			SummaryValue:      summary.Summary(),
			Producer:          n.configuration.signer.PublicKey(),
		},
		Transactions: txs,
	}
	if b.Header.TxHash, err = b.TxRecordsRoot(n.configuration.hashAlgorithm); err != nil {
		n.revertState()
		return fmt.Errorf("calculating tx root: %w", err)
	}
	if err := b.Header.Sign(n.configuration.signer); err != nil {
		n.revertState()
		return fmt.Errorf("signing block: %w", err)
	}
	if err := n.finalizeBlock(ctx, b, true); err != nil {
		return err
	}
	n.blockSize.Add(ctx, int64(len(txs)))
	if len(txs) > 0 {
		n.log.DebugContext(ctx, fmt.Sprintf("block produced with %d transactions", len(txs)), logger.Round(round))
	}
	return nil
}

// finalizeBlock commits the state and adds the block to the blockStore.
func (n *Node) finalizeBlock(ctx context.Context, b *types.Block, persist bool) error {
	blockNumber := b.GetRoundNumber()
	ctx, span := n.tracer.Start(ctx, "Node.finalizeBlock", trace.WithAttributes(attribute.Int64("block.number", int64(blockNumber)))) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
	defer span.End()

	roundNoInBytes := util.Uint64ToBytes(blockNumber)
	if persist {
		// persist the block _before_ committing to tx system
		// if write fails but the round is committed in tx system, there's no way back,
		// but if commit fails, we just remove the block from the store
		if err := n.blockStore.Write(roundNoInBytes, b); err != nil {
			n.revertState()
			return fmt.Errorf("db write failed, %w", err)
		}
	}

	if err := n.transactionSystem.Commit(b.Header); err != nil {
		err = fmt.Errorf("unable to finalize block %d: %w", blockNumber, err)
		if persist {
			if err2 := n.blockStore.Delete(roundNoInBytes); err2 != nil {
				err = errors.Join(err, fmt.Errorf("unable to delete block %d from store: %w", blockNumber, err2))
			}
		}
		n.revertState()
		return err
	}
	n.lastBlock.Store(b)

	if err := n.txIndexer.IndexBlock(ctx, b); err != nil {
		return fmt.Errorf("failed to index block: %w", err)
	}
	if n.ownerIndexer != nil {
		if err := n.ownerIndexer.IndexBlock(b, n.transactionSystem.State()); err != nil {
			return fmt.Errorf("failed to index block: %w", err)
		}
	}
	n.forgetRejected(blockNumber)
	return nil
}

func (n *Node) revertState() {
	n.log.Warn("Reverting state")
	n.transactionSystem.Revert()
}

func statusCodeOfTxError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, txsystem.ErrTransactionExpired):
		return "tx.timeout"
	case errors.Is(err, txsystem.ErrInvalidNetworkID):
		return "invalid.network"
	default:
		return "err"
	}
}

func (n *Node) validateAndExecuteTx(ctx context.Context, tx *types.TransactionOrder) (_ *types.ServerMetadata, rErr error) {
	defer func(start time.Time) {
		txTypeAttr := observability.TxType(tx.PayloadType())
		n.execTxCnt.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(txTypeAttr, attribute.String("status", statusCodeOfTxError(rErr)))))
		n.execTxDur.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(attribute.NewSet(txTypeAttr)))
	}(time.Now())

	sm, err := n.transactionSystem.Execute(tx)
	if err != nil {
		return nil, fmt.Errorf("executing transaction in transaction system: %w", err)
	}
	return sm, nil
}

func (n *Node) isProcessed(sig types.Signature) bool {
	_, err := ReadTransactionIndex(n.txIndexer.GetDB(), sig)
	return err == nil
}

func (n *Node) rejectTx(sig types.Signature, round uint64, err error) {
	n.rejectedMu.Lock()
	defer n.rejectedMu.Unlock()
	n.rejected[sig] = rejectedTx{round: round, err: err}
}

// forgetRejected drops the rejection reasons which are older than the configured number of rounds.
func (n *Node) forgetRejected(round uint64) {
	if round <= n.configuration.rejectedTxRounds {
		return
	}
	n.rejectedMu.Lock()
	defer n.rejectedMu.Unlock()
	for sig, r := range n.rejected {
		if r.round < round-n.configuration.rejectedTxRounds {
			delete(n.rejected, sig)
		}
	}
}

/*
SubmitTx adds the transaction into the buffer of pending transactions.
Unless "skipPreflight" is true the transaction is simulated against the
current state first and rejected when the simulation fails.
*/
func (n *Node) SubmitTx(ctx context.Context, tx *types.TransactionOrder, skipPreflight bool) (_ types.Signature, rErr error) {
	ctx, span := n.tracer.Start(ctx, "node.SubmitTx")
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	if tx == nil {
		return types.Signature{}, types.ErrTxIsNil
	}
	if tx.NetworkID() != n.configuration.networkID {
		return types.Signature{}, txsystem.ErrInvalidNetworkID
	}
	if err := tx.VerifySignature(); err != nil {
		return types.Signature{}, err
	}
	if n.isProcessed(tx.ID()) {
		return types.Signature{}, ErrTxAlreadyProcessed
	}
	if !skipPreflight {
		if err := n.preflight(tx); err != nil {
			return types.Signature{}, err
		}
	}
	return n.txBuffer.Add(ctx, tx)
}

func (n *Node) preflight(tx *types.TransactionOrder) error {
	sm, err := n.transactionSystem.Simulate(tx)
	if err != nil {
		return fmt.Errorf("transaction simulation failed: %w", err)
	}
	if sm.SuccessIndicator != types.TxStatusSuccessful {
		if pe := txsystem.ProgramErrorFromTx(sm.ProcessingDetails); pe != nil {
			return fmt.Errorf("transaction simulation failed: %w", pe)
		}
		return fmt.Errorf("transaction simulation failed: %w", sm.ProcessingDetails)
	}
	return nil
}

// GetBlock returns block of the given round, nil when the node doesn't have it.
func (n *Node) GetBlock(_ context.Context, blockNr uint64) (*types.Block, error) {
	var bl types.Block
	found, err := n.blockStore.Read(util.Uint64ToBytes(blockNr), &bl)
	if err != nil {
		return nil, fmt.Errorf("failed to read block from round %v from db, %w", blockNr, err)
	}
	if !found {
		return nil, nil
	}
	return &bl, nil
}

/*
LatestBlockNumber returns the latest committed round number.
It's part of the public API exposed by node.
*/
func (n *Node) LatestBlockNumber() uint64 {
	return n.lastBlock.Load().GetRoundNumber()
}

// LatestBlock returns the latest committed block.
func (n *Node) LatestBlock() *types.Block {
	return n.lastBlock.Load()
}

/*
GetTransactionRecord returns the record of the transaction and its position in
the ledger. ErrIndexNotFound is returned when the transaction is not in the ledger.
*/
func (n *Node) GetTransactionRecord(ctx context.Context, sig types.Signature) (*types.TransactionRecord, *TxIndex, error) {
	index, err := ReadTransactionIndex(n.txIndexer.GetDB(), sig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to query tx index: %w", err)
	}
	b, err := n.GetBlock(ctx, index.RoundNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to load block: %w", err)
	}
	if b == nil {
		return nil, nil, fmt.Errorf("block %d not found: %w", index.RoundNumber, types.ErrBlockIsNil)
	}
	if index.TxOrderIndex < 0 || index.TxOrderIndex >= len(b.Transactions) {
		return nil, nil, fmt.Errorf("transaction index %d is invalid for block %d", index.TxOrderIndex, index.RoundNumber)
	}
	return b.Transactions[index.TxOrderIndex], index, nil
}

// IsPending returns true when the transaction is waiting in the buffer.
func (n *Node) IsPending(sig types.Signature) bool {
	return n.txBuffer.Contains(sig)
}

/*
RejectionReason returns why the transaction was dropped from the buffer
without being included into a block, nil when the reason is not known.
*/
func (n *Node) RejectionReason(sig types.Signature) error {
	n.rejectedMu.Lock()
	defer n.rejectedMu.Unlock()
	if r, ok := n.rejected[sig]; ok {
		return fmt.Errorf("%w in round %d: %w", ErrTxRejected, r.round, r.err)
	}
	return nil
}

func (n *Node) NetworkID() types.NetworkID {
	return n.configuration.networkID
}

// NodeID returns the public key of the node identity.
func (n *Node) NodeID() types.Address {
	return n.configuration.signer.PublicKey()
}

func (n *Node) Programs() []*txsystem.ProgramDescription {
	return n.transactionSystem.Programs()
}

func (n *Node) TxFee() uint64 {
	return n.transactionSystem.TxFee()
}

func (n *Node) TransactionSystemState() txsystem.StateReader {
	return n.transactionSystem.State()
}

// OwnerIndex returns nil when the owner index is disabled.
func (n *Node) OwnerIndex() IndexReader {
	if n.ownerIndexer == nil {
		return nil
	}
	return n.ownerIndexer
}
