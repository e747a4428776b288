package txbuffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/observability"
	"github.com/polysight-org/polysight/types"
)

var (
	ErrTxIsNil      = errors.New("tx is nil")
	ErrTxInBuffer   = errors.New("tx already in tx buffer")
	ErrTxBufferFull = errors.New("tx buffer is full")
)

type (
	// TxBuffer is an in-memory data structure containing the set of unconfirmed transactions.
	TxBuffer struct {
		mutex          sync.Mutex
		transactions   map[types.Signature]time.Time // index of pending transactions, id->added_ts
		transactionsCh chan *types.TransactionOrder
		log            *slog.Logger
		tracer         trace.Tracer

		mDur metric.Float64Histogram
	}

	Observability interface {
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Tracer(name string, options ...trace.TracerOption) trace.Tracer
		Logger() *slog.Logger
	}
)

/*
New creates a new instance of the TxBuffer.
MaxSize specifies the total number of transactions the TxBuffer may contain.
*/
func New(maxSize uint, obs Observability) (*TxBuffer, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("buffer max size must be greater than zero, got %d", maxSize)
	}

	buf := &TxBuffer{
		transactions:   make(map[types.Signature]time.Time),
		transactionsCh: make(chan *types.TransactionOrder, maxSize),
		log:            obs.Logger(),
		tracer:         obs.Tracer("txBuffer"),
	}
	if err := buf.initMetrics(obs); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	return buf, nil
}

/*
Add adds the given transaction into the transaction buffer and returns the ID of
the transaction. Returns an error if the transaction is nil, is already present
in the TxBuffer, or TxBuffer is full.
*/
func (buf *TxBuffer) Add(ctx context.Context, tx *types.TransactionOrder) (types.Signature, error) {
	ctx, span := buf.tracer.Start(ctx, "TxBuffer.Add")
	defer span.End()
	if tx == nil {
		return types.Signature{}, ErrTxIsNil
	}

	txID := tx.ID()
	buf.log.DebugContext(ctx, fmt.Sprintf("received %s transaction", tx.PayloadType()), logger.TxID(txID), logger.Program(tx.ProgramID()))
	span.SetAttributes(observability.TxID(txID), observability.TxType(tx.PayloadType()))

	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	if _, found := buf.transactions[txID]; found {
		return types.Signature{}, ErrTxInBuffer
	}

	select {
	case buf.transactionsCh <- tx:
		buf.transactions[txID] = time.Now()
	default:
		return types.Signature{}, ErrTxBufferFull
	}

	return txID, nil
}

/*
TryRemove returns the next transaction from the buffer or nil when the buffer is empty.
*/
func (buf *TxBuffer) TryRemove(ctx context.Context) *types.TransactionOrder {
	select {
	case tx := <-buf.transactionsCh:
		buf.removeFromIndex(ctx, tx.ID())
		return tx
	default:
		return nil
	}
}

// Contains returns true when transaction with given ID is waiting in the buffer.
func (buf *TxBuffer) Contains(id types.Signature) bool {
	buf.mutex.Lock()
	defer buf.mutex.Unlock()
	_, ok := buf.transactions[id]
	return ok
}

// Len returns the number of transactions in the buffer.
func (buf *TxBuffer) Len() int {
	return len(buf.transactionsCh)
}

/*
removeFromIndex deletes the transaction with given id from the index.
*/
func (buf *TxBuffer) removeFromIndex(ctx context.Context, id types.Signature) {
	_, span := buf.tracer.Start(ctx, "TxBuffer.removeFromIndex")
	defer span.End()

	buf.mutex.Lock()
	defer buf.mutex.Unlock()

	if added, found := buf.transactions[id]; found {
		bufTime := time.Since(added)
		span.SetAttributes(attribute.String("buffered.duration", bufTime.String()))
		buf.mDur.Record(ctx, bufTime.Seconds())
		delete(buf.transactions, id)
	}
}

func (buf *TxBuffer) initMetrics(obs Observability) (err error) {
	m := obs.Meter("txbuffer")

	if _, err = m.Int64ObservableUpDownCounter(
		"count",
		metric.WithDescription(`Number of transactions in the buffer.`),
		metric.WithUnit("{transaction}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(len(buf.transactionsCh)))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating tx counter: %w", err)
	}

	if buf.mDur, err = m.Float64Histogram(
		"queued",
		metric.WithDescription("For how long transaction was in the buffer before being processed."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(50e-6, 100e-6, 250e-6, 500e-6, 0.001, 0.01, 0.1, 0.2, 0.4, 0.8, 1.5, 3),
	); err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	return nil
}
