package txsystem

// TxExecutionContext carries information about the block the transaction is executed in.
type TxExecutionContext struct {
	round     uint64
	timestamp int64
}

func NewExecutionContext(round uint64, timestamp int64) *TxExecutionContext {
	return &TxExecutionContext{round: round, timestamp: timestamp}
}

func (ec *TxExecutionContext) CurrentRound() uint64 { return ec.round }

// BlockTime returns the unix timestamp (seconds) of the block being produced.
func (ec *TxExecutionContext) BlockTime() int64 { return ec.timestamp }
