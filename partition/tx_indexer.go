package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/polysight-org/polysight/keyvaluedb"
	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/types"
)

var (
	ErrIndexNotFound     = errors.New("index not found")
	keyLatestRoundNumber = []byte("latestRoundNumber")
)

type (
	// TxIndex is the position of the transaction in the ledger.
	TxIndex struct {
		_            struct{} `cbor:",toarray"`
		RoundNumber  uint64
		TxOrderIndex int
	}

	// TxIndexer maintains transaction signature -> block position index.
	TxIndexer struct {
		storage keyvaluedb.KeyValueDB
		log     *slog.Logger
	}
)

func NewTxIndexer(db keyvaluedb.KeyValueDB, l *slog.Logger) *TxIndexer {
	return &TxIndexer{storage: db, log: l}
}

func (p *TxIndexer) GetDB() keyvaluedb.KeyValueDB {
	return p.storage
}

/*
IndexBlock writes index entries of all the transactions in the block. Blocks
which have been already indexed (ie during replay on startup) are ignored.
*/
func (p *TxIndexer) IndexBlock(ctx context.Context, block *types.Block) (err error) {
	roundNumber := block.GetRoundNumber()
	if roundNumber <= p.latestIndexedBlockNumber() {
		p.log.Log(ctx, logger.LevelTrace, fmt.Sprintf("block %d already indexed", roundNumber))
		return nil
	}
	dbTx, err := p.storage.StartTx()
	if err != nil {
		return fmt.Errorf("start DB transaction failed: %w", err)
	}
	defer func() {
		if err != nil {
			if e := dbTx.Rollback(); e != nil {
				err = errors.Join(err, fmt.Errorf("index transaction rollback failed: %w", e))
			}
			return
		}
		err = dbTx.Commit()
	}()

	for i, txr := range block.Transactions {
		sig := txr.TransactionOrder.ID()
		if err = dbTx.Write(sig[:], &TxIndex{RoundNumber: roundNumber, TxOrderIndex: i}); err != nil {
			return fmt.Errorf("writing tx index: %w", err)
		}
	}
	if err = dbTx.Write(keyLatestRoundNumber, roundNumber); err != nil {
		return fmt.Errorf("round number update failed: %w", err)
	}
	return nil
}

func (p *TxIndexer) latestIndexedBlockNumber() uint64 {
	var blockNr uint64
	if found, err := p.storage.Read(keyLatestRoundNumber, &blockNr); !found || err != nil {
		return 0
	}
	return blockNr
}

func ReadTransactionIndex(db keyvaluedb.KeyValueDB, sig types.Signature) (*TxIndex, error) {
	index := &TxIndex{}
	f, err := db.Read(sig[:], index)
	if err != nil {
		return nil, fmt.Errorf("tx index query failed: %w", err)
	}
	if !f {
		return nil, ErrIndexNotFound
	}
	return index, nil
}
