package partition

import (
	gocrypto "crypto"
	"errors"
	"fmt"
	"time"

	"github.com/polysight-org/polysight/keyvaluedb"
	"github.com/polysight-org/polysight/keyvaluedb/memorydb"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

const (
	DefaultBlockRate             = 400 * time.Millisecond
	DefaultTxBufferSize     uint = 1000
	DefaultMaxTxPerBlock         = 1000
	DefaultTxTimeoutRounds       = 150
	DefaultRejectedTxRounds      = 300
)

var (
	ErrTxSystemIsNil = errors.New("transaction system is nil")
	ErrSignerIsNil   = errors.New("signer is nil")
)

type (
	configuration struct {
		networkID     types.NetworkID
		hashAlgorithm gocrypto.Hash
		signer        types.Signer // node identity, signs block headers
		blockStore    keyvaluedb.KeyValueDB
		txIndexStore  keyvaluedb.KeyValueDB
		ownerIndexer  *OwnerIndexer
		// blockRate is the time between two blocks
		blockRate     time.Duration
		txBufferSize  uint
		maxTxPerBlock int
		// faucet signs airdrop transfers, airdrops are disabled when nil
		faucet types.Signer
		// rejectedTxRounds is for how many rounds the reason of a dropped tx is kept
		rejectedTxRounds uint64
		genesisTime      int64
		now              func() time.Time
	}

	NodeOption func(c *configuration)
)

func WithBlockStore(blockStore keyvaluedb.KeyValueDB) NodeOption {
	return func(c *configuration) {
		c.blockStore = blockStore
	}
}

// WithTxIndex sets the DB of the transaction index (signature -> block position).
func WithTxIndex(db keyvaluedb.KeyValueDB) NodeOption {
	return func(c *configuration) {
		c.txIndexStore = db
	}
}

func WithOwnerIndex(ownerIndexer *OwnerIndexer) NodeOption {
	return func(c *configuration) {
		c.ownerIndexer = ownerIndexer
	}
}

func WithBlockRate(d time.Duration) NodeOption {
	return func(c *configuration) {
		c.blockRate = d
	}
}

func WithTxBufferSize(size uint) NodeOption {
	return func(c *configuration) {
		c.txBufferSize = size
	}
}

func WithMaxTxPerBlock(count int) NodeOption {
	return func(c *configuration) {
		c.maxTxPerBlock = count
	}
}

/*
WithFaucet enables RequestAirdrop, airdrops are transfers from the account of
the "faucet" key.
*/
func WithFaucet(faucet types.Signer) NodeOption {
	return func(c *configuration) {
		c.faucet = faucet
	}
}

func WithHashAlgorithm(hashAlgorithm gocrypto.Hash) NodeOption {
	return func(c *configuration) {
		c.hashAlgorithm = hashAlgorithm
	}
}

// WithGenesisTime sets the timestamp of the genesis block (unix seconds).
func WithGenesisTime(ts int64) NodeOption {
	return func(c *configuration) {
		c.genesisTime = ts
	}
}

// WithClock sets the source of block timestamps.
func WithClock(now func() time.Time) NodeOption {
	return func(c *configuration) {
		c.now = now
	}
}

func loadAndValidateConfiguration(networkID types.NetworkID, signer types.Signer, txs txsystem.TransactionSystem, nodeOptions ...NodeOption) (*configuration, error) {
	if signer == nil {
		return nil, ErrSignerIsNil
	}
	if txs == nil {
		return nil, ErrTxSystemIsNil
	}
	if networkID == 0 {
		return nil, errors.New("network ID must be assigned")
	}
	c := &configuration{
		networkID:     networkID,
		signer:        signer,
		hashAlgorithm: gocrypto.SHA256,
	}
	for _, option := range nodeOptions {
		option(c)
	}
	if err := c.initMissingDefaults(); err != nil {
		return nil, fmt.Errorf("failed to initiate default parameters: %w", err)
	}
	return c, nil
}

// initMissingDefaults loads missing default configuration.
func (c *configuration) initMissingDefaults() error {
	if c.blockRate <= 0 {
		c.blockRate = DefaultBlockRate
	}
	if c.blockStore == nil {
		c.blockStore = memorydb.New()
	}
	if c.txIndexStore == nil {
		c.txIndexStore = memorydb.New()
	}
	if c.txBufferSize == 0 {
		c.txBufferSize = DefaultTxBufferSize
	}
	if c.maxTxPerBlock <= 0 {
		c.maxTxPerBlock = DefaultMaxTxPerBlock
	}
	if c.rejectedTxRounds == 0 {
		c.rejectedTxRounds = DefaultRejectedTxRounds
	}
	if c.now == nil {
		c.now = time.Now
	}
	if !c.hashAlgorithm.Available() {
		return fmt.Errorf("hash algorithm %v is not available", c.hashAlgorithm)
	}
	return nil
}
