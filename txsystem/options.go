package txsystem

import (
	"crypto"

	"github.com/polysight-org/polysight/state"
)

// DefaultTxFee is the fee charged per transaction (one signature) in lamports.
const DefaultTxFee = 5000

type Options struct {
	hashAlgorithm       crypto.Hash
	state               *state.State
	txFee               uint64
	beginBlockFunctions []func(round uint64) error
	endBlockFunctions   []func(round uint64) error
}

type Option func(*Options)

func DefaultOptions() *Options {
	return &Options{
		hashAlgorithm: crypto.SHA256,
		state:         state.NewEmptyState(),
		txFee:         DefaultTxFee,
	}
}

func WithBeginBlockFunctions(funcs ...func(round uint64) error) Option {
	return func(g *Options) {
		g.beginBlockFunctions = append(g.beginBlockFunctions, funcs...)
	}
}

func WithEndBlockFunctions(funcs ...func(round uint64) error) Option {
	return func(g *Options) {
		g.endBlockFunctions = append(g.endBlockFunctions, funcs...)
	}
}

func WithHashAlgorithm(hashAlgorithm crypto.Hash) Option {
	return func(g *Options) {
		g.hashAlgorithm = hashAlgorithm
	}
}

func WithState(s *state.State) Option {
	return func(g *Options) {
		g.state = s
	}
}

// WithTxFee sets the fee charged for every transaction.
func WithTxFee(fee uint64) Option {
	return func(g *Options) {
		g.txFee = fee
	}
}
