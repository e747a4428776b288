package rpc

import (
	"github.com/polysight-org/polysight/partition"
)

type (
	StateAPIOptions struct {
		ownerIndex partition.IndexReader
	}

	StateAPIOption func(*StateAPIOptions)
)

// WithOwnerIndex enables the "getUnitsByOwnerID" method.
func WithOwnerIndex(ownerIndex partition.IndexReader) StateAPIOption {
	return func(c *StateAPIOptions) {
		c.ownerIndex = ownerIndex
	}
}

func defaultStateAPIOptions() *StateAPIOptions {
	return &StateAPIOptions{
		ownerIndex: nil,
	}
}
