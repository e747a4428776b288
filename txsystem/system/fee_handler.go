package system

import (
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

var _ txsystem.FeeHandler = (*FeeHandler)(nil)

// FeeHandler moves transaction fees from the fee payer to the fee collector account.
type FeeHandler struct {
	collector types.Address
}

func NewFeeHandler(collector types.Address) *FeeHandler {
	return &FeeHandler{collector: collector}
}

func (f *FeeHandler) ChargeFee(payer types.Address, fee uint64) (state.Action, []types.Address) {
	return Transfer(payer, f.collector, fee), []types.Address{payer, f.collector}
}

func (f *FeeHandler) Collector() types.Address { return f.collector }
