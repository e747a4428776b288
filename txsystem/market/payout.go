package market

import "github.com/holiman/uint256"

/*
CalculatePayout returns the payout of the winning bet of "amount" lamports and
the platform fee included in it:

	payout = amount * totalPool / winningPool
	fee = payout * FeePercent / 100

The winner receives payout - fee, the fee stays in the escrow.
*/
func CalculatePayout(amount, totalPool, winningPool uint64) (payout, fee uint64, err error) {
	if winningPool == 0 {
		return 0, 0, ErrDivisionByZero
	}
	p := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(totalPool))
	p.Div(p, uint256.NewInt(winningPool))
	if !p.IsUint64() {
		return 0, 0, ErrOverflow
	}
	f := new(uint256.Int).Mul(p, uint256.NewInt(FeePercent))
	f.Div(f, uint256.NewInt(100))
	return p.Uint64(), f.Uint64(), nil
}
