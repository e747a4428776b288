package market

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/polysight-org/polysight/types"
	"github.com/polysight-org/polysight/util"
)

var (
	seedConfig = []byte("config")
	seedMarket = []byte("market")
	seedEscrow = []byte("escrow")
	seedBet    = []byte("bet")
)

func findAddress(seeds ...[]byte) (types.Address, uint8, error) {
	for _, s := range seeds {
		if len(s) > solana.MaxSeedLength {
			return types.Address{}, 0, ErrMaxSeedLengthExceeded.Wrap("seed %q", s)
		}
	}
	addr, bump, err := solana.FindProgramAddress(seeds, ProgramID)
	if err != nil {
		return types.Address{}, 0, fmt.Errorf("deriving program address: %w", err)
	}
	return addr, bump, nil
}

// ConfigAddress returns the address of the program configuration account.
func ConfigAddress() (types.Address, uint8, error) {
	return findAddress(seedConfig)
}

func MarketAddress(marketID string) (types.Address, uint8, error) {
	return findAddress(seedMarket, []byte(marketID))
}

func EscrowAddress(market types.Address) (types.Address, uint8, error) {
	return findAddress(seedEscrow, market[:])
}

// BetAddress returns the address of the bet "user" placed on "market" at time "placedAt" (unix seconds).
func BetAddress(market, user types.Address, placedAt int64) (types.Address, uint8, error) {
	return findAddress(seedBet, market[:], user[:], util.Int64ToLE(placedAt))
}
