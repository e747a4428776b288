package market

import (
	"github.com/gagliardetto/solana-go"

	"github.com/polysight-org/polysight/types"
)

// ProgramID is the address of the prediction market program.
var ProgramID = solana.MustPublicKeyFromBase58("F3pfENkXG2hhtZgcJZmuwcZsf3c6qDr2FxrBuxxvaZns")

// ProgramName is the name the program is registered under in the workspace.
const ProgramName = "poly_sight_contracts"

const (
	PayloadTypeInitialize       = "initialize"
	PayloadTypeInitializeMarket = "initialize_market"
	PayloadTypePlaceBet         = "place_bet"
	PayloadTypeResolveMarket    = "resolve_market"
	PayloadTypeClaimPayout      = "claim_payout"
)

const (
	OutcomeNo  uint8 = 0
	OutcomeYes uint8 = 1

	// MinBetAmount is 0.01 SOL
	MinBetAmount = 10_000_000
	// FeePercent of the payout is kept in the escrow when claiming.
	FeePercent = 2

	MaxMarketIDLength = 50
	MaxQuestionLength = 200
)

type (
	InitializeAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	InitializeMarketAttributes struct {
		_        struct{} `cbor:",toarray"`
		MarketID string
		Question string
	}

	PlaceBetAttributes struct {
		_        struct{} `cbor:",toarray"`
		MarketID string
		Outcome  uint8
		Amount   uint64
	}

	ResolveMarketAttributes struct {
		_              struct{} `cbor:",toarray"`
		MarketID       string
		WinningOutcome uint8
	}

	ClaimPayoutAttributes struct {
		_        struct{} `cbor:",toarray"`
		MarketID string
		Bet      types.Address
	}
)

// Instructions returns names of all the instructions of the program.
func Instructions() []string {
	return []string{
		PayloadTypeClaimPayout,
		PayloadTypeInitialize,
		PayloadTypeInitializeMarket,
		PayloadTypePlaceBet,
		PayloadTypeResolveMarket,
	}
}
