package market

import "github.com/polysight-org/polysight/txsystem"

type ProgramError = txsystem.ProgramError

// program errors, codes follow the declaration order starting from 6000
var (
	ErrMarketNotActive    = txsystem.NewProgramError(6000, "MarketNotActive", "Market is not active")
	ErrMarketNotResolved  = txsystem.NewProgramError(6001, "MarketNotResolved", "Market is not resolved yet")
	ErrInvalidOutcome     = txsystem.NewProgramError(6002, "InvalidOutcome", "Invalid outcome (must be 0 or 1)")
	ErrInvalidAmount      = txsystem.NewProgramError(6003, "InvalidAmount", "Invalid amount")
	ErrBetTooSmall        = txsystem.NewProgramError(6004, "BetTooSmall", "Bet amount too small (minimum 0.01 SOL)")
	ErrUnauthorized       = txsystem.NewProgramError(6005, "Unauthorized", "Unauthorized")
	ErrAlreadyClaimed     = txsystem.NewProgramError(6006, "AlreadyClaimed", "Payout already claimed")
	ErrNotWinner          = txsystem.NewProgramError(6007, "NotWinner", "Not a winner")
	ErrOverflow           = txsystem.NewProgramError(6008, "Overflow", "Arithmetic overflow")
	ErrDivisionByZero     = txsystem.NewProgramError(6009, "DivisionByZero", "Division by zero")
	ErrMarketIdTooLong    = txsystem.NewProgramError(6010, "MarketIdTooLong", "Market ID too long (max 50 characters)")
	ErrQuestionTooLong    = txsystem.NewProgramError(6011, "QuestionTooLong", "Question too long (max 200 characters)")
	ErrAlreadyInitialized = txsystem.NewProgramError(6012, "AlreadyInitialized", "Program is already initialized")
)

// account constraint errors
var (
	ErrConstraintSeeds              = txsystem.NewProgramError(2006, "ConstraintSeeds", "A seeds constraint was violated")
	ErrAccountDiscriminatorMismatch = txsystem.NewProgramError(3002, "AccountDiscriminatorMismatch", "Account discriminator did not match what was expected")
	ErrAccountNotInitialized        = txsystem.NewProgramError(3012, "AccountNotInitialized", "The program expected this account to be already initialized")
	ErrMaxSeedLengthExceeded        = txsystem.NewProgramError(4000, "MaxSeedLengthExceeded", "Length of the seed is too long for address generation")
)

var programErrors = []*ProgramError{
	ErrMarketNotActive, ErrMarketNotResolved, ErrInvalidOutcome, ErrInvalidAmount, ErrBetTooSmall,
	ErrUnauthorized, ErrAlreadyClaimed, ErrNotWinner, ErrOverflow, ErrDivisionByZero,
	ErrMarketIdTooLong, ErrQuestionTooLong, ErrAlreadyInitialized,
	ErrConstraintSeeds, ErrAccountDiscriminatorMismatch, ErrAccountNotInitialized, ErrMaxSeedLengthExceeded,
}

// ErrorByCode returns the error of the market program with given code, nil when there is no such error.
func ErrorByCode(code uint32) *ProgramError {
	for _, e := range programErrors {
		if e.Code == code {
			return e
		}
	}
	return nil
}
