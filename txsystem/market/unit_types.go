package market

import (
	"fmt"
	"hash"

	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem/system"
	"github.com/polysight-org/polysight/types"
)

// account sizes in bytes, including the 8 byte discriminator. Used to calculate rent.
const (
	ConfigMaxSize = 8 + 32 + 8 + 8 + 1
	MarketMaxSize = 8 + // discriminator
		32 + // authority
		(4 + MaxMarketIDLength) +
		(4 + MaxQuestionLength) +
		8 + // yes pool
		8 + // no pool
		(1 + 1) + // status
		(1 + 1) + // winning outcome
		(1 + 8) + // resolved at
		8 + // created at
		1 // bump
	BetMaxSize = 8 + 32 + 32 + 1 + 8 + 1 + 8 + 1
)

const (
	StatusActive MarketStatus = iota
	StatusLocked
	StatusResolved
)

var (
	_ system.LamportHolder = (*Config)(nil)
	_ system.LamportHolder = (*Market)(nil)
	_ system.LamportHolder = (*Bet)(nil)
	_ system.LamportHolder = (*Escrow)(nil)
)

type (
	MarketStatus uint8

	// Config is the program wide configuration created by the "initialize" instruction.
	Config struct {
		_             struct{}      `cbor:",toarray"`
		Lamports      uint64        `json:"lamports,string"`
		Authority     types.Address `json:"authority"`
		MarketCount   uint64        `json:"marketCount,string"`
		InitializedAt int64         `json:"initializedAt"`
		Bump          uint8         `json:"bump"`
	}

	Market struct {
		_              struct{}      `cbor:",toarray"`
		Lamports       uint64        `json:"lamports,string"`
		Authority      types.Address `json:"authority"` // the only account allowed to resolve the market
		MarketID       string        `json:"marketId"`
		Question       string        `json:"question"`
		TotalYesPool   uint64        `json:"totalYesPool,string"`
		TotalNoPool    uint64        `json:"totalNoPool,string"`
		Status         MarketStatus  `json:"status"`
		WinningOutcome *uint8        `json:"winningOutcome,omitempty"`
		ResolvedAt     *int64        `json:"resolvedAt,omitempty"`
		CreatedAt      int64         `json:"createdAt"`
		Bump           uint8         `json:"bump"`
	}

	Bet struct {
		_        struct{}      `cbor:",toarray"`
		Lamports uint64        `json:"lamports,string"`
		Market   types.Address `json:"market"`
		User     types.Address `json:"user"`
		Outcome  uint8         `json:"outcome"` // 0 = NO, 1 = YES
		Amount   uint64        `json:"amount,string"`
		Claimed  bool          `json:"claimed"`
		PlacedAt int64         `json:"placedAt"`
		Bump     uint8         `json:"bump"`
	}

	// Escrow holds the lamports of all the bets placed on a market.
	Escrow struct {
		_        struct{}      `cbor:",toarray"`
		Lamports uint64        `json:"lamports,string"`
		Market   types.Address `json:"market"`
		Bump     uint8         `json:"bump"`
	}
)

func (s MarketStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusLocked:
		return "locked"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("MarketStatus(%d)", uint8(s))
	}
}

func (s MarketStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MarketStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "active":
		*s = StatusActive
	case "locked":
		*s = StatusLocked
	case "resolved":
		*s = StatusResolved
	default:
		return fmt.Errorf("unknown market status %q", text)
	}
	return nil
}

func writeCbor(hasher hash.Hash, v any) error {
	res, err := types.Cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("%T serialization error: %w", v, err)
	}
	_, err = hasher.Write(res)
	return err
}

func (c *Config) Write(hasher hash.Hash) error { return writeCbor(hasher, c) }
func (c *Config) SummaryValueInput() uint64    { return c.Lamports }
func (c *Config) Owner() types.Address         { return ProgramID }
func (c *Config) SetLamports(v uint64)         { c.Lamports = v }
func (c *Config) OwnerID() types.Address       { return c.Authority }
func (c *Config) Copy() state.UnitData {
	cc := *c
	return &cc
}

func (m *Market) Write(hasher hash.Hash) error { return writeCbor(hasher, m) }
func (m *Market) SummaryValueInput() uint64    { return m.Lamports }
func (m *Market) Owner() types.Address         { return ProgramID }
func (m *Market) SetLamports(v uint64)         { m.Lamports = v }
func (m *Market) OwnerID() types.Address       { return m.Authority }
func (m *Market) Copy() state.UnitData {
	c := *m
	if m.WinningOutcome != nil {
		v := *m.WinningOutcome
		c.WinningOutcome = &v
	}
	if m.ResolvedAt != nil {
		v := *m.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}

// TotalPool returns the sum of both pools.
func (m *Market) TotalPool() (uint64, error) {
	total := m.TotalYesPool + m.TotalNoPool
	if total < m.TotalYesPool {
		return 0, ErrOverflow
	}
	return total, nil
}

// Pool returns the pool of given outcome.
func (m *Market) Pool(outcome uint8) uint64 {
	if outcome == OutcomeYes {
		return m.TotalYesPool
	}
	return m.TotalNoPool
}

func (b *Bet) Write(hasher hash.Hash) error { return writeCbor(hasher, b) }
func (b *Bet) SummaryValueInput() uint64    { return b.Lamports }
func (b *Bet) Owner() types.Address         { return ProgramID }
func (b *Bet) SetLamports(v uint64)         { b.Lamports = v }
func (b *Bet) OwnerID() types.Address       { return b.User }
func (b *Bet) Copy() state.UnitData {
	c := *b
	return &c
}

func (e *Escrow) Write(hasher hash.Hash) error { return writeCbor(hasher, e) }
func (e *Escrow) SummaryValueInput() uint64    { return e.Lamports }
func (e *Escrow) Owner() types.Address         { return ProgramID }
func (e *Escrow) SetLamports(v uint64)         { e.Lamports = v }
func (e *Escrow) Copy() state.UnitData {
	c := *e
	return &c
}
