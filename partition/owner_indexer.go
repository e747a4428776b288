package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/state"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

type (
	/*
	OwnerIndexer keeps track of which units belong to which wallet. System
	accounts belong to themselves, program accounts belong to the wallet
	returned by the OwnerID method of the unit data (if it has one).
	*/
	OwnerIndexer struct {
		log *slog.Logger

		// mu lock on ownerUnits and unitOwner
		mu         sync.RWMutex
		ownerUnits map[types.Address][]types.Address
		unitOwner  map[types.Address]types.Address
	}

	// IndexReader is the read only API of the owner index.
	IndexReader interface {
		GetOwnerUnits(ownerID types.Address) ([]types.Address, error)
	}

	ownerIDer interface {
		OwnerID() types.Address
	}
)

func NewOwnerIndexer(l *slog.Logger) *OwnerIndexer {
	return &OwnerIndexer{
		log:        l,
		ownerUnits: map[types.Address][]types.Address{},
		unitOwner:  map[types.Address]types.Address{},
	}
}

// GetOwnerUnits returns all unit ids for given owner.
func (p *OwnerIndexer) GetOwnerUnits(ownerID types.Address) ([]types.Address, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.ownerUnits[ownerID]), nil
}

// IndexBlock updates the index entries of the units modified by the transactions of the block.
func (p *OwnerIndexer) IndexBlock(b *types.Block, s txsystem.StateReader) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, tx := range b.Transactions {
		for _, unitID := range tx.ServerMetadata.GetTargetUnits() {
			unit, err := s.GetUnit(unitID)
			if err != nil {
				if errors.Is(err, state.ErrUnitNotFound) {
					p.delOwnerIndex(unitID)
					continue
				}
				return fmt.Errorf("failed to load unit: %w", err)
			}
			p.delOwnerIndex(unitID)
			p.addOwnerIndex(unitID, unit)
		}
	}
	return nil
}

// LoadState fills the index from state.
func (p *OwnerIndexer) LoadState(s txsystem.StateReader) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ownerUnits = map[types.Address][]types.Address{}
	p.unitOwner = map[types.Address]types.Address{}
	if err := s.Traverse(func(id types.Address, u *state.Unit) error {
		p.addOwnerIndex(id, u)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to create owner index: %w", err)
	}
	p.log.Debug(fmt.Sprintf("owner index loaded, %d owners", len(p.ownerUnits)))
	return nil
}

func (p *OwnerIndexer) addOwnerIndex(unitID types.Address, unit *state.Unit) {
	ownerID, ok := extractOwnerID(unitID, unit)
	if !ok {
		return
	}
	p.ownerUnits[ownerID] = append(p.ownerUnits[ownerID], unitID)
	p.unitOwner[unitID] = ownerID
}

func (p *OwnerIndexer) delOwnerIndex(unitID types.Address) {
	ownerID, ok := p.unitOwner[unitID]
	if !ok {
		return
	}
	delete(p.unitOwner, unitID)
	unitIDs := slices.DeleteFunc(p.ownerUnits[ownerID], func(id types.Address) bool { return id == unitID })
	if len(unitIDs) == 0 {
		// no units for owner, delete map key
		delete(p.ownerUnits, ownerID)
	} else {
		p.ownerUnits[ownerID] = unitIDs
	}
	p.log.Log(context.Background(), logger.LevelTrace, "owner index entry removed", logger.UnitID(unitID))
}

func extractOwnerID(unitID types.Address, unit *state.Unit) (types.Address, bool) {
	data := unit.Data()
	if data.Owner() == types.SystemProgramID {
		return unitID, true
	}
	if o, ok := data.(ownerIDer); ok {
		if id := o.OwnerID(); !id.IsZero() {
			return id, true
		}
	}
	return types.Address{}, false
}
