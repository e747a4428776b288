package state

import (
	"errors"
	"fmt"

	"github.com/polysight-org/polysight/types"
)

type (
	// ShardState is the view of the state given to actions.
	ShardState interface {
		Add(id types.Address, u *Unit) error
		Get(id types.Address) (*Unit, error)
		Update(id types.Address, unit *Unit) error
		Delete(id types.Address) error
	}

	Action func(s ShardState) error

	// UpdateFunction is a function for updating the data of a unit. Takes in previous UnitData and returns new UnitData.
	UpdateFunction func(data UnitData) (newData UnitData, err error)
)

// AddUnit adds a new unit with given identifier and data.
func AddUnit(id types.Address, data UnitData) Action {
	return func(s ShardState) error {
		if id.IsZero() {
			return errors.New("id is zero")
		}
		if data == nil {
			return errors.New("unit data is nil")
		}
		if err := s.Add(id, NewUnit(copyData(data))); err != nil {
			return fmt.Errorf("unable to add unit: %w", err)
		}
		return nil
	}
}

// UpdateUnitData changes the data of the unit.
func UpdateUnitData(id types.Address, f UpdateFunction) Action {
	return func(s ShardState) error {
		if f == nil {
			return errors.New("update function is nil")
		}
		u, err := s.Get(id)
		if err != nil {
			return fmt.Errorf("failed to get unit: %w", err)
		}

		cloned := u.Clone()
		newData, err := f(cloned.data)
		if err != nil {
			return fmt.Errorf("unable to update unit data: %w", err)
		}
		if newData == nil {
			return errors.New("update function returned nil unit data")
		}
		cloned.data = newData
		if err = s.Update(id, cloned); err != nil {
			return fmt.Errorf("unable to update unit: %w", err)
		}
		return nil
	}
}

// DeleteUnit removes the unit from the state with given identifier.
func DeleteUnit(id types.Address) Action {
	return func(s ShardState) error {
		if err := s.Delete(id); err != nil {
			return fmt.Errorf("unable to delete unit: %w", err)
		}
		return nil
	}
}
