package state

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/polysight-org/polysight/tree/mt"
	"github.com/polysight-org/polysight/types"
)

var (
	ErrUnitNotFound      = errors.New("unit not found")
	ErrUnitAlreadyExists = errors.New("unit already exists")
)

type (
	/*
	State keeps track of units (accounts) and calculates the state root hash.

	State can be changed by calling Apply function with one or more Action function.
	Savepoint method can be used to add a special marker to the state that allows all
	actions that are executed after savepoint was established to be rolled back.
	In other words, savepoint lets you roll back part of the state changes instead of
	the entire state. Calling Commit makes all changes permanent and releases all
	savepoints.
	*/
	State struct {
		mutex         sync.RWMutex
		hashAlgorithm crypto.Hash
		committed     map[types.Address]*Unit
		// committedRound is the round number of the last committed block
		committedRound uint64

		// savepoints are overlays on top of the committed units, nil unit in
		// the overlay marks deleted unit. There is always at least one savepoint.
		savepoints []overlay
	}

	overlay map[types.Address]*Unit

	// Traverser is called for every unit of the state in ascending order of IDs.
	// Returning error stops the traversal.
	Traverser func(id types.Address, u *Unit) error

	Option func(s *State)
)

// WithHashAlgorithm sets the algorithm of the unit and root hashes, default is SHA256.
func WithHashAlgorithm(hashAlgorithm crypto.Hash) Option {
	return func(s *State) {
		s.hashAlgorithm = hashAlgorithm
	}
}

func NewEmptyState(opts ...Option) *State {
	s := &State{
		hashAlgorithm: crypto.SHA256,
		committed:     make(map[types.Address]*Unit),
		savepoints:    []overlay{{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clone returns a clone of the state. The original state and the cloned state can be used by different goroutines but
// can never be merged. The cloned state is usually used by read only operations (e.g. transaction simulation).
func (s *State) HashAlgorithm() crypto.Hash {
	return s.hashAlgorithm
}

/*
GetUnit returns the unit with given ID. When "committed" is true the unit is
looked up from the committed state, otherwise the latest (uncommitted) version
is returned.
*/
func (s *State) GetUnit(id types.Address, committed bool) (*Unit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if committed {
		if u, ok := s.committed[id]; ok {
			return u.Clone(), nil
		}
		return nil, fmt.Errorf("item %s does not exist: %w", id, ErrUnitNotFound)
	}
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

/*
AddUnitLog appends the hash of the transaction record to the ledger of the unit.
*/
func (s *State) AddUnitLog(id types.Address, txRecordHash []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	u, err := s.get(id)
	if err != nil {
		return fmt.Errorf("unable to add unit log for unit %s: %w", id, err)
	}
	unit := u.Clone()
	hasher := s.hashAlgorithm.New()
	hasher.Write(unit.ledgerHead)
	hasher.Write(txRecordHash)
	unit.ledgerHead = hasher.Sum(nil)
	s.latestSavepoint()[id] = unit
	return nil
}

// Apply applies given actions to the state. All Action functions are executed together as a single atomic operation. If
// any of the Action functions returns an error all previous state changes made by any of the action function will be
// reverted.
func (s *State) Apply(actions ...Action) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.createSavepoint()
	for _, action := range actions {
		if err := action((*view)(s)); err != nil {
			s.rollbackToSavepoint(id)
			return err
		}
	}
	s.releaseToSavepoint(id)
	return nil
}

/*
Commit makes the changes permanent. The "round", "summaryValue" and "rootHash" must
match the values calculated for the current state (see CalculateRoot), ie the block
header certifying the state must be created before committing.
*/
func (s *State) Commit(round uint64, summaryValue uint64, rootHash []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if round <= s.committedRound {
		return fmt.Errorf("round %d is not greater than committed round %d", round, s.committedRound)
	}
	sv, h, err := s.calculateRoot()
	if err != nil {
		return err
	}
	if sv != summaryValue {
		return fmt.Errorf("state summary value %d is not equal to the committed value %d", sv, summaryValue)
	}
	if !bytes.Equal(h, rootHash) {
		return fmt.Errorf("state root hash %X is not equal to the committed hash %X", h, rootHash)
	}

	for id, u := range s.flatten() {
		if u == nil {
			delete(s.committed, id)
		} else {
			s.committed[id] = u
		}
	}
	s.committedRound = round
	s.savepoints = []overlay{{}}
	return nil
}

// CommittedRound returns the round number of the committed state.
func (s *State) CommittedRound() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.committedRound
}

// Revert rolls back all uncommitted changes made to the state.
func (s *State) Revert() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.savepoints = []overlay{{}}
}

// Savepoint creates a new savepoint and returns an id of the savepoint. Use RollbackToSavepoint to roll back all
// changes made after calling Savepoint method. Use ReleaseToSavepoint to save all changes made to the state.
func (s *State) Savepoint() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createSavepoint()
}

// RollbackToSavepoint destroys savepoints without keeping the changes in the state. All actions that were executed
// after the savepoint was established are rolled back, restoring the state to what it was at the time of the savepoint.
func (s *State) RollbackToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rollbackToSavepoint(id)
}

// ReleaseToSavepoint destroys all savepoints up to "id", keeping all state changes made after it was created.
// If a savepoint with given id does not exist then this method does nothing.
func (s *State) ReleaseToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.releaseToSavepoint(id)
}

/*
CalculateRoot returns the summary value (total lamports) and the root hash of
the current (uncommitted) state. Root hash of the empty state is nil.
*/
func (s *State) CalculateRoot() (uint64, []byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.calculateRoot()
}

// IsCommitted returns true when there are no uncommitted changes.
func (s *State) IsCommitted() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, sp := range s.savepoints {
		if len(sp) > 0 {
			return false
		}
	}
	return true
}

/*
Traverse calls "traverser" for every committed unit in ascending order of unit IDs.
*/
func (s *State) Traverse(traverser Traverser) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, id := range sortedIDs(s.committed) {
		if err := traverser(id, s.committed[id]); err != nil {
			return err
		}
	}
	return nil
}

/*
GetUnits returns IDs of committed units for which "filter" returns true.
*/
func (s *State) GetUnits(filter func(id types.Address, u *Unit) bool) []types.Address {
	var ids []types.Address
	_ = s.Traverse(func(id types.Address, u *Unit) error {
		if filter == nil || filter(id, u) {
			ids = append(ids, id)
		}
		return nil
	})
	return ids
}

/*
Committed returns a read only view of the committed units. The view shares the
units with the state, uncommitted changes are not visible through it.
*/
func (s *State) Committed() *CommittedState {
	return &CommittedState{s: s}
}

// CommittedState is a read only view of the committed units of a State.
type CommittedState struct {
	s *State
}

// GetUnit returns a copy of the committed version of the unit.
func (c *CommittedState) GetUnit(id types.Address) (*Unit, error) {
	return c.s.GetUnit(id, true)
}

func (c *CommittedState) CommittedRound() uint64 {
	return c.s.CommittedRound()
}

func (c *CommittedState) GetUnits(filter func(id types.Address, u *Unit) bool) []types.Address {
	return c.s.GetUnits(filter)
}

func (c *CommittedState) Traverse(traverser Traverser) error {
	return c.s.Traverse(traverser)
}

// Size returns number of units in the committed state.
func (s *State) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.committed)
}

// view is the ShardState given to actions, caller must hold the lock.
type view State

func (v *view) Add(id types.Address, u *Unit) error {
	s := (*State)(v)
	if _, err := s.get(id); err == nil {
		return fmt.Errorf("unit %s: %w", id, ErrUnitAlreadyExists)
	}
	s.latestSavepoint()[id] = u
	return nil
}

func (v *view) Get(id types.Address) (*Unit, error) {
	return (*State)(v).get(id)
}

func (v *view) Update(id types.Address, u *Unit) error {
	s := (*State)(v)
	if _, err := s.get(id); err != nil {
		return err
	}
	s.latestSavepoint()[id] = u
	return nil
}

func (v *view) Delete(id types.Address) error {
	s := (*State)(v)
	if _, err := s.get(id); err != nil {
		return err
	}
	s.latestSavepoint()[id] = nil
	return nil
}

func (s *State) get(id types.Address) (*Unit, error) {
	for i := len(s.savepoints) - 1; i >= 0; i-- {
		if u, ok := s.savepoints[i][id]; ok {
			if u == nil {
				return nil, fmt.Errorf("item %s does not exist: %w", id, ErrUnitNotFound)
			}
			return u, nil
		}
	}
	if u, ok := s.committed[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("item %s does not exist: %w", id, ErrUnitNotFound)
}

func (s *State) latestSavepoint() overlay {
	return s.savepoints[len(s.savepoints)-1]
}

func (s *State) createSavepoint() int {
	s.savepoints = append(s.savepoints, overlay{})
	return len(s.savepoints) - 1
}

func (s *State) rollbackToSavepoint(id int) {
	if id <= 0 || id >= len(s.savepoints) {
		return
	}
	s.savepoints = s.savepoints[:id]
}

func (s *State) releaseToSavepoint(id int) {
	if id <= 0 || id >= len(s.savepoints) {
		return
	}
	target := s.savepoints[id-1]
	for _, sp := range s.savepoints[id:] {
		maps.Copy(target, sp)
	}
	s.savepoints = s.savepoints[:id]
}

// flatten merges all savepoints into single overlay.
func (s *State) flatten() overlay {
	merged := overlay{}
	for _, sp := range s.savepoints {
		maps.Copy(merged, sp)
	}
	return merged
}

// current returns the current (uncommitted) view of all units.
func (s *State) current() map[types.Address]*Unit {
	units := maps.Clone(s.committed)
	for id, u := range s.flatten() {
		if u == nil {
			delete(units, id)
		} else {
			units[id] = u
		}
	}
	return units
}

func (s *State) calculateRoot() (uint64, []byte, error) {
	units := s.current()
	leaves := make([]mt.ByteHasher, 0, len(units))
	var sum uint64
	for _, id := range sortedIDs(units) {
		u := units[id]
		h, err := u.hash(id, s.hashAlgorithm)
		if err != nil {
			return 0, nil, fmt.Errorf("unit %s: %w", id, err)
		}
		leaves = append(leaves, h)
		v := u.data.SummaryValueInput()
		if sum+v < sum {
			return 0, nil, fmt.Errorf("summary value overflow")
		}
		sum += v
	}
	return sum, mt.EvalRootHash(s.hashAlgorithm, leaves), nil
}

func sortedIDs[T any](m map[types.Address]T) []types.Address {
	ids := slices.Collect(maps.Keys(m))
	slices.SortFunc(ids, func(a, b types.Address) int { return bytes.Compare(a[:], b[:]) })
	return ids
}
