package memorydb

import (
	"fmt"
	"maps"

	"github.com/polysight-org/polysight/keyvaluedb"
)

// Tx works on a copy of the db which replaces the original on commit.
type Tx struct {
	mem *MemoryDB
	db  map[string][]byte
}

func newMapTx(m *MemoryDB) (*Tx, error) {
	if m == nil {
		return nil, fmt.Errorf("memory db is nil")
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return &Tx{
		mem: m,
		db:  maps.Clone(m.db),
	}, nil
}

func (t *Tx) Read(key []byte, v any) (bool, error) {
	if err := keyvaluedb.CheckKeyAndValue(key, v); err != nil {
		return false, err
	}
	if t.db == nil {
		return false, keyvaluedb.ErrTxClosed
	}
	if data, ok := t.db[string(key)]; ok {
		return true, t.mem.decoder(data, v)
	}
	return false, nil
}

func (t *Tx) Write(key []byte, value any) error {
	if err := keyvaluedb.CheckKeyAndValue(key, value); err != nil {
		return err
	}
	if t.db == nil {
		return keyvaluedb.ErrTxClosed
	}
	b, err := t.mem.encoder(value)
	if err != nil {
		return err
	}
	t.mem.lock.RLock()
	werr := t.mem.writeErr
	t.mem.lock.RUnlock()
	if werr != nil {
		return werr
	}
	t.db[string(key)] = b
	return nil
}

func (t *Tx) Delete(key []byte) error {
	if err := keyvaluedb.CheckKey(key); err != nil {
		return err
	}
	if t.db == nil {
		return keyvaluedb.ErrTxClosed
	}
	delete(t.db, string(key))
	return nil
}

func (t *Tx) Rollback() error {
	t.db = nil
	return nil
}

func (t *Tx) Commit() error {
	if t.db == nil {
		return keyvaluedb.ErrTxClosed
	}
	t.mem.lock.Lock()
	defer t.mem.lock.Unlock()
	t.mem.db = t.db
	t.db = nil
	return nil
}
