package memorydb

import (
	"bytes"
	"errors"
	"slices"
	"sort"
)

// iterator works on a snapshot of the keys taken when it was created.
type iterator struct {
	keys    [][]byte
	values  [][]byte
	decoder DecodeFn
	index   int
}

func newIterator(db map[string][]byte, d DecodeFn) *iterator {
	keys := make([][]byte, 0, len(db))
	for key := range db {
		keys = append(keys, []byte(key))
	}
	slices.SortFunc(keys, bytes.Compare)
	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = db[string(key)]
	}
	return &iterator{
		index:   -1,
		decoder: d,
		keys:    keys,
		values:  values,
	}
}

func (it *iterator) first() {
	if len(it.keys) > 0 {
		it.index = 0
	}
}

func (it *iterator) last() {
	it.index = len(it.keys) - 1
}

func (it *iterator) seek(key []byte) {
	idx := sort.Search(len(it.keys), func(i int) bool { return bytes.Compare(it.keys[i], key) >= 0 })
	if idx < len(it.keys) {
		it.index = idx
	}
}

func (it *iterator) Next() {
	if !it.Valid() {
		return
	}
	if it.index++; it.index >= len(it.keys) {
		it.index = -1
	}
}

func (it *iterator) Prev() {
	if it.Valid() {
		it.index--
	}
}

func (it *iterator) Valid() bool {
	return it.index >= 0
}

func (it *iterator) Key() []byte {
	if !it.Valid() {
		return nil
	}
	return it.keys[it.index]
}

func (it *iterator) Value(v any) error {
	if !it.Valid() {
		return errors.New("iterator invalid")
	}
	return it.decoder(it.values[it.index], v)
}

func (it *iterator) Close() error {
	return nil
}
