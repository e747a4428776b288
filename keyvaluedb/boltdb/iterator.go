package boltdb

import (
	"errors"

	bolt "go.etcd.io/bbolt"
)

var errIteratorInvalid = errors.New("iterator is not valid")

/*
iterator holds read-only bolt transaction open until Close is called.
*/
type iterator struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	decoder DecodeFn
	key     []byte
	value   []byte
}

func newIterator(db *bolt.DB, bucket []byte, d DecodeFn) *iterator {
	tx, err := db.Begin(false)
	if err != nil {
		return &iterator{}
	}
	return &iterator{
		tx:      tx,
		cursor:  tx.Bucket(bucket).Cursor(),
		decoder: d,
	}
}

func (it *iterator) first() {
	if it.cursor != nil {
		it.key, it.value = it.cursor.First()
	}
}

func (it *iterator) last() {
	if it.cursor != nil {
		it.key, it.value = it.cursor.Last()
	}
}

func (it *iterator) seek(key []byte) {
	if it.cursor != nil {
		it.key, it.value = it.cursor.Seek(key)
	}
}

func (it *iterator) Next() {
	if it.Valid() {
		it.key, it.value = it.cursor.Next()
	}
}

func (it *iterator) Prev() {
	if it.Valid() {
		it.key, it.value = it.cursor.Prev()
	}
}

func (it *iterator) Valid() bool {
	return it.key != nil
}

func (it *iterator) Key() []byte {
	return it.key
}

func (it *iterator) Value(v any) error {
	if !it.Valid() {
		return errIteratorInvalid
	}
	return it.decoder(it.value, v)
}

func (it *iterator) Close() error {
	it.key, it.value = nil, nil
	if it.tx == nil {
		return nil
	}
	tx := it.tx
	it.tx, it.cursor = nil, nil
	return tx.Rollback()
}
