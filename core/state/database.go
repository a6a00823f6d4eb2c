// Copyright 2021 The go-sentinet Authors
// This file is part of the go-sentinet library.
//
// The go-sentinet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-sentinet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-sentinet library. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"github.com/VictoriaMetrics/fastcache"
	"github.com/sentinet/go-sentinet/sentdb"
)

// cacheSize is the default amount of memory granted to the record cache.
const cacheSize = 16 * 1024 * 1024

// Database wraps a key-value store with a read-through record cache. Reads
// served from the cache never touch the disk layer, writes go through to
// both. Commit batches bypass the cache and replay into it only after the
// batch hits disk, so the cache never runs ahead of persistent state.
type Database struct {
	diskdb sentdb.KeyValueStore
	cleans *fastcache.Cache
}

// NewDatabase creates a record database with the default cache allowance.
func NewDatabase(diskdb sentdb.KeyValueStore) *Database {
	return NewDatabaseWithCache(diskdb, cacheSize)
}

// NewDatabaseWithCache creates a record database with a caller-sized cache.
// A non-positive size disables caching entirely.
func NewDatabaseWithCache(diskdb sentdb.KeyValueStore, size int) *Database {
	var cleans *fastcache.Cache
	if size > 0 {
		cleans = fastcache.New(size)
	}
	return &Database{
		diskdb: diskdb,
		cleans: cleans,
	}
}

// DiskDB returns the underlying key-value store.
func (db *Database) DiskDB() sentdb.KeyValueStore {
	return db.diskdb
}

// Has checks the cache, then the disk layer, for the presence of a key.
func (db *Database) Has(key []byte) (bool, error) {
	if db.cleans != nil && db.cleans.Has(key) {
		return true, nil
	}
	return db.diskdb.Has(key)
}

// Get retrieves a value, filling the cache on a disk hit.
func (db *Database) Get(key []byte) ([]byte, error) {
	if db.cleans != nil {
		if value, found := db.cleans.HasGet(nil, key); found {
			return value, nil
		}
	}
	value, err := db.diskdb.Get(key)
	if err != nil {
		return nil, err
	}
	if db.cleans != nil {
		db.cleans.Set(key, value)
	}
	return value, nil
}

// Put writes a value through to disk and cache.
func (db *Database) Put(key []byte, value []byte) error {
	if err := db.diskdb.Put(key, value); err != nil {
		return err
	}
	if db.cleans != nil {
		db.cleans.Set(key, value)
	}
	return nil
}

// Delete removes a value from disk and cache.
func (db *Database) Delete(key []byte) error {
	if err := db.diskdb.Delete(key); err != nil {
		return err
	}
	if db.cleans != nil {
		db.cleans.Del(key)
	}
	return nil
}

// NewBatch creates a write batch over the disk layer. The caller is expected
// to replay a written batch into the cache writer to keep the cache fresh.
func (db *Database) NewBatch() sentdb.Batch {
	return db.diskdb.NewBatch()
}

// cacheWriter applies batch replays to the record cache.
type cacheWriter struct {
	cleans *fastcache.Cache
}

func (w cacheWriter) Put(key []byte, value []byte) error {
	if w.cleans != nil {
		w.cleans.Set(key, value)
	}
	return nil
}

func (w cacheWriter) Delete(key []byte) error {
	if w.cleans != nil {
		w.cleans.Del(key)
	}
	return nil
}
