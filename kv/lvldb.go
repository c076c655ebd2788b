// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	writeOpt = &opt.WriteOptions{}
	readOpt  = &opt.ReadOptions{}
)

// Options options for creating a level db instance.
type Options struct {
	CacheSize              int
	OpenFilesCacheCapacity int
}

// LevelDB wraps a leveldb instance into the Store interface.
type LevelDB struct {
	db *leveldb.DB
}

var _ Store = (*LevelDB)(nil)

// NewLevelDB creates a persistent level db instance.
// Creates an empty one if not exists, or opens if already there.
func NewLevelDB(path string, opts Options) (*LevelDB, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open level db file")
	}
	return openLevelDB(stg, opts.CacheSize, opts.OpenFilesCacheCapacity)
}

// NewMemDB creates a level db backed by memory, for tests and ephemeral runs.
func NewMemDB() *LevelDB {
	db, _ := openLevelDB(storage.NewMemStorage(), 0, 0)
	return db
}

func openLevelDB(stg storage.Storage, cacheSize, openFilesCacheCapacity int) (*LevelDB, error) {
	if cacheSize < 16 {
		cacheSize = 16
	}
	if openFilesCacheCapacity < 16 {
		openFilesCacheCapacity = 16
	}

	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: openFilesCacheCapacity,
		BlockCacheCapacity:     cacheSize / 2 * opt.MiB,
		WriteBuffer:            cacheSize / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open level db")
	}
	return &LevelDB{db: db}, nil
}

// IsNotFound checks if the error returned by Get indicates key not found.
func (ldb *LevelDB) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

// Get retrieves the value for the given key.
// It returns an error if key not found. The error can be checked via IsNotFound.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	return ldb.db.Get(key, readOpt)
}

// Has returns whether a key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, readOpt)
}

// Put saves the value for the given key.
func (ldb *LevelDB) Put(key, value []byte) error {
	return ldb.db.Put(key, value, writeOpt)
}

// Delete deletes the given key and its value.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, writeOpt)
}

// Snapshot takes a read snapshot.
func (ldb *LevelDB) Snapshot() Snapshot {
	snap, err := ldb.db.GetSnapshot()
	return &lvldbSnapshot{snap, err}
}

// Bulk creates a bulk writer.
func (ldb *LevelDB) Bulk() Bulk {
	return &lvldbBulk{ldb.db, &leveldb.Batch{}}
}

// Iterate creates an iterator over the key range.
func (ldb *LevelDB) Iterate(r Range) Iterator {
	return ldb.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, readOpt)
}

// Close closes the level db. Later operations will all fail.
func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}

type lvldbSnapshot struct {
	snap *leveldb.Snapshot
	err  error
}

func (s *lvldbSnapshot) Get(key []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap.Get(key, readOpt)
}

func (s *lvldbSnapshot) Has(key []byte) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.snap.Has(key, readOpt)
}

func (s *lvldbSnapshot) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

func (s *lvldbSnapshot) Release() {
	if s.snap != nil {
		s.snap.Release()
	}
}

type lvldbBulk struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *lvldbBulk) Put(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *lvldbBulk) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

// Write performs all ops in this bulk atomically.
func (b *lvldbBulk) Write() error {
	return b.db.Write(b.batch, writeOpt)
}
