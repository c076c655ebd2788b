// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	lru "github.com/hashicorp/golang-lru"
)

// CachedStore wraps a store with an lru read cache. Writes go through and
// update the cache, so a reader through the wrapper always sees its own
// writes. Bulk writes and iteration bypass the cache.
type CachedStore struct {
	Store
	cache *lru.Cache
}

// NewCachedStore wraps store with a read cache of the given size.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: store, cache: cache}, nil
}

func (c *CachedStore) Get(key []byte) ([]byte, error) {
	if value, ok := c.cache.Get(string(key)); ok {
		if value == nil {
			return nil, &missingError{}
		}
		return append([]byte(nil), value.([]byte)...), nil
	}
	value, err := c.Store.Get(key)
	if err != nil {
		if c.Store.IsNotFound(err) {
			c.cache.Add(string(key), nil)
		}
		return nil, err
	}
	c.cache.Add(string(key), append([]byte(nil), value...))
	return value, nil
}

func (c *CachedStore) Has(key []byte) (bool, error) {
	if value, ok := c.cache.Get(string(key)); ok {
		return value != nil, nil
	}
	return c.Store.Has(key)
}

func (c *CachedStore) Put(key, value []byte) error {
	if err := c.Store.Put(key, value); err != nil {
		return err
	}
	c.cache.Add(string(key), append([]byte(nil), value...))
	return nil
}

func (c *CachedStore) Delete(key []byte) error {
	if err := c.Store.Delete(key); err != nil {
		return err
	}
	c.cache.Add(string(key), nil)
	return nil
}

func (c *CachedStore) IsNotFound(err error) bool {
	if _, ok := err.(*missingError); ok {
		return true
	}
	return c.Store.IsNotFound(err)
}

type missingError struct{}

func (*missingError) Error() string {
	return "kv: key not found"
}
