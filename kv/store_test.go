// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	key := []byte("key")
	value := []byte("value")

	_, err := db.Get(key)
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, db.Put(key, value))

	got, err := db.Get(key)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	has, err := db.Has(key)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, db.Delete(key))
	has, err = db.Has(key)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBulk(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	bulk := db.Bulk()
	require.NoError(t, bulk.Put([]byte("a"), []byte("1")))
	require.NoError(t, bulk.Put([]byte("b"), []byte("2")))

	// nothing visible before Write
	_, err := db.Get([]byte("a"))
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, bulk.Write())
	got, err := db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestBucket(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	b1 := Bucket("b1-")
	b2 := Bucket("b2-")

	require.NoError(t, b1.NewPutter(db).Put([]byte("k"), []byte("v1")))
	require.NoError(t, b2.NewPutter(db).Put([]byte("k"), []byte("v2")))

	got, err := b1.NewGetter(db).Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	got, err = b2.NewGetter(db).Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// range iteration stays inside the bucket
	iter := db.Iterate(b1.MakeRange(Range{}))
	count := 0
	for iter.Next() {
		count++
	}
	iter.Release()
	require.NoError(t, iter.Error())
	assert.Equal(t, 1, count)
}
