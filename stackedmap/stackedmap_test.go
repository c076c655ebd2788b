// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helios-stake/helios/stackedmap"
)

func TestStackedMap(t *testing.T) {
	assert := assert.New(t)
	src := make(map[string]string)
	src["foo"] = "bar"

	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, r := src[key]
		return v, r, nil
	})

	tests := []struct {
		f         func()
		depth     int
		putKey    string
		putValue  string
		getKey    string
		getReturn []any
	}{
		{func() { sm.Push() }, 1, "", "", "", nil},
		{nil, 0, "a", "b", "a", []any{"b", true}},
		{nil, 0, "", "", "foo", []any{"bar", true}},
		{func() { sm.Push() }, 2, "", "", "", nil},
		{nil, 0, "a", "c", "a", []any{"c", true}},
		{func() { sm.Pop() }, 1, "", "", "a", []any{"b", true}},

		{func() { sm.PopTo(0) }, 0, "", "", "a", []any{"", false}},

		{func() { sm.Push() }, 1, "", "", "", nil},
		{func() { sm.Push() }, 2, "", "", "", nil},
		{func() { sm.Push() }, 3, "", "", "", nil},
		{func() { sm.PopTo(1) }, 1, "", "", "", nil},
	}

	for _, test := range tests {
		if test.f != nil {
			test.f()
			assert.Equal(test.depth, sm.Depth())
		}
		if test.putKey != "" {
			sm.Put(test.putKey, test.putValue)
		}
		if test.getKey != "" {
			v, ok, err := sm.Get(test.getKey)
			assert.Nil(err)
			assert.Equal(test.getReturn, []any{v, ok})
		}
	}
}

func TestJournal(t *testing.T) {
	sm := stackedmap.New(func(_ string) (string, bool, error) {
		return "", false, nil
	})

	kvs := []struct {
		k, v string
	}{
		{"a", "1"},
		{"b", "2"},
		{"a", "3"},
		{"c", "4"},
	}

	for _, kv := range kvs {
		sm.Push()
		sm.Put(kv.k, kv.v)
	}

	var got []struct{ k, v string }
	sm.Journal(func(k, v string) bool {
		got = append(got, struct{ k, v string }{k, v})
		return true
	})
	assert.Equal(t, len(kvs), len(got))
	for i, kv := range kvs {
		assert.Equal(t, kv.k, got[i].k)
		assert.Equal(t, kv.v, got[i].v)
	}

	// reverted writes must not appear in the journal
	sm.Pop()
	got = got[:0]
	sm.Journal(func(k, v string) bool {
		got = append(got, struct{ k, v string }{k, v})
		return true
	})
	assert.Equal(t, len(kvs)-1, len(got))
}
