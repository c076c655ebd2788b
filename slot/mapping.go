// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"encoding/binary"
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/helios-stake/helios/helios"
)

// Key is anything that can key a mapping entry.
type Key interface {
	Bytes() []byte
}

// Uint64Key adapts an ordinal to a mapping key.
type Uint64Key uint64

func (k Uint64Key) Bytes() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(k))
	return b
}

// Mapping is a key/value storage abstraction similar to a mapping in a smart
// contract: the entry position is the hash of the key and the base position,
// values are RLP encoded.
type Mapping[K Key, V any] struct {
	context *Context
	basePos helios.Bytes32
}

func NewMapping[K Key, V any](context *Context, pos helios.Bytes32) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, basePos: pos}
}

// Get returns the value stored for key. A missing entry yields the zero value
// (pointer kinds are allocated so RLP has something to decode into).
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	position := helios.Blake2b(key.Bytes(), m.basePos.Bytes())
	err = m.context.state.DecodeStorage(m.context.address, position, func(raw []byte) error {
		if reflect.ValueOf(value).Kind() == reflect.Ptr {
			value = reflect.New(reflect.TypeOf(value).Elem()).Interface().(V)
		}
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &value)
	})
	return
}

// Set stores the value for key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	position := helios.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.address, position, func() ([]byte, error) {
		return rlp.EncodeToBytes(value)
	})
}

// Delete removes the entry for key.
func (m *Mapping[K, V]) Delete(key K) error {
	position := helios.Blake2b(key.Bytes(), m.basePos.Bytes())
	return m.context.state.EncodeStorage(m.context.address, position, func() ([]byte, error) {
		return nil, nil
	})
}
