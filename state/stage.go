// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/kv"
)

// values beyond this size are worth compressing
const compressThreshold = 64

const (
	valuePlain  = byte(0)
	valueSnappy = byte(1)
)

// Stage collects the journaled writes of the state so they can be flushed to
// the backing store in one atomic batch.
type Stage struct {
	writes map[stateKey][]byte
}

// Stage bundles up all pending writes of the state.
func (s *State) Stage() *Stage {
	writes := make(map[stateKey][]byte)
	s.sm.Journal(func(key stateKey, value []byte) bool {
		writes[key] = value
		return true
	})
	return &Stage{writes: writes}
}

// Commit flushes the staged writes into store atomically.
func (st *Stage) Commit(store kv.Store) error {
	bulk := store.Bulk()
	for key, value := range st.writes {
		pk := persistentKey(key)
		if len(value) == 0 {
			if err := bulk.Delete(pk); err != nil {
				return errors.Wrap(err, "stage delete")
			}
			continue
		}
		if err := bulk.Put(pk, encodeValue(value)); err != nil {
			return errors.Wrap(err, "stage put")
		}
	}
	return errors.Wrap(bulk.Write(), "stage commit")
}

func encodeValue(value []byte) []byte {
	if len(value) < compressThreshold {
		return append([]byte{valuePlain}, value...)
	}
	return append([]byte{valueSnappy}, snappy.Encode(nil, value)...)
}

func decodeValue(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case valuePlain:
		return raw[1:], nil
	case valueSnappy:
		decoded, err := snappy.Decode(nil, raw[1:])
		if err != nil {
			return nil, errors.Wrap(err, "decompress state value")
		}
		return decoded, nil
	default:
		return nil, errors.New("unknown state value encoding")
	}
}
