// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state provides the revertible keyed state shared by all vault
// components. Mutations are journaled in a stacked map: a checkpoint is
// taken at the start of every external call and reverted wholesale when a
// precondition fails, so a call is always all-or-nothing.
package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/kv"
	"github.com/helios-stake/helios/stackedmap"
)

const (
	keyKindBalance = byte('b')
	keyKindStorage = byte('s')
)

type stateKey struct {
	kind byte
	addr helios.Address
	pos  helios.Bytes32
}

// State manages account balances and keyed storage.
// It is not safe for concurrent use; the node serializes all writers.
type State struct {
	db kv.Getter
	sm *stackedmap.StackedMap[stateKey, []byte]
}

// New creates a state object reading through to db.
// db may be nil for a purely in-memory state.
func New(db kv.Getter) *State {
	st := &State{db: db}
	st.sm = stackedmap.New(st.dbGetter)
	// base level holding writes of the current call sequence
	st.sm.Push()
	return st
}

func (s *State) dbGetter(key stateKey) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, nil
	}
	raw, err := s.db.Get(persistentKey(key))
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "state read")
	}
	val, err := decodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func persistentKey(key stateKey) []byte {
	buf := make([]byte, 0, 1+helios.AddressLength+32)
	buf = append(buf, key.kind)
	buf = append(buf, key.addr.Bytes()...)
	if key.kind == keyKindStorage {
		buf = append(buf, key.pos.Bytes()...)
	}
	return buf
}

// GetBalance returns the asset balance of the given address.
func (s *State) GetBalance(addr helios.Address) (*big.Int, error) {
	raw, _, err := s.sm.Get(stateKey{kind: keyKindBalance, addr: addr})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return new(big.Int), nil
	}
	return new(big.Int).SetBytes(raw), nil
}

// SetBalance sets the asset balance of the given address.
func (s *State) SetBalance(addr helios.Address, balance *big.Int) error {
	if balance.Sign() < 0 {
		return errors.New("negative balance")
	}
	s.sm.Put(stateKey{kind: keyKindBalance, addr: addr}, balance.Bytes())
	return nil
}

// AddBalance adds amount to the balance of the given address.
func (s *State) AddBalance(addr helios.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := s.GetBalance(addr)
	if err != nil {
		return err
	}
	return s.SetBalance(addr, balance.Add(balance, amount))
}

// SubBalance subtracts amount from the balance of the given address.
// Returns false without touching state if the balance is insufficient.
func (s *State) SubBalance(addr helios.Address, amount *big.Int) (bool, error) {
	if amount.Sign() == 0 {
		return true, nil
	}
	balance, err := s.GetBalance(addr)
	if err != nil {
		return false, err
	}
	if balance.Cmp(amount) < 0 {
		return false, nil
	}
	return true, s.SetBalance(addr, balance.Sub(balance, amount))
}

// GetStorage returns the storage value for the given position.
func (s *State) GetStorage(addr helios.Address, pos helios.Bytes32) (helios.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, pos)
	if err != nil {
		return helios.Bytes32{}, err
	}
	if len(raw) == 0 {
		return helios.Bytes32{}, nil
	}
	var value helios.Bytes32
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return helios.Bytes32{}, errors.Wrap(err, "decode storage value")
	}
	return value, nil
}

// SetStorage sets the storage value for the given position.
func (s *State) SetStorage(addr helios.Address, pos, value helios.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, pos, nil)
		return
	}
	encoded, _ := rlp.EncodeToBytes(value)
	s.SetRawStorage(addr, pos, encoded)
}

// GetRawStorage returns the RLP encoded storage value for the given position.
func (s *State) GetRawStorage(addr helios.Address, pos helios.Bytes32) (rlp.RawValue, error) {
	raw, _, err := s.sm.Get(stateKey{kind: keyKindStorage, addr: addr, pos: pos})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SetRawStorage sets the RLP encoded storage value for the given position.
// Passing an empty value deletes the entry.
func (s *State) SetRawStorage(addr helios.Address, pos helios.Bytes32, raw rlp.RawValue) {
	s.sm.Put(stateKey{kind: keyKindStorage, addr: addr, pos: pos}, raw)
}

// EncodeStorage sets the storage value encoded by the given enc callback.
// The callback returns nil bytes to delete the entry.
func (s *State) EncodeStorage(addr helios.Address, pos helios.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return errors.Wrap(err, "encode storage value")
	}
	s.SetRawStorage(addr, pos, raw)
	return nil
}

// DecodeStorage gets the storage value and decodes it via the dec callback.
// The callback receives nil bytes when the entry does not exist.
func (s *State) DecodeStorage(addr helios.Address, pos helios.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, pos)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return errors.Wrap(err, "decode storage value")
	}
	return nil
}

// NewCheckpoint makes a checkpoint of the current state.
// It returns the checkpoint to be passed to RevertTo.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts the state to the given checkpoint.
func (s *State) RevertTo(checkpoint int) {
	s.sm.PopTo(checkpoint)
}
