// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
)

// Uint256 is a wrapper for storage and retrieval of an unsigned big integer,
// similar to storing an uint256 in a smart contract.
// Values must fit into 32 bytes.
type Uint256 struct {
	context *Context
	pos     helios.Bytes32
}

func NewUint256(context *Context, pos helios.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) error {
	if value.Sign() < 0 {
		return errors.New("negative value")
	}
	if value.BitLen() > 256 {
		return errors.New("value exceeds 256 bits")
	}
	u.context.state.SetStorage(u.context.address, u.pos, helios.BytesToBytes32(value.Bytes()))
	return nil
}

func (u *Uint256) Add(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	return u.Set(storage.Add(storage, value))
}

func (u *Uint256) Sub(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	if storage.Cmp(value) < 0 {
		return errors.New("subtraction underflow")
	}
	return u.Set(storage.Sub(storage, value))
}

// Uint64 stores a small counter in a full slot.
type Uint64 struct {
	context *Context
	pos     helios.Bytes32
}

func NewUint64(context *Context, pos helios.Bytes32) *Uint64 {
	return &Uint64{context: context, pos: pos}
}

func (u *Uint64) Get() (uint64, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return 0, err
	}
	return new(big.Int).SetBytes(storage.Bytes()).Uint64(), nil
}

func (u *Uint64) Set(value uint64) {
	u.context.state.SetStorage(
		u.context.address,
		u.pos,
		helios.BytesToBytes32(new(big.Int).SetUint64(value).Bytes()),
	)
}

// Address is a wrapper for storage and retrieval of an address.
type Address struct {
	context *Context
	pos     helios.Bytes32
}

func NewAddress(context *Context, pos helios.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (helios.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return helios.Address{}, err
	}
	return helios.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr helios.Address) {
	a.context.state.SetStorage(a.context.address, a.pos, helios.BytesToBytes32(addr.Bytes()))
}

// Bytes32 is a wrapper for storage and retrieval of a raw 32 byte value.
type Bytes32 struct {
	context *Context
	pos     helios.Bytes32
}

func NewBytes32(context *Context, pos helios.Bytes32) *Bytes32 {
	return &Bytes32{context: context, pos: pos}
}

func (b *Bytes32) Get() (helios.Bytes32, error) {
	return b.context.state.GetStorage(b.context.address, b.pos)
}

func (b *Bytes32) Set(value helios.Bytes32) {
	b.context.state.SetStorage(b.context.address, b.pos, value)
}
