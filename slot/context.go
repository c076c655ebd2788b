// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package slot provides typed storage cells over the vault state, laid out
// the way a contract lays out storage slots: fixed named positions for
// scalars and hashed positions for mapping entries.
package slot

import (
	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/state"
)

// Context scopes storage cells to one contract-like address.
type Context struct {
	address helios.Address
	state   *state.State
}

func NewContext(address helios.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() helios.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}

// Position derives a slot position from a name.
func Position(name string) helios.Bytes32 {
	return helios.BytesToBytes32([]byte(name))
}
