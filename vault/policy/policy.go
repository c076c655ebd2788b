// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package policy implements vault deposit access policies.
package policy

import (
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/slot"
)

// ErrAccessDenied is returned when the vault policy rejects a depositor.
var ErrAccessDenied = errors.New("access denied")

var (
	slotWhitelist = slot.Position("policy-whitelist")
	slotBlocklist = slot.Position("policy-blocklist")
)

// Policy decides which depositors a vault accepts.
type Policy interface {
	CanDeposit(depositor helios.Address) (bool, error)
}

// Public accepts every depositor.
type Public struct{}

func (Public) CanDeposit(helios.Address) (bool, error) {
	return true, nil
}

// Whitelist accepts only listed depositors.
type Whitelist struct {
	members *slot.Mapping[helios.Address, bool]
}

func NewWhitelist(sctx *slot.Context) *Whitelist {
	return &Whitelist{members: slot.NewMapping[helios.Address, bool](sctx, slotWhitelist)}
}

func (w *Whitelist) Add(member helios.Address) error {
	return w.members.Set(member, true)
}

func (w *Whitelist) Remove(member helios.Address) error {
	return w.members.Delete(member)
}

func (w *Whitelist) CanDeposit(depositor helios.Address) (bool, error) {
	return w.members.Get(depositor)
}

// Blocklist accepts everyone except listed depositors.
type Blocklist struct {
	blocked *slot.Mapping[helios.Address, bool]
}

func NewBlocklist(sctx *slot.Context) *Blocklist {
	return &Blocklist{blocked: slot.NewMapping[helios.Address, bool](sctx, slotBlocklist)}
}

func (b *Blocklist) Block(addr helios.Address) error {
	return b.blocked.Set(addr, true)
}

func (b *Blocklist) Unblock(addr helios.Address) error {
	return b.blocked.Delete(addr)
}

func (b *Blocklist) CanDeposit(depositor helios.Address) (bool, error) {
	blocked, err := b.blocked.Get(depositor)
	return !blocked && err == nil, err
}
