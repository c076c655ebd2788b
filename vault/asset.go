// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/slot"
	"github.com/helios-stake/helios/state"
)

// AssetTransfer abstracts custody of the vault's underlying asset, so the
// same engine serves vaults denominated in the native asset and vaults
// denominated in a token ledger.
type AssetTransfer interface {
	// Deposit moves assets from the depositor into vault custody.
	Deposit(from helios.Address, amount *big.Int) error
	// Withdraw moves assets out of vault custody to the receiver.
	Withdraw(to helios.Address, amount *big.Int) error
	// Balance returns the assets currently in vault custody.
	Balance() (*big.Int, error)
}

// nativeTransfer custodies the native asset through state balances.
type nativeTransfer struct {
	st    *state.State
	vault helios.Address
}

// NewNativeTransfer returns an AssetTransfer backed by native balances.
func NewNativeTransfer(st *state.State, vault helios.Address) AssetTransfer {
	return &nativeTransfer{st: st, vault: vault}
}

func (n *nativeTransfer) Deposit(from helios.Address, amount *big.Int) error {
	ok, err := n.st.SubBalance(from, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("depositor balance too low")
	}
	return n.st.AddBalance(n.vault, amount)
}

func (n *nativeTransfer) Withdraw(to helios.Address, amount *big.Int) error {
	ok, err := n.st.SubBalance(n.vault, amount)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("vault balance too low")
	}
	return n.st.AddBalance(to, amount)
}

func (n *nativeTransfer) Balance() (*big.Int, error) {
	return n.st.GetBalance(n.vault)
}

var slotTokenBalances = slot.Position("token-balances")

// tokenTransfer custodies a token tracked as a balance mapping under the
// token's own storage context.
type tokenTransfer struct {
	balances *slot.Mapping[helios.Address, *big.Int]
	vault    helios.Address
}

// NewTokenTransfer returns an AssetTransfer backed by the balance ledger
// of the token at the given storage context.
func NewTokenTransfer(token *slot.Context, vault helios.Address) AssetTransfer {
	return &tokenTransfer{
		balances: slot.NewMapping[helios.Address, *big.Int](token, slotTokenBalances),
		vault:    vault,
	}
}

func (t *tokenTransfer) balanceOf(addr helios.Address) (*big.Int, error) {
	balance, err := t.balances.Get(addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return new(big.Int), nil
	}
	return balance, nil
}

func (t *tokenTransfer) move(from, to helios.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative amount")
	}
	src, err := t.balanceOf(from)
	if err != nil {
		return err
	}
	if src.Cmp(amount) < 0 {
		return errors.New("token balance too low")
	}
	if err := t.balances.Set(from, src.Sub(src, amount)); err != nil {
		return err
	}
	dst, err := t.balanceOf(to)
	if err != nil {
		return err
	}
	return t.balances.Set(to, dst.Add(dst, amount))
}

func (t *tokenTransfer) Deposit(from helios.Address, amount *big.Int) error {
	return t.move(from, t.vault, amount)
}

func (t *tokenTransfer) Withdraw(to helios.Address, amount *big.Int) error {
	return t.move(t.vault, to, amount)
}

func (t *tokenTransfer) Balance() (*big.Int, error) {
	return t.balanceOf(t.vault)
}
