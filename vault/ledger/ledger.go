// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger implements the fixed-point share ledger: global share and
// asset totals, per-holder share balances, and the floating exchange rate
// between them.
package ledger

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/slot"
)

// ErrInsufficientBalance is returned when a holder's share balance cannot
// cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

var (
	slotTotalShares = slot.Position("ledger-total-shares")
	slotTotalAssets = slot.Position("ledger-total-assets")
	slotSharesOf    = slot.Position("ledger-shares-of")
)

// Ledger maintains the share accounting of one vault.
type Ledger struct {
	totalShares *slot.Uint256
	totalAssets *slot.Uint256
	sharesOf    *slot.Mapping[helios.Address, *big.Int]
}

// New creates a ledger over the given storage context.
func New(sctx *slot.Context) *Ledger {
	return &Ledger{
		totalShares: slot.NewUint256(sctx, slotTotalShares),
		totalAssets: slot.NewUint256(sctx, slotTotalAssets),
		sharesOf:    slot.NewMapping[helios.Address, *big.Int](sctx, slotSharesOf),
	}
}

// TotalShares returns the total amount of minted shares, including shares
// escrowed in the exit queue.
func (l *Ledger) TotalShares() (*big.Int, error) {
	return l.totalShares.Get()
}

// TotalAssets returns the total amount of assets backing the shares.
func (l *Ledger) TotalAssets() (*big.Int, error) {
	return l.totalAssets.Get()
}

// SharesOf returns the share balance of the given holder.
func (l *Ledger) SharesOf(holder helios.Address) (*big.Int, error) {
	shares, err := l.sharesOf.Get(holder)
	if err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() == 0 {
		return new(big.Int), nil
	}
	return shares, nil
}

// ConvertToShares converts an asset amount into shares at the current
// exchange rate, rounding down. An empty pool converts 1:1.
func (l *Ledger) ConvertToShares(assets *big.Int) (*big.Int, error) {
	totalAssets, err := l.totalAssets.Get()
	if err != nil {
		return nil, err
	}
	if totalAssets.Sign() == 0 {
		return new(big.Int).Set(assets), nil
	}
	totalShares, err := l.totalShares.Get()
	if err != nil {
		return nil, err
	}
	return mulDiv(assets, totalShares, totalAssets)
}

// ConvertToAssets converts a share amount into assets at the current
// exchange rate, rounding down.
func (l *Ledger) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	totalShares, err := l.totalShares.Get()
	if err != nil {
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return new(big.Int), nil
	}
	totalAssets, err := l.totalAssets.Get()
	if err != nil {
		return nil, err
	}
	return mulDiv(shares, totalAssets, totalShares)
}

// mulDiv computes floor(a * b / d) with a double-width intermediate product.
// All ledger totals are bounded by 128 bits, so the product always fits the
// 256-bit intermediate; the overflow flag is still checked.
func mulDiv(a, b, d *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(a)
	if overflow {
		return nil, errors.New("multiplicand exceeds 256 bits")
	}
	y, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.New("multiplier exceeds 256 bits")
	}
	den, overflow := uint256.FromBig(d)
	if overflow {
		return nil, errors.New("denominator exceeds 256 bits")
	}
	if den.IsZero() {
		return nil, errors.New("division by zero")
	}
	result, overflow := new(uint256.Int).MulDivOverflow(x, y, den)
	if overflow {
		return nil, errors.New("mul-div overflow")
	}
	return result.ToBig(), nil
}

// MintShares credits shares to the holder and grows the total supply.
// It never mutates the asset total.
func (l *Ledger) MintShares(holder helios.Address, shares *big.Int) error {
	if shares.Sign() <= 0 {
		return errors.New("shares must be positive")
	}
	totalShares, err := l.totalShares.Get()
	if err != nil {
		return err
	}
	totalShares.Add(totalShares, shares)
	if totalShares.Cmp(helios.MaxUint128) > 0 {
		return errors.New("total shares exceed range")
	}
	if err := l.totalShares.Set(totalShares); err != nil {
		return err
	}

	balance, err := l.SharesOf(holder)
	if err != nil {
		return err
	}
	return l.sharesOf.Set(holder, balance.Add(balance, shares))
}

// BurnShares removes shares from the holder and shrinks the total supply.
func (l *Ledger) BurnShares(holder helios.Address, shares *big.Int) error {
	if err := l.LockShares(holder, shares); err != nil {
		return err
	}
	return l.totalShares.Sub(shares)
}

// LockShares removes shares from the holder without shrinking the total
// supply. Used by the exit queue: locked shares stay part of totalShares
// until a checkpoint settles them.
func (l *Ledger) LockShares(holder helios.Address, shares *big.Int) error {
	if shares.Sign() <= 0 {
		return errors.New("shares must be positive")
	}
	balance, err := l.SharesOf(holder)
	if err != nil {
		return err
	}
	if balance.Cmp(shares) < 0 {
		return ErrInsufficientBalance
	}
	return l.sharesOf.Set(holder, balance.Sub(balance, shares))
}

// BurnLocked burns previously locked shares together with the assets they
// represent. Called when exit queue checkpoints settle.
func (l *Ledger) BurnLocked(shares, assets *big.Int) error {
	if err := l.totalShares.Sub(shares); err != nil {
		return err
	}
	return l.totalAssets.Sub(assets)
}

// AddAssets grows the asset total by a deposit.
func (l *Ledger) AddAssets(assets *big.Int) error {
	totalAssets, err := l.totalAssets.Get()
	if err != nil {
		return err
	}
	totalAssets.Add(totalAssets, assets)
	if totalAssets.Cmp(helios.MaxUint128) > 0 {
		return errors.New("total assets exceed range")
	}
	return l.totalAssets.Set(totalAssets)
}

// SplitPenalty computes how much of a penalty the exiting side absorbs,
// proportionally to its claim on the vault at the time of the loss:
// floor(penalty * exitingAssets / (exitingAssets + totalAssets)).
func SplitPenalty(penalty, exitingAssets, totalAssets *big.Int) (*big.Int, error) {
	if penalty.Sign() < 0 {
		return nil, errors.New("penalty must be non-negative")
	}
	if exitingAssets.Sign() == 0 {
		return new(big.Int), nil
	}
	total := new(big.Int).Add(exitingAssets, totalAssets)
	return mulDiv(penalty, exitingAssets, total)
}

// ApplyReward grows the asset total by a harvested reward.
func (l *Ledger) ApplyReward(reward *big.Int) error {
	if reward.Sign() < 0 {
		return errors.New("reward must be non-negative")
	}
	return l.AddAssets(reward)
}

// ApplyPenalty shrinks the asset total by the pool's part of a penalty.
// The caller must have routed the exiting side's part through the exit
// queue first; the remainder is clamped so the pool never goes negative.
func (l *Ledger) ApplyPenalty(penalty *big.Int) (*big.Int, error) {
	if penalty.Sign() < 0 {
		return nil, errors.New("penalty must be non-negative")
	}
	totalAssets, err := l.totalAssets.Get()
	if err != nil {
		return nil, err
	}
	applied := penalty
	if totalAssets.Cmp(penalty) < 0 {
		applied = totalAssets
	}
	if err := l.totalAssets.Sub(applied); err != nil {
		return nil, err
	}
	return new(big.Int).Set(applied), nil
}
