// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package validators implements the validator registration adapter: funding
// checks against the vault's withdrawable assets and handoff of deposit
// data to the staking deposit address.
package validators

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/slot"
)

var (
	// ErrInvalidValidators is returned when the registration batch is empty,
	// malformed, or repeats an already registered key.
	ErrInvalidValidators = errors.New("invalid validators")

	// ErrInsufficientAssets is returned when the vault cannot fund the
	// requested number of validator deposits.
	ErrInsufficientAssets = errors.New("insufficient assets")
)

var slotRegisteredKeys = slot.Position("validators-registered-keys")

// Validator carries the deposit data of one validator registration.
type Validator struct {
	PublicKey       []byte
	Signature       []byte
	DepositDataRoot helios.Bytes32
}

func (v *Validator) validate() error {
	if len(v.PublicKey) != helios.ValidatorPubKeyLength {
		return errors.Wrap(ErrInvalidValidators, "bad public key length")
	}
	if len(v.Signature) != helios.ValidatorSignatureLength {
		return errors.Wrap(ErrInvalidValidators, "bad signature length")
	}
	if v.DepositDataRoot.IsZero() {
		return errors.Wrap(ErrInvalidValidators, "empty deposit data root")
	}
	return nil
}

// EscrowPuller moves assets pending in an external withdrawal escrow back
// into the vault's balance before a funding check.
type EscrowPuller interface {
	// PendingAssets returns the amount a Pull would recover.
	PendingAssets() (*big.Int, error)
	// Pull recovers pending assets into the vault balance and returns the
	// amount moved.
	Pull() (*big.Int, error)
}

// Adapter registers validators funded from one vault.
type Adapter struct {
	sctx    *slot.Context
	deposit helios.Address
	reserve func() (*big.Int, error)
	escrow  EscrowPuller

	registered *slot.Mapping[keyHash, bool]
}

type keyHash helios.Bytes32

func (k keyHash) Bytes() []byte {
	return helios.Bytes32(k).Bytes()
}

// New creates an adapter. deposit is the address credited with validator
// deposits, reserve reports assets set aside for exit claims, escrow may
// be nil when the vault has no external withdrawal escrow.
func New(sctx *slot.Context, deposit helios.Address, reserve func() (*big.Int, error), escrow EscrowPuller) *Adapter {
	return &Adapter{
		sctx:       sctx,
		deposit:    deposit,
		reserve:    reserve,
		escrow:     escrow,
		registered: slot.NewMapping[keyHash, bool](sctx, slotRegisteredKeys),
	}
}

// WithdrawableAssets returns the assets available for validator deposits:
// the vault balance net of exit reserves, plus whatever an escrow pull
// would recover.
func (a *Adapter) WithdrawableAssets() (*big.Int, error) {
	balance, err := a.sctx.State().GetBalance(a.sctx.Address())
	if err != nil {
		return nil, err
	}
	reserved, err := a.reserve()
	if err != nil {
		return nil, err
	}
	withdrawable := new(big.Int).Sub(balance, reserved)
	if withdrawable.Sign() < 0 {
		withdrawable.SetInt64(0)
	}
	if a.escrow != nil {
		pending, err := a.escrow.PendingAssets()
		if err != nil {
			return nil, err
		}
		withdrawable.Add(withdrawable, pending)
	}
	return withdrawable, nil
}

// Register validates the batch, funds it from withdrawable assets and
// credits the deposit address. Each key can be registered once.
func (a *Adapter) Register(batch []Validator) error {
	if len(batch) == 0 {
		return errors.Wrap(ErrInvalidValidators, "empty batch")
	}
	seen := make(map[string]bool, len(batch))
	for i := range batch {
		v := &batch[i]
		if err := v.validate(); err != nil {
			return err
		}
		if seen[string(v.PublicKey)] {
			return errors.Wrap(ErrInvalidValidators, "duplicate key in batch")
		}
		seen[string(v.PublicKey)] = true

		hash := keyHash(helios.Keccak256(v.PublicKey))
		known, err := a.registered.Get(hash)
		if err != nil {
			return err
		}
		if known {
			return errors.Wrap(ErrInvalidValidators, "key already registered")
		}
	}

	required := new(big.Int).Mul(
		big.NewInt(int64(len(batch))),
		helios.ValidatorDepositAmount,
	)
	withdrawable, err := a.WithdrawableAssets()
	if err != nil {
		return err
	}
	if withdrawable.Cmp(required) < 0 {
		return ErrInsufficientAssets
	}

	st, vault := a.sctx.State(), a.sctx.Address()
	if a.escrow != nil {
		balance, err := st.GetBalance(vault)
		if err != nil {
			return err
		}
		reserved, err := a.reserve()
		if err != nil {
			return err
		}
		liquid := new(big.Int).Sub(balance, reserved)
		if liquid.Cmp(required) < 0 {
			pulled, err := a.escrow.Pull()
			if err != nil {
				return err
			}
			if err := st.AddBalance(vault, pulled); err != nil {
				return err
			}
		}
	}

	ok, err := st.SubBalance(vault, required)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientAssets
	}
	if err := st.AddBalance(a.deposit, required); err != nil {
		return err
	}

	for i := range batch {
		hash := keyHash(helios.Keccak256(batch[i].PublicKey))
		if err := a.registered.Set(hash, true); err != nil {
			return err
		}
	}
	return nil
}

// IsRegistered reports whether a validator key has been registered.
func (a *Adapter) IsRegistered(publicKey []byte) (bool, error) {
	if len(publicKey) != helios.ValidatorPubKeyLength {
		return false, errors.Wrap(ErrInvalidValidators, "bad public key length")
	}
	return a.registered.Get(keyHash(helios.Keccak256(publicKey)))
}
