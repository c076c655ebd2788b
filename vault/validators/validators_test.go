// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/kv"
	"github.com/helios-stake/helios/slot"
	"github.com/helios-stake/helios/state"
	"github.com/helios-stake/helios/test/datagen"
)

type fixedEscrow struct {
	pending *big.Int
}

func (e *fixedEscrow) PendingAssets() (*big.Int, error) {
	return new(big.Int).Set(e.pending), nil
}

func (e *fixedEscrow) Pull() (*big.Int, error) {
	pulled := e.pending
	e.pending = new(big.Int)
	return pulled, nil
}

func randValidator() Validator {
	v := Validator{
		PublicKey:       make([]byte, helios.ValidatorPubKeyLength),
		Signature:       make([]byte, helios.ValidatorSignatureLength),
		DepositDataRoot: datagen.RandBytes32(),
	}
	rand.Read(v.PublicKey)
	rand.Read(v.Signature)
	return v
}

func depositAmount(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), helios.ValidatorDepositAmount)
}

type testEnv struct {
	st      *state.State
	vault   helios.Address
	deposit helios.Address
	adapter *Adapter
}

func newTestEnv(t *testing.T, reserved *big.Int, escrow EscrowPuller) *testEnv {
	t.Helper()
	st := state.New(kv.NewMemDB())
	vault, deposit := datagen.RandAddress(), datagen.RandAddress()
	adapter := New(
		slot.NewContext(vault, st),
		deposit,
		func() (*big.Int, error) { return new(big.Int).Set(reserved), nil },
		escrow,
	)
	return &testEnv{st: st, vault: vault, deposit: deposit, adapter: adapter}
}

func TestValidatorValidation(t *testing.T) {
	env := newTestEnv(t, new(big.Int), nil)
	require.NoError(t, env.st.SetBalance(env.vault, depositAmount(10)))

	assert.ErrorIs(t, env.adapter.Register(nil), ErrInvalidValidators)

	bad := randValidator()
	bad.PublicKey = bad.PublicKey[1:]
	assert.ErrorIs(t, env.adapter.Register([]Validator{bad}), ErrInvalidValidators)

	bad = randValidator()
	bad.Signature = append(bad.Signature, 0)
	assert.ErrorIs(t, env.adapter.Register([]Validator{bad}), ErrInvalidValidators)

	bad = randValidator()
	bad.DepositDataRoot = helios.Bytes32{}
	assert.ErrorIs(t, env.adapter.Register([]Validator{bad}), ErrInvalidValidators)

	dup := randValidator()
	assert.ErrorIs(t, env.adapter.Register([]Validator{dup, dup}), ErrInvalidValidators)
}

func TestRegisterFundsDeposit(t *testing.T) {
	env := newTestEnv(t, new(big.Int), nil)
	require.NoError(t, env.st.SetBalance(env.vault, depositAmount(3)))

	batch := []Validator{randValidator(), randValidator()}
	require.NoError(t, env.adapter.Register(batch))

	balance, err := env.st.GetBalance(env.vault)
	require.NoError(t, err)
	assert.Equal(t, depositAmount(1), balance)
	credited, err := env.st.GetBalance(env.deposit)
	require.NoError(t, err)
	assert.Equal(t, depositAmount(2), credited)

	for _, v := range batch {
		known, err := env.adapter.IsRegistered(v.PublicKey)
		require.NoError(t, err)
		assert.True(t, known)
	}

	// a key registers once
	assert.ErrorIs(t, env.adapter.Register([]Validator{batch[0]}), ErrInvalidValidators)
}

func TestRegisterInsufficientAssets(t *testing.T) {
	env := newTestEnv(t, new(big.Int), nil)
	require.NoError(t, env.st.SetBalance(env.vault, depositAmount(1)))

	err := env.adapter.Register([]Validator{randValidator(), randValidator()})
	assert.ErrorIs(t, err, ErrInsufficientAssets)
}

func TestReserveShieldsExitClaims(t *testing.T) {
	// balance covers one deposit only if the exit reserve is ignored
	env := newTestEnv(t, helios.ValidatorDepositAmount, nil)
	require.NoError(t, env.st.SetBalance(env.vault, depositAmount(1)))

	withdrawable, err := env.adapter.WithdrawableAssets()
	require.NoError(t, err)
	assert.Zero(t, withdrawable.Sign())

	err = env.adapter.Register([]Validator{randValidator()})
	assert.ErrorIs(t, err, ErrInsufficientAssets)
}

func TestRegisterPullsEscrow(t *testing.T) {
	escrow := &fixedEscrow{pending: depositAmount(1)}
	env := newTestEnv(t, new(big.Int), escrow)
	require.NoError(t, env.st.SetBalance(env.vault, depositAmount(1)))

	withdrawable, err := env.adapter.WithdrawableAssets()
	require.NoError(t, err)
	assert.Equal(t, depositAmount(2), withdrawable)

	require.NoError(t, env.adapter.Register([]Validator{randValidator(), randValidator()}))

	assert.Zero(t, escrow.pending.Sign())
	balance, err := env.st.GetBalance(env.vault)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
	credited, err := env.st.GetBalance(env.deposit)
	require.NoError(t, err)
	assert.Equal(t, depositAmount(2), credited)
}
