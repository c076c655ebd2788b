// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"crypto/rand"
	"math/big"
	mathrand "math/rand"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-stake/helios/cry"
	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/kv"
	"github.com/helios-stake/helios/merkle"
	"github.com/helios-stake/helios/slot"
	"github.com/helios-stake/helios/state"
	"github.com/helios-stake/helios/test/datagen"
	"github.com/helios-stake/helios/vault/exitqueue"
	"github.com/helios-stake/helios/vault/keeper"
	"github.com/helios-stake/helios/vault/policy"
	"github.com/helios-stake/helios/vault/validators"
)

type testEnv struct {
	st     *state.State
	vault  *Vault
	keeper *keeper.Keeper
	oracle *secp256k1.PrivateKey
	clock  uint64

	cumulativeReward *big.Int
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st := state.New(kv.NewMemDB())

	oracle, err := cry.GenerateKey()
	require.NoError(t, err)
	k, err := keeper.New(
		slot.NewContext(datagen.RandAddress(), st),
		[]helios.Address{cry.PubKeyToAddress(oracle.PubKey())},
		1,
	)
	require.NoError(t, err)

	env := &testEnv{
		st:               st,
		keeper:           k,
		oracle:           oracle,
		clock:            1_700_000_000,
		cumulativeReward: new(big.Int),
	}
	if opts.Address.IsZero() {
		opts.Address = datagen.RandAddress()
	}
	if opts.DepositAddress.IsZero() {
		opts.DepositAddress = datagen.RandAddress()
	}
	opts.Now = func() uint64 { return env.clock }
	env.vault, err = New(st, k, opts)
	require.NoError(t, err)
	return env
}

func (env *testEnv) fund(t *testing.T, addr helios.Address, amount *big.Int) {
	t.Helper()
	require.NoError(t, env.st.AddBalance(addr, amount))
}

func (env *testEnv) advance(seconds uint64) {
	env.clock += seconds
}

// harvest publishes a root moving the vault's cumulative reward by delta
// and runs UpdateState against it.
func (env *testEnv) harvest(t *testing.T, delta *big.Int) {
	t.Helper()
	env.cumulativeReward.Add(env.cumulativeReward, delta)
	reward := new(big.Int).Set(env.cumulativeReward)

	leaf := keeper.RewardLeaf(env.vault.Address(), reward, new(big.Int))
	tree := merkle.NewTree([]helios.Bytes32{
		leaf,
		keeper.RewardLeaf(datagen.RandAddress(), big.NewInt(1), new(big.Int)),
	})
	nonce, err := env.keeper.RewardsNonce()
	require.NoError(t, err)
	next := new(big.Int).Add(nonce, big.NewInt(1))
	ipfs := datagen.RandBytes32()
	digest := keeper.SubmitDigest(tree.Root(), ipfs, next)
	require.NoError(t, env.keeper.SubmitRewardsRoot(tree.Root(), ipfs, [][]byte{cry.Sign(digest, env.oracle)}))

	proof, ok := tree.Proof(leaf)
	require.True(t, ok)
	require.NoError(t, env.vault.UpdateState(&HarvestParams{
		Reward:            reward,
		UnlockedMevReward: new(big.Int),
		Proof:             proof,
	}))
}

func mustBig(t *testing.T) func(*big.Int, error) *big.Int {
	return func(got *big.Int, err error) *big.Int {
		t.Helper()
		require.NoError(t, err)
		return got
	}
}

func TestDepositMintsShares(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(1000))

	shares, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), shares)

	assert.Equal(t, big.NewInt(100), mustBig(t)(env.vault.TotalAssets()))
	assert.Equal(t, big.NewInt(100), mustBig(t)(env.vault.TotalShares()))
	assert.Equal(t, big.NewInt(100), mustBig(t)(env.vault.SharesOf(alice)))
	assert.Equal(t, big.NewInt(900), mustBig(t)(env.st.GetBalance(alice)))

	_, err = env.vault.Deposit(alice, alice, new(big.Int))
	assert.Error(t, err)
}

func TestDepositRevertsAtomically(t *testing.T) {
	env := newTestEnv(t, Options{})
	poor := datagen.RandAddress()

	_, err := env.vault.Deposit(poor, poor, big.NewInt(100))
	require.Error(t, err)

	// the failed transfer left no trace in the ledger
	assert.Zero(t, mustBig(t)(env.vault.TotalAssets()).Sign())
	assert.Zero(t, mustBig(t)(env.vault.TotalShares()).Sign())
}

func TestDepositPolicy(t *testing.T) {
	env := newTestEnv(t, Options{})
	whitelist := policy.NewWhitelist(slot.NewContext(env.vault.Address(), env.st))
	env.vault.policy = whitelist

	alice, bob := datagen.RandAddress(), datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))
	env.fund(t, bob, big.NewInt(100))
	require.NoError(t, whitelist.Add(alice))

	_, err := env.vault.Deposit(alice, alice, big.NewInt(50))
	require.NoError(t, err)
	_, err = env.vault.Deposit(bob, bob, big.NewInt(50))
	assert.ErrorIs(t, err, policy.ErrAccessDenied)
}

func TestHarvestMovesExchangeRate(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))

	_, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)

	env.harvest(t, big.NewInt(10))

	assert.Equal(t, big.NewInt(110), mustBig(t)(env.vault.TotalAssets()))
	assert.Equal(t, big.NewInt(110), mustBig(t)(env.vault.ConvertToAssets(big.NewInt(100))))
	// floor(11 * 100 / 110) = 10
	assert.Equal(t, big.NewInt(10), mustBig(t)(env.vault.ConvertToShares(big.NewInt(11))))
}

func TestExitLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))

	_, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)
	env.harvest(t, big.NewInt(10))

	ticket, timestamp, err := env.vault.EnterExitQueue(alice, alice, big.NewInt(50))
	require.NoError(t, err)
	assert.Zero(t, ticket.Sign())
	assert.Equal(t, big.NewInt(50), mustBig(t)(env.vault.SharesOf(alice)))
	assert.Equal(t, big.NewInt(50), mustBig(t)(env.vault.QueuedShares()))

	// settlement prices the 50 shares at the post-harvest rate: 55 assets
	require.NoError(t, env.vault.UpdateState(nil))
	assert.Zero(t, mustBig(t)(env.vault.QueuedShares()).Sign())
	assert.Equal(t, big.NewInt(50), mustBig(t)(env.vault.TotalShares()))
	assert.Equal(t, big.NewInt(55), mustBig(t)(env.vault.TotalAssets()))

	index, err := env.vault.GetExitQueueIndex(ticket)
	require.NoError(t, err)
	assert.Equal(t, int64(0), index)

	// settled assets are reserved, not available
	assert.Equal(t, big.NewInt(45), mustBig(t)(env.vault.AvailableAssets()))

	_, err = env.vault.ClaimExitedAssets(alice, ticket, timestamp, index)
	assert.ErrorIs(t, err, exitqueue.ErrClaimTooEarly)

	env.advance(uint64(helios.ExitClaimDelay.Seconds()))
	claimed, err := env.vault.ClaimExitedAssets(alice, ticket, timestamp, index)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(55), claimed)
	assert.Equal(t, big.NewInt(55), mustBig(t)(env.st.GetBalance(alice)))

	// a second claim is a harmless no-op
	claimed, err = env.vault.ClaimExitedAssets(alice, ticket, timestamp, index)
	require.NoError(t, err)
	assert.Zero(t, claimed.Sign())
	assert.Equal(t, big.NewInt(55), mustBig(t)(env.st.GetBalance(alice)))
}

func TestPenaltySplitsProportionally(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))

	_, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)

	ticket, timestamp, err := env.vault.EnterExitQueue(alice, alice, big.NewInt(40))
	require.NoError(t, err)
	require.NoError(t, env.vault.UpdateState(nil))
	assert.Equal(t, big.NewInt(60), mustBig(t)(env.vault.TotalAssets()))

	// a 10 penalty splits 4 to the 40 exiting, 6 to the 60 live
	env.harvest(t, big.NewInt(-10))
	assert.Equal(t, big.NewInt(54), mustBig(t)(env.vault.TotalAssets()))

	env.advance(uint64(helios.ExitClaimDelay.Seconds()))
	claimed, err := env.vault.ClaimExitedAssets(alice, ticket, timestamp, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(36), claimed)
}

func TestEnterExitRequiresHarvested(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))
	_, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)

	// a root does not block a vault that never collateralized
	root, ipfs := datagen.RandBytes32(), datagen.RandBytes32()
	digest := keeper.SubmitDigest(root, ipfs, big.NewInt(1))
	require.NoError(t, env.keeper.SubmitRewardsRoot(root, ipfs, [][]byte{cry.Sign(digest, env.oracle)}))

	_, _, err = env.vault.EnterExitQueue(alice, alice, big.NewInt(10))
	assert.NoError(t, err)

	// once collateralized, an unprocessed root blocks exits
	require.NoError(t, env.keeper.Collateralize(env.vault.Address()))
	root, ipfs = datagen.RandBytes32(), datagen.RandBytes32()
	digest = keeper.SubmitDigest(root, ipfs, big.NewInt(2))
	require.NoError(t, env.keeper.SubmitRewardsRoot(root, ipfs, [][]byte{cry.Sign(digest, env.oracle)}))

	_, _, err = env.vault.EnterExitQueue(alice, alice, big.NewInt(10))
	assert.ErrorIs(t, err, ErrNotHarvested)
}

func TestPartialLiquiditySettlement(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := datagen.RandAddress()
	env.fund(t, alice, big.NewInt(100))
	_, err := env.vault.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)

	// 80 of the 100 deposited got staked away
	ok, err := env.st.SubBalance(env.vault.Address(), big.NewInt(80))
	require.NoError(t, err)
	require.True(t, ok)

	ticket, timestamp, err := env.vault.EnterExitQueue(alice, alice, big.NewInt(50))
	require.NoError(t, err)
	require.NoError(t, env.vault.UpdateState(nil))

	// only 20 of liquidity: 20 of the 50 shares settle
	exited, err := env.vault.CalculateExitedAssets(alice, ticket, timestamp, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), exited.ExitedTickets)
	assert.Equal(t, big.NewInt(20), exited.ExitedAssets)
	assert.Equal(t, big.NewInt(30), exited.LeftTickets)

	// more liquidity arrives, the remainder settles under the same ticket
	env.fund(t, env.vault.Address(), big.NewInt(30))
	require.NoError(t, env.vault.UpdateState(nil))

	env.advance(uint64(helios.ExitClaimDelay.Seconds()))
	claimed, err := env.vault.ClaimExitedAssets(alice, ticket, timestamp, 0)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), claimed)
}

func TestRegisterValidators(t *testing.T) {
	depositAddr := datagen.RandAddress()
	env := newTestEnv(t, Options{DepositAddress: depositAddr})
	alice := datagen.RandAddress()
	env.fund(t, alice, helios.ValidatorDepositAmount)
	_, err := env.vault.Deposit(alice, alice, helios.ValidatorDepositAmount)
	require.NoError(t, err)

	validator := validators.Validator{
		PublicKey:       make([]byte, helios.ValidatorPubKeyLength),
		Signature:       make([]byte, helios.ValidatorSignatureLength),
		DepositDataRoot: datagen.RandBytes32(),
	}
	rand.Read(validator.PublicKey)
	rand.Read(validator.Signature)

	require.NoError(t, env.vault.RegisterValidators([]validators.Validator{validator}))
	assert.Equal(t, helios.ValidatorDepositAmount, mustBig(t)(env.st.GetBalance(depositAddr)))
	assert.Zero(t, mustBig(t)(env.st.GetBalance(env.vault.Address())).Sign())

	// the vault can no longer fund a second validator
	err = env.vault.RegisterValidators([]validators.Validator{validator})
	assert.Error(t, err)
}

func TestTokenVault(t *testing.T) {
	st := state.New(kv.NewMemDB())
	token := slot.NewContext(datagen.RandAddress(), st)
	vaultAddr := datagen.RandAddress()

	oracle, err := cry.GenerateKey()
	require.NoError(t, err)
	k, err := keeper.New(
		slot.NewContext(datagen.RandAddress(), st),
		[]helios.Address{cry.PubKeyToAddress(oracle.PubKey())},
		1,
	)
	require.NoError(t, err)

	transfer := NewTokenTransfer(token, vaultAddr)
	v, err := New(st, k, Options{
		Address:        vaultAddr,
		DepositAddress: datagen.RandAddress(),
		Transfer:       transfer,
	})
	require.NoError(t, err)

	alice := datagen.RandAddress()
	balances := slot.NewMapping[helios.Address, *big.Int](token, slotTokenBalances)
	require.NoError(t, balances.Set(alice, big.NewInt(500)))

	shares, err := v.Deposit(alice, alice, big.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), shares)

	remaining, err := balances.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), remaining)
	custody, err := transfer.Balance()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), custody)
}

func TestSchemaVersionGuard(t *testing.T) {
	st := state.New(kv.NewMemDB())
	addr := datagen.RandAddress()
	slot.NewUint64(slot.NewContext(addr, st), slotSchemaVersion).Set(schemaVersion + 1)

	oracle, err := cry.GenerateKey()
	require.NoError(t, err)
	k, err := keeper.New(
		slot.NewContext(datagen.RandAddress(), st),
		[]helios.Address{cry.PubKeyToAddress(oracle.PubKey())},
		1,
	)
	require.NoError(t, err)

	_, err = New(st, k, Options{Address: addr, DepositAddress: datagen.RandAddress()})
	assert.ErrorContains(t, err, "schema")

	// a fresh vault stamps the current version
	env := newTestEnv(t, Options{})
	stored, err := slot.NewUint64(slot.NewContext(env.vault.Address(), env.st), slotSchemaVersion).Get()
	require.NoError(t, err)
	assert.Equal(t, uint64(schemaVersion), stored)
}

func TestShareConservation(t *testing.T) {
	env := newTestEnv(t, Options{})
	rng := mathrand.New(mathrand.NewSource(42))

	holders := make([]helios.Address, 4)
	for i := range holders {
		holders[i] = datagen.RandAddress()
		env.fund(t, holders[i], big.NewInt(1_000_000))
	}

	// held shares plus the queued ones always add up to the total supply
	conserved := func() {
		t.Helper()
		total := mustBig(t)(env.vault.TotalShares())
		held := mustBig(t)(env.vault.QueuedShares())
		for _, holder := range holders {
			held.Add(held, mustBig(t)(env.vault.SharesOf(holder)))
		}
		require.Zero(t, total.Cmp(held), "total %v vs held+queued %v", total, held)
	}

	for i := 0; i < 300; i++ {
		holder := holders[rng.Intn(len(holders))]
		switch rng.Intn(4) {
		case 0:
			_, err := env.vault.Deposit(holder, holder, big.NewInt(int64(1+rng.Intn(500))))
			require.NoError(t, err)
		case 1:
			shares := mustBig(t)(env.vault.SharesOf(holder))
			if shares.Sign() > 0 {
				ask := big.NewInt(int64(1 + rng.Intn(100)))
				if ask.Cmp(shares) > 0 {
					ask = shares
				}
				_, _, err := env.vault.EnterExitQueue(holder, holder, ask)
				require.NoError(t, err)
			}
		case 2:
			require.NoError(t, env.vault.UpdateState(nil))
		case 3:
			env.harvest(t, big.NewInt(int64(rng.Intn(11))))
		}
		conserved()
	}
}
