// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package keeper

import (
	"math/big"
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
)

type testOracles struct {
	keys []*secp256k1.PrivateKey
}

func newTestOracles(t *testing.T, n int) *testOracles {
	t.Helper()
	keys := make([]*secp256k1.PrivateKey, 0, n)
	for range n {
		key, err := cry.GenerateKey()
		require.NoError(t, err)
		keys = append(keys, key)
	}
	return &testOracles{keys: keys}
}

func (o *testOracles) addresses() []helios.Address {
	addrs := make([]helios.Address, 0, len(o.keys))
	for _, key := range o.keys {
		addrs = append(addrs, cry.PubKeyToAddress(key.PubKey()))
	}
	return addrs
}

func (o *testOracles) sign(digest helios.Bytes32, n int) [][]byte {
	sigs := make([][]byte, 0, n)
	for _, key := range o.keys[:n] {
		sigs = append(sigs, cry.Sign(digest, key))
	}
	return sigs
}

func newTestKeeper(t *testing.T, oracles *testOracles, threshold int) *Keeper {
	t.Helper()
	sctx := slot.NewContext(datagen.RandAddress(), state.New(kv.NewMemDB()))
	k, err := New(sctx, oracles.addresses(), threshold)
	require.NoError(t, err)
	return k
}

func (k *Keeper) mustSubmit(t *testing.T, oracles *testOracles, root, ipfs helios.Bytes32, n int) {
	t.Helper()
	nonce, err := k.RewardsNonce()
	require.NoError(t, err)
	next := new(big.Int).Add(nonce, big.NewInt(1))
	require.NoError(t, k.SubmitRewardsRoot(root, ipfs, oracles.sign(SubmitDigest(root, ipfs, next), n)))
}

func TestNewValidatesConfig(t *testing.T) {
	oracles := newTestOracles(t, 3)
	sctx := slot.NewContext(datagen.RandAddress(), state.New(kv.NewMemDB()))

	_, err := New(sctx, nil, 1)
	assert.Error(t, err)
	_, err = New(sctx, oracles.addresses(), 0)
	assert.Error(t, err)
	_, err = New(sctx, oracles.addresses(), 4)
	assert.Error(t, err)
	addrs := oracles.addresses()
	_, err = New(sctx, append(addrs, addrs[0]), 2)
	assert.Error(t, err)
}

func TestSubmitRewardsRoot(t *testing.T) {
	oracles := newTestOracles(t, 5)
	k := newTestKeeper(t, oracles, 3)

	root, ipfs := datagen.RandBytes32(), datagen.RandBytes32()
	digest := SubmitDigest(root, ipfs, big.NewInt(1))

	// not enough signatures
	err := k.SubmitRewardsRoot(root, ipfs, oracles.sign(digest, 2))
	assert.ErrorIs(t, err, ErrInvalidOracles)

	// an outsider signature is rejected
	outsider, err := cry.GenerateKey()
	require.NoError(t, err)
	sigs := oracles.sign(digest, 2)
	sigs = append(sigs, cry.Sign(digest, outsider))
	assert.ErrorIs(t, k.SubmitRewardsRoot(root, ipfs, sigs), ErrInvalidOracles)

	// a duplicated oracle signature does not reach the threshold
	sigs = oracles.sign(digest, 2)
	sigs = append(sigs, sigs[0])
	assert.ErrorIs(t, k.SubmitRewardsRoot(root, ipfs, sigs), ErrInvalidOracles)

	require.NoError(t, k.SubmitRewardsRoot(root, ipfs, oracles.sign(digest, 3)))

	got, err := k.RewardsRoot()
	require.NoError(t, err)
	assert.Equal(t, root, got)
	nonce, err := k.RewardsNonce()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), nonce)

	// resubmitting the same root is rejected
	assert.ErrorIs(t, k.SubmitRewardsRoot(root, ipfs, oracles.sign(digest, 3)), ErrInvalidRewardsRoot)

	// a stale signature cannot push the next root: the nonce is signed
	stale := datagen.RandBytes32()
	staleSigs := oracles.sign(SubmitDigest(stale, ipfs, big.NewInt(1)), 3)
	assert.ErrorIs(t, k.SubmitRewardsRoot(stale, ipfs, staleSigs), ErrInvalidOracles)
}

func TestHarvest(t *testing.T) {
	oracles := newTestOracles(t, 3)
	k := newTestKeeper(t, oracles, 2)
	vault := datagen.RandAddress()
	other := datagen.RandAddress()

	// no root yet
	_, err := k.Harvest(vault, big.NewInt(5), new(big.Int), nil)
	assert.ErrorIs(t, err, ErrInvalidVault)
	require.NoError(t, k.AddVault(vault))
	_, err = k.Harvest(vault, big.NewInt(5), new(big.Int), nil)
	assert.ErrorIs(t, err, ErrInvalidRewardsRoot)

	tree := merkle.NewTree([]helios.Bytes32{
		RewardLeaf(vault, big.NewInt(100), big.NewInt(7)),
		RewardLeaf(other, big.NewInt(40), new(big.Int)),
	})
	k.mustSubmit(t, oracles, tree.Root(), datagen.RandBytes32(), 2)

	// wrong amounts do not verify
	proof, ok := tree.Proof(RewardLeaf(vault, big.NewInt(100), big.NewInt(7)))
	require.True(t, ok)
	_, err = k.Harvest(vault, big.NewInt(101), big.NewInt(7), proof)
	assert.ErrorIs(t, err, ErrInvalidProof)

	period, err := k.Harvest(vault, big.NewInt(100), big.NewInt(7), proof)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(107), period)

	harvested, err := k.IsHarvested(vault)
	require.NoError(t, err)
	assert.True(t, harvested)
	can, err := k.CanHarvest(vault)
	require.NoError(t, err)
	assert.False(t, can)

	// harvesting the same report again yields a zero delta
	period, err = k.Harvest(vault, big.NewInt(100), big.NewInt(7), proof)
	require.NoError(t, err)
	assert.Zero(t, period.Sign())
}

func TestHarvestNegativeDelta(t *testing.T) {
	oracles := newTestOracles(t, 3)
	k := newTestKeeper(t, oracles, 2)
	vault := datagen.RandAddress()
	require.NoError(t, k.AddVault(vault))

	tree := merkle.NewTree([]helios.Bytes32{
		RewardLeaf(vault, big.NewInt(100), new(big.Int)),
		RewardLeaf(datagen.RandAddress(), big.NewInt(1), new(big.Int)),
	})
	k.mustSubmit(t, oracles, tree.Root(), datagen.RandBytes32(), 2)
	proof, ok := tree.Proof(RewardLeaf(vault, big.NewInt(100), new(big.Int)))
	require.True(t, ok)
	_, err := k.Harvest(vault, big.NewInt(100), new(big.Int), proof)
	require.NoError(t, err)

	// the cumulative reward dropped: a slashing happened
	tree = merkle.NewTree([]helios.Bytes32{
		RewardLeaf(vault, big.NewInt(-20), new(big.Int)),
		RewardLeaf(datagen.RandAddress(), big.NewInt(2), new(big.Int)),
	})
	k.mustSubmit(t, oracles, tree.Root(), datagen.RandBytes32(), 2)

	can, err := k.CanHarvest(vault)
	require.NoError(t, err)
	assert.True(t, can)

	proof, ok = tree.Proof(RewardLeaf(vault, big.NewInt(-20), new(big.Int)))
	require.True(t, ok)
	period, err := k.Harvest(vault, big.NewInt(-20), new(big.Int), proof)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-120), period)
}

func TestCollateralize(t *testing.T) {
	oracles := newTestOracles(t, 3)
	k := newTestKeeper(t, oracles, 2)
	vault := datagen.RandAddress()
	require.NoError(t, k.AddVault(vault))

	root := datagen.RandBytes32()
	k.mustSubmit(t, oracles, root, datagen.RandBytes32(), 2)

	// an uncollateralized vault has nothing to catch up on
	harvested, err := k.IsHarvested(vault)
	require.NoError(t, err)
	assert.True(t, harvested)

	require.NoError(t, k.Collateralize(vault))
	harvested, err = k.IsHarvested(vault)
	require.NoError(t, err)
	assert.True(t, harvested)

	// a later root leaves the collateralized vault behind
	k.mustSubmit(t, oracles, datagen.RandBytes32(), datagen.RandBytes32(), 2)
	harvested, err = k.IsHarvested(vault)
	require.NoError(t, err)
	assert.False(t, harvested)
	can, err := k.CanHarvest(vault)
	require.NoError(t, err)
	assert.True(t, can)
}

func TestRewardLeafEncoding(t *testing.T) {
	vault := datagen.RandAddress()

	// distinct sign, same magnitude must hash differently
	a := RewardLeaf(vault, big.NewInt(5), new(big.Int))
	b := RewardLeaf(vault, big.NewInt(-5), new(big.Int))
	assert.NotEqual(t, a, b)

	// the two's complement word of -1 is all ones
	assert.Equal(t,
		helios.Keccak256(helios.Keccak256(
			helios.BytesToBytes32(vault.Bytes()).Bytes(),
			helios.MustParseBytes32("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff").Bytes(),
			helios.Bytes32{}.Bytes(),
		).Bytes()),
		RewardLeaf(vault, big.NewInt(-1), new(big.Int)),
	)
}
