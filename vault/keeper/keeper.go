// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package keeper implements oracle-driven rewards ingestion: a global
// rewards merkle root published under threshold oracle signatures, and
// per-vault harvesting of cumulative reward deltas proven against it.
package keeper

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/cry"
	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/merkle"
	"github.com/helios-stake/helios/slot"
)

var (
	// ErrInvalidRewardsRoot is returned when a submitted root repeats the
	// current one, or when harvesting is attempted before any root exists.
	ErrInvalidRewardsRoot = errors.New("invalid rewards root")

	// ErrInvalidOracles is returned when a root submission does not carry
	// enough distinct valid oracle signatures.
	ErrInvalidOracles = errors.New("invalid oracle signatures")

	// ErrInvalidProof is returned when a harvest proof does not verify
	// against the current rewards root.
	ErrInvalidProof = errors.New("invalid merkle proof")

	// ErrInvalidVault is returned when the vault is unknown to the keeper.
	ErrInvalidVault = errors.New("invalid vault")
)

var (
	slotRewardsRoot  = slot.Position("keeper-rewards-root")
	slotRewardsIPFS  = slot.Position("keeper-rewards-ipfs")
	slotRewardsNonce = slot.Position("keeper-rewards-nonce")
	slotRewardSyncs  = slot.Position("keeper-reward-syncs")
	slotVaults       = slot.Position("keeper-vaults")
)

// rewardSync records the last harvested state of one vault. Rewards are
// signed; RLP cannot carry a sign, so magnitude and sign are split.
type rewardSync struct {
	Nonce     uint64
	RewardNeg bool
	Reward    *big.Int
	MevReward *big.Int
}

func (s *rewardSync) reward() *big.Int {
	r := new(big.Int)
	if s.Reward != nil {
		r.Set(s.Reward)
	}
	if s.RewardNeg {
		r.Neg(r)
	}
	return r
}

func (s *rewardSync) mevReward() *big.Int {
	if s.MevReward == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.MevReward)
}

// Keeper ingests oracle reward reports for all vaults of one node.
type Keeper struct {
	oracles   map[helios.Address]bool
	threshold int

	root  *slot.Bytes32
	ipfs  *slot.Bytes32
	nonce *slot.Uint256
	syncs *slot.Mapping[helios.Address, *rewardSync]
	vault *slot.Mapping[helios.Address, bool]
}

// New creates a keeper over the given storage context with a fixed oracle
// set and signature threshold.
func New(sctx *slot.Context, oracles []helios.Address, threshold int) (*Keeper, error) {
	if len(oracles) == 0 || len(oracles) > helios.MaxOracles {
		return nil, errors.New("oracle set size out of range")
	}
	if threshold < 1 || threshold > len(oracles) {
		return nil, errors.New("threshold out of range")
	}
	set := make(map[helios.Address]bool, len(oracles))
	for _, oracle := range oracles {
		if set[oracle] {
			return nil, errors.New("duplicate oracle")
		}
		set[oracle] = true
	}
	return &Keeper{
		oracles:   set,
		threshold: threshold,
		root:      slot.NewBytes32(sctx, slotRewardsRoot),
		ipfs:      slot.NewBytes32(sctx, slotRewardsIPFS),
		nonce:     slot.NewUint256(sctx, slotRewardsNonce),
		syncs:     slot.NewMapping[helios.Address, *rewardSync](sctx, slotRewardSyncs),
		vault:     slot.NewMapping[helios.Address, bool](sctx, slotVaults),
	}, nil
}

// AddVault registers a vault with the keeper. Only registered vaults can
// harvest.
func (k *Keeper) AddVault(vault helios.Address) error {
	return k.vault.Set(vault, true)
}

// RewardsRoot returns the current rewards merkle root.
func (k *Keeper) RewardsRoot() (helios.Bytes32, error) {
	return k.root.Get()
}

// RewardsNonce returns the current rewards nonce, incremented with every
// accepted root.
func (k *Keeper) RewardsNonce() (*big.Int, error) {
	return k.nonce.Get()
}

// RewardsIPFSHash returns the content hash of the report backing the
// current root.
func (k *Keeper) RewardsIPFSHash() (helios.Bytes32, error) {
	return k.ipfs.Get()
}

// SubmitDigest computes the payload oracles sign for a root submission.
// The nonce the root will be stored under is part of the payload, so a
// signature can never be replayed for a later submission.
func SubmitDigest(root, ipfsHash helios.Bytes32, nonce *big.Int) helios.Bytes32 {
	return helios.Keccak256(root.Bytes(), ipfsHash.Bytes(), helios.BytesToBytes32(nonce.Bytes()).Bytes())
}

// SubmitRewardsRoot replaces the rewards root after verifying a threshold
// of distinct oracle signatures over the submission digest, then advances
// the nonce.
func (k *Keeper) SubmitRewardsRoot(root, ipfsHash helios.Bytes32, signatures [][]byte) error {
	current, err := k.root.Get()
	if err != nil {
		return err
	}
	if root.IsZero() || root == current {
		return ErrInvalidRewardsRoot
	}
	nonce, err := k.nonce.Get()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(nonce, big.NewInt(1))
	if next.Cmp(helios.MaxUint96) > 0 {
		return errors.New("nonce exceeds range")
	}

	digest := SubmitDigest(root, ipfsHash, next)
	seen := make(map[helios.Address]bool, len(signatures))
	for _, sig := range signatures {
		signer, err := cry.Signer(digest, sig)
		if err != nil {
			return ErrInvalidOracles
		}
		if !k.oracles[signer] || seen[signer] {
			return ErrInvalidOracles
		}
		seen[signer] = true
	}
	if len(seen) < k.threshold {
		return ErrInvalidOracles
	}

	if err := k.nonce.Set(next); err != nil {
		return err
	}
	k.root.Set(root)
	k.ipfs.Set(ipfsHash)
	return nil
}

// RewardLeaf computes the double-hashed merkle leaf binding a vault to its
// cumulative reward and unlocked MEV reward.
func RewardLeaf(vault helios.Address, reward, mevReward *big.Int) helios.Bytes32 {
	return helios.Keccak256(helios.Keccak256(
		helios.BytesToBytes32(vault.Bytes()).Bytes(),
		int256Bytes(reward),
		helios.BytesToBytes32(mevReward.Bytes()).Bytes(),
	).Bytes())
}

// int256Bytes encodes a signed integer as a 32 byte two's complement word.
func int256Bytes(v *big.Int) []byte {
	if v.Sign() >= 0 {
		return helios.BytesToBytes32(v.Bytes()).Bytes()
	}
	wrapped := new(big.Int).Add(twoPow256, v)
	return helios.BytesToBytes32(wrapped.Bytes()).Bytes()
}

var twoPow256 = new(big.Int).Lsh(big.NewInt(1), 256)

// Harvest proves a vault's cumulative reward against the current root and
// returns the signed delta since the vault's last harvest. Harvesting an
// unchanged reward is a no-op that still advances the vault's sync nonce.
func (k *Keeper) Harvest(vault helios.Address, reward, mevReward *big.Int, proof []helios.Bytes32) (*big.Int, error) {
	registered, err := k.vault.Get(vault)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrInvalidVault
	}
	root, err := k.root.Get()
	if err != nil {
		return nil, err
	}
	if root.IsZero() {
		return nil, ErrInvalidRewardsRoot
	}
	if reward.Cmp(helios.MaxInt160) > 0 || reward.Cmp(helios.MinInt160) < 0 {
		return nil, errors.New("reward exceeds range")
	}
	if mevReward.Sign() < 0 || mevReward.Cmp(helios.MaxUint160) > 0 {
		return nil, errors.New("mev reward out of range")
	}
	if !merkle.Verify(proof, root, RewardLeaf(vault, reward, mevReward)) {
		return nil, ErrInvalidProof
	}

	sync, err := k.syncs.Get(vault)
	if err != nil {
		return nil, err
	}
	period := new(big.Int).Sub(reward, sync.reward())
	period.Add(period, new(big.Int).Sub(mevReward, sync.mevReward()))

	nonce, err := k.nonce.Get()
	if err != nil {
		return nil, err
	}
	updated := &rewardSync{
		Nonce:     nonce.Uint64(),
		RewardNeg: reward.Sign() < 0,
		Reward:    new(big.Int).Abs(reward),
		MevReward: new(big.Int).Set(mevReward),
	}
	if err := k.syncs.Set(vault, updated); err != nil {
		return nil, err
	}
	return period, nil
}

// Collateralize marks a vault as tracked from the current nonce onward.
// Called when a vault registers its first validator, so the vault is not
// treated as behind on reports that predate it.
func (k *Keeper) Collateralize(vault helios.Address) error {
	sync, err := k.syncs.Get(vault)
	if err != nil {
		return err
	}
	if sync.Nonce != 0 || (sync.Reward != nil && sync.Reward.Sign() != 0) {
		return nil
	}
	nonce, err := k.nonce.Get()
	if err != nil {
		return err
	}
	sync.Nonce = nonce.Uint64()
	sync.Reward = new(big.Int)
	sync.MevReward = new(big.Int)
	return k.syncs.Set(vault, sync)
}

// IsHarvested reports whether the vault has processed the current root.
// A vault that was never collateralized has nothing to catch up on and
// counts as harvested.
func (k *Keeper) IsHarvested(vault helios.Address) (bool, error) {
	sync, err := k.syncs.Get(vault)
	if err != nil {
		return false, err
	}
	if sync.Nonce == 0 && (sync.Reward == nil || sync.Reward.Sign() == 0) {
		return true, nil
	}
	nonce, err := k.nonce.Get()
	if err != nil {
		return false, err
	}
	return sync.Nonce >= nonce.Uint64(), nil
}

// CanHarvest reports whether the vault is registered and behind the
// current root.
func (k *Keeper) CanHarvest(vault helios.Address) (bool, error) {
	registered, err := k.vault.Get(vault)
	if err != nil || !registered {
		return false, err
	}
	harvested, err := k.IsHarvested(vault)
	if err != nil {
		return false, err
	}
	return !harvested, nil
}
