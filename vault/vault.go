// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vault implements the staking vault facade. It composes the share
// ledger, exit queue, rewards keeper, validator adapter and access policy
// into one serialized engine: every state-changing call runs under the
// vault lock inside a state checkpoint and reverts atomically on error.
package vault

import (
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/log"
	"github.com/helios-stake/helios/slot"
	"github.com/helios-stake/helios/state"
	"github.com/helios-stake/helios/vault/exitqueue"
	"github.com/helios-stake/helios/vault/keeper"
	"github.com/helios-stake/helios/vault/ledger"
	"github.com/helios-stake/helios/vault/policy"
	"github.com/helios-stake/helios/vault/validators"
)

var logger = log.WithContext("pkg", "vault")

// schemaVersion is the current vault storage layout version.
const schemaVersion = 1

var slotSchemaVersion = slot.Position("schema-version")

// ErrNotHarvested is returned when an operation needs the vault to have
// processed the current rewards root first.
var ErrNotHarvested = errors.New("vault not harvested")

// HarvestParams carries an oracle reward report for one vault.
type HarvestParams struct {
	Reward            *big.Int
	UnlockedMevReward *big.Int
	Proof             []helios.Bytes32
}

// Options configures a vault.
type Options struct {
	// Address is the vault's storage address.
	Address helios.Address
	// DepositAddress receives validator deposits.
	DepositAddress helios.Address
	// Policy decides deposit access; nil means public.
	Policy policy.Policy
	// Transfer custodies the underlying asset; nil means native custody.
	Transfer AssetTransfer
	// Escrow is the optional external withdrawal escrow.
	Escrow validators.EscrowPuller
	// ClaimDelay overrides the default exit claim delay.
	ClaimDelay time.Duration
	// Now overrides the clock, unix seconds.
	Now func() uint64
	// Events receives emitted events; nil drops them.
	Events EventSink
	// Lock serializes access to the underlying state. Vaults sharing one
	// state must share one lock; nil means a private lock.
	Lock *sync.RWMutex
}

// Vault is the facade over one vault's modules.
type Vault struct {
	mu *sync.RWMutex

	addr       helios.Address
	st         *state.State
	ledger     *ledger.Ledger
	queue      *exitqueue.Queue
	keeper     *keeper.Keeper
	validators *validators.Adapter
	policy     policy.Policy
	transfer   AssetTransfer
	claimDelay uint64
	now        func() uint64
	events     EventSink
}

// New creates a vault over the given state and registers it with the
// keeper.
func New(st *state.State, k *keeper.Keeper, opts Options) (*Vault, error) {
	if opts.Address.IsZero() {
		return nil, errors.New("vault address required")
	}
	sctx := slot.NewContext(opts.Address, st)

	version := slot.NewUint64(sctx, slotSchemaVersion)
	stored, err := version.Get()
	if err != nil {
		return nil, err
	}
	if stored > schemaVersion {
		return nil, errors.Errorf("vault schema v%d newer than supported v%d", stored, schemaVersion)
	}
	if stored < schemaVersion {
		if err := migrateSchema(sctx, stored); err != nil {
			return nil, err
		}
		version.Set(schemaVersion)
	}

	v := &Vault{
		mu:     opts.Lock,
		addr:   opts.Address,
		st:     st,
		ledger: ledger.New(sctx),
		queue:  exitqueue.New(sctx),
		keeper: k,
		policy: opts.Policy,
		events: opts.Events,
	}
	if v.mu == nil {
		v.mu = new(sync.RWMutex)
	}
	if v.policy == nil {
		v.policy = policy.Public{}
	}
	v.transfer = opts.Transfer
	if v.transfer == nil {
		v.transfer = NewNativeTransfer(st, opts.Address)
	}
	delay := opts.ClaimDelay
	if delay == 0 {
		delay = helios.ExitClaimDelay
	}
	v.claimDelay = uint64(delay / time.Second)
	v.now = opts.Now
	if v.now == nil {
		v.now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	v.validators = validators.New(sctx, opts.DepositAddress, v.exitReserve, opts.Escrow)

	if err := k.AddVault(opts.Address); err != nil {
		return nil, err
	}
	return v, nil
}

// migrateSchema upgrades stored vault state from an older layout. Version
// zero marks a fresh vault with nothing to migrate.
func migrateSchema(_ *slot.Context, from uint64) error {
	if from == 0 {
		return nil
	}
	return errors.Errorf("no migration path from schema v%d", from)
}

// Address returns the vault's storage address.
func (v *Vault) Address() helios.Address {
	return v.addr
}

// run executes a state-changing operation inside a checkpoint, reverting
// all writes when it fails.
func (v *Vault) run(op string, fn func() error) error {
	checkpoint := v.st.NewCheckpoint()
	if err := fn(); err != nil {
		v.st.RevertTo(checkpoint)
		metricOpRevertCount().AddWithLabel(1, map[string]string{"op": op})
		return err
	}
	return nil
}

// Deposit converts assets into shares for the receiver at the current
// exchange rate. The depositor must pass the vault's access policy.
func (v *Vault) Deposit(depositor, receiver helios.Address, assets *big.Int) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var shares *big.Int
	err := v.run("deposit", func() error {
		if assets == nil || assets.Sign() <= 0 {
			return errors.New("assets must be positive")
		}
		allowed, err := v.policy.CanDeposit(depositor)
		if err != nil {
			return err
		}
		if !allowed {
			return policy.ErrAccessDenied
		}
		if shares, err = v.ledger.ConvertToShares(assets); err != nil {
			return err
		}
		if shares.Sign() == 0 {
			return errors.New("assets too small for one share")
		}
		if err := v.transfer.Deposit(depositor, assets); err != nil {
			return err
		}
		if err := v.ledger.MintShares(receiver, shares); err != nil {
			return err
		}
		return v.ledger.AddAssets(assets)
	})
	if err != nil {
		return nil, err
	}
	metricDepositCount().Add(1)
	v.emit(EventDeposit, receiver, assets)
	logger.Debug("deposit", "vault", v.addr, "receiver", receiver, "assets", assets, "shares", shares)
	return shares, nil
}

// EnterExitQueue locks shares of the owner and appends an exit request for
// the receiver. Returns the position ticket and the timestamp identifying
// the request; the caller must retain both to claim.
func (v *Vault) EnterExitQueue(owner, receiver helios.Address, shares *big.Int) (*big.Int, uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var (
		ticket    *big.Int
		timestamp = v.now()
	)
	err := v.run("enter_exit_queue", func() error {
		if shares == nil || shares.Sign() <= 0 {
			return errors.New("shares must be positive")
		}
		harvested, err := v.keeper.IsHarvested(v.addr)
		if err != nil {
			return err
		}
		if !harvested {
			return ErrNotHarvested
		}
		if err := v.ledger.LockShares(owner, shares); err != nil {
			return err
		}
		ticket, err = v.queue.Enter(receiver, shares, timestamp)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	metricExitEnterCount().Add(1)
	v.emit(EventExitQueueEntered, receiver, shares)
	logger.Debug("exit queue entered", "vault", v.addr, "receiver", receiver, "shares", shares, "ticket", ticket)
	return ticket, timestamp, nil
}

// UpdateState harvests the vault's pending reward report, if any, and
// settles queued exit requests against available liquidity. Harvesting and
// settlement always run together so exits are priced post-reward.
func (v *Vault) UpdateState(params *HarvestParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.run("update_state", func() error {
		if params != nil {
			period, err := v.keeper.Harvest(v.addr, params.Reward, params.UnlockedMevReward, params.Proof)
			if err != nil {
				return err
			}
			if err := v.applyDelta(period); err != nil {
				return err
			}
		}
		return v.settleExits()
	})
}

// applyDelta applies a signed harvest delta: rewards grow the pool,
// penalties are split between exiting and live assets before shrinking it.
func (v *Vault) applyDelta(period *big.Int) error {
	switch period.Sign() {
	case 0:
		return nil
	case 1:
		metricHarvestCount().AddWithLabel(1, map[string]string{"delta": "reward"})
		v.emit(EventHarvested, v.addr, period)
		logger.Debug("harvested reward", "vault", v.addr, "reward", period)
		return v.ledger.ApplyReward(period)
	}

	penalty := new(big.Int).Neg(period)
	exiting, err := v.queue.TotalExitingAssets()
	if err != nil {
		return err
	}
	totalAssets, err := v.ledger.TotalAssets()
	if err != nil {
		return err
	}
	absorbed, err := ledger.SplitPenalty(penalty, exiting, totalAssets)
	if err != nil {
		return err
	}
	if err := v.queue.AbsorbPenalty(absorbed); err != nil {
		return err
	}
	pool := new(big.Int).Sub(penalty, absorbed)
	applied, err := v.ledger.ApplyPenalty(pool)
	if err != nil {
		return err
	}
	if applied.Cmp(pool) < 0 {
		logger.Warn("penalty exceeds pool, clamped",
			"vault", v.addr, "penalty", penalty, "applied", applied)
	}
	metricHarvestCount().AddWithLabel(1, map[string]string{"delta": "penalty"})
	v.emit(EventHarvested, v.addr, period)
	logger.Debug("harvested penalty", "vault", v.addr, "penalty", penalty, "absorbed", absorbed)
	return nil
}

// settleExits checkpoints as many queued shares as available liquidity
// covers, FIFO.
func (v *Vault) settleExits() error {
	queued, err := v.queue.QueuedShares()
	if err != nil {
		return err
	}
	if queued.Sign() == 0 {
		return nil
	}
	available, err := v.availableAssets()
	if err != nil {
		return err
	}
	covered, err := v.ledger.ConvertToShares(available)
	if err != nil {
		return err
	}
	if covered.Cmp(queued) > 0 {
		covered = queued
	}
	if covered.Sign() == 0 {
		return nil
	}
	assets, err := v.ledger.ConvertToAssets(covered)
	if err != nil {
		return err
	}
	if err := v.ledger.BurnLocked(covered, assets); err != nil {
		return err
	}
	if err := v.queue.PushCheckpoint(covered, assets); err != nil {
		return err
	}
	metricCheckpointCount().Add(1)
	v.emit(EventCheckpointCreated, v.addr, assets)
	logger.Debug("checkpoint created", "vault", v.addr, "shares", covered, "assets", assets)
	return nil
}

// ClaimExitedAssets pays out the settled part of an exit request. The
// index is a hint; the covering checkpoint is recomputed.
func (v *Vault) ClaimExitedAssets(receiver helios.Address, ticket *big.Int, timestamp uint64, index int64) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var claimed *big.Int
	err := v.run("claim", func() error {
		var err error
		claimed, err = v.queue.Claim(receiver, ticket, timestamp, index, v.now(), v.claimDelay)
		if err != nil {
			return err
		}
		if claimed.Sign() == 0 {
			return nil
		}
		return v.transfer.Withdraw(receiver, claimed)
	})
	if err != nil {
		return nil, err
	}
	metricClaimCount().Add(1)
	v.emit(EventExitedAssetsClaimed, receiver, claimed)
	logger.Debug("exited assets claimed", "vault", v.addr, "receiver", receiver, "assets", claimed)
	return claimed, nil
}

// RegisterValidators funds and registers a batch of validators. The vault
// must be harvested so funding is checked against current balances.
func (v *Vault) RegisterValidators(batch []validators.Validator) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	err := v.run("register_validators", func() error {
		harvested, err := v.keeper.IsHarvested(v.addr)
		if err != nil {
			return err
		}
		if !harvested {
			return ErrNotHarvested
		}
		if err := v.validators.Register(batch); err != nil {
			return err
		}
		return v.keeper.Collateralize(v.addr)
	})
	if err != nil {
		return err
	}
	v.emit(EventValidatorsRegistered, v.addr, big.NewInt(int64(len(batch))))
	logger.Info("validators registered", "vault", v.addr, "count", len(batch))
	return nil
}

// exitReserve returns the assets set aside for unclaimed exits.
func (v *Vault) exitReserve() (*big.Int, error) {
	return v.queue.TotalExitingAssets()
}

// availableAssets returns vault custody net of exit reserves, floored at
// zero.
func (v *Vault) availableAssets() (*big.Int, error) {
	balance, err := v.transfer.Balance()
	if err != nil {
		return nil, err
	}
	reserved, err := v.exitReserve()
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(balance, reserved)
	if available.Sign() < 0 {
		available.SetInt64(0)
	}
	return available, nil
}

// TotalAssets returns the assets backing the vault's shares.
func (v *Vault) TotalAssets() (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.TotalAssets()
}

// TotalShares returns the vault's share supply.
func (v *Vault) TotalShares() (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.TotalShares()
}

// SharesOf returns the share balance of a holder.
func (v *Vault) SharesOf(holder helios.Address) (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.SharesOf(holder)
}

// ConvertToShares previews the shares minted for an asset amount.
func (v *Vault) ConvertToShares(assets *big.Int) (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.ConvertToShares(assets)
}

// ConvertToAssets previews the assets redeemed for a share amount.
func (v *Vault) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledger.ConvertToAssets(shares)
}

// QueuedShares returns locked shares awaiting settlement.
func (v *Vault) QueuedShares() (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.queue.QueuedShares()
}

// AvailableAssets returns liquidity not reserved for exits.
func (v *Vault) AvailableAssets() (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.availableAssets()
}

// WithdrawableAssets returns assets available for validator deposits.
func (v *Vault) WithdrawableAssets() (*big.Int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.validators.WithdrawableAssets()
}

// GetExitQueueIndex returns the checkpoint covering a position ticket, or
// -1 when none does yet.
func (v *Vault) GetExitQueueIndex(ticket *big.Int) (int64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.queue.GetExitQueueIndex(ticket)
}

// CalculateExitedAssets previews the claimable part of an exit request.
func (v *Vault) CalculateExitedAssets(receiver helios.Address, ticket *big.Int, timestamp uint64, index int64) (*exitqueue.ExitedAssets, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.queue.CalculateExitedAssets(receiver, ticket, timestamp, index)
}

// IsHarvested reports whether the vault processed the current rewards
// root.
func (v *Vault) IsHarvested() (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keeper.IsHarvested(v.addr)
}

// CanHarvest reports whether the vault lags the current rewards root.
func (v *Vault) CanHarvest() (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keeper.CanHarvest(v.addr)
}
