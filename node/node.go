// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node hosts the vault engine: it owns the persistent store, the
// shared rewards keeper, the configured vaults and background
// housekeeping.
package node

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/co"
	"github.com/helios-stake/helios/config"
	"github.com/helios-stake/helios/eventdb"
	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/kv"
	"github.com/helios-stake/helios/log"
	"github.com/helios-stake/helios/slot"
	"github.com/helios-stake/helios/state"
	"github.com/helios-stake/helios/vault"
	"github.com/helios-stake/helios/vault/keeper"
	"github.com/helios-stake/helios/vault/policy"
)

var logger = log.WithContext("pkg", "node")

const (
	storeCacheSize = 65536

	commitInterval    = 10 * time.Second
	clockSyncInterval = 10 * time.Minute
)

// Node hosts the keeper and the configured vaults over one persistent
// store.
type Node struct {
	cfg    *config.Config
	store  kv.Store
	st     *state.State
	keeper *keeper.Keeper
	vaults map[helios.Address]*vault.Vault
	order  []helios.Address
	events *eventdb.EventDB

	// lock serializes every touch of st across the vaults, the keeper
	// and commits; the underlying journal is not safe for concurrent use.
	lock sync.RWMutex
	goes co.Goes
}

// Options overrides node collaborators, for tests and embedding.
type Options struct {
	// Store overrides the leveldb store opened under the data dir.
	Store kv.Store
	// EventDB overrides the event db opened under the data dir.
	EventDB *eventdb.EventDB
}

// New builds a node from config.
func New(cfg *config.Config, opts Options) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		db, err := kv.NewLevelDB(filepath.Join(cfg.DataDir, "state.db"), kv.Options{
			CacheSize: NormalizeCacheSize(cfg.CacheMB),
		})
		if err != nil {
			return nil, errors.Wrap(err, "open state store")
		}
		store = db
	}
	cached, err := kv.NewCachedStore(store, storeCacheSize)
	if err != nil {
		return nil, err
	}

	events := opts.EventDB
	if events == nil {
		if events, err = eventdb.New(filepath.Join(cfg.DataDir, "events.db")); err != nil {
			return nil, errors.Wrap(err, "open event db")
		}
	}

	st := state.New(cached)

	oracles, err := cfg.Oracles.Addresses()
	if err != nil {
		return nil, err
	}
	k, err := keeper.New(slot.NewContext(keeperAddress, st), oracles, cfg.Oracles.Threshold)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:    cfg,
		store:  cached,
		st:     st,
		keeper: k,
		vaults: make(map[helios.Address]*vault.Vault, len(cfg.Vaults)),
		events: events,
	}
	for i := range cfg.Vaults {
		if err := n.addVault(&cfg.Vaults[i]); err != nil {
			return nil, errors.Wrapf(err, "vault %s", cfg.Vaults[i].Address)
		}
	}
	return n, nil
}

// keeperAddress is the storage address of the shared keeper.
var keeperAddress = helios.BytesToAddress([]byte("helios-keeper"))

func (n *Node) addVault(entry *config.VaultEntry) error {
	addr := helios.MustParseAddress(entry.Address)
	deposit := helios.MustParseAddress(entry.DepositAddress)

	opts := vault.Options{
		Address:        addr,
		DepositAddress: deposit,
		ClaimDelay:     entry.ClaimDelay.Duration(),
		Events:         n.events,
		Lock:           &n.lock,
	}
	sctx := slot.NewContext(addr, n.st)
	switch entry.Policy {
	case config.PolicyWhitelist:
		opts.Policy = policy.NewWhitelist(sctx)
	case config.PolicyBlocklist:
		opts.Policy = policy.NewBlocklist(sctx)
	}
	if entry.Token != "" {
		token := slot.NewContext(helios.MustParseAddress(entry.Token), n.st)
		opts.Transfer = vault.NewTokenTransfer(token, addr)
	}

	v, err := vault.New(n.st, n.keeper, opts)
	if err != nil {
		return err
	}
	n.vaults[addr] = v
	n.order = append(n.order, addr)
	return nil
}

// Keeper returns the shared rewards keeper. Access through it is not
// serialized; concurrent callers use SubmitRewardsRoot and Rewards.
func (n *Node) Keeper() *keeper.Keeper {
	return n.keeper
}

// SubmitRewardsRoot forwards a signed oracle root to the keeper under
// the node's state lock.
func (n *Node) SubmitRewardsRoot(root, ipfsHash helios.Bytes32, signatures [][]byte) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.keeper.SubmitRewardsRoot(root, ipfsHash, signatures)
}

// Rewards returns the current rewards root, its ipfs hash and nonce.
func (n *Node) Rewards() (helios.Bytes32, helios.Bytes32, *big.Int, error) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	root, err := n.keeper.RewardsRoot()
	if err != nil {
		return helios.Bytes32{}, helios.Bytes32{}, nil, err
	}
	ipfsHash, err := n.keeper.RewardsIPFSHash()
	if err != nil {
		return helios.Bytes32{}, helios.Bytes32{}, nil, err
	}
	nonce, err := n.keeper.RewardsNonce()
	if err != nil {
		return helios.Bytes32{}, helios.Bytes32{}, nil, err
	}
	return root, ipfsHash, nonce, nil
}

// EventDB returns the event store.
func (n *Node) EventDB() *eventdb.EventDB {
	return n.events
}

// Vault returns the hosted vault at addr, or nil.
func (n *Node) Vault(addr helios.Address) *vault.Vault {
	return n.vaults[addr]
}

// Vaults returns the hosted vaults in config order.
func (n *Node) Vaults() []*vault.Vault {
	vaults := make([]*vault.Vault, 0, len(n.order))
	for _, addr := range n.order {
		vaults = append(vaults, n.vaults[addr])
	}
	return vaults
}

// Commit persists accumulated state writes to the store.
func (n *Node) Commit() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.st.Stage().Commit(n.store)
}

// Run starts housekeeping and blocks until ctx is done, then flushes and
// closes the node.
func (n *Node) Run(ctx context.Context) error {
	n.goes.Go(func() { n.houseKeeping(ctx) })
	n.goes.Wait()

	if err := n.Commit(); err != nil {
		return err
	}
	if err := n.events.Close(); err != nil {
		logger.Warn("failed to close event db", "err", err)
	}
	return n.store.Close()
}

func (n *Node) houseKeeping(ctx context.Context) {
	logger.Debug("enter house keeping")
	defer logger.Debug("leave house keeping")

	commitTicker := time.NewTicker(commitInterval)
	clockSyncTicker := time.NewTicker(clockSyncInterval)
	defer func() {
		commitTicker.Stop()
		clockSyncTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-commitTicker.C:
			if err := n.Commit(); err != nil {
				logger.Error("failed to commit state", "err", err)
			}
		case <-clockSyncTicker.C:
			go checkClockOffset()
		}
	}
}
