// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-stake/helios/co"
	"github.com/helios-stake/helios/config"
	"github.com/helios-stake/helios/eventdb"
	"github.com/helios-stake/helios/kv"
	"github.com/helios-stake/helios/test/datagen"
)

func testConfig(vaults int) *config.Config {
	cfg := config.Default()
	cfg.Oracles = config.Oracles{
		Members:   []string{datagen.RandAddress().String()},
		Threshold: 1,
	}
	for i := 0; i < vaults; i++ {
		cfg.Vaults = append(cfg.Vaults, config.VaultEntry{
			Address:        datagen.RandAddress().String(),
			DepositAddress: datagen.RandAddress().String(),
		})
	}
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config, store kv.Store) *Node {
	t.Helper()
	events, err := eventdb.NewMem()
	require.NoError(t, err)
	n, err := New(cfg, Options{Store: store, EventDB: events})
	require.NoError(t, err)
	return n
}

func TestNewHostsConfiguredVaults(t *testing.T) {
	cfg := testConfig(3)
	n := newTestNode(t, cfg, kv.NewMemDB())

	assert.Len(t, n.Vaults(), 3)
	for i, v := range n.Vaults() {
		assert.Equal(t, cfg.Vaults[i].Address, v.Address().String())
		assert.Same(t, v, n.Vault(v.Address()))
	}
	assert.Nil(t, n.Vault(datagen.RandAddress()))
	assert.NotNil(t, n.Keeper())
}

func TestCommitPersistsAcrossRestart(t *testing.T) {
	store := kv.NewMemDB()
	cfg := testConfig(1)

	n := newTestNode(t, cfg, store)
	v := n.Vaults()[0]
	alice := datagen.RandAddress()
	require.NoError(t, n.st.AddBalance(alice, big.NewInt(100)))

	shares, err := v.Deposit(alice, alice, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), shares)
	require.NoError(t, n.Commit())

	// a fresh node over the same store sees the deposit
	reloaded := newTestNode(t, cfg, store)
	total, err := reloaded.Vaults()[0].TotalAssets()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), total)
	balance, err := reloaded.Vaults()[0].SharesOf(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), balance)
}

func TestEventsFlowToStore(t *testing.T) {
	n := newTestNode(t, testConfig(1), kv.NewMemDB())
	v := n.Vaults()[0]
	alice := datagen.RandAddress()
	require.NoError(t, n.st.AddBalance(alice, big.NewInt(10)))

	_, err := v.Deposit(alice, alice, big.NewInt(10))
	require.NoError(t, err)

	events, err := n.EventDB().Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, v.Address(), events[0].Vault)
	assert.Equal(t, big.NewInt(10), events[0].Amount)
}

func TestConcurrentVaultOpsSerialized(t *testing.T) {
	n := newTestNode(t, testConfig(2), kv.NewMemDB())
	const rounds = 50

	var goes co.Goes
	for _, v := range n.Vaults() {
		v := v
		depositor := datagen.RandAddress()
		require.NoError(t, n.st.AddBalance(depositor, big.NewInt(rounds)))
		goes.Go(func() {
			for i := 0; i < rounds; i++ {
				if _, err := v.Deposit(depositor, depositor, big.NewInt(1)); err != nil {
					t.Error(err)
					return
				}
			}
		})
	}
	goes.Go(func() {
		for i := 0; i < rounds; i++ {
			if err := n.Commit(); err != nil {
				t.Error(err)
				return
			}
		}
	})
	goes.Wait()

	for _, v := range n.Vaults() {
		total, err := v.TotalAssets()
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(rounds), total)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testConfig(1)
	cfg.Vaults[0].Address = "bogus"
	_, err := New(cfg, Options{Store: kv.NewMemDB()})
	assert.Error(t, err)
}

func TestVaultAddressesUnique(t *testing.T) {
	cfg := testConfig(2)
	cfg.Vaults[1].Address = cfg.Vaults[0].Address
	_, err := New(cfg, Options{Store: kv.NewMemDB()})
	assert.Error(t, err)
}

func TestNormalizeCacheSize(t *testing.T) {
	assert.GreaterOrEqual(t, NormalizeCacheSize(0), 128)
	assert.GreaterOrEqual(t, NormalizeCacheSize(-5), 128)
}
