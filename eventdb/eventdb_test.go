// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-stake/helios/test/datagen"
	"github.com/helios-stake/helios/vault"
)

func TestFilterEvents(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	vaultA, vaultB := datagen.RandAddress(), datagen.RandAddress()
	actor := datagen.RandAddress()

	for i, ev := range []*vault.Event{
		{Time: 100, Vault: vaultA, Name: vault.EventDeposit, Actor: actor, Amount: big.NewInt(10)},
		{Time: 200, Vault: vaultA, Name: vault.EventExitQueueEntered, Actor: actor, Amount: big.NewInt(5)},
		{Time: 300, Vault: vaultB, Name: vault.EventDeposit, Actor: actor, Amount: big.NewInt(7)},
	} {
		require.NoError(t, db.Post(ev), "event %d", i)
	}

	ctx := context.Background()

	all, err := db.Filter(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, big.NewInt(10), all[0].Amount)

	byVault, err := db.Filter(ctx, &Filter{Vault: &vaultA})
	require.NoError(t, err)
	assert.Len(t, byVault, 2)

	byName, err := db.Filter(ctx, &Filter{Name: vault.EventDeposit, Order: DESC})
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, vaultB, byName[0].Vault)

	ranged, err := db.Filter(ctx, &Filter{Range: &Range{From: 150, To: 250}})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, vault.EventExitQueueEntered, ranged[0].Name)

	paged, err := db.Filter(ctx, &Filter{Options: &Options{Offset: 1, Limit: 1}})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, uint64(2), paged[0].Sequence)
}
