// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package merkle

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/test/datagen"
)

func TestSingleLeaf(t *testing.T) {
	leaf := datagen.RandBytes32()
	tree := NewTree([]helios.Bytes32{leaf})

	assert.Equal(t, leaf, tree.Root())

	proof, ok := tree.Proof(leaf)
	require.True(t, ok)
	assert.Empty(t, proof)
	assert.True(t, Verify(proof, tree.Root(), leaf))
}

func TestProofRoundTrip(t *testing.T) {
	for _, size := range []int{2, 3, 7, 8, 33} {
		leaves := make([]helios.Bytes32, size)
		for i := range leaves {
			leaves[i] = datagen.RandBytes32()
		}
		tree := NewTree(leaves)
		root := tree.Root()

		for _, leaf := range leaves {
			proof, ok := tree.Proof(leaf)
			require.True(t, ok, "size %d", size)
			assert.True(t, Verify(proof, root, leaf), "size %d", size)
		}
	}
}

func TestProofRoundTripFuzzed(t *testing.T) {
	fuzzer := fuzz.New().NilChance(0).NumElements(1, 64)
	for range 20 {
		var leaves []helios.Bytes32
		fuzzer.Fuzz(&leaves)

		tree := NewTree(leaves)
		root := tree.Root()
		for _, leaf := range leaves {
			proof, ok := tree.Proof(leaf)
			require.True(t, ok)
			assert.True(t, Verify(proof, root, leaf))
		}
	}
}

func TestVerifyRejectsForgery(t *testing.T) {
	leaves := make([]helios.Bytes32, 8)
	for i := range leaves {
		leaves[i] = datagen.RandBytes32()
	}
	tree := NewTree(leaves)
	root := tree.Root()

	proof, ok := tree.Proof(leaves[0])
	require.True(t, ok)

	// wrong leaf
	assert.False(t, Verify(proof, root, datagen.RandBytes32()))

	// tampered proof
	if len(proof) > 0 {
		tampered := append([]helios.Bytes32(nil), proof...)
		tampered[0] = datagen.RandBytes32()
		assert.False(t, Verify(tampered, root, leaves[0]))
	}

	// wrong root
	assert.False(t, Verify(proof, datagen.RandBytes32(), leaves[0]))
}

func TestUnknownLeaf(t *testing.T) {
	tree := NewTree([]helios.Bytes32{datagen.RandBytes32(), datagen.RandBytes32()})
	_, ok := tree.Proof(datagen.RandBytes32())
	assert.False(t, ok)
}
