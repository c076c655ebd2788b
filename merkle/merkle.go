// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package merkle implements sorted-pair keccak merkle trees, the proof format
// used by the rewards oracle. Leaves are double hashed by the callers so a
// leaf can never be mistaken for an inner node.
package merkle

import (
	"bytes"
	"sort"

	"github.com/helios-stake/helios/helios"
)

// Verify reports whether leaf is part of the tree committed by root, walking
// the proof as sorted hash pairs.
func Verify(proof []helios.Bytes32, root, leaf helios.Bytes32) bool {
	computed := leaf
	for _, node := range proof {
		computed = hashPair(computed, node)
	}
	return computed == root
}

func hashPair(a, b helios.Bytes32) helios.Bytes32 {
	if bytes.Compare(a.Bytes(), b.Bytes()) <= 0 {
		return helios.Keccak256(a.Bytes(), b.Bytes())
	}
	return helios.Keccak256(b.Bytes(), a.Bytes())
}

// Tree is an in-memory sorted-pair merkle tree. The engine only verifies
// proofs; the tree is used by the oracle tooling and by tests.
type Tree struct {
	leaves []helios.Bytes32
	layers [][]helios.Bytes32
}

// NewTree builds a tree over the given leaf hashes.
func NewTree(leaves []helios.Bytes32) *Tree {
	sorted := append([]helios.Bytes32(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})

	layers := [][]helios.Bytes32{sorted}
	for current := sorted; len(current) > 1; {
		next := make([]helios.Bytes32, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPair(current[i], current[i+1]))
			} else {
				// odd node is promoted unchanged
				next = append(next, current[i])
			}
		}
		layers = append(layers, next)
		current = next
	}
	return &Tree{leaves: sorted, layers: layers}
}

// Root returns the tree root. An empty tree has a zero root.
func (t *Tree) Root() helios.Bytes32 {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return helios.Bytes32{}
	}
	return top[0]
}

// Proof returns the proof for the given leaf, or false when the leaf is not
// part of the tree.
func (t *Tree) Proof(leaf helios.Bytes32) ([]helios.Bytes32, bool) {
	index := -1
	for i, l := range t.leaves {
		if l == leaf {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}

	var proof []helios.Bytes32
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		index /= 2
	}
	return proof, true
}
