// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cry provides signing and recovery for oracle signatures.
// Signatures use the 65-byte compact format with the recovery code first,
// over keccak256 digests.
package cry

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
)

// SignatureLength length of a compact signature in bytes.
const SignatureLength = 65

// Sign signs the given digest and returns a compact recoverable signature.
func Sign(digest helios.Bytes32, priv *secp256k1.PrivateKey) []byte {
	return ecdsa.SignCompact(priv, digest.Bytes(), false)
}

// Signer recovers the signing address from a compact signature.
func Signer(digest helios.Bytes32, sig []byte) (helios.Address, error) {
	if len(sig) != SignatureLength {
		return helios.Address{}, errors.New("invalid signature length")
	}
	pub, _, err := ecdsa.RecoverCompact(sig, digest.Bytes())
	if err != nil {
		return helios.Address{}, errors.Wrap(err, "recover signer")
	}
	return PubKeyToAddress(pub), nil
}

// PubKeyToAddress derives the account address of a public key.
func PubKeyToAddress(pub *secp256k1.PublicKey) helios.Address {
	hashed := helios.Keccak256(pub.SerializeUncompressed()[1:])
	return helios.BytesToAddress(hashed.Bytes()[12:])
}

// GenerateKey creates a fresh private key.
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}
