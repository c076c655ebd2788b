// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package helios

import (
	"math/big"
	"time"
)

// Protocol wide constants.
const (
	// ValidatorPubKeyLength length of a validator BLS public key in bytes.
	ValidatorPubKeyLength = 48
	// ValidatorSignatureLength length of a validator deposit signature in bytes.
	ValidatorSignatureLength = 96

	// ExitClaimDelay minimum time between entering the exit queue and claiming
	// exited assets. Guards checkpoint settlement against flashloan games.
	ExitClaimDelay = 24 * time.Hour

	// MaxOracles upper bound of the oracle set size.
	MaxOracles = 30
)

var (
	// ValidatorDepositAmount amount of assets consumed by one validator registration.
	ValidatorDepositAmount = new(big.Int).Mul(big.NewInt(32), big.NewInt(1e18))

	// MaxUint96 upper bound of the rewards nonce. The nonce increases once per
	// oracle round, so this bound is effectively never reached.
	MaxUint96 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(1))

	// MaxUint128 upper bound of share and asset totals.
	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	// MaxInt160 and MinInt160 bound cumulative reward values carried in
	// rewards merkle leaves.
	MaxInt160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 159), big.NewInt(1))
	MinInt160 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 159))

	// MaxUint160 upper bound of unlocked MEV reward values.
	MaxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
)
