// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "github.com/helios-stake/helios/metrics"

var (
	metricDepositCount    = metrics.LazyLoadCounter("vault_deposit_count")
	metricExitEnterCount  = metrics.LazyLoadCounter("vault_exit_enter_count")
	metricClaimCount      = metrics.LazyLoadCounter("vault_claim_count")
	metricHarvestCount    = metrics.LazyLoadCounterVec("vault_harvest_count", []string{"delta"})
	metricCheckpointCount = metrics.LazyLoadCounter("vault_checkpoint_count")
	metricOpRevertCount   = metrics.LazyLoadCounterVec("vault_op_revert_count", []string{"op"})
)
