// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"time"

	"github.com/beevik/ntp"
	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/common"
)

// maxClockOffset is the tolerated drift against NTP. Exit claim delays and
// oracle report timing depend on wall clock time.
const maxClockOffset = 10 * time.Second

func checkClockOffset() {
	resp, err := ntp.Query("pool.ntp.org")
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	if resp.ClockOffset > maxClockOffset || resp.ClockOffset < -maxClockOffset {
		logger.Warn("clock offset detected", "offset", common.PrettyDuration(resp.ClockOffset))
	}
}

// NormalizeCacheSize clamps a configured cache size (MB) to half of the
// physical memory.
func NormalizeCacheSize(sizeMB int) int {
	if sizeMB < 128 {
		sizeMB = 128
	}
	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem", "err", err)
		return sizeMB
	}
	limitMB := int(mem.Total / 1024 / 1024 / 2)
	if sizeMB > limitMB {
		sizeMB = limitMB
		logger.Warn("cache size(MB) limited", "limit", limitMB)
	}
	return sizeMB
}
