// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import (
	"math/big"

	"github.com/helios-stake/helios/helios"
)

// Event names emitted by the vault.
const (
	EventDeposit              = "deposit"
	EventExitQueueEntered     = "exit_queue_entered"
	EventCheckpointCreated    = "checkpoint_created"
	EventExitedAssetsClaimed  = "exited_assets_claimed"
	EventHarvested            = "harvested"
	EventValidatorsRegistered = "validators_registered"
)

// Event records one state-changing vault operation.
type Event struct {
	Time   uint64
	Vault  helios.Address
	Name   string
	Actor  helios.Address
	Amount *big.Int
}

// EventSink receives vault events. A nil sink drops them.
type EventSink interface {
	Post(*Event) error
}

func (v *Vault) emit(name string, actor helios.Address, amount *big.Int) {
	if v.events == nil {
		return
	}
	event := &Event{
		Time:  v.now(),
		Vault: v.addr,
		Name:  name,
		Actor: actor,
	}
	if amount != nil {
		event.Amount = new(big.Int).Set(amount)
	} else {
		event.Amount = new(big.Int)
	}
	if err := v.events.Post(event); err != nil {
		logger.Warn("failed to post event", "name", name, "err", err)
	}
}
