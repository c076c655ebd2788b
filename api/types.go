// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/vault"
)

// VaultSummary is the public view of one vault.
type VaultSummary struct {
	Address      helios.Address `json:"address"`
	TotalAssets  *big.Int       `json:"totalAssets"`
	TotalShares  *big.Int       `json:"totalShares"`
	QueuedShares *big.Int       `json:"queuedShares"`
	Available    *big.Int       `json:"availableAssets"`
	Withdrawable *big.Int       `json:"withdrawableAssets"`
	IsHarvested  bool           `json:"isHarvested"`
}

func newVaultSummary(v *vault.Vault) (*VaultSummary, error) {
	totalAssets, err := v.TotalAssets()
	if err != nil {
		return nil, err
	}
	totalShares, err := v.TotalShares()
	if err != nil {
		return nil, err
	}
	queued, err := v.QueuedShares()
	if err != nil {
		return nil, err
	}
	available, err := v.AvailableAssets()
	if err != nil {
		return nil, err
	}
	withdrawable, err := v.WithdrawableAssets()
	if err != nil {
		return nil, err
	}
	harvested, err := v.IsHarvested()
	if err != nil {
		return nil, err
	}
	return &VaultSummary{
		Address:      v.Address(),
		TotalAssets:  totalAssets,
		TotalShares:  totalShares,
		QueuedShares: queued,
		Available:    available,
		Withdrawable: withdrawable,
		IsHarvested:  harvested,
	}, nil
}

// SharesResponse reports a holder's shares and their asset value.
type SharesResponse struct {
	Shares *big.Int `json:"shares"`
	Assets *big.Int `json:"assets"`
}

// ExitPositionResponse reports the settlement state of an exit request.
type ExitPositionResponse struct {
	CheckpointIndex int64    `json:"checkpointIndex"`
	LeftTickets     *big.Int `json:"leftTickets"`
	ExitedTickets   *big.Int `json:"exitedTickets"`
	ExitedAssets    *big.Int `json:"exitedAssets"`
}

// DepositRequest funds a deposit.
type DepositRequest struct {
	Depositor helios.Address `json:"depositor"`
	Receiver  helios.Address `json:"receiver"`
	Assets    *big.Int       `json:"assets"`
}

// DepositResponse reports minted shares.
type DepositResponse struct {
	Shares *big.Int `json:"shares"`
}

// EnterExitRequest locks shares into the exit queue.
type EnterExitRequest struct {
	Owner    helios.Address `json:"owner"`
	Receiver helios.Address `json:"receiver"`
	Shares   *big.Int       `json:"shares"`
}

// EnterExitResponse identifies the created exit position.
type EnterExitResponse struct {
	PositionTicket *big.Int `json:"positionTicket"`
	Timestamp      uint64   `json:"timestamp"`
}

// ClaimRequest claims settled exit assets.
type ClaimRequest struct {
	Receiver        helios.Address `json:"receiver"`
	PositionTicket  *big.Int       `json:"positionTicket"`
	Timestamp       uint64         `json:"timestamp"`
	CheckpointIndex int64          `json:"checkpointIndex"`
}

// ClaimResponse reports claimed assets.
type ClaimResponse struct {
	Assets *big.Int `json:"assets"`
}

// HarvestBody carries an oracle reward report.
type HarvestBody struct {
	Reward            *big.Int         `json:"reward"`
	UnlockedMevReward *big.Int         `json:"unlockedMevReward"`
	Proof             []helios.Bytes32 `json:"proof"`
}

// UpdateStateRequest harvests (optionally) and settles the exit queue.
type UpdateStateRequest struct {
	Harvest *HarvestBody `json:"harvest"`
}

// ValidatorBody carries one validator registration.
type ValidatorBody struct {
	PublicKey       hexutil.Bytes  `json:"publicKey"`
	Signature       hexutil.Bytes  `json:"signature"`
	DepositDataRoot helios.Bytes32 `json:"depositDataRoot"`
}

// RegisterValidatorsRequest registers a batch of validators.
type RegisterValidatorsRequest struct {
	Validators []ValidatorBody `json:"validators"`
}

// RewardsResponse reports the keeper's current root.
type RewardsResponse struct {
	Root     helios.Bytes32 `json:"root"`
	IPFSHash helios.Bytes32 `json:"ipfsHash"`
	Nonce    *big.Int       `json:"nonce"`
}

// SubmitRewardsRequest submits a new rewards root.
type SubmitRewardsRequest struct {
	Root       helios.Bytes32  `json:"root"`
	IPFSHash   helios.Bytes32  `json:"ipfsHash"`
	Signatures []hexutil.Bytes `json:"signatures"`
}
