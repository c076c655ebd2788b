// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/node"
	"github.com/helios-stake/helios/vault"
	"github.com/helios-stake/helios/vault/validators"
)

type vaultsAPI struct {
	node *node.Node
}

func (va *vaultsAPI) mount(router *mux.Router) {
	router.Path("").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(va.handleList))
	router.Path("/{address}").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(va.handleGet))
	router.Path("/{address}/shares/{holder}").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(va.handleShares))
	router.Path("/{address}/exitqueue/{ticket}").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(va.handleExitPosition))
	router.Path("/{address}/deposits").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(va.handleDeposit))
	router.Path("/{address}/exits").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(va.handleEnterExit))
	router.Path("/{address}/claims").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(va.handleClaim))
	router.Path("/{address}/state").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(va.handleUpdateState))
	router.Path("/{address}/validators").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(va.handleRegisterValidators))
}

func (va *vaultsAPI) vault(req *http.Request) (*vault.Vault, error) {
	raw := mux.Vars(req)["address"]
	addr, err := helios.ParseAddress(raw)
	if err != nil {
		return nil, badRequest(errors.Wrap(err, "address"))
	}
	v := va.node.Vault(*addr)
	if v == nil {
		return nil, notFound(errors.Errorf("no vault at %s", addr))
	}
	return v, nil
}

func (va *vaultsAPI) handleList(w http.ResponseWriter, _ *http.Request) error {
	vaults := va.node.Vaults()
	out := make([]*VaultSummary, 0, len(vaults))
	for _, v := range vaults {
		summary, err := newVaultSummary(v)
		if err != nil {
			return err
		}
		out = append(out, summary)
	}
	return writeJSON(w, out)
}

func (va *vaultsAPI) handleGet(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	summary, err := newVaultSummary(v)
	if err != nil {
		return err
	}
	return writeJSON(w, summary)
}

func (va *vaultsAPI) handleShares(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	holder, err := helios.ParseAddress(mux.Vars(req)["holder"])
	if err != nil {
		return badRequest(errors.Wrap(err, "holder"))
	}
	shares, err := v.SharesOf(*holder)
	if err != nil {
		return err
	}
	assets, err := v.ConvertToAssets(shares)
	if err != nil {
		return err
	}
	return writeJSON(w, &SharesResponse{Shares: shares, Assets: assets})
}

func (va *vaultsAPI) handleExitPosition(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	ticket, ok := new(big.Int).SetString(mux.Vars(req)["ticket"], 10)
	if !ok {
		return badRequest(errors.New("bad ticket"))
	}
	query := req.URL.Query()
	receiver, err := helios.ParseAddress(query.Get("receiver"))
	if err != nil {
		return badRequest(errors.Wrap(err, "receiver"))
	}
	timestamp, err := strconv.ParseUint(query.Get("timestamp"), 10, 64)
	if err != nil {
		return badRequest(errors.Wrap(err, "timestamp"))
	}

	index, err := v.GetExitQueueIndex(ticket)
	if err != nil {
		return err
	}
	exited, err := v.CalculateExitedAssets(*receiver, ticket, timestamp, index)
	if err != nil {
		return err
	}
	return writeJSON(w, &ExitPositionResponse{
		CheckpointIndex: index,
		LeftTickets:     exited.LeftTickets,
		ExitedTickets:   exited.ExitedTickets,
		ExitedAssets:    exited.ExitedAssets,
	})
}

func (va *vaultsAPI) handleDeposit(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	var body DepositRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	if body.Assets == nil {
		return badRequest(errors.New("assets required"))
	}
	receiver := body.Receiver
	if receiver.IsZero() {
		receiver = body.Depositor
	}
	shares, err := v.Deposit(body.Depositor, receiver, body.Assets)
	if err != nil {
		return err
	}
	return writeJSON(w, &DepositResponse{Shares: shares})
}

func (va *vaultsAPI) handleEnterExit(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	var body EnterExitRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	if body.Shares == nil {
		return badRequest(errors.New("shares required"))
	}
	receiver := body.Receiver
	if receiver.IsZero() {
		receiver = body.Owner
	}
	ticket, timestamp, err := v.EnterExitQueue(body.Owner, receiver, body.Shares)
	if err != nil {
		return err
	}
	return writeJSON(w, &EnterExitResponse{PositionTicket: ticket, Timestamp: timestamp})
}

func (va *vaultsAPI) handleClaim(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	var body ClaimRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	if body.PositionTicket == nil {
		return badRequest(errors.New("positionTicket required"))
	}
	claimed, err := v.ClaimExitedAssets(body.Receiver, body.PositionTicket, body.Timestamp, body.CheckpointIndex)
	if err != nil {
		return err
	}
	return writeJSON(w, &ClaimResponse{Assets: claimed})
}

func (va *vaultsAPI) handleUpdateState(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	var body UpdateStateRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	var params *vault.HarvestParams
	if body.Harvest != nil {
		if body.Harvest.Reward == nil {
			return badRequest(errors.New("reward required"))
		}
		mev := body.Harvest.UnlockedMevReward
		if mev == nil {
			mev = new(big.Int)
		}
		params = &vault.HarvestParams{
			Reward:            body.Harvest.Reward,
			UnlockedMevReward: mev,
			Proof:             body.Harvest.Proof,
		}
	}
	if err := v.UpdateState(params); err != nil {
		return err
	}
	summary, err := newVaultSummary(v)
	if err != nil {
		return err
	}
	return writeJSON(w, summary)
}

func (va *vaultsAPI) handleRegisterValidators(w http.ResponseWriter, req *http.Request) error {
	v, err := va.vault(req)
	if err != nil {
		return err
	}
	var body RegisterValidatorsRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	batch := make([]validators.Validator, 0, len(body.Validators))
	for _, entry := range body.Validators {
		batch = append(batch, validators.Validator{
			PublicKey:       entry.PublicKey,
			Signature:       entry.Signature,
			DepositDataRoot: entry.DepositDataRoot,
		})
	}
	if err := v.RegisterValidators(batch); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
