// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/helios-stake/helios/node"
)

type rewardsAPI struct {
	node *node.Node
}

func (ra *rewardsAPI) mount(router *mux.Router) {
	router.Path("").
		Methods(http.MethodGet).
		HandlerFunc(wrapHandlerFunc(ra.handleGet))
	router.Path("").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(ra.handleSubmit))
}

func (ra *rewardsAPI) handleGet(w http.ResponseWriter, _ *http.Request) error {
	root, ipfs, nonce, err := ra.node.Rewards()
	if err != nil {
		return err
	}
	return writeJSON(w, &RewardsResponse{Root: root, IPFSHash: ipfs, Nonce: nonce})
}

func (ra *rewardsAPI) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body SubmitRewardsRequest
	if err := parseJSON(req, &body); err != nil {
		return err
	}
	signatures := make([][]byte, 0, len(body.Signatures))
	for _, sig := range body.Signatures {
		signatures = append(signatures, sig)
	}
	if err := ra.node.SubmitRewardsRoot(body.Root, body.IPFSHash, signatures); err != nil {
		return err
	}
	return ra.handleGet(w, req)
}
