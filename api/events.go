// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/helios-stake/helios/eventdb"
)

const eventsLimit = 1000

type eventsAPI struct {
	db *eventdb.EventDB
}

func (ea *eventsAPI) mount(router *mux.Router) {
	router.Path("").
		Methods(http.MethodPost).
		HandlerFunc(wrapHandlerFunc(ea.handleFilter))
}

func (ea *eventsAPI) handleFilter(w http.ResponseWriter, req *http.Request) error {
	var filter eventdb.Filter
	if err := parseJSON(req, &filter); err != nil {
		return err
	}
	if filter.Options == nil {
		filter.Options = &eventdb.Options{Limit: eventsLimit}
	} else if filter.Options.Limit > eventsLimit {
		return badRequest(errors.Errorf("options.limit exceeds max of %d", eventsLimit))
	}
	events, err := ea.db.Filter(req.Context(), &filter)
	if err != nil {
		return err
	}
	return writeJSON(w, events)
}
