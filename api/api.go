// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the node's vaults, keeper and event store over HTTP.
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/helios-stake/helios/config"
	"github.com/helios-stake/helios/log"
	"github.com/helios-stake/helios/metrics"
	"github.com/helios-stake/helios/node"
)

var logger = log.WithContext("pkg", "api")

// New assembles the HTTP handler serving the node.
func New(n *node.Node, cfg *config.API) http.Handler {
	router := mux.NewRouter()

	vaults := &vaultsAPI{node: n}
	vaults.mount(router.PathPrefix("/vaults").Subrouter())

	rewards := &rewardsAPI{node: n}
	rewards.mount(router.PathPrefix("/rewards").Subrouter())

	events := &eventsAPI{db: n.EventDB()}
	events.mount(router.PathPrefix("/events").Subrouter())

	if cfg.Metrics {
		router.Path("/metrics").Handler(metrics.HTTPHandler())
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
	if cfg.Timeout > 0 {
		handler = http.TimeoutHandler(handler, cfg.Timeout.Duration(), "request timeout")
	}
	return handler
}
