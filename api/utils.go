// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/vault"
	"github.com/helios-stake/helios/vault/exitqueue"
	"github.com/helios-stake/helios/vault/keeper"
	"github.com/helios-stake/helios/vault/ledger"
	"github.com/helios-stake/helios/vault/policy"
	"github.com/helios-stake/helios/vault/validators"
)

// httpError binds a status code to an error.
type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

func badRequest(cause error) *httpError {
	return &httpError{cause: cause, status: http.StatusBadRequest}
}

func notFound(cause error) *httpError {
	return &httpError{cause: cause, status: http.StatusNotFound}
}

func forbidden(cause error) *httpError {
	return &httpError{cause: cause, status: http.StatusForbidden}
}

// handlerFunc is a handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, req *http.Request) error

// wrapHandlerFunc converts a handlerFunc to http.HandlerFunc, mapping
// domain errors to status codes.
func wrapHandlerFunc(f handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := f(w, req)
		if err == nil {
			return
		}
		var he *httpError
		if errors.As(err, &he) {
			http.Error(w, he.cause.Error(), he.status)
			return
		}
		switch {
		case errors.Is(err, policy.ErrAccessDenied):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, keeper.ErrInvalidProof),
			errors.Is(err, keeper.ErrInvalidRewardsRoot),
			errors.Is(err, keeper.ErrInvalidOracles),
			errors.Is(err, keeper.ErrInvalidVault),
			errors.Is(err, vault.ErrNotHarvested),
			errors.Is(err, validators.ErrInvalidValidators),
			errors.Is(err, validators.ErrInsufficientAssets),
			errors.Is(err, ledger.ErrInsufficientBalance),
			errors.Is(err, exitqueue.ErrExitRequestNotProcessed),
			errors.Is(err, exitqueue.ErrClaimTooEarly):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.Warn("internal error", "url", req.URL.Path, "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(obj)
}

func parseJSON(req *http.Request, obj any) error {
	if err := json.NewDecoder(req.Body).Decode(obj); err != nil {
		return badRequest(errors.Wrap(err, "body"))
	}
	return nil
}
