// Package api exposes the station's inbound request-centric endpoints over
// HTTP (§6): create_request, get_request, list_requests,
// get_next_approvable_request, submit_request_approval, and
// notify_failed_station_upgrade.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/orbit-station/station/internal/platform/logging"
	"github.com/orbit-station/station/internal/platform/serviceauth"
	"github.com/orbit-station/station/internal/station/authz"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/stationerr"
)

// errorResponse is the JSON envelope written for every non-2xx response.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, logger *logging.Logger, r *http.Request, err error) {
	status := stationerr.HTTPStatus(err)
	kind := "internal"
	message := "internal server error"
	if se, ok := stationerr.As(err); ok {
		kind = string(se.Kind)
		message = se.Info
	}
	if logger != nil {
		logger.WithContext(r.Context()).WithError(err).Warn("request failed")
	}
	writeJSON(w, status, errorResponse{Kind: kind, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Kind: string(stationerr.KindValidation), Message: "invalid request body"})
		return false
	}
	return true
}

// callerResolver looks up the domain.User behind an authenticated actor ID,
// the join the HTTP boundary needs to turn a bearer token into an
// authz.Caller.
type callerResolver struct {
	users *repo.Users
}

func (c *callerResolver) resolve(r *http.Request) (authz.Caller, error) {
	actorID := serviceauth.ActorID(r.Context())
	if actorID == "" {
		return authz.Caller{}, stationerr.Forbidden("missing authenticated caller")
	}
	id, err := domain.ParseID(actorID)
	if err != nil {
		return authz.Caller{}, stationerr.Forbidden("malformed caller identity")
	}
	user, err := c.users.Get(r.Context(), id)
	if err != nil {
		return authz.Caller{}, stationerr.Forbidden("caller is not a registered user")
	}
	return authz.Authenticated(user), nil
}

// handleJSONWithCaller decodes Req, resolves the authenticated caller, runs
// fn, and writes the JSON result. Mirrors the shape of the teacher's
// generic HandleJSON helpers, with station errors driving status codes
// instead of a parallel set of typed HTTP errors.
func handleJSONWithCaller[Req any, Resp any](
	logger *logging.Logger,
	resolver *callerResolver,
	fn func(r *http.Request, caller authz.Caller, req *Req) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := resolver.resolve(r)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		var req Req
		if !decodeJSON(w, r, &req) {
			return
		}
		resp, err := fn(r, caller, &req)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleQueryWithCaller is like handleJSONWithCaller but for GET endpoints
// that take their input from the query string rather than a JSON body.
func handleQueryWithCaller[Resp any](
	logger *logging.Logger,
	resolver *callerResolver,
	fn func(r *http.Request, caller authz.Caller) (Resp, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := resolver.resolve(r)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		resp, err := fn(r, caller)
		if err != nil {
			writeError(w, logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
