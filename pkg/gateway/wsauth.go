// Copyright (c) 2025, Kubeterm Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// forbiddenQueryParams are credential-shaped query parameters that must never
// appear in a websocket URI. Query strings leak into access logs, proxies,
// and browser history; the one-time ticket is the only credential allowed.
var forbiddenQueryParams = []string{
	"token",
	"access_token",
	"id_token",
	"authorization",
	"bearer",
}

// authorizeSocket validates a websocket request before upgrade: no bearer
// credentials in the query, an acceptable Origin, and a valid one-time ticket
// matching the requested action and target. On failure it writes the error
// response and returns false.
func (s *Server) authorizeSocket(w http.ResponseWriter, r *http.Request,
	action ticket.Action, namespace, pod, container string) (*ticket.Ticket, bool) {

	query := r.URL.Query()

	for _, param := range forbiddenQueryParams {
		if query.Has(param) {
			ticketRejects.Inc()
			s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
				"bearer credentials are not accepted in websocket URLs, request a ticket instead",
				false, map[string]interface{}{"parameter": param})
			return nil, false
		}
	}

	if !s.checkOrigin(r) {
		ticketRejects.Inc()
		slog.Warn("rejected websocket origin",
			"origin", r.Header.Get("Origin"),
			"host", r.Host,
			"path", r.URL.Path)
		s.writeError(w, r, http.StatusForbidden, ErrCodeOriginRejected,
			"websocket origin not allowed", false, nil)
		return nil, false
	}

	t, err := s.tickets.Consume(query.Get("ticket"))
	if err != nil {
		ticketRejects.Inc()
		status := http.StatusUnauthorized
		message := "ticket invalid or consumed"
		switch {
		case errors.Is(err, ticket.ErrMissing):
			status = http.StatusBadRequest
			message = "ticket is required"
		case errors.Is(err, ticket.ErrExpired):
			message = "ticket expired"
		}
		s.writeError(w, r, status, ErrCodeTicketRejected, message, false, nil)
		return nil, false
	}

	if !t.Matches(action, namespace, pod, container) {
		ticketRejects.Inc()
		s.writeError(w, r, http.StatusForbidden, ErrCodeTicketRejected,
			"ticket does not cover the requested target", false, nil)
		return nil, false
	}

	return t, true
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-host browser requests, and origins on the allowlist. The
// allowlist is consulted live so config reloads take effect immediately.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}

	return s.originAllowed(origin)
}
