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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kubeterm/kubeterm/pkg/serializers"
	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// TicketResponse is the body returned by POST /v1/ws/tickets. Only the
// opaque value and its expiry leave the gateway; the scope stays server-side.
type TicketResponse struct {
	Ticket    string    `json:"ticket"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleIssueTicket handles POST /v1/ws/tickets
func (s *Server) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	var req ticket.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			"invalid ticket request body", false, nil)
		return
	}

	t, err := s.tickets.Issue(req)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			err.Error(), false, nil)
		return
	}

	ticketsIssued.WithLabelValues(string(t.Action)).Inc()

	// Audit is best-effort: a full disk must not block terminal access.
	if err := s.audit.TicketIssued(r.Context(), t); err != nil {
		slog.Warn("failed to audit ticket", "error", err)
	}

	slog.Debug("issued websocket ticket",
		"action", string(t.Action),
		"namespace", t.Namespace,
		"pod", t.Pod,
		"container", t.Container,
		"expiresAt", t.ExpiresAt)

	serializers.RespondJSON(w, http.StatusOK, TicketResponse{
		Ticket:    t.Value,
		ExpiresAt: t.ExpiresAt,
	})
}
