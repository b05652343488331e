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
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kubeterm/kubeterm/pkg/audit"
	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// handleLogs handles GET /v1/namespaces/{namespace}/pods/{pod}/logs.
// It upgrades to a websocket and streams container logs as text frames.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	pod := chi.URLParam(r, "pod")
	query := r.URL.Query()

	tkt, ok := s.authorizeSocket(w, r, ticket.ActionLogs, namespace, pod, query.Get("container"))
	if !ok {
		return
	}

	resolveCtx, cancel := context.WithTimeout(r.Context(), defaults.K8sRequestTimeout)
	container, err := exec.ResolveContainer(resolveCtx, s.kube, namespace, pod, query.Get("container"))
	cancel()
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error(), false, nil)
		return
	}

	opts := exec.LogOptions{
		Namespace:  namespace,
		Pod:        pod,
		Container:  container,
		Follow:     query.Get("follow") == "true",
		Timestamps: query.Get("timestamps") == "true",
	}
	if tail := query.Get("tailLines"); tail != "" {
		if n, err := strconv.ParseInt(tail, 10, 64); err == nil && n > 0 {
			opts.TailLines = n
		}
	}

	stream, err := exec.LogStream(r.Context(), s.kube, opts)
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, ErrCodeUpstreamError, err.Error(), true, nil)
		return
	}
	defer stream.Close()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return s.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "path", r.URL.Path)
		return
	}

	sessionID := uuid.New().String()
	started := time.Now()
	wsSessionsActive.Inc()
	wsSessionsTotal.WithLabelValues(string(ticket.ActionLogs)).Inc()

	if err := s.audit.SessionStarted(r.Context(), audit.Session{
		ID:         sessionID,
		Action:     string(tkt.Action),
		Namespace:  namespace,
		Pod:        pod,
		Container:  container,
		RemoteAddr: r.RemoteAddr,
		StartedAt:  started,
	}); err != nil {
		slog.Warn("failed to audit session start", "error", err)
	}

	sock := &socket{conn: conn}
	streamCtx, cancelStream := context.WithCancel(r.Context())

	// Watch for client-side close; log sockets receive nothing from clients.
	go func() {
		defer cancelStream()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Close the upstream stream when the client goes away so the copy loop
	// below unblocks even on a quiet log.
	go func() {
		<-streamCtx.Done()
		_ = stream.Close()
	}()

	reason := "completed"
	buf := make([]byte, 4096)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if err := sock.writeText(string(buf[:n])); err != nil {
				reason = "client disconnected"
				break
			}
		}
		if readErr != nil {
			if streamCtx.Err() != nil {
				reason = "client disconnected"
			}
			break
		}
	}

	cancelStream()
	sock.writeClose("")
	_ = conn.Close()
	wsSessionsActive.Dec()

	if err := s.audit.SessionEnded(context.Background(), sessionID, reason, time.Now()); err != nil {
		slog.Warn("failed to audit session end", "error", err)
	}

	slog.Info("log session ended",
		"sessionID", sessionID,
		"namespace", namespace,
		"pod", pod,
		"container", container,
		"reason", reason,
		"duration", time.Since(started).String())
}
