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
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kubeterm/kubeterm/pkg/audit"
	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/k8s/exec"
	"github.com/kubeterm/kubeterm/pkg/ticket"
)

// resizeMessage is the only client-to-server control message: a new terminal
// grid, sent as a JSON text frame.
type resizeMessage struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// socket serializes writes to one websocket connection. Exec output and
// status lines are produced by different goroutines.
type socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *socket) writeBinary(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(defaults.WSWriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (c *socket) writeText(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(defaults.WSWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *socket) writeClose(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}

// Write implements io.Writer for the exec stdout stream: every chunk of
// terminal output becomes one binary frame.
func (c *socket) Write(p []byte) (int, error) {
	if err := c.writeBinary(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// handleExec handles GET /v1/namespaces/{namespace}/pods/{pod}/exec.
// It upgrades to a websocket and bridges frames to a remote shell over the
// Kubernetes exec subresource.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	pod := chi.URLParam(r, "pod")
	query := r.URL.Query()

	tkt, ok := s.authorizeSocket(w, r, ticket.ActionExec, namespace, pod, query.Get("container"))
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

	command := []string{s.config.DefaultCommand}
	if c := query.Get("command"); c != "" {
		command = []string{c}
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own error response.
		slog.Warn("websocket upgrade failed", "error", err, "path", r.URL.Path)
		return
	}

	sessionID := uuid.New().String()
	started := time.Now()
	wsSessionsActive.Inc()
	wsSessionsTotal.WithLabelValues(string(ticket.ActionExec)).Inc()

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

	slog.Info("exec session started",
		"sessionID", sessionID,
		"namespace", namespace,
		"pod", pod,
		"container", container,
		"remoteAddr", r.RemoteAddr)

	cols, rows := initialSize(query)
	reason := s.bridgeExec(r.Context(), conn, exec.Options{
		Namespace: namespace,
		Pod:       pod,
		Container: container,
		Command:   command,
		TTY:       true,
	}, cols, rows)

	wsSessionsActive.Dec()
	if err := s.audit.SessionEnded(context.Background(), sessionID, reason, time.Now()); err != nil {
		slog.Warn("failed to audit session end", "error", err)
	}

	slog.Info("exec session ended",
		"sessionID", sessionID,
		"reason", reason,
		"duration", time.Since(started).String())
}

// bridgeExec pumps websocket frames into the exec stream and back until
// either side closes. It returns a short close reason for the audit trail.
func (s *Server) bridgeExec(ctx context.Context, conn *websocket.Conn, opts exec.Options, cols, rows uint16) string {
	sock := &socket{conn: conn}
	sizes := exec.NewSizeQueue(cols, rows)
	stdinReader, stdinWriter := io.Pipe()

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Client-to-server pump: binary frames feed stdin, text frames carry
	// resize control. A read error means the client went away.
	go func() {
		defer cancel()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				stdinWriter.CloseWithError(err)
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				if _, err := stdinWriter.Write(data); err != nil {
					return
				}
			case websocket.TextMessage:
				var msg resizeMessage
				if err := json.Unmarshal(data, &msg); err != nil {
					slog.Debug("ignoring malformed control frame", "error", err)
					continue
				}
				if msg.Type == "resize" && msg.Cols > 0 && msg.Rows > 0 {
					sizes.Push(msg.Cols, msg.Rows)
				}
			}
		}
	}()

	err := s.executor.Stream(execCtx, opts, exec.Streams{
		Stdin:  stdinReader,
		Stdout: sock,
	}, sizes)

	sizes.Close()
	_ = stdinReader.Close()

	reason := "completed"
	if err != nil && execCtx.Err() == nil {
		reason = err.Error()
		_ = sock.writeText("session error: " + err.Error())
	} else if execCtx.Err() != nil {
		reason = "client disconnected"
	}

	sock.writeClose("")
	_ = conn.Close()

	return reason
}

// initialSize reads the starting terminal grid from query parameters,
// falling back to the classic 80x24.
func initialSize(query map[string][]string) (cols, rows uint16) {
	cols, rows = 80, 24
	if v, ok := query["cols"]; ok && len(v) > 0 {
		if n, err := strconv.ParseUint(v[0], 10, 16); err == nil && n > 0 {
			cols = uint16(n)
		}
	}
	if v, ok := query["rows"]; ok && len(v) > 0 {
		if n, err := strconv.ParseUint(v[0], 10, 16); err == nil && n > 0 {
			rows = uint16(n)
		}
	}
	return cols, rows
}
