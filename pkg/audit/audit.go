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

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kubeterm/kubeterm/pkg/ticket"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	value       TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	namespace   TEXT NOT NULL,
	pod         TEXT NOT NULL,
	container   TEXT NOT NULL DEFAULT '',
	issued_at   TIMESTAMP NOT NULL,
	expires_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	action       TEXT NOT NULL,
	namespace    TEXT NOT NULL,
	pod          TEXT NOT NULL,
	container    TEXT NOT NULL DEFAULT '',
	remote_addr  TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP,
	close_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sessions_target ON sessions(namespace, pod);
`

// Session is one row of the exec session audit trail.
type Session struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	Namespace   string     `json:"namespace"`
	Pod         string     `json:"pod"`
	Container   string     `json:"container"`
	RemoteAddr  string     `json:"remoteAddr"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	CloseReason string     `json:"closeReason,omitempty"`
}

// Recorder persists the gateway audit trail to a local sqlite database.
// All Record methods are best-effort for callers: the gateway logs recorder
// errors but never fails a session over them.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens the audit database at path and applies the schema.
func Open(ctx context.Context, path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod audit db: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close releases the underlying database.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// TicketIssued records a minted ticket.
func (r *Recorder) TicketIssued(ctx context.Context, t *ticket.Ticket) error {
	if r == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tickets(value, action, namespace, pod, container, issued_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Value, string(t.Action), t.Namespace, t.Pod, t.Container,
		t.IssuedAt.UTC(), t.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("record ticket: %w", err)
	}
	return nil
}

// SessionStarted records the opening of a websocket session.
func (r *Recorder) SessionStarted(ctx context.Context, s Session) error {
	if r == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions(id, action, namespace, pod, container, remote_addr, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Action, s.Namespace, s.Pod, s.Container, s.RemoteAddr, s.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("record session start: %w", err)
	}
	return nil
}

// SessionEnded closes out a previously recorded session.
func (r *Recorder) SessionEnded(ctx context.Context, id, reason string, at time.Time) error {
	if r == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE sessions SET ended_at = ?, close_reason = ? WHERE id = ?`,
		at.UTC(), reason, id)
	if err != nil {
		return fmt.Errorf("record session end: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (r *Recorder) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, action, namespace, pod, container, remote_addr, started_at, ended_at, close_reason
FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var endedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.Action, &s.Namespace, &s.Pod, &s.Container,
			&s.RemoteAddr, &s.StartedAt, &endedAt, &s.CloseReason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
