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

package ticket

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/kubeterm/kubeterm/pkg/defaults"
	"github.com/kubeterm/kubeterm/pkg/errors"
)

// Action identifies what a ticket authorizes on its target.
type Action string

const (
	// ActionExec authorizes an interactive exec session.
	ActionExec Action = "exec"
	// ActionLogs authorizes a log stream.
	ActionLogs Action = "logs"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionExec || a == ActionLogs
}

var (
	// ErrMissing is returned when no ticket value was supplied.
	ErrMissing = errors.New(errors.ErrCodeTicketRejected, "ticket is required")
	// ErrInvalid is returned for unknown or already consumed tickets.
	ErrInvalid = errors.New(errors.ErrCodeTicketRejected, "ticket invalid or consumed")
	// ErrExpired is returned when a ticket's TTL has elapsed.
	ErrExpired = errors.New(errors.ErrCodeTicketRejected, "ticket expired")
)

// Request scopes a ticket to one action on one exec target.
type Request struct {
	Action    Action `json:"action"`
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
}

// Ticket is a one-time, short-lived websocket authorization token. The Value
// is the only credential that may appear in a connection URI; it is useless
// after one consume or after ExpiresAt.
type Ticket struct {
	Value      string
	Action     Action
	Namespace  string
	Pod        string
	Container  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// Matches reports whether the ticket covers the given action and target.
// An empty container scope in the ticket covers any container.
func (t *Ticket) Matches(action Action, namespace, pod, container string) bool {
	if t.Action != action {
		return false
	}
	if t.Namespace != namespace || t.Pod != pod {
		return false
	}
	if t.Container != "" && t.Container != container {
		return false
	}
	return true
}

// Store issues and consumes one-time tickets. Expired entries are cleaned
// lazily on issue; a short retention window keeps them visible for the
// in-memory audit trail before removal.
type Store struct {
	mu        sync.Mutex
	tickets   map[string]*Ticket
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithTTL overrides the default ticket validity window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty ticket store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tickets:   map[string]*Ticket{},
		ttl:       defaults.TicketTTL,
		retention: defaults.TicketRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a new single-use ticket for the given request.
func (s *Store) Issue(req Request) (*Ticket, error) {
	if !req.Action.Valid() {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			"unsupported ws action", map[string]any{"action": string(req.Action)})
	}
	if req.Namespace == "" || req.Pod == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "namespace and pod are required")
	}

	value, err := randomToken(32)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to generate ticket", err)
	}

	now := s.now()
	t := &Ticket{
		Value:     value,
		Action:    req.Action,
		Namespace: req.Namespace,
		Pod:       req.Pod,
		Container: req.Container,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupLocked(now)
	s.tickets[value] = t

	return t, nil
}

// Consume validates and burns a ticket. A ticket can be consumed exactly once
// and only before it expires.
func (s *Store) Consume(value string) (*Ticket, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ErrMissing
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[value]
	if !ok {
		return nil, ErrInvalid
	}

	if now.After(t.ExpiresAt) {
		delete(s.tickets, value)
		return nil, ErrExpired
	}

	if t.ConsumedAt != nil {
		return nil, ErrInvalid
	}

	consumedAt := now
	t.ConsumedAt = &consumedAt

	return t, nil
}

// Len returns the number of tickets currently held, including consumed ones
// still inside the retention window.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

func (s *Store) cleanupLocked(now time.Time) {
	for key, t := range s.tickets {
		if t == nil || now.After(t.ExpiresAt.Add(s.retention)) {
			delete(s.tickets, key)
		}
	}
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
