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

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kubeterm/kubeterm/pkg/term"
)

// State is the observable connection state of a Controller.
type State string

const (
	// StateDisconnected means no transport exists and none is being opened.
	StateDisconnected State = "disconnected"
	// StateConnecting means the ticket round trip or the dial is in flight.
	StateConnecting State = "connecting"
	// StateConnected means a live transport is open.
	StateConnected State = "connected"
	// StateErrored means the last connect failed or the transport closed
	// unexpectedly; recovery requires an explicit Reconnect.
	StateErrored State = "errored"
)

// TicketIssuer obtains a one-time connection ticket for a target.
type TicketIssuer interface {
	Issue(ctx context.Context, target Target) (string, error)
}

// Dialer opens a transport to the exec endpoint for a target, authorized by
// the given ticket value and nothing else.
type Dialer interface {
	Dial(ctx context.Context, target Target, ticket string) (Transport, error)
}

// RemoteDataHandler receives decoded remote output chunks in arrival order.
type RemoteDataHandler func(chunk string)

// Controller orchestrates connect, teardown, and reconnect for exactly one
// terminal session. It is the sole owner of its Transport and writes all
// status banners to its Surface; the zero guarantee it maintains is that at
// most one live transport exists at any time.
type Controller struct {
	target  Target
	tickets TicketIssuer
	dialer  Dialer

	mu        sync.Mutex
	surface   term.Surface
	sink      RemoteDataHandler
	state     State
	lastErr   string
	transport Transport
	done      chan struct{}
	// gen invalidates stale ticket responses, dials, and read loops after a
	// disconnect or dispose. Everything asynchronous snapshots gen and
	// discards its result if the controller has moved on.
	gen      uint64
	disposed bool
}

// NewController creates a controller for the given target. The surface
// receives banners and, unless OnRemoteData overrides it, remote output.
func NewController(target Target, surface term.Surface, tickets TicketIssuer, dialer Dialer) (*Controller, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, fmt.Errorf("surface is required")
	}
	if tickets == nil || dialer == nil {
		return nil, fmt.Errorf("ticket issuer and dialer are required")
	}

	closed := make(chan struct{})
	close(closed)

	return &Controller{
		target:  target,
		tickets: tickets,
		dialer:  dialer,
		surface: surface,
		state:   StateDisconnected,
		done:    closed,
	}, nil
}

// Target returns the session's destination.
func (c *Controller) Target() Target {
	return c.target
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the message of the most recent failure, if any.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Done returns a channel closed when the current session ends. When no
// session is live the returned channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// OnRemoteData registers the sink for decoded output chunks, replacing the
// default of writing them to the surface.
func (c *Controller) OnRemoteData(h RemoteDataHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = h
}

// Connect opens the session: ticket first, then the transport dial. It is a
// no-op while a connect is already in flight or a transport is live. On
// failure the session lands in StateErrored with an inline banner; the error
// is also returned for callers that exit on it.
func (c *Controller) Connect(ctx context.Context) error {
	return c.openTransport(ctx, fmt.Sprintf("connecting to %s ...", c.target))
}

// Reconnect tears down any live transport, clears the surface, and runs the
// connect path again for the same target. Meaningful from connected or
// errored; harmless elsewhere.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.Disconnect()

	c.mu.Lock()
	if !c.disposed {
		_ = c.surface.Clear()
	}
	c.mu.Unlock()

	return c.openTransport(ctx, fmt.Sprintf("reconnecting to %s ...", c.target))
}

// Disconnect closes the active transport if present and no-ops otherwise.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(StateDisconnected)
}

// Dispose disconnects and permanently retires the controller. Any in-flight
// ticket response or dial result is discarded; nothing is written to the
// surface afterwards.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked(StateDisconnected)
	c.disposed = true
}

// SendInput forwards raw bytes to the transport when connected. In any other
// state the bytes are dropped, never queued: a later connect must not replay
// input typed against a dead session.
func (c *Controller) SendInput(p []byte) {
	if len(p) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.transport == nil {
		return
	}
	if err := c.transport.WriteBinary(p); err != nil {
		c.failLocked(fmt.Sprintf("input write failed: %v", err))
	}
}

// openTransport is the single connect routine shared by Connect and
// Reconnect, so the two paths cannot drift apart.
func (c *Controller) openTransport(ctx context.Context, banner string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return fmt.Errorf("session controller disposed")
	}
	if c.state == StateConnecting || c.state == StateConnected {
		// Never a second live handle for the same controller.
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.state = StateConnecting
	c.lastErr = ""
	_ = c.surface.Banner("%s", banner)
	c.mu.Unlock()

	// The ticket round trip is the only awaited step; the controller sits in
	// StateConnecting with no transport until it resolves.
	ticketValue, err := c.tickets.Issue(ctx, c.target)

	c.mu.Lock()
	if c.stale(gen) {
		// Panel went away mid-handshake: discard the ticket, open nothing.
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.failLocked(fmt.Sprintf("connection failed: %v", err))
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	transport, err := c.dialer.Dial(ctx, c.target, ticketValue)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen) {
		if transport != nil {
			_ = transport.Close()
		}
		return nil
	}
	if err != nil {
		c.failLocked(fmt.Sprintf("connection failed: %v", err))
		return err
	}

	c.transport = transport
	c.state = StateConnected
	c.done = make(chan struct{})
	_ = c.surface.Banner("connected to %s", c.target)

	go c.readLoop(transport, gen)

	return nil
}

// readLoop pumps transport frames to the sink until the transport dies.
// A single goroutine per transport preserves arrival order.
func (c *Controller) readLoop(t Transport, gen uint64) {
	for {
		messageType, data, err := t.ReadMessage()
		if err != nil {
			c.remoteClosed(gen, err)
			return
		}

		var chunk string
		if messageType == BinaryMessage {
			chunk = decodeText(data)
		} else {
			chunk = string(data)
		}
		c.deliver(gen, chunk)
	}
}

func (c *Controller) deliver(gen uint64, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen) {
		return
	}
	if c.sink != nil {
		c.sink(chunk)
		return
	}
	_, _ = c.surface.Write([]byte(chunk))
}

// remoteClosed handles an unexpected transport close or error. Locally
// initiated teardown bumps gen first, so it never reaches the banner path.
func (c *Controller) remoteClosed(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stale(gen) {
		return
	}
	c.failLocked(fmt.Sprintf("connection closed: %v", err))
}

// failLocked moves the session to StateErrored with an inline banner and
// releases any transport. Recovery is manual via Reconnect.
func (c *Controller) failLocked(msg string) {
	c.teardownLocked(StateErrored)
	c.lastErr = msg
	_ = c.surface.Banner("%s", msg)
	_ = c.surface.Banner("press enter to reconnect, ctrl+] to detach")
}

// teardownLocked closes the transport, invalidates all in-flight async work,
// and settles into the given terminal state.
func (c *Controller) teardownLocked(next State) {
	c.gen++
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
	if c.state == StateConnected || c.state == StateConnecting {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	c.state = next
}

func (c *Controller) stale(gen uint64) bool {
	return c.disposed || c.gen != gen
}

// decodeText converts a binary frame to text best-effort: valid UTF-8 passes
// through untouched, anything malformed has invalid sequences replaced so a
// corrupt frame can never take the panel down.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}
