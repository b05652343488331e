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

// Package session implements the client side of a kubeterm exec session:
// the controller that owns one remote-shell session per (namespace, pod,
// container) target, the websocket transport adapter behind it, and the
// panel that binds a controller to a terminal surface with deterministic
// lifecycle and resize handling.
//
// # Session state machine
//
//	disconnected --Connect--> connecting --(socket open)--> connected
//	connected --(close/error)--> errored      (manual Reconnect only)
//	any state --Disconnect--> disconnected    (idempotent)
//
// A controller holds at most one live transport. Reconnect tears the old
// transport down before the replacement is dialed, so duplicate byte
// delivery is impossible. Input sent while not connected is dropped, never
// buffered. Failures render as banners on the terminal surface; nothing
// escapes the panel as a panic or unhandled error.
//
// # Authorization
//
// Connecting is a two-step handshake: a one-time short-lived ticket is
// requested from the gateway over HTTPS, then the websocket is dialed with
// the ticket as the only credential in the URI. Long-lived tokens never
// appear in connection URLs.
package session
