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

package defaults

import "time"

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Websocket upgrades hijack the connection and are not bound by it.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// Ticket lifetimes for websocket session authorization.
const (
	// TicketTTL is the validity window for a one-time websocket ticket.
	// The issuing round trip plus the dial must fit inside it.
	TicketTTL = 30 * time.Second

	// TicketRetention is how long consumed or expired tickets are kept
	// before lazy cleanup removes them, preserving a short audit window.
	TicketRetention = 5 * time.Minute
)

// Kubernetes timeouts for K8s API operations.
const (
	// K8sRequestTimeout is the timeout for unary Kubernetes API calls
	// (pod lookups, container listings). Streaming calls are exempt.
	K8sRequestTimeout = 30 * time.Second
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// TicketRequestTimeout bounds the ticket-issuing round trip made by the
	// attach client before dialing the exec socket.
	TicketRequestTimeout = 10 * time.Second
)

// Websocket keepalive configuration.
const (
	// WSWriteTimeout bounds a single websocket frame write.
	WSWriteTimeout = 10 * time.Second

	// WSPingInterval is the interval between keepalive pings on idle
	// exec sessions.
	WSPingInterval = 30 * time.Second
)
