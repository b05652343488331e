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

// Package gateway implements the kubetermd HTTP server: the ticket endpoint,
// the websocket exec and log bridges, and the supporting surface around them
// (health, metrics, version, audit).
//
// # Connection model
//
// Websocket endpoints never accept long-lived credentials. A client first
// calls POST /v1/ws/tickets with its ambient credentials and receives a
// one-time, short-lived ticket scoped to a single action on a single pod
// container. The websocket dial then carries that ticket as its only
// credential. Bearer tokens in websocket query strings are rejected outright,
// since query strings end up in access logs and browser history.
//
// # Endpoints
//
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics
//	GET  /v1/version
//	GET  /v1/sessions
//	POST /v1/ws/tickets
//	GET  /v1/namespaces/{namespace}/pods/{pod}/containers
//	GET  /v1/namespaces/{namespace}/pods/{pod}/exec   (websocket)
//	GET  /v1/namespaces/{namespace}/pods/{pod}/logs   (websocket)
//
// # Wire protocol
//
// On an exec socket, binary frames are the data plane in both directions:
// raw keystrokes up, raw terminal output down. Text frames are the control
// plane: the client may send JSON resize messages, the server may send
// human-readable status lines. Log sockets deliver text frames only.
package gateway
