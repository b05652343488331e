// Package ticket implements one-time, short-lived websocket authorization
// tokens. A ticket is scoped to a single action (exec or logs) on a single
// (namespace, pod, container) target, and is the only credential allowed to
// appear in a websocket connection URI: long-lived bearer tokens never leave
// the HTTPS request that issues the ticket.
package ticket
