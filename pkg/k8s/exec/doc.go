// Package exec bridges pod exec and log streams from the Kubernetes API to
// the gateway's websocket handlers. It wraps client-go's remotecommand SPDY
// executor, resolves exec targets to concrete containers, and carries terminal
// geometry changes through a non-blocking size queue.
package exec
