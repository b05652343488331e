// Package defaults centralizes timeout and lifetime constants shared across
// kubeterm components so individual packages do not drift apart on values
// that must stay coherent (ticket TTL vs dial timeout, shutdown windows).
package defaults
