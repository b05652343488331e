// Package errors provides structured error types shared across kubeterm
// components. Errors carry a stable classification code, a human-readable
// message, an optional wrapped cause, and optional debugging context.
package errors
