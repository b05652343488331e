// Package term provides the terminal surface abstraction for kubeterm
// sessions: the real controlling terminal in raw mode (TTY), an in-memory
// recording surface for tests (Capture), and the SIGWINCH resize watcher
// that keeps a surface's character grid in step with its rendered size.
package term
