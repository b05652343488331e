package exec

import (
	"sync"

	"k8s.io/client-go/tools/remotecommand"
)

// SizeQueue feeds terminal geometry changes to a running exec stream.
// Push never blocks: if the remote side has not consumed the previous size,
// the pending one is replaced, since only the latest geometry matters.
type SizeQueue struct {
	mu     sync.Mutex
	ch     chan remotecommand.TerminalSize
	closed bool
}

// NewSizeQueue returns a queue primed with the initial terminal size.
func NewSizeQueue(cols, rows uint16) *SizeQueue {
	q := &SizeQueue{ch: make(chan remotecommand.TerminalSize, 1)}
	q.Push(cols, rows)
	return q
}

// Push records a new terminal size, replacing any unconsumed one.
func (q *SizeQueue) Push(cols, rows uint16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case <-q.ch:
	default:
	}
	q.ch <- remotecommand.TerminalSize{Width: cols, Height: rows}
}

// Close releases the consumer. Next returns nil afterwards, which signals
// remotecommand to stop watching for resizes.
func (q *SizeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Next implements remotecommand.TerminalSizeQueue.
func (q *SizeQueue) Next() *remotecommand.TerminalSize {
	size, ok := <-q.ch
	if !ok {
		return nil
	}
	return &size
}
