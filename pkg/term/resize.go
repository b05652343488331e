package term

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ResizeWatcher forwards terminal geometry changes to a callback while a
// session panel is mounted. It is client-local: the remote PTY is not told
// about resizes, the local grid is simply refitted.
type ResizeWatcher struct {
	signals chan os.Signal
	done    chan struct{}
	stopped sync.Once
}

// WatchResize starts listening for SIGWINCH. On every signal, lookup is
// consulted for the new geometry and apply is invoked with it. The callback
// runs on the watcher goroutine; implementations must be safe to call there.
func WatchResize(lookup func() (rows, cols int, ok bool), apply func(rows, cols int)) *ResizeWatcher {
	w := &ResizeWatcher{
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(w.signals, syscall.SIGWINCH)

	go func() {
		for {
			select {
			case <-w.done:
				return
			case <-w.signals:
				if rows, cols, ok := lookup(); ok {
					apply(rows, cols)
				}
			}
		}
	}()

	return w
}

// Stop detaches the signal handler and ends the watcher goroutine. Idempotent.
func (w *ResizeWatcher) Stop() {
	w.stopped.Do(func() {
		signal.Stop(w.signals)
		close(w.done)
	})
}
