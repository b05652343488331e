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

package term

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDisposed is returned for operations on a surface after Dispose.
var ErrDisposed = errors.New("terminal surface disposed")

// Surface is the rendering target of one terminal session. Remote output is
// written verbatim (the surface or the underlying terminal interprets ANSI
// sequences); banners are local status lines the session layer injects around
// the remote stream.
//
// A Surface is owned by exactly one session panel and is never shared or
// reused across containers: scroll-back and cursor state must not leak
// between targets.
type Surface interface {
	// Write delivers remote output to the surface.
	Write(p []byte) (int, error)

	// Banner writes a local, visually distinct status line.
	Banner(format string, args ...any) error

	// Clear resets the visible screen and scroll-back.
	Clear() error

	// Fit applies a new character grid without disturbing accumulated output.
	Fit(rows, cols int)

	// Size returns the current character grid.
	Size() (rows, cols int)

	// Dispose releases the surface. Further writes fail with ErrDisposed.
	// Dispose is idempotent.
	Dispose() error
}

// Capture is an in-memory Surface for tests. It records every operation and
// rejects writes after disposal so teardown-ordering bugs surface as test
// failures instead of corrupted terminals.
type Capture struct {
	mu       sync.Mutex
	writes   []string
	banners  []string
	clears   int
	rows     int
	cols     int
	disposed bool
}

// NewCapture returns a Capture surface with the given initial grid.
func NewCapture(rows, cols int) *Capture {
	return &Capture{rows: rows, cols: cols}
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return 0, ErrDisposed
	}
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func (c *Capture) Banner(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.banners = append(c.banners, fmt.Sprintf(format, args...))
	return nil
}

func (c *Capture) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.clears++
	c.writes = nil
	return nil
}

func (c *Capture) Fit(rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows, c.cols = rows, cols
}

func (c *Capture) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, c.cols
}

func (c *Capture) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	return nil
}

// Writes returns the remote output chunks received since the last Clear.
func (c *Capture) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}

// Banners returns the status lines written so far.
func (c *Capture) Banners() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.banners))
	copy(out, c.banners)
	return out
}

// Clears returns how many times the surface was cleared.
func (c *Capture) Clears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

// Disposed reports whether Dispose was called.
func (c *Capture) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
