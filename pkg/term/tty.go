package term

import (
	"fmt"
	"os"
	"sync"

	"github.com/muesli/termenv"
	xterm "golang.org/x/term"
)

// TTY is the Surface backed by the process's controlling terminal. The
// terminal emulator itself interprets ANSI output; TTY handles raw mode,
// geometry bookkeeping, and styled banner lines.
type TTY struct {
	mu       sync.Mutex
	in       *os.File
	out      *os.File
	output   *termenv.Output
	restore  *xterm.State
	rows     int
	cols     int
	disposed bool
}

// NewTTY puts the input terminal into raw mode and returns a surface over it.
// The caller must Dispose to restore the terminal state.
func NewTTY(in, out *os.File) (*TTY, error) {
	fd := int(in.Fd())
	if !xterm.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}

	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}

	t := &TTY{
		in:      in,
		out:     out,
		output:  termenv.NewOutput(out),
		restore: state,
	}
	if rows, cols, err := t.lookupSize(); err == nil {
		t.rows, t.cols = rows, cols
	}
	return t, nil
}

func (t *TTY) lookupSize() (rows, cols int, err error) {
	cols, rows, err = xterm.GetSize(int(t.out.Fd()))
	return rows, cols, err
}

// RefreshSize re-reads the terminal geometry and applies it via Fit.
// Returns the grid in effect afterwards.
func (t *TTY) RefreshSize() (rows, cols int) {
	if r, c, err := t.lookupSize(); err == nil {
		t.Fit(r, c)
	}
	return t.Size()
}

func (t *TTY) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return 0, ErrDisposed
	}
	return t.out.Write(p)
}

// Banner writes a styled status line. Raw mode needs explicit CR LF framing.
func (t *TTY) Banner(format string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return ErrDisposed
	}

	line := t.output.String("kubeterm: " + fmt.Sprintf(format, args...)).
		Faint().
		String()
	_, err := fmt.Fprintf(t.out, "\r\n%s\r\n", line)
	return err
}

func (t *TTY) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return ErrDisposed
	}
	t.output.ClearScreen()
	return nil
}

// Fit records the character grid. The terminal emulator reflows its own
// buffer on resize; no redraw is needed here.
func (t *TTY) Fit(rows, cols int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows, t.cols = rows, cols
}

func (t *TTY) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows, t.cols
}

// Dispose restores the terminal out of raw mode. Idempotent.
func (t *TTY) Dispose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return nil
	}
	t.disposed = true

	var err error
	if t.restore != nil {
		err = xterm.Restore(int(t.in.Fd()), t.restore)
		t.restore = nil
	}
	// Leave the cursor on a fresh line after raw-mode output.
	fmt.Fprint(t.out, "\r\n")
	return err
}
