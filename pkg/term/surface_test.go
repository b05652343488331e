package term

import (
	"syscall"
	"testing"
	"time"
)

func TestCaptureRecordsWrites(t *testing.T) {
	c := NewCapture(24, 80)

	if _, err := c.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	writes := c.Writes()
	if len(writes) != 2 || writes[0] != "hello " || writes[1] != "world" {
		t.Errorf("unexpected writes: %v", writes)
	}
}

func TestCaptureBannerAndClear(t *testing.T) {
	c := NewCapture(24, 80)

	if err := c.Banner("connecting to %s", "default/web-0/app"); err != nil {
		t.Fatal(err)
	}
	if got := c.Banners(); len(got) != 1 || got[0] != "connecting to default/web-0/app" {
		t.Errorf("unexpected banners: %v", got)
	}

	_, _ = c.Write([]byte("output"))
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if c.Clears() != 1 {
		t.Errorf("expected 1 clear, got %d", c.Clears())
	}
	if len(c.Writes()) != 0 {
		t.Error("expected writes to be dropped by clear")
	}
}

func TestCaptureFitKeepsContent(t *testing.T) {
	c := NewCapture(24, 80)
	_, _ = c.Write([]byte("scrollback"))

	c.Fit(40, 120)

	rows, cols := c.Size()
	if rows != 40 || cols != 120 {
		t.Errorf("unexpected size after fit: %dx%d", rows, cols)
	}
	if len(c.Writes()) != 1 {
		t.Error("fit must not disturb accumulated output")
	}
}

func TestCaptureRejectsUseAfterDispose(t *testing.T) {
	c := NewCapture(24, 80)

	if err := c.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !c.Disposed() {
		t.Fatal("expected disposed")
	}

	if _, err := c.Write([]byte("late")); err != ErrDisposed {
		t.Errorf("expected ErrDisposed on write, got %v", err)
	}
	if err := c.Banner("late"); err != ErrDisposed {
		t.Errorf("expected ErrDisposed on banner, got %v", err)
	}
	if err := c.Clear(); err != ErrDisposed {
		t.Errorf("expected ErrDisposed on clear, got %v", err)
	}

	// Second dispose is a no-op.
	if err := c.Dispose(); err != nil {
		t.Errorf("expected idempotent dispose, got %v", err)
	}
}

func TestWatchResizeAppliesLookup(t *testing.T) {
	applied := make(chan [2]int, 1)

	w := WatchResize(
		func() (int, int, bool) { return 50, 132, true },
		func(rows, cols int) { applied <- [2]int{rows, cols} },
	)
	defer w.Stop()

	w.signals <- syscall.SIGWINCH

	select {
	case got := <-applied:
		if got != [2]int{50, 132} {
			t.Errorf("unexpected geometry: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("resize callback never fired")
	}
}

func TestWatchResizeStopIsIdempotent(t *testing.T) {
	w := WatchResize(
		func() (int, int, bool) { return 0, 0, false },
		func(rows, cols int) {},
	)

	w.Stop()
	w.Stop()

	// The watcher goroutine must be gone; a signal now goes nowhere.
	select {
	case w.signals <- syscall.SIGWINCH:
	default:
	}
}
