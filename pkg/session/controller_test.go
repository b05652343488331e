package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeterm/kubeterm/pkg/term"
)

var testTarget = Target{Namespace: "default", Pod: "web-0", Container: "app"}

type fakeIssuer struct {
	mu     sync.Mutex
	calls  int
	err    error
	ticket string

	// when set, Issue signals started and blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeIssuer) Issue(ctx context.Context, target Target) (string, error) {
	f.mu.Lock()
	f.calls++
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
		<-release
	}
	if f.err != nil {
		return "", f.err
	}
	if f.ticket != "" {
		return f.ticket, nil
	}
	return "tok-abc123", nil
}

func (f *fakeIssuer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDialer struct {
	mu         sync.Mutex
	calls      int
	err        error
	lastTicket string
	transports []*fakeTransport
}

func (f *fakeDialer) Dial(ctx context.Context, target Target, ticket string) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTicket = ticket
	if f.err != nil {
		return nil, f.err
	}
	t := newFakeTransport()
	f.transports = append(f.transports, t)
	return t, nil
}

func (f *fakeDialer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeDialer) transport(i int) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[i]
}

type wireFrame struct {
	messageType int
	data        []byte
}

type fakeTransport struct {
	in     chan wireFrame
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan wireFrame, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case f := <-t.in:
		return f.messageType, f.data, nil
	case <-t.closed:
		return 0, nil, io.ErrClosedPipe
	}
}

func (t *fakeTransport) WriteBinary(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, append([]byte(nil), p...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.writes))
	copy(out, t.writes)
	return out
}

func newTestController(t *testing.T) (*Controller, *term.Capture, *fakeIssuer, *fakeDialer) {
	t.Helper()
	surface := term.NewCapture(24, 80)
	issuer := &fakeIssuer{}
	dialer := &fakeDialer{}
	ctrl, err := NewController(testTarget, surface, issuer, dialer)
	require.NoError(t, err)
	return ctrl, surface, issuer, dialer
}

func TestControllerValidation(t *testing.T) {
	surface := term.NewCapture(24, 80)

	_, err := NewController(Target{}, surface, &fakeIssuer{}, &fakeDialer{})
	assert.Error(t, err)

	_, err = NewController(testTarget, nil, &fakeIssuer{}, &fakeDialer{})
	assert.Error(t, err)

	_, err = NewController(testTarget, surface, nil, nil)
	assert.Error(t, err)
}

func TestConnectTicketThenDial(t *testing.T) {
	ctrl, surface, issuer, dialer := newTestController(t)
	issuer.ticket = "tok-1"

	require.NoError(t, ctrl.Connect(context.Background()))

	assert.Equal(t, StateConnected, ctrl.State())
	assert.Equal(t, 1, issuer.callCount())
	assert.Equal(t, 1, dialer.callCount())
	assert.Equal(t, "tok-1", dialer.lastTicket)

	banners := surface.Banners()
	require.Len(t, banners, 2)
	assert.Contains(t, banners[0], "connecting to default/web-0/app")
	assert.Contains(t, banners[1], "connected")
}

func TestConnectIsNoopWhileConnected(t *testing.T) {
	ctrl, _, issuer, dialer := newTestController(t)

	require.NoError(t, ctrl.Connect(context.Background()))
	require.NoError(t, ctrl.Connect(context.Background()))

	assert.Equal(t, 1, issuer.callCount())
	assert.Equal(t, 1, dialer.callCount())
}

func TestInputDroppedUnlessConnected(t *testing.T) {
	ctrl, _, _, dialer := newTestController(t)

	// disconnected: dropped
	ctrl.SendInput([]byte("early"))

	require.NoError(t, ctrl.Connect(context.Background()))
	ctrl.SendInput([]byte("ls\n"))

	tr := dialer.transport(0)
	require.Len(t, tr.written(), 1)
	assert.Equal(t, []byte("ls\n"), tr.written()[0])

	ctrl.Disconnect()
	ctrl.SendInput([]byte("late"))
	assert.Len(t, tr.written(), 1)
}

func TestRemoteOutputDeliveredInOrder(t *testing.T) {
	ctrl, surface, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	tr := dialer.transport(0)
	tr.in <- wireFrame{BinaryMessage, []byte("one ")}
	tr.in <- wireFrame{BinaryMessage, []byte("two ")}
	tr.in <- wireFrame{TextMessage, []byte("status line")}

	require.Eventually(t, func() bool {
		return len(surface.Writes()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"one ", "two ", "status line"}, surface.Writes())
}

func TestBinaryFramesDecodedBestEffort(t *testing.T) {
	ctrl, surface, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	tr := dialer.transport(0)
	tr.in <- wireFrame{BinaryMessage, []byte("héllo ✓")}
	tr.in <- wireFrame{BinaryMessage, []byte{'o', 'k', 0xff, 0xfe}}

	require.Eventually(t, func() bool {
		return len(surface.Writes()) == 2
	}, time.Second, 5*time.Millisecond)

	writes := surface.Writes()
	assert.Equal(t, "héllo ✓", writes[0])
	assert.Equal(t, "ok�", writes[1])
}

func TestRemoteDataHandlerOverridesSurface(t *testing.T) {
	ctrl, surface, _, dialer := newTestController(t)

	var mu sync.Mutex
	var got []string
	ctrl.OnRemoteData(func(chunk string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, chunk)
	})

	require.NoError(t, ctrl.Connect(context.Background()))
	dialer.transport(0).in <- wireFrame{BinaryMessage, []byte("routed")}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, surface.Writes())
}

func TestDisconnectIdempotent(t *testing.T) {
	ctrl, _, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	ctrl.Disconnect()
	ctrl.Disconnect()

	assert.Equal(t, StateDisconnected, ctrl.State())
	assert.True(t, dialer.transport(0).isClosed())

	select {
	case <-ctrl.Done():
	default:
		t.Fatal("done channel should be closed after disconnect")
	}
}

func TestUnexpectedCloseLandsInErrored(t *testing.T) {
	ctrl, surface, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	dialer.transport(0).Close()

	require.Eventually(t, func() bool {
		return ctrl.State() == StateErrored
	}, time.Second, 5*time.Millisecond)

	assert.NotEmpty(t, ctrl.LastError())
	banners := surface.Banners()
	assert.Contains(t, banners[len(banners)-2], "connection closed")
	assert.Contains(t, banners[len(banners)-1], "reconnect")

	// errored sessions drop input until Reconnect
	ctrl.SendInput([]byte("x"))
	assert.Empty(t, dialer.transport(0).written())
}

func TestReconnectAfterError(t *testing.T) {
	ctrl, surface, issuer, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	dialer.transport(0).Close()
	require.Eventually(t, func() bool {
		return ctrl.State() == StateErrored
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, ctrl.Reconnect(context.Background()))

	assert.Equal(t, StateConnected, ctrl.State())
	assert.Equal(t, 2, issuer.callCount())
	assert.Equal(t, 2, dialer.callCount())
	assert.Equal(t, 1, surface.Clears())

	// the replacement transport carries input, the dead one stays dead
	ctrl.SendInput([]byte("pwd\n"))
	assert.Len(t, dialer.transport(1).written(), 1)
	assert.Empty(t, dialer.transport(0).written())
}

func TestReconnectClosesPriorTransportFirst(t *testing.T) {
	ctrl, _, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	require.NoError(t, ctrl.Reconnect(context.Background()))

	assert.True(t, dialer.transport(0).isClosed())
	assert.False(t, dialer.transport(1).isClosed())
	assert.Equal(t, StateConnected, ctrl.State())
}

func TestTicketFailureLandsInErrored(t *testing.T) {
	ctrl, surface, issuer, dialer := newTestController(t)
	issuer.err = errors.New("unauthorized")

	err := ctrl.Connect(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateErrored, ctrl.State())
	assert.Equal(t, 0, dialer.callCount())
	banners := surface.Banners()
	assert.Contains(t, banners[1], "connection failed")
}

func TestDialFailureLandsInErrored(t *testing.T) {
	ctrl, _, _, dialer := newTestController(t)
	dialer.err = errors.New("dial tcp: refused")

	require.Error(t, ctrl.Connect(context.Background()))
	assert.Equal(t, StateErrored, ctrl.State())
	assert.Contains(t, ctrl.LastError(), "connection failed")
}

func TestDisposeDuringPendingTicket(t *testing.T) {
	ctrl, surface, issuer, dialer := newTestController(t)
	issuer.started = make(chan struct{})
	issuer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- ctrl.Connect(context.Background()) }()

	<-issuer.started
	ctrl.Dispose()
	close(issuer.release)

	require.NoError(t, <-done)

	// the ticket resolves into nothing: no dial, no transport, and the
	// disposed surface never sees another byte
	assert.Equal(t, 0, dialer.callCount())
	assert.Equal(t, StateDisconnected, ctrl.State())
	require.Len(t, surface.Banners(), 1)
}

func TestDisposeDiscardsLateDialResult(t *testing.T) {
	ctrl, _, _, dialer := newTestController(t)
	require.NoError(t, ctrl.Connect(context.Background()))

	ctrl.Dispose()

	assert.True(t, dialer.transport(0).isClosed())
	assert.Error(t, ctrl.Connect(context.Background()))
}
