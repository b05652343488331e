package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kubeterm/kubeterm/pkg/defaults"
)

// Frame types, mirroring the websocket wire values. Binary frames carry the
// data plane; text frames carry status lines and control JSON.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Transport is one full-duplex byte-stream connection. A Transport belongs to
// exactly one Controller and is re-created, never reused, on reconnect.
type Transport interface {
	// ReadMessage blocks for the next frame. It returns the frame type
	// (TextMessage or BinaryMessage), the payload, and an error once the
	// connection is closed or broken.
	ReadMessage() (messageType int, p []byte, err error)

	// WriteBinary sends one binary frame of raw input bytes.
	WriteBinary(p []byte) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// wsTransport adapts a gorilla websocket connection to the Transport
// interface. Reads are single-consumer (the controller's read loop); writes
// are serialized because close and input writes can race.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadMessage() (int, []byte, error) {
	return t.conn.ReadMessage()
}

func (t *wsTransport) WriteBinary(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(defaults.WSWriteTimeout))
	return t.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (t *wsTransport) Close() error {
	var err error
	t.closed.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	return err
}
