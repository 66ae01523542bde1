package kernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection lifecycle states.
const (
	stateConnected int32 = iota
	stateRegistered
	stateClosed
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 20 * time.Second
	pongWait   = pingPeriod + 10*time.Second
)

// Conn wraps one peer websocket. Gorilla allows a single concurrent
// writer, so every outbound frame goes through the mutex; the read side is
// owned exclusively by the connection's read loop.
type Conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	state  int32
	remote string
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, state: stateConnected, remote: ws.RemoteAddr().String()}
}

func (c *Conn) Remote() string { return c.remote }

func (c *Conn) registered() bool { return atomic.LoadInt32(&c.state) == stateRegistered }

func (c *Conn) markRegistered() { atomic.CompareAndSwapInt32(&c.state, stateConnected, stateRegistered) }

// WriteJSON sends v as one text frame.
func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// WriteRaw forwards bytes verbatim as one text frame.
func (c *Conn) WriteRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close is idempotent; the first caller wins.
func (c *Conn) Close() {
	if atomic.SwapInt32(&c.state, stateClosed) == stateClosed {
		return
	}
	_ = c.ws.Close()
}
