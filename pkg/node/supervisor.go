package node

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 60 * time.Second
	writeWait        = 10 * time.Second
	pingPeriod       = 20 * time.Second
	pongWait         = pingPeriod + 10*time.Second
)

// Supervisor wraps an Agent's connection lifecycle: dial, register, read
// until the connection dies, back off, repeat. Backoff doubles per
// consecutive failure from BaseDelay up to MaxDelay and resets after any
// successful connect+register cycle. The kernel keeps no session state, so
// every reconnect re-registers from scratch.
type Supervisor struct {
	URI   string
	Agent *Agent

	// Dial overrides the gorilla dialer, mainly for tests.
	Dial func(ctx context.Context) (*websocket.Conn, error)

	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Run loops until ctx is cancelled. Connection-level errors are always
// transient; there is no retry cutoff.
func (s *Supervisor) Run(ctx context.Context) error {
	base := s.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := s.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}
	dial := s.Dial
	if dial == nil {
		dial = func(ctx context.Context) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URI, nil)
			return conn, err
		}
	}

	delay := base
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("connecting to kernel at %s", s.URI)
		conn, err := dial(ctx)
		if err != nil {
			log.Printf("dial failed: %v; reconnecting in %s", err, delay)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			delay = nextBackoff(delay, max)
			continue
		}
		if s.session(ctx, conn) {
			delay = base
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("disconnected; reconnecting in %s", delay)
		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextBackoff(delay, max)
	}
}

// session runs one connection to completion. Returns true once the
// register envelope went out, which is what resets the backoff.
func (s *Supervisor) session(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	w := &connWriter{conn: conn}
	s.Agent.SetSend(w.WriteJSON)
	defer s.Agent.SetSend(nil)

	// Fire-and-forget registration: inbound envelopes are handled without
	// waiting for the ack.
	if err := w.WriteJSON(s.Agent.RegisterEnvelope()); err != nil {
		log.Printf("register send failed: %v", err)
		return false
	}
	log.Printf("connected; registered node %s", s.Agent.NodeID())

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go w.keepalive(done)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("connection error: %v", err)
			return true
		}
		go s.Agent.Handle(raw)
	}
}

// connWriter serializes writes; gorilla allows one concurrent writer and
// handler replies come from many goroutines.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *connWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *connWriter) keepalive(done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := w.ping(); err != nil {
				return
			}
		}
	}
}

// nextBackoff doubles the delay, capped.
func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// sleepCtx waits for d unless ctx ends first; reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
