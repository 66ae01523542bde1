package kernel

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"deltanet/pkg/model"
)

// Router accepts websocket peers and relays envelopes between them:
// point-to-point when "to" names a registered node, broadcast to every
// other registered node otherwise. Registration is advisory, not an
// authorization gate; unregistered connections may send freely but are
// never broadcast targets.
type Router struct {
	upgrader websocket.Upgrader
	registry *Registry
	catalog  Catalog
	metrics  *Metrics
}

func NewRouter(catalog Catalog, metrics *Metrics) *Router {
	if catalog == nil {
		catalog = NewNoopCatalog()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Router{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		registry: NewRegistry(),
		catalog:  catalog,
		metrics:  metrics,
	}
}

// Registry exposes the connection registry, mainly for the HTTP status
// surface and tests.
func (rt *Router) Registry() *Registry { return rt.registry }

// Nodes lists currently registered identities.
func (rt *Router) Nodes() []model.NodeInfo { return rt.registry.Nodes() }

// HandleWS upgrades the request and runs the connection until it closes.
func (rt *Router) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := rt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	c := newConn(ws)
	rt.metrics.ConnectionsActive.Inc()
	log.Printf("conn from %s", c.Remote())
	go rt.readLoop(c)
}

func (rt *Router) readLoop(c *Conn) {
	done := make(chan struct{})
	defer func() {
		close(done)
		rt.drop(c)
		rt.metrics.ConnectionsActive.Dec()
		log.Printf("connection closed %s", c.Remote())
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go rt.keepalive(c, done)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		rt.handle(c, raw)
	}
}

// keepalive pings the peer on an interval; a peer that stops answering
// trips the read deadline and gets cleaned up by the read loop.
func (rt *Router) keepalive(c *Conn, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := c.ping(); err != nil {
				c.Close()
				return
			}
		}
	}
}

// handle processes one inbound frame. A panic in envelope handling is
// contained here so one bad frame cannot take down the router.
func (rt *Router) handle(c *Conn, raw []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("envelope handler panic remote=%s: %v", c.Remote(), rec)
			rt.metrics.MessagesRouted.WithLabelValues(outcomeError).Inc()
		}
	}()

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// No request_id can be recovered from a frame that does not
		// parse, so there is nothing to correlate a reply with.
		log.Printf("non-json message from %s dropped", c.Remote())
		rt.metrics.MessagesRouted.WithLabelValues(outcomeDropped).Inc()
		return
	}

	switch {
	case env.Type == TypeRegisterNode:
		rt.register(c, env)
	case env.To != "":
		rt.forward(c, env, raw)
	default:
		rt.broadcast(c, env, raw)
	}
}

func (rt *Router) register(c *Conn, env Envelope) {
	if env.NodeID == "" {
		_ = c.WriteJSON(errorEnvelope(ReasonMissingNodeID, nil))
		rt.metrics.MessagesRouted.WithLabelValues(outcomeError).Inc()
		return
	}
	info := model.NodeInfo{
		ID:           env.NodeID,
		Domain:       env.Domain,
		Capabilities: env.Capabilities,
		Metadata:     env.Metadata,
	}
	rt.registry.Register(env.NodeID, c, info)
	c.markRegistered()
	if err := rt.catalog.Put(info); err != nil {
		log.Printf("catalog put failed node=%s: %v", env.NodeID, err)
	}
	log.Printf("registered node %s domain=%s remote=%s", env.NodeID, env.Domain, c.Remote())
	_ = c.WriteJSON(RegisterAck{Type: TypeRegisterAck, NodeID: env.NodeID})
	rt.metrics.MessagesRouted.WithLabelValues(outcomeRegistered).Inc()
	rt.metrics.NodesRegistered.Set(float64(rt.registry.Len()))
}

// forward delivers a directed envelope. The payload (or the whole frame
// when no payload field is present) reaches the target verbatim.
func (rt *Router) forward(c *Conn, env Envelope, raw []byte) {
	target, ok := rt.registry.Resolve(env.To)
	if !ok {
		e := errorEnvelope(ReasonNodeNotRegistered, nil)
		e.NodeID = env.To
		e.RequestID = env.RequestID
		_ = c.WriteJSON(e)
		rt.metrics.MessagesRouted.WithLabelValues(outcomeError).Inc()
		return
	}
	if err := target.WriteRaw(frameFor(env, raw)); err != nil {
		log.Printf("forward to %s failed: %v", env.To, err)
		rt.drop(target)
		e := errorEnvelope(ReasonForwardFailed, map[string]any{
			"node_id": env.To,
			"error":   err.Error(),
		})
		e.RequestID = env.RequestID
		_ = c.WriteJSON(e)
		rt.metrics.MessagesRouted.WithLabelValues(outcomeError).Inc()
		return
	}
	rt.metrics.MessagesRouted.WithLabelValues(outcomeDirected).Inc()
}

// broadcast fans out to every registered connection except the sender.
// Delivery is concurrent and best effort with no cross-recipient ordering;
// each recipient's outcome is observed so dead peers get pruned instead of
// silently accumulating.
func (rt *Router) broadcast(c *Conn, env Envelope, raw []byte) {
	targets := rt.registry.AllExcept(c)
	if len(targets) == 0 {
		rt.metrics.MessagesRouted.WithLabelValues(outcomeBroadcast).Inc()
		return
	}
	frame := frameFor(env, raw)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []*Conn
	delivered := 0
	for _, target := range targets {
		wg.Add(1)
		go func(t *Conn) {
			defer wg.Done()
			err := t.WriteRaw(frame)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, t)
				return
			}
			delivered++
		}(target)
	}
	wg.Wait()

	rt.metrics.MessagesRouted.WithLabelValues(outcomeBroadcast).Inc()
	rt.metrics.BroadcastDeliveries.Add(float64(delivered))
	rt.metrics.BroadcastFailures.Add(float64(len(failed)))
	for _, t := range failed {
		rt.drop(t)
	}
	if len(failed) > 0 {
		log.Printf("broadcast delivered=%d failed=%d", delivered, len(failed))
	}
}

// drop unregisters and closes a connection, removing any catalog mirror
// entries. Safe to call more than once per connection.
func (rt *Router) drop(c *Conn) {
	removed := rt.registry.Unregister(c)
	for _, id := range removed {
		if err := rt.catalog.Delete(id); err != nil {
			log.Printf("catalog delete failed node=%s: %v", id, err)
		}
		log.Printf("unregistered node %s (disconnected)", id)
	}
	rt.metrics.NodesRegistered.Set(float64(rt.registry.Len()))
	c.Close()
}

// frameFor picks what gets forwarded: the payload field verbatim, or the
// whole original frame when the sender supplied none.
func frameFor(env Envelope, raw []byte) []byte {
	if len(env.Payload) > 0 {
		return []byte(env.Payload)
	}
	return raw
}
