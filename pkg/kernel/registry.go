package kernel

import (
	"sort"
	"sync"
	"time"

	"deltanet/pkg/model"
)

// Registry maps node ids to live connections. It is owned by a Router
// instance and handed around by reference; there is no package-level state.
//
// Collision policy is last-write-wins: registering an id already held by
// another connection repoints the id, and the loser is pruned on its next
// send failure or close. A connection holds at most one identity at a time;
// re-registering under a new id releases the old one.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Conn
	ids   map[*Conn]string
	meta  map[string]model.NodeInfo
}

func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*Conn),
		ids:   make(map[*Conn]string),
		meta:  make(map[string]model.NodeInfo),
	}
}

// Register binds nodeID to c, overwriting any prior mapping for that id.
func (r *Registry) Register(nodeID string, c *Conn, info model.NodeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.ids[c]; ok && prev != nodeID {
		delete(r.nodes, prev)
		delete(r.meta, prev)
	}
	if loser, ok := r.nodes[nodeID]; ok && loser != c {
		delete(r.ids, loser)
	}
	if info.RegisteredAt.IsZero() {
		info.RegisteredAt = time.Now().UTC()
	}
	r.nodes[nodeID] = c
	r.ids[c] = nodeID
	r.meta[nodeID] = info
}

// Resolve returns the live connection for nodeID.
func (r *Registry) Resolve(nodeID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.nodes[nodeID]
	return c, ok
}

// Unregister removes every id mapped to c. Idempotent; safe to call for
// connections that never registered.
func (r *Registry) Unregister(c *Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, conn := range r.nodes {
		if conn == c {
			delete(r.nodes, id)
			delete(r.meta, id)
			removed = append(removed, id)
		}
	}
	delete(r.ids, c)
	return removed
}

// AllExcept returns every registered connection other than c, deduplicated.
// Used for broadcast fan-out.
func (r *Registry) AllExcept(c *Conn) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Conn]struct{}, len(r.nodes))
	out := make([]*Conn, 0, len(r.nodes))
	for _, conn := range r.nodes {
		if conn == c {
			continue
		}
		if _, dup := seen[conn]; dup {
			continue
		}
		seen[conn] = struct{}{}
		out = append(out, conn)
	}
	return out
}

// Nodes lists the currently registered identities, ordered by id.
func (r *Registry) Nodes() []model.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.NodeInfo, 0, len(r.meta))
	for _, info := range r.meta {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
