package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltanet/pkg/model"
)

func TestRegistryRegisterResolve(t *testing.T) {
	r := NewRegistry()
	c := &Conn{}
	r.Register("heritage-1", c, model.NodeInfo{ID: "heritage-1", Domain: "heritage.culture"})

	got, ok := r.Resolve("heritage-1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Resolve("absent")
	assert.False(t, ok)
}

func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()
	older := &Conn{}
	newer := &Conn{}
	r.Register("heritage-1", older, model.NodeInfo{ID: "heritage-1"})
	r.Register("heritage-1", newer, model.NodeInfo{ID: "heritage-1"})

	got, ok := r.Resolve("heritage-1")
	require.True(t, ok)
	assert.Same(t, newer, got)

	// The loser no longer owns any id; unregistering it must not disturb
	// the winner's mapping.
	assert.Empty(t, r.Unregister(older))
	_, ok = r.Resolve("heritage-1")
	assert.True(t, ok)
}

func TestRegistryReRegisterReleasesOldID(t *testing.T) {
	r := NewRegistry()
	c := &Conn{}
	r.Register("first", c, model.NodeInfo{ID: "first"})
	r.Register("second", c, model.NodeInfo{ID: "second"})

	_, ok := r.Resolve("first")
	assert.False(t, ok, "a connection holds at most one identity")
	_, ok = r.Resolve("second")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := &Conn{}
	r.Register("heritage-1", c, model.NodeInfo{ID: "heritage-1"})

	removed := r.Unregister(c)
	assert.Equal(t, []string{"heritage-1"}, removed)
	_, ok := r.Resolve("heritage-1")
	assert.False(t, ok)

	assert.Empty(t, r.Unregister(c))
	assert.Empty(t, r.Unregister(&Conn{}))
}

func TestRegistryAllExcept(t *testing.T) {
	r := NewRegistry()
	a := &Conn{}
	b := &Conn{}
	r.Register("a", a, model.NodeInfo{ID: "a"})
	r.Register("b", b, model.NodeInfo{ID: "b"})

	peers := r.AllExcept(a)
	require.Len(t, peers, 1)
	assert.Same(t, b, peers[0])

	assert.Len(t, r.AllExcept(&Conn{}), 2)
}

func TestRegistryNodesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", &Conn{}, model.NodeInfo{ID: "zeta"})
	r.Register("alpha", &Conn{}, model.NodeInfo{ID: "alpha", Domain: "heritage.culture"})

	nodes := r.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "alpha", nodes[0].ID)
	assert.Equal(t, "zeta", nodes[1].ID)
	assert.False(t, nodes[0].RegisteredAt.IsZero())
}
