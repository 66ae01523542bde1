package kernel

import "deltanet/pkg/model"

// Catalog mirrors registered node identities into an external service
// registry. Mirroring is best effort; catalog failures never affect
// routing.
type Catalog interface {
	Put(info model.NodeInfo) error
	Delete(nodeID string) error
}

type noopCatalog struct{}

func (noopCatalog) Put(model.NodeInfo) error { return nil }
func (noopCatalog) Delete(string) error { return nil }

// NewNoopCatalog returns a catalog that discards everything.
func NewNoopCatalog() Catalog { return noopCatalog{} }
