//go:build !consul

package kernel

import "log"

// NewConsulCatalog returns a no-op catalog when the consul build tag is not
// enabled.
func NewConsulCatalog(addr string) (Catalog, error) {
	log.Printf("consul catalog requested (addr=%s) but consul build tag not enabled; node catalog disabled", addr)
	return noopCatalog{}, nil
}
