//go:build consul

package kernel

import (
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"deltanet/pkg/model"
)

const catalogPrefix = "deltanet/nodes/"

// consulCatalog mirrors registrations into Consul KV under
// deltanet/nodes/<id>.
type consulCatalog struct {
	cli *consulapi.Client
}

// NewConsulCatalog creates a Consul-backed catalog (requires build tag consul).
func NewConsulCatalog(addr string) (Catalog, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &consulCatalog{cli: cli}, nil
}

func (c *consulCatalog) Put(info model.NodeInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = c.cli.KV().Put(&consulapi.KVPair{Key: catalogPrefix + info.ID, Value: b}, nil)
	return err
}

func (c *consulCatalog) Delete(nodeID string) error {
	_, err := c.cli.KV().Delete(catalogPrefix+nodeID, nil)
	return err
}
