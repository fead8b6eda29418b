package store

import (
	"fmt"

	"zha-go/internal/helpers"
	"zha-go/internal/zdo"
)

var _ helpers.DeviceGraph = (*Graph)(nil)

// Graph exposes a Store as the read-only device graph used by the
// bindable-cluster matcher.
type Graph struct {
	Store Store
}

// NewGraph wraps s.
func NewGraph(s Store) *Graph {
	return &Graph{Store: s}
}

func (g *Graph) Endpoints(ieee string) ([]uint8, error) {
	dev, err := g.Store.GetDevice(ieee)
	if err != nil {
		return nil, err
	}
	ids := make([]uint8, len(dev.Endpoints))
	for i, ep := range dev.Endpoints {
		ids[i] = ep.ID
	}
	return ids, nil
}

func (g *Graph) Clusters(ieee string, endpoint uint8) (in, out []uint16, err error) {
	dev, err := g.Store.GetDevice(ieee)
	if err != nil {
		return nil, nil, err
	}
	ep, ok := dev.Endpoint(endpoint)
	if !ok {
		return nil, nil, fmt.Errorf("device %s endpoint %d: %w", ieee, endpoint, ErrNotFound)
	}
	return ep.InClusters, ep.OutClusters, nil
}

func (g *Graph) CapabilityFlags(ieee string) (zdo.MACCapability, error) {
	dev, err := g.Store.GetDevice(ieee)
	if err != nil {
		return 0, err
	}
	return dev.NodeDescriptor.MACCapabilityFlags, nil
}
