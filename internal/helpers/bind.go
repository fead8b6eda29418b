package helpers

import (
	"fmt"

	"zha-go/internal/zdo"
)

// DeviceGraph is the read-only view of the network the matcher works on.
// Devices are addressed by IEEE address; endpoints and clusters are
// returned in declaration order.
type DeviceGraph interface {
	Endpoints(ieee string) ([]uint8, error)
	Clusters(ieee string, endpoint uint8) (in, out []uint16, err error)
	CapabilityFlags(ieee string) (zdo.MACCapability, error)
}

// ClusterMatch is one source output cluster that can be bound to a target endpoint.
type ClusterMatch struct {
	SourceIEEE     string `json:"source_ieee"`
	SourceEndpoint uint8  `json:"source_endpoint"`
	ClusterID      uint16 `json:"cluster_id"`
	TargetIEEE     string `json:"target_ieee"`
	TargetEndpoint uint8  `json:"target_endpoint"`
}

func (m ClusterMatch) String() string {
	return fmt.Sprintf("%s/%d -> %s/%d cluster 0x%04X",
		m.SourceIEEE, m.SourceEndpoint, m.TargetIEEE, m.TargetEndpoint, m.ClusterID)
}

// MatchOption tunes IsBindableTarget and MatchedClusters.
type MatchOption func(*matchOptions)

type matchOptions struct {
	clusterFilter func(clusterID uint16) bool
}

// WithClusterFilter only considers clusters for which keep returns true.
func WithClusterFilter(keep func(clusterID uint16) bool) MatchOption {
	return func(o *matchOptions) {
		o.clusterFilter = keep
	}
}

func buildOptions(opts []MatchOption) matchOptions {
	var o matchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o matchOptions) keep(clusterID uint16) bool {
	return o.clusterFilter == nil || o.clusterFilter(clusterID)
}

type targetEndpoint struct {
	id uint8
	in map[uint16]bool
}

// IsBindableTarget reports whether target is mains powered and has an input
// cluster matching an output cluster of source.
func IsBindableTarget(g DeviceGraph, source, target string, opts ...MatchOption) (bool, error) {
	o := buildOptions(opts)

	caps, err := g.CapabilityFlags(target)
	if err != nil {
		return false, fmt.Errorf("capability flags of %s: %w", target, err)
	}
	if !caps.MainsPowered() {
		return false, nil
	}

	outputs, err := outputClusters(g, source)
	if err != nil {
		return false, err
	}
	if len(outputs) == 0 {
		return false, nil
	}

	targets, err := targetEndpoints(g, target)
	if err != nil {
		return false, err
	}
	for _, ep := range targets {
		for id := range ep.in {
			if outputs[id] && o.keep(id) {
				return true, nil
			}
		}
	}
	return false, nil
}

// MatchedClusters lists every source output cluster that can be bound to an
// input cluster of target. Order: source endpoints, then their output
// clusters, then target endpoints, each in declaration order. A target that
// is not bindable yields no matches.
func MatchedClusters(g DeviceGraph, source, target string, opts ...MatchOption) ([]ClusterMatch, error) {
	bindable, err := IsBindableTarget(g, source, target, opts...)
	if err != nil || !bindable {
		return nil, err
	}
	o := buildOptions(opts)

	targets, err := targetEndpoints(g, target)
	if err != nil {
		return nil, err
	}
	sourceEPs, err := g.Endpoints(source)
	if err != nil {
		return nil, fmt.Errorf("endpoints of %s: %w", source, err)
	}

	var matches []ClusterMatch
	for _, sep := range sourceEPs {
		_, out, err := g.Clusters(source, sep)
		if err != nil {
			return nil, fmt.Errorf("clusters of %s/%d: %w", source, sep, err)
		}
		seen := make(map[uint16]bool, len(out))
		for _, cid := range out {
			if seen[cid] || !o.keep(cid) {
				continue
			}
			seen[cid] = true
			for _, tep := range targets {
				if tep.in[cid] {
					matches = append(matches, ClusterMatch{
						SourceIEEE:     source,
						SourceEndpoint: sep,
						ClusterID:      cid,
						TargetIEEE:     target,
						TargetEndpoint: tep.id,
					})
				}
			}
		}
	}
	return matches, nil
}

func outputClusters(g DeviceGraph, ieee string) (map[uint16]bool, error) {
	eps, err := g.Endpoints(ieee)
	if err != nil {
		return nil, fmt.Errorf("endpoints of %s: %w", ieee, err)
	}
	outputs := make(map[uint16]bool)
	for _, ep := range eps {
		_, out, err := g.Clusters(ieee, ep)
		if err != nil {
			return nil, fmt.Errorf("clusters of %s/%d: %w", ieee, ep, err)
		}
		for _, id := range out {
			outputs[id] = true
		}
	}
	return outputs, nil
}

func targetEndpoints(g DeviceGraph, ieee string) ([]targetEndpoint, error) {
	eps, err := g.Endpoints(ieee)
	if err != nil {
		return nil, fmt.Errorf("endpoints of %s: %w", ieee, err)
	}
	targets := make([]targetEndpoint, 0, len(eps))
	for _, ep := range eps {
		in, _, err := g.Clusters(ieee, ep)
		if err != nil {
			return nil, fmt.Errorf("clusters of %s/%d: %w", ieee, ep, err)
		}
		set := make(map[uint16]bool, len(in))
		for _, id := range in {
			set[id] = true
		}
		targets = append(targets, targetEndpoint{id: ep, in: set})
	}
	return targets, nil
}
