package store

import (
	"fmt"
	"time"

	"zha-go/internal/zdo"
)

// Device represents a Zigbee device reported by the stack.
type Device struct {
	IEEEAddress    string             `json:"ieee_address"`
	ShortAddress   uint16             `json:"short_address"`
	Manufacturer   string             `json:"manufacturer,omitempty"`
	Model          string             `json:"model,omitempty"`
	FriendlyName   string             `json:"friendly_name,omitempty"`
	NodeDescriptor zdo.NodeDescriptor `json:"node_descriptor"`
	Endpoints      []Endpoint         `json:"endpoints,omitempty"`
	JoinedAt       time.Time          `json:"joined_at"`
	LastSeen       time.Time          `json:"last_seen"`
}

// Endpoint represents a device endpoint. Cluster lists keep declaration order.
type Endpoint struct {
	ID          uint8    `json:"id"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceID    uint16   `json:"device_id"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}

// Endpoint returns the endpoint with the given id.
func (d *Device) Endpoint(id uint8) (*Endpoint, bool) {
	for i := range d.Endpoints {
		if d.Endpoints[i].ID == id {
			return &d.Endpoints[i], true
		}
	}
	return nil, false
}

// Binding is a source output cluster bound to a target endpoint.
type Binding struct {
	SourceIEEE     string    `json:"source_ieee"`
	SourceEndpoint uint8     `json:"source_endpoint"`
	ClusterID      uint16    `json:"cluster_id"`
	TargetIEEE     string    `json:"target_ieee"`
	TargetEndpoint uint8     `json:"target_endpoint"`
	CreatedAt      time.Time `json:"created_at"`
}

// key orders bindings by source so one source's entries are contiguous.
func (b *Binding) key() []byte {
	return []byte(fmt.Sprintf("%s/%03d/%04X/%s/%03d",
		b.SourceIEEE, b.SourceEndpoint, b.ClusterID, b.TargetIEEE, b.TargetEndpoint))
}
