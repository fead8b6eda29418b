// Package gateway defines the transport to the external Zigbee stack that
// owns the radio, the network and the device interview.
package gateway

import (
	"context"
	"errors"

	"zha-go/internal/zcl"
	"zha-go/internal/zdo"
)

// ErrTimeout is returned when the stack does not answer a request in time.
var ErrTimeout = errors.New("gateway request timed out")

// Gateway is the abstract interface for the Zigbee stack.
type Gateway interface {
	// ZDO
	Bind(ctx context.Context, req BindRequest) error
	Unbind(ctx context.Context, req BindRequest) error

	// ZCL
	SendCommand(ctx context.Context, req CommandRequest) error

	// Indication callbacks
	OnDeviceJoined(handler func(DeviceJoinedEvent))
	OnDeviceLeft(handler func(DeviceLeftEvent))

	// Lifecycle
	Close() error
}

// BindRequest is a ZDO bind/unbind request. It is sent to the source device.
type BindRequest struct {
	SrcIEEE   string `json:"src_ieee"`
	SrcEP     uint8  `json:"src_endpoint"`
	ClusterID uint16 `json:"cluster_id"`
	DstIEEE   string `json:"dst_ieee"`
	DstEP     uint8  `json:"dst_endpoint"`
}

// CommandRequest sends a cluster-specific command with an encoded payload.
type CommandRequest struct {
	IEEE      string               `json:"ieee"`
	Endpoint  uint8                `json:"endpoint"`
	ClusterID uint16               `json:"cluster_id"`
	CommandID uint8                `json:"command_id"`
	Direction zcl.CommandDirection `json:"direction"`
	Payload   []byte               `json:"payload"`
}

// SimpleDescriptor describes an endpoint.
type SimpleDescriptor struct {
	Endpoint    uint8    `json:"endpoint"`
	ProfileID   uint16   `json:"profile_id"`
	DeviceID    uint16   `json:"device_id"`
	InClusters  []uint16 `json:"in_clusters"`
	OutClusters []uint16 `json:"out_clusters"`
}

// DeviceJoinedEvent is emitted once the stack has interviewed a joining device.
type DeviceJoinedEvent struct {
	IEEE           string             `json:"ieee"`
	ShortAddr      uint16             `json:"nwk"`
	Manufacturer   string             `json:"manufacturer,omitempty"`
	Model          string             `json:"model,omitempty"`
	NodeDescriptor zdo.NodeDescriptor `json:"node_descriptor"`
	Endpoints      []SimpleDescriptor `json:"endpoints"`
}

// DeviceLeftEvent is emitted when a device leaves.
type DeviceLeftEvent struct {
	IEEE      string `json:"ieee"`
	ShortAddr uint16 `json:"nwk"`
}
