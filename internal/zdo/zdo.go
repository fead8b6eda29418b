// Package zdo holds the Zigbee Device Object descriptors the helpers read.
package zdo

import (
	"fmt"
	"strings"
)

// LogicalType is the node role from the node descriptor.
type LogicalType uint8

const (
	Coordinator LogicalType = 0
	Router      LogicalType = 1
	EndDevice   LogicalType = 2
)

func (t LogicalType) String() string {
	switch t {
	case Coordinator:
		return "Coordinator"
	case Router:
		return "Router"
	case EndDevice:
		return "EndDevice"
	default:
		return fmt.Sprintf("LogicalType(%d)", uint8(t))
	}
}

// MACCapability is the MAC capability flags byte of the node descriptor.
type MACCapability uint8

const (
	AlternatePANCoordinator MACCapability = 0x01
	FullFunctionDevice      MACCapability = 0x02
	MainsPowered            MACCapability = 0x04
	RxOnWhenIdle            MACCapability = 0x08
	SecurityCapable         MACCapability = 0x40
	AllocateAddress         MACCapability = 0x80
)

var capabilityNames = []struct {
	flag MACCapability
	name string
}{
	{AlternatePANCoordinator, "AlternatePANCoordinator"},
	{FullFunctionDevice, "FullFunctionDevice"},
	{MainsPowered, "MainsPowered"},
	{RxOnWhenIdle, "RxOnWhenIdle"},
	{SecurityCapable, "SecurityCapable"},
	{AllocateAddress, "AllocateAddress"},
}

// MainsPowered reports whether the device runs on mains power.
func (c MACCapability) MainsPowered() bool {
	return c&MainsPowered != 0
}

// RxOnWhenIdle reports whether the receiver stays on while idle.
func (c MACCapability) RxOnWhenIdle() bool {
	return c&RxOnWhenIdle != 0
}

func (c MACCapability) String() string {
	var parts []string
	rest := c
	for _, cn := range capabilityNames {
		if c&cn.flag != 0 {
			parts = append(parts, cn.name)
			rest &^= cn.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// NodeDescriptor is the subset of the ZDO node descriptor the service keeps.
type NodeDescriptor struct {
	LogicalType        LogicalType   `json:"logical_type"`
	MACCapabilityFlags MACCapability `json:"mac_capability_flags"`
	ManufacturerCode   uint16        `json:"manufacturer_code"`
}

// IsMainsPowered reports whether the descriptor carries the mains-powered flag.
func (d NodeDescriptor) IsMainsPowered() bool {
	return d.MACCapabilityFlags.MainsPowered()
}
