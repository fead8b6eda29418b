//go:build !no_mqtt

package mqtt

import (
	"encoding/json"

	"zha-go/internal/store"
)

// deviceMsg is a retained per-device message. An empty payload clears it.
type deviceMsg struct {
	Topic   string
	Payload []byte
}

// deviceInfo is the retained description of a device on <prefix>/zha/device/<ieee>.
type deviceInfo struct {
	IEEE         string           `json:"ieee"`
	Name         string           `json:"name"`
	Manufacturer string           `json:"manufacturer,omitempty"`
	Model        string           `json:"model,omitempty"`
	LogicalType  string           `json:"logical_type"`
	MainsPowered bool             `json:"mains_powered"`
	Endpoints    []store.Endpoint `json:"endpoints"`
	LastSeen     string           `json:"last_seen,omitempty"`
}

// deviceDisplayName returns a display name for the device.
func deviceDisplayName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	if dev.Manufacturer != "" && dev.Model != "" {
		return dev.Manufacturer + " " + dev.Model
	}
	if dev.Model != "" {
		return dev.Model
	}
	return dev.IEEEAddress
}

func (b *Bridge) deviceTopic(ieee string) string {
	return b.topic("device", ieee)
}

func (b *Bridge) buildDeviceMessage(dev *store.Device) deviceMsg {
	info := deviceInfo{
		IEEE:         dev.IEEEAddress,
		Name:         deviceDisplayName(dev),
		Manufacturer: dev.Manufacturer,
		Model:        dev.Model,
		LogicalType:  dev.NodeDescriptor.LogicalType.String(),
		MainsPowered: dev.NodeDescriptor.IsMainsPowered(),
		Endpoints:    dev.Endpoints,
	}
	if info.Endpoints == nil {
		info.Endpoints = []store.Endpoint{}
	}
	if !dev.LastSeen.IsZero() {
		info.LastSeen = dev.LastSeen.UTC().Format("2006-01-02T15:04:05Z")
	}
	payload, _ := json.Marshal(info)
	return deviceMsg{Topic: b.deviceTopic(dev.IEEEAddress), Payload: payload}
}

func (b *Bridge) buildRemoveMessage(ieee string) deviceMsg {
	return deviceMsg{Topic: b.deviceTopic(ieee)}
}
