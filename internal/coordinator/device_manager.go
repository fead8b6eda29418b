package coordinator

import (
	"fmt"
	"log/slog"
	"time"

	"zha-go/internal/gateway"
	"zha-go/internal/store"
)

// DeviceManager keeps the device store in step with the Zigbee stack.
type DeviceManager struct {
	coord  *Coordinator
	logger *slog.Logger
}

// NewDeviceManager creates a new device manager.
func NewDeviceManager(coord *Coordinator) *DeviceManager {
	return &DeviceManager{
		coord:  coord,
		logger: coord.logger.With("component", "device_manager"),
	}
}

// deviceName returns a human-readable display name for a device.
// Returns "Manufacturer Model" if available, or empty string for unknown devices.
func deviceName(dev *store.Device) string {
	if dev == nil {
		return ""
	}
	if dev.FriendlyName != "" {
		return dev.FriendlyName
	}
	name := dev.Manufacturer
	if dev.Model != "" {
		if name != "" {
			name += " "
		}
		name += dev.Model
	}
	return name
}

// HandleJoin stores the interviewed device reported by the stack. A rejoin
// refreshes the descriptors and keeps the user-assigned name.
func (dm *DeviceManager) HandleJoin(evt gateway.DeviceJoinedEvent) {
	ieee, err := NormalizeIEEE(evt.IEEE)
	if err != nil {
		dm.logger.Warn("join with invalid ieee", "ieee", evt.IEEE, "err", err)
		return
	}

	now := time.Now()
	dev := &store.Device{
		IEEEAddress:    ieee,
		ShortAddress:   evt.ShortAddr,
		Manufacturer:   evt.Manufacturer,
		Model:          evt.Model,
		NodeDescriptor: evt.NodeDescriptor,
		JoinedAt:       now,
		LastSeen:       now,
	}
	for _, sd := range evt.Endpoints {
		dev.Endpoints = append(dev.Endpoints, store.Endpoint{
			ID:          sd.Endpoint,
			ProfileID:   sd.ProfileID,
			DeviceID:    sd.DeviceID,
			InClusters:  sd.InClusters,
			OutClusters: sd.OutClusters,
		})
	}
	if existing, err := dm.coord.Store().GetDevice(ieee); err == nil {
		dev.FriendlyName = existing.FriendlyName
		dev.JoinedAt = existing.JoinedAt
	}

	dm.logger.Info("device joined", "ieee", ieee, "short", fmt.Sprintf("0x%04X", evt.ShortAddr),
		"name", deviceName(dev), "mac_capability", dev.NodeDescriptor.MACCapabilityFlags.String())

	if err := dm.coord.Store().SaveDevice(dev); err != nil {
		dm.logger.Error("save device", "err", err, "ieee", ieee)
		return
	}

	dm.coord.Events().Emit(Event{
		Type: EventDeviceJoined,
		Data: map[string]interface{}{
			"ieee":       ieee,
			"short_addr": evt.ShortAddr,
		},
	})
}

// HandleLeave deletes the device and its bindings and emits EventDeviceLeft.
func (dm *DeviceManager) HandleLeave(evt gateway.DeviceLeftEvent) {
	ieee, err := NormalizeIEEE(evt.IEEE)
	if err != nil {
		dm.logger.Warn("leave with invalid ieee", "ieee", evt.IEEE, "err", err)
		return
	}
	dev, _ := dm.coord.Store().GetDevice(ieee)
	name := deviceName(dev)
	dm.logger.Info("device left", "ieee", ieee, "name", name)

	if err := dm.coord.Store().DeleteDevice(ieee); err != nil {
		dm.logger.Error("delete device on leave", "err", err, "ieee", ieee)
	} else {
		dm.logger.Info("device removed from store", "ieee", ieee, "name", name)
	}

	dm.coord.Events().Emit(Event{
		Type: EventDeviceLeft,
		Data: map[string]interface{}{"ieee": ieee},
	})
}

// RenameDevice sets the friendly name of a stored device.
func (dm *DeviceManager) RenameDevice(ieee, name string) (*store.Device, error) {
	ieee, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, err
	}
	var updated *store.Device
	err = dm.coord.Store().UpdateDevice(ieee, func(dev *store.Device) error {
		dev.FriendlyName = name
		updated = dev
		return nil
	})
	if err != nil {
		return nil, err
	}
	dm.coord.Events().Emit(Event{
		Type: EventDeviceUpdated,
		Data: map[string]interface{}{"ieee": ieee, "friendly_name": name},
	})
	return updated, nil
}

// RemoveDevice forgets a device and its bindings. The stack is not asked to
// remove it from the network.
func (dm *DeviceManager) RemoveDevice(ieee string) error {
	ieee, err := NormalizeIEEE(ieee)
	if err != nil {
		return err
	}
	if _, err := dm.coord.Store().GetDevice(ieee); err != nil {
		return err
	}
	if err := dm.coord.Store().DeleteDevice(ieee); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	dm.coord.Events().Emit(Event{
		Type: EventDeviceLeft,
		Data: map[string]interface{}{"ieee": ieee},
	})
	return nil
}

// ListDevices returns all known devices.
func (dm *DeviceManager) ListDevices() ([]*store.Device, error) {
	return dm.coord.Store().ListDevices()
}

// GetDevice returns a device by IEEE address in either notation.
func (dm *DeviceManager) GetDevice(ieee string) (*store.Device, error) {
	ieee, err := NormalizeIEEE(ieee)
	if err != nil {
		return nil, err
	}
	return dm.coord.Store().GetDevice(ieee)
}
