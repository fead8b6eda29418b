//go:build !no_mqtt

package main

import (
	"log/slog"

	mqttbridge "zha-go/internal/mqtt"

	"zha-go/internal/coordinator"
)

type mqttStopper struct {
	bridge *mqttbridge.Bridge
}

func (m *mqttStopper) Stop() {
	if m.bridge != nil {
		m.bridge.Stop()
	}
}

func initMQTT(coord *coordinator.Coordinator, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Bridge {
		return &mqttStopper{}
	}
	bridge, err := mqttbridge.NewBridge(coord, mqttbridge.Config{
		Broker:         cfg.MQTT.Broker,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       cfg.MQTT.ClientID,
		TopicPrefix:    cfg.MQTT.TopicPrefix,
		RequestTimeout: cfg.MQTT.Timeout,
	}, logger)
	if err != nil {
		logger.Error("mqtt bridge", "err", err)
		return &mqttStopper{}
	}
	bridge.Start()
	return &mqttStopper{bridge: bridge}
}
