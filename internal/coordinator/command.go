package coordinator

import (
	"context"
	"errors"
	"fmt"

	"zha-go/internal/gateway"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
	"zha-go/internal/zcl"
)

// ErrUnknownCommand is returned when a cluster has no command of the requested name.
var ErrUnknownCommand = errors.New("unknown command")

// CommandRequest names a cluster command by cluster id and command name.
type CommandRequest struct {
	IEEE      string                 `json:"ieee"`
	Endpoint  uint8                  `json:"endpoint"`
	ClusterID uint16                 `json:"cluster_id"`
	Command   string                 `json:"command"`
	Direction zcl.CommandDirection   `json:"direction,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// IssueCommand coerces the raw fields against the command schema, encodes
// them and sends the command. It returns the coerced fields. Coercion
// failures are returned unwrapped so callers can report them as bad input.
func (c *Coordinator) IssueCommand(ctx context.Context, req CommandRequest) (map[string]interface{}, error) {
	dir := req.Direction
	if dir == "" {
		dir = zcl.DirectionToServer
	}
	ieee, err := NormalizeIEEE(req.IEEE)
	if err != nil {
		return nil, err
	}
	dev, err := c.store.GetDevice(ieee)
	if err != nil {
		return nil, err
	}
	if _, ok := dev.Endpoint(req.Endpoint); !ok {
		return nil, fmt.Errorf("device %s has no endpoint %d: %w", ieee, req.Endpoint, store.ErrNotFound)
	}

	cmd, fields, payload, err := c.encode(req.ClusterID, req.Command, dir, req.Fields)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("issuing command", "ieee", ieee, "endpoint", req.Endpoint,
		"cluster", fmt.Sprintf("0x%04X", req.ClusterID), "command", cmd.Name, "fields", fields)

	err = c.gw.SendCommand(ctx, gateway.CommandRequest{
		IEEE:      ieee,
		Endpoint:  req.Endpoint,
		ClusterID: req.ClusterID,
		CommandID: cmd.ID,
		Direction: dir,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Name, err)
	}

	c.events.Emit(Event{
		Type: EventCommandIssued,
		Data: map[string]interface{}{
			"ieee":       ieee,
			"endpoint":   req.Endpoint,
			"cluster_id": req.ClusterID,
			"command":    cmd.Name,
			"fields":     fields,
		},
	})
	return fields, nil
}

// ConvertCommand coerces raw fields against a command schema without sending
// anything. It returns the typed fields and the encoded payload.
func (c *Coordinator) ConvertCommand(clusterID uint16, command string, dir zcl.CommandDirection, raw map[string]interface{}) (map[string]interface{}, []byte, error) {
	if dir == "" {
		dir = zcl.DirectionToServer
	}
	_, fields, payload, err := c.encode(clusterID, command, dir, raw)
	return fields, payload, err
}

func (c *Coordinator) encode(clusterID uint16, command string, dir zcl.CommandDirection, raw map[string]interface{}) (*zcl.CommandDef, map[string]interface{}, []byte, error) {
	cmd, err := c.registry.FindCommand(clusterID, command, dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrUnknownCommand, err)
	}
	fields, err := helpers.ConvertToZCLValues(raw, cmd.Schema)
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := zcl.EncodeCommand(cmd.Schema, fields)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode %s: %w", cmd.Name, err)
	}
	return cmd, fields, payload, nil
}
