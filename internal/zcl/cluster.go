package zcl

import "strings"

// CommandDirection indicates the direction of a cluster command.
type CommandDirection string

const (
	DirectionToServer CommandDirection = "toServer"
	DirectionToClient CommandDirection = "toClient"
)

// FieldDef declares one field of a command payload.
type FieldDef struct {
	Name     string     `json:"name"`
	Type     *FieldType `json:"type"`
	Optional bool       `json:"optional,omitempty"`
}

// Schema is the ordered field list of a command.
type Schema []FieldDef

// Field looks up a field by name.
func (s Schema) Field(name string) (FieldDef, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// CommandDef defines a cluster-specific command.
type CommandDef struct {
	ID        uint8            `json:"id"`
	Name      string           `json:"name"`
	Direction CommandDirection `json:"direction"`
	Schema    Schema           `json:"schema,omitempty"`
}

// ClusterDef defines a ZCL cluster and its commands.
// Bindable marks clusters whose output side drives another device's input side.
type ClusterDef struct {
	ID       uint16       `json:"id"`
	Name     string       `json:"name"`
	Bindable bool         `json:"bindable,omitempty"`
	Commands []CommandDef `json:"commands,omitempty"`
}

// FindCommand looks up a command by ID and direction.
func (c *ClusterDef) FindCommand(id uint8, dir CommandDirection) *CommandDef {
	for i := range c.Commands {
		if c.Commands[i].ID == id && c.Commands[i].Direction == dir {
			return &c.Commands[i]
		}
	}
	return nil
}

// FindCommandByName looks up a command by name and direction.
// Names match case-insensitively.
func (c *ClusterDef) FindCommandByName(name string, dir CommandDirection) *CommandDef {
	for i := range c.Commands {
		if strings.EqualFold(c.Commands[i].Name, name) && c.Commands[i].Direction == dir {
			return &c.Commands[i]
		}
	}
	return nil
}

// DeepCopy returns a deep copy of the cluster definition.
// Field types are shared; they are immutable once registered.
func (c *ClusterDef) DeepCopy() *ClusterDef {
	cp := *c
	if c.Commands != nil {
		cp.Commands = make([]CommandDef, len(c.Commands))
		for i, cmd := range c.Commands {
			cp.Commands[i] = cmd
			if cmd.Schema != nil {
				cp.Commands[i].Schema = make(Schema, len(cmd.Schema))
				copy(cp.Commands[i].Schema, cmd.Schema)
			}
		}
	}
	return &cp
}

// Merge adds commands from another definition (for schema overlays).
func (c *ClusterDef) Merge(other *ClusterDef) {
	if c.Name == "" {
		c.Name = other.Name
	}
	if other.Bindable {
		c.Bindable = true
	}
	for _, cmd := range other.Commands {
		if c.FindCommand(cmd.ID, cmd.Direction) == nil {
			c.Commands = append(c.Commands, cmd)
		}
	}
}
