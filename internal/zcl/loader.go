package zcl

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// schemaFile is the JSON structure for files in the schemas directory.
// Fields reference types by name; types declared in the same file or in
// earlier files are resolvable.
type schemaFile struct {
	Types    []FieldType     `json:"types,omitempty"`
	Clusters []clusterSchema `json:"clusters,omitempty"`
}

type clusterSchema struct {
	ID       uint16          `json:"id"`
	Name     string          `json:"name"`
	Bindable bool            `json:"bindable,omitempty"`
	Commands []commandSchema `json:"commands,omitempty"`
}

type commandSchema struct {
	ID        uint8            `json:"id"`
	Name      string           `json:"name"`
	Direction CommandDirection `json:"direction,omitempty"`
	Schema    []fieldSchema    `json:"schema,omitempty"`
}

type fieldSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

// LoadSchemaDir reads all *.json files from a directory, registering the
// declared field types and clusters into the registry. Clusters that already
// exist are merged. A missing or empty directory is not an error.
func LoadSchemaDir(dir string, registry *Registry, logger *slog.Logger) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("glob schemas dir: %w", err)
	}
	if len(matches) == 0 {
		logger.Info("no schema files found", "dir", dir)
		return nil
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var sf schemaFile
		if err := json.Unmarshal(data, &sf); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for i := range sf.Types {
			ft := sf.Types[i]
			if ft.Name == "" {
				return fmt.Errorf("%s: type #%d has no name", path, i)
			}
			if TypeSize(ft.ID) <= 0 && ft.Category != CategoryBytes && ft.ID != TypeCharStr {
				return fmt.Errorf("%s: type %q: unsupported wire type %s", path, ft.Name, TypeName(ft.ID))
			}
			registry.RegisterType(&ft)
		}

		for _, cs := range sf.Clusters {
			c, err := cs.resolve(registry)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			registry.Register(c)
		}

		logger.Info("loaded schema file", "path", filepath.Base(path),
			"types", len(sf.Types), "clusters", len(sf.Clusters))
	}
	return nil
}

func (cs clusterSchema) resolve(registry *Registry) (ClusterDef, error) {
	c := ClusterDef{ID: cs.ID, Name: cs.Name, Bindable: cs.Bindable}
	for _, cmd := range cs.Commands {
		def := CommandDef{ID: cmd.ID, Name: cmd.Name, Direction: cmd.Direction}
		if def.Direction == "" {
			def.Direction = DirectionToServer
		}
		for _, f := range cmd.Schema {
			ft, ok := registry.Type(f.Type)
			if !ok {
				return ClusterDef{}, fmt.Errorf("cluster 0x%04X command %q field %q: unknown type %q",
					cs.ID, cmd.Name, f.Name, f.Type)
			}
			def.Schema = append(def.Schema, FieldDef{Name: f.Name, Type: ft, Optional: f.Optional})
		}
		c.Commands = append(c.Commands, def)
	}
	return c, nil
}
