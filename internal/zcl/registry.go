package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds all known ZCL cluster definitions and named field types.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]*ClusterDef
	types    map[string]*FieldType
	logger   *slog.Logger
}

// NewRegistry creates a registry that knows the built-in field types and no clusters.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		clusters: make(map[uint16]*ClusterDef),
		types:    make(map[string]*FieldType),
		logger:   logger,
	}
	for _, ft := range builtinTypes() {
		r.types[ft.Name] = ft
	}
	return r
}

// Register adds a cluster definition to the registry.
// Field types referenced by its command schemas become resolvable by name.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range c.Commands {
		for _, f := range cmd.Schema {
			if f.Type != nil {
				if _, ok := r.types[f.Type.Name]; !ok {
					r.types[f.Type.Name] = f.Type
				}
			}
		}
	}
	if existing, ok := r.clusters[c.ID]; ok {
		existing.Merge(&c)
		r.logger.Debug("cluster merged", "id", fmt.Sprintf("0x%04X", c.ID), "name", existing.Name)
	} else {
		r.clusters[c.ID] = c.DeepCopy()
		r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
	}
}

// RegisterType adds a named field type. An existing type with the same name is replaced.
func (r *Registry) RegisterType(ft *FieldType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ft.Name] = ft
	r.logger.Debug("field type registered", "name", ft.Name, "category", ft.Category.String())
}

// Type resolves a field type by name.
func (r *Registry) Type(name string) (*FieldType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ft, ok := r.types[name]
	return ft, ok
}

// Types returns the names of all known field types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a cluster definition by ID, or nil if not found.
// The returned value is a deep copy; callers may modify it safely.
func (r *Registry) Get(id uint16) *ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	if c == nil {
		return nil
	}
	return c.DeepCopy()
}

// FindCommand resolves a command of a cluster by name.
func (r *Registry) FindCommand(clusterID uint16, name string, dir CommandDirection) (*CommandDef, error) {
	c := r.Get(clusterID)
	if c == nil {
		return nil, fmt.Errorf("zcl: unknown cluster 0x%04X", clusterID)
	}
	cmd := c.FindCommandByName(name, dir)
	if cmd == nil {
		return nil, fmt.Errorf("zcl: cluster %s has no %s command %q", c.Name, dir, name)
	}
	return cmd, nil
}

// IsBindable reports whether the cluster is registered and marked bindable.
func (r *Registry) IsBindable(id uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.clusters[id]
	return c != nil && c.Bindable
}

// All returns all registered cluster definitions ordered by ID.
// Each entry is a deep copy; callers may modify them safely.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, *c.DeepCopy())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
