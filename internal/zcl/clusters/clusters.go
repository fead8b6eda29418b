// Package clusters holds the command schemas of the standard ZCL clusters
// the helpers can issue commands to.
package clusters

import "zha-go/internal/zcl"

// All returns the standard cluster definitions ordered by ID.
func All() []zcl.ClusterDef {
	return []zcl.ClusterDef{
		// General
		Basic,        // 0x0000
		Identify,     // 0x0003
		Groups,       // 0x0004
		Scenes,       // 0x0005
		OnOff,        // 0x0006
		LevelControl, // 0x0008

		// Closures
		WindowCovering, // 0x0102

		// Lighting
		ColorControl, // 0x0300

		// Security & Safety
		IASZone, // 0x0500
		IASWD,   // 0x0502
	}
}

// Register adds every standard cluster to the registry.
func Register(r *zcl.Registry) {
	for _, c := range All() {
		r.Register(c)
	}
}
