// Package transform pushes registered objects' poses to the engine.
package transform

import (
	"github.com/rrbridge/rrbridge/internal/engine"
	"github.com/rrbridge/rrbridge/internal/registry"
)

// Convert maps a simulation pose (right-handed, Y up, forward -Z) into engine
// space (left-handed, Y up). Mirroring across the XY plane negates Z of the
// position and of both orientation vectors; scale converts simulation units
// to engine units.
func Convert(p registry.Pose, scale float32) engine.Transform {
	pos := p.Position.Scale(scale)
	pos.Z = -pos.Z

	front := p.Rotation.Forward().Normalize()
	front.Z = -front.Z
	top := p.Rotation.Up().Normalize()
	top.Z = -top.Z

	return engine.Transform{Position: pos, Front: front, Top: top}
}
