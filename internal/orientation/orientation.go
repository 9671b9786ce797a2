// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation fuses corrected gyro, accel and compass samples into a
// drift-corrected attitude estimate.
package orientation

import (
	"fmt"

	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// Pose is roll, pitch and yaw in degrees, the representation published to
// consumers.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// PoseFromEuler converts an Euler vector in radians (X=roll, Y=pitch, Z=yaw).
func PoseFromEuler(v spatialmath.Vector3) Pose {
	d := v.Degrees()
	return Pose{Roll: d.X, Pitch: d.Y, Yaw: d.Z}
}

// Radians returns the pose as an Euler vector in radians.
func (p Pose) Radians() spatialmath.Vector3 {
	return spatialmath.Vector3{X: p.Roll, Y: p.Pitch, Z: p.Yaw}.Scale(spatialmath.DegToRad)
}

func (p Pose) String() string {
	return fmt.Sprintf("roll=%7.2f° pitch=%7.2f° yaw=%7.2f°", p.Roll, p.Pitch, p.Yaw)
}
