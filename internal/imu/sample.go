// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu turns raw driver samples into the corrected sensor vectors the
// fusion filter consumes: axis remapping, gyro bias learning and compass
// calibration with smoothing.
package imu

import "github.com/relabs-tech/inertial_fusion/internal/spatialmath"

// Sample is one reading from an IMU driver, already scaled to physical units.
type Sample struct {
	Timestamp uint64 `json:"timestamp_ms"` // monotonic milliseconds

	Gyro    spatialmath.Vector3 `json:"gyro"`    // rad/s
	Accel   spatialmath.Vector3 `json:"accel"`   // g
	Compass spatialmath.Vector3 `json:"compass"` // µT, zero when the chip has no magnetometer
}
