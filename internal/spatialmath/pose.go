// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatialmath

import "math"

// AccelToEuler computes roll and pitch from an accelerometer reading, assuming
// the reading is dominated by gravity. Yaw is always 0.
//
//	roll  = atan2(ay, az)
//	pitch = -atan2(ax, sqrt(ay² + az²))
func AccelToEuler(accel Vector3) Vector3 {
	a := accel.Normalize()
	return Vector3{
		X: math.Atan2(a.Y, a.Z),
		Y: -math.Atan2(a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z)),
		Z: 0,
	}
}

// AccelToQuaternion returns the rotation that takes the normalized accelerometer
// direction onto +Z.
func AccelToQuaternion(accel Vector3) Quaternion {
	a := accel.Normalize()
	z := Vector3{Z: 1}

	angle := math.Acos(z.Dot(a))
	axis := a.Cross(z).Normalize()
	return FromAngleVector(angle, axis)
}

// TiltCompensatedYaw rotates the magnetic vector by the roll and pitch of
// rollPitch (its Z is ignored) and returns the heading of the levelled vector.
func TiltCompensatedYaw(rollPitch Vector3, mag Vector3) float64 {
	cosX2 := math.Cos(rollPitch.X / 2)
	sinX2 := math.Sin(rollPitch.X / 2)
	cosY2 := math.Cos(rollPitch.Y / 2)
	sinY2 := math.Sin(rollPitch.Y / 2)

	// FromEuler with yaw = 0, left unnormalized.
	q := Quaternion{
		Scalar: cosX2 * cosY2,
		X:      sinX2 * cosY2,
		Y:      cosX2 * sinY2,
		Z:      -sinX2 * sinY2,
	}
	m := Quaternion{X: mag.X, Y: mag.Y, Z: mag.Z}

	m = q.Mul(m).Mul(q.Conjugate())
	return -math.Atan2(m.Y, m.X)
}

// PoseFromAccelMag derives roll and pitch from accel and a tilt compensated yaw
// from mag.
func PoseFromAccelMag(accel, mag Vector3) Vector3 {
	result := AccelToEuler(accel)
	result.Z = TiltCompensatedYaw(result, mag)
	return result
}
