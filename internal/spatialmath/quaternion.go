// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package spatialmath

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a scalar-first quaternion (Scalar, X, Y, Z). Arithmetic does not
// renormalize; call Normalize when a unit rotation is required.
type Quaternion struct {
	Scalar float64 `json:"w"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

// Identity returns the unit quaternion with no rotation.
func Identity() Quaternion {
	return Quaternion{Scalar: 1}
}

// NewQuaternion builds a quaternion from its components.
func NewQuaternion(scalar, x, y, z float64) Quaternion {
	return Quaternion{Scalar: scalar, X: x, Y: y, Z: z}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.Scalar, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{Scalar: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Mul returns the Hamilton product q ⊗ r. The product does not commute.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), r.number()))
}

// Add returns the component-wise sum q + r.
func (q Quaternion) Add(r Quaternion) Quaternion {
	return fromNumber(quat.Add(q.number(), r.number()))
}

// Sub returns the component-wise difference q - r.
func (q Quaternion) Sub(r Quaternion) Quaternion {
	return fromNumber(quat.Sub(q.number(), r.number()))
}

// Scale multiplies every component by s.
func (q Quaternion) Scale(s float64) Quaternion {
	return fromNumber(quat.Scale(s, q.number()))
}

// Conjugate negates the vector part.
func (q Quaternion) Conjugate() Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

// Negate negates all four components. q and q.Negate() describe the same rotation.
func (q Quaternion) Negate() Quaternion {
	return Quaternion{Scalar: -q.Scalar, X: -q.X, Y: -q.Y, Z: -q.Z}
}

// Norm returns the quaternion length.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Vector returns the (X, Y, Z) part.
func (q Quaternion) Vector() Vector3 {
	return Vector3{X: q.X, Y: q.Y, Z: q.Z}
}

// Component returns Scalar, X, Y or Z for i = 0..3.
func (q Quaternion) Component(i int) float64 {
	switch i {
	case 0:
		return q.Scalar
	case 1:
		return q.X
	case 2:
		return q.Y
	case 3:
		return q.Z
	}
	panic(fmt.Sprintf("spatialmath: quaternion component %d out of range", i))
}

// Normalize returns q scaled to unit length. A quaternion whose length is
// exactly 0 or exactly 1 is returned unchanged.
func (q Quaternion) Normalize() Quaternion {
	length := q.Norm()
	if length == 0 || length == 1 {
		return q
	}
	return q.Scale(1 / length)
}

// FromEuler builds a unit quaternion from roll (X), pitch (Y) and yaw (Z) in
// radians using the aerospace ZYX sequence.
func FromEuler(v Vector3) Quaternion {
	cosX2 := math.Cos(v.X / 2)
	sinX2 := math.Sin(v.X / 2)
	cosY2 := math.Cos(v.Y / 2)
	sinY2 := math.Sin(v.Y / 2)
	cosZ2 := math.Cos(v.Z / 2)
	sinZ2 := math.Sin(v.Z / 2)

	q := Quaternion{
		Scalar: cosX2*cosY2*cosZ2 + sinX2*sinY2*sinZ2,
		X:      sinX2*cosY2*cosZ2 - cosX2*sinY2*sinZ2,
		Y:      cosX2*sinY2*cosZ2 + sinX2*cosY2*sinZ2,
		Z:      cosX2*cosY2*sinZ2 - sinX2*sinY2*cosZ2,
	}
	return q.Normalize()
}

// ToEuler returns roll (X), pitch (Y) and yaw (Z) in radians.
// The pitch asin argument is not clamped, so a quaternion at or past gimbal
// lock can yield NaN pitch.
func (q Quaternion) ToEuler() Vector3 {
	return Vector3{
		X: math.Atan2(2*(q.Y*q.Z+q.Scalar*q.X), 1-2*(q.X*q.X+q.Y*q.Y)),
		Y: math.Asin(2 * (q.Scalar*q.Y - q.X*q.Z)),
		Z: math.Atan2(2*(q.X*q.Y+q.Scalar*q.Z), 1-2*(q.Y*q.Y+q.Z*q.Z)),
	}
}

// FromAngleVector builds the rotation of angle radians about axis. The axis is
// used as given and should already be unit length.
func FromAngleVector(angle float64, axis Vector3) Quaternion {
	sinHalfTheta := math.Sin(angle / 2)
	return Quaternion{
		Scalar: math.Cos(angle / 2),
		X:      axis.X * sinHalfTheta,
		Y:      axis.Y * sinHalfTheta,
		Z:      axis.Z * sinHalfTheta,
	}
}

// ToAngleVector returns the rotation angle and axis of a unit quaternion.
//
// Every axis component is derived from the X component of the quaternion,
// which only gives a correct axis for rotations about X. Callers that need a
// general axis should use Vector().Normalize() instead.
func (q Quaternion) ToAngleVector() (float64, Vector3) {
	halfTheta := math.Acos(q.Scalar)
	sinHalfTheta := math.Sin(halfTheta)

	var axis Vector3
	if sinHalfTheta == 0 {
		axis = Vector3{X: 1}
	} else {
		axis = Vector3{
			X: q.X / sinHalfTheta,
			Y: q.X / sinHalfTheta,
			Z: q.X / sinHalfTheta,
		}
	}
	return 2 * halfTheta, axis
}

func (q Quaternion) String() string {
	return fmt.Sprintf("scalar:%.4f x:%.4f y:%.4f z:%.4f", q.Scalar, q.X, q.Y, q.Z)
}
