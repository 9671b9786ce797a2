// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package spatialmath holds the 3D vector and quaternion algebra used by the
// orientation filter. All types are plain values: every operation returns a new
// value and never mutates its receiver.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// RadToDeg converts radians to degrees.
const RadToDeg = 180.0 / math.Pi

// DegToRad converts degrees to radians.
const DegToRad = math.Pi / 180.0

// Vector3 is a 3-component vector. The unit depends on what it carries:
// rad/s for angular rate, g for acceleration, µT for magnetic field and
// radians for Euler angles (X=roll, Y=pitch, Z=yaw).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewVector3 builds a vector from its components.
func NewVector3(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// ScaledVector converts three signed 16 bit register counts into a vector,
// multiplying each by scale.
func ScaledVector(x, y, z int16, scale float64) Vector3 {
	return Vector3{
		X: float64(x) * scale,
		Y: float64(y) * scale,
		Z: float64(z) * scale,
	}
}

func (v Vector3) r3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func fromR3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v + w.
func (v Vector3) Add(w Vector3) Vector3 {
	return fromR3(v.r3().Add(w.r3()))
}

// Sub returns v - w.
func (v Vector3) Sub(w Vector3) Vector3 {
	return fromR3(v.r3().Sub(w.r3()))
}

// Scale returns v multiplied by s.
func (v Vector3) Scale(s float64) Vector3 {
	return fromR3(v.r3().Mul(s))
}

// Dot returns the dot product of v and w.
func (v Vector3) Dot(w Vector3) float64 {
	return v.r3().Dot(w.r3())
}

// Cross returns the cross product v × w.
func (v Vector3) Cross(w Vector3) Vector3 {
	return fromR3(v.r3().Cross(w.r3()))
}

// Length returns the Euclidean norm.
func (v Vector3) Length() float64 {
	return v.r3().Norm()
}

// SquareLength returns the squared Euclidean norm.
func (v Vector3) SquareLength() float64 {
	return v.r3().Norm2()
}

// IsZero reports whether all three components are exactly zero.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Component returns X, Y or Z for i = 0, 1, 2.
func (v Vector3) Component(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	panic(fmt.Sprintf("spatialmath: vector component %d out of range", i))
}

// Normalize returns v scaled to unit length. A vector whose length is exactly
// 0 or exactly 1 is returned unchanged.
func (v Vector3) Normalize() Vector3 {
	length := v.Length()
	if length == 0 || length == 1 {
		return v
	}
	return Vector3{X: v.X / length, Y: v.Y / length, Z: v.Z / length}
}

// Degrees returns the vector with every component converted from radians to degrees.
func (v Vector3) Degrees() Vector3 {
	return v.Scale(RadToDeg)
}

func (v Vector3) String() string {
	return fmt.Sprintf("x:%.4f y:%.4f z:%.4f", v.X, v.Y, v.Z)
}
