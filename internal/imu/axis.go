// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// AxisRotation names how the sensor board is mounted relative to the
// north-east-down body frame. XNorthYEast is the identity.
type AxisRotation int

const (
	XNorthYEast AxisRotation = iota
	XEastYSouth
	XSouthYWest
	XWestYNorth
	XNorthYWest
	XEastYNorth
	XSouthYEast
	XWestYSouth
	XUpYNorth
	XUpYEast
	XUpYSouth
	XUpYWest
	XDownYNorth
	XDownYEast
	XDownYSouth
	XDownYWest
	XNorthYUp
	XEastYUp
	XSouthYUp
	XWestYUp
	XNorthYDown
	XEastYDown
	XSouthYDown
	XWestYDown

	axisRotationCount
)

type axisPreset struct {
	name   string
	matrix [9]float64
}

// Row-major 3x3 matrices, one per preset, in AxisRotation order.
var axisPresets = [axisRotationCount]axisPreset{
	{"XNORTH_YEAST", [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
	{"XEAST_YSOUTH", [9]float64{0, -1, 0, 1, 0, 0, 0, 0, 1}},
	{"XSOUTH_YWEST", [9]float64{-1, 0, 0, 0, -1, 0, 0, 0, 1}},
	{"XWEST_YNORTH", [9]float64{0, 1, 0, -1, 0, 0, 0, 0, 1}},
	{"XNORTH_YWEST", [9]float64{1, 0, 0, 0, -1, 0, 0, 0, -1}},
	{"XEAST_YNORTH", [9]float64{0, 1, 0, 1, 0, 0, 0, 0, -1}},
	{"XSOUTH_YEAST", [9]float64{-1, 0, 0, 0, 1, 0, 0, 0, -1}},
	{"XWEST_YSOUTH", [9]float64{0, -1, 0, -1, 0, 0, 0, 0, -1}},
	{"XUP_YNORTH", [9]float64{0, 1, 0, 0, 0, -1, -1, 0, 0}},
	{"XUP_YEAST", [9]float64{0, 0, 1, 0, 1, 0, -1, 0, 0}},
	{"XUP_YSOUTH", [9]float64{0, -1, 0, 0, 0, 1, -1, 0, 0}},
	{"XUP_YWEST", [9]float64{0, 0, -1, 0, -1, 0, -1, 0, 0}},
	{"XDOWN_YNORTH", [9]float64{0, 1, 0, 0, 0, 1, 1, 0, 0}},
	{"XDOWN_YEAST", [9]float64{0, 0, -1, 0, 1, 0, 1, 0, 0}},
	{"XDOWN_YSOUTH", [9]float64{0, -1, 0, 0, 0, -1, 1, 0, 0}},
	{"XDOWN_YWEST", [9]float64{0, 0, 1, 0, -1, 0, 1, 0, 0}},
	{"XNORTH_YUP", [9]float64{1, 0, 0, 0, 0, 1, 0, -1, 0}},
	{"XEAST_YUP", [9]float64{0, 0, -1, 1, 0, 0, 0, -1, 0}},
	{"XSOUTH_YUP", [9]float64{-1, 0, 0, 0, 0, -1, 0, -1, 0}},
	{"XWEST_YUP", [9]float64{0, 0, 1, -1, 0, 0, 0, -1, 0}},
	{"XNORTH_YDOWN", [9]float64{1, 0, 0, 0, 0, -1, 0, 1, 0}},
	{"XEAST_YDOWN", [9]float64{0, 0, 1, 1, 0, 0, 0, 1, 0}},
	{"XSOUTH_YDOWN", [9]float64{-1, 0, 0, 0, 0, 1, 0, 1, 0}},
	{"XWEST_YDOWN", [9]float64{0, 0, -1, -1, 0, 0, 0, 1, 0}},
}

// AxisRotations returns every preset in declaration order.
func AxisRotations() []AxisRotation {
	out := make([]AxisRotation, 0, axisRotationCount)
	for r := XNorthYEast; r < axisRotationCount; r++ {
		out = append(out, r)
	}
	return out
}

// ParseAxisRotation accepts a preset name such as "XEAST_YSOUTH", ignoring case.
// An empty name selects XNorthYEast.
func ParseAxisRotation(name string) (AxisRotation, error) {
	if name == "" {
		return XNorthYEast, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, p := range axisPresets {
		if p.name == upper {
			return AxisRotation(i), nil
		}
	}
	return 0, errors.Errorf("unknown axis rotation %q", name)
}

func (r AxisRotation) valid() bool {
	return r >= XNorthYEast && r < axisRotationCount
}

func (r AxisRotation) String() string {
	if !r.valid() {
		return fmt.Sprintf("AxisRotation(%d)", int(r))
	}
	return axisPresets[r].name
}

// Matrix returns the row-major 3x3 remap matrix of the preset.
func (r AxisRotation) Matrix() [9]float64 {
	if !r.valid() {
		return axisPresets[XNorthYEast].matrix
	}
	return axisPresets[r].matrix
}

// Apply remaps v into the body frame. For each output row the first non-zero
// matrix entry selects the source axis and its sign.
func (r AxisRotation) Apply(v spatialmath.Vector3) spatialmath.Vector3 {
	if r == XNorthYEast {
		return v
	}
	m := r.Matrix()
	var out [3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if k := m[row*3+col]; k != 0 {
				out[row] = v.Component(col) * k
				break
			}
		}
	}
	return spatialmath.Vector3{X: out[0], Y: out[1], Z: out[2]}
}
