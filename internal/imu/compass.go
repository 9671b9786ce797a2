// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"

	"github.com/pkg/errors"

	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// compassAlpha is the weight of the newest reading in the running average.
const compassAlpha = 0.2

// CompassCalibration holds hard-iron offset and per-axis scale, applied as
// (raw - Offset) * Scale.
type CompassCalibration struct {
	Offset [3]float64 `json:"offset"`
	Scale  [3]float64 `json:"scale"`
	Valid  bool       `json:"valid"`
}

// NewCompassCalibration derives a calibration from the per-axis extremes seen
// while the sensor was rotated through every orientation. Each axis is centred
// on its midpoint and stretched to the largest half-range of the three.
func NewCompassCalibration(min, max spatialmath.Vector3) (CompassCalibration, error) {
	var cal CompassCalibration

	maxDelta := -1.0
	for i := 0; i < 3; i++ {
		delta := max.Component(i) - min.Component(i)
		if delta <= 0 {
			return CompassCalibration{}, errors.Errorf("compass axis %d has no range (min %.3f, max %.3f)",
				i, min.Component(i), max.Component(i))
		}
		maxDelta = math.Max(maxDelta, delta)
	}
	maxDelta /= 2

	for i := 0; i < 3; i++ {
		delta := (max.Component(i) - min.Component(i)) / 2
		cal.Scale[i] = maxDelta / delta
		cal.Offset[i] = (max.Component(i) + min.Component(i)) / 2
	}
	cal.Valid = true
	return cal, nil
}

// Apply returns raw corrected by the calibration.
func (c CompassCalibration) Apply(raw spatialmath.Vector3) spatialmath.Vector3 {
	return spatialmath.Vector3{
		X: (raw.X - c.Offset[0]) * c.Scale[0],
		Y: (raw.Y - c.Offset[1]) * c.Scale[1],
		Z: (raw.Z - c.Offset[2]) * c.Scale[2],
	}
}

// CompassFilter calibrates and smooths magnetometer readings.
type CompassFilter struct {
	calibration     CompassCalibration
	calibrationMode bool
	average         spatialmath.Vector3
}

// NewCompassFilter returns a filter using cal. The running average starts at zero.
func NewCompassFilter(cal CompassCalibration) *CompassFilter {
	return &CompassFilter{calibration: cal}
}

// Calibration returns the configured calibration.
func (f *CompassFilter) Calibration() CompassCalibration {
	return f.calibration
}

// SetCalibrationMode disables calibration so raw extremes can be recorded.
func (f *CompassFilter) SetCalibrationMode(enabled bool) {
	f.calibrationMode = enabled
}

// CalibrationValid reports whether readings are currently being calibrated.
func (f *CompassFilter) CalibrationValid() bool {
	return f.calibration.Valid && !f.calibrationMode
}

// Apply calibrates raw when possible, folds it into the running average and
// returns the average.
func (f *CompassFilter) Apply(raw spatialmath.Vector3) spatialmath.Vector3 {
	compass := raw
	if f.CalibrationValid() {
		compass = f.calibration.Apply(raw)
	}
	f.average = compass.Scale(compassAlpha).Add(f.average.Scale(1 - compassAlpha))
	return f.average
}

// CompassExtents records the per-axis minimum and maximum of raw readings.
type CompassExtents struct {
	Min   spatialmath.Vector3
	Max   spatialmath.Vector3
	count int
}

// Add widens the extents to include v.
func (e *CompassExtents) Add(v spatialmath.Vector3) {
	if e.count == 0 {
		e.Min, e.Max = v, v
	} else {
		e.Min = spatialmath.Vector3{X: math.Min(e.Min.X, v.X), Y: math.Min(e.Min.Y, v.Y), Z: math.Min(e.Min.Z, v.Z)}
		e.Max = spatialmath.Vector3{X: math.Max(e.Max.X, v.X), Y: math.Max(e.Max.Y, v.Y), Z: math.Max(e.Max.Z, v.Z)}
	}
	e.count++
}

// Count returns the number of readings added.
func (e CompassExtents) Count() int { return e.count }

// Calibration derives a calibration from the recorded extents.
func (e *CompassExtents) Calibration() (CompassCalibration, error) {
	if e.count == 0 {
		return CompassCalibration{}, errors.New("no compass readings recorded")
	}
	return NewCompassCalibration(e.Min, e.Max)
}
