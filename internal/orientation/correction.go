// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// CorrectionPolicy selects how the gyro prediction is pulled towards the
// accel/compass measurement.
type CorrectionPolicy string

const (
	// PolicySlerp applies a fractional power of the rotation between prediction
	// and measurement.
	PolicySlerp CorrectionPolicy = "slerp"
	// PolicyLinear blends the quaternions component-wise with a gain derived
	// from process and measurement noise.
	PolicyLinear CorrectionPolicy = "linear"
)

// ParseCorrectionPolicy accepts "slerp" or "linear", ignoring case.
func ParseCorrectionPolicy(s string) (CorrectionPolicy, error) {
	switch p := CorrectionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySlerp, PolicyLinear:
		return p, nil
	}
	return "", errors.Errorf("unknown correction policy %q (want %q or %q)", s, PolicySlerp, PolicyLinear)
}

// Corrector moves a predicted quaternion towards a measured one. The result is
// normalized by the caller.
type Corrector interface {
	Correct(predicted, measured spatialmath.Quaternion, dt float64) spatialmath.Quaternion
}

// SlerpCorrection applies Power (0..1) of the rotation from predicted to measured.
// Power 0 keeps the prediction, 1 snaps to the measurement.
type SlerpCorrection struct {
	Power float64
}

// Correct implements Corrector.
func (s SlerpCorrection) Correct(predicted, measured spatialmath.Quaternion, _ float64) spatialmath.Quaternion {
	delta := predicted.Conjugate().Mul(measured).Normalize()

	// Rounding can push the scalar of a unit quaternion just past ±1.
	theta := math.Acos(math.Max(-1, math.Min(1, delta.Scalar)))

	sinPowerTheta := math.Sin(theta * s.Power)
	cosPowerTheta := math.Cos(theta * s.Power)
	axis := delta.Vector().Normalize()

	power := spatialmath.Quaternion{
		Scalar: cosPowerTheta,
		X:      sinPowerTheta * axis.X,
		Y:      sinPowerTheta * axis.Y,
		Z:      sinPowerTheta * axis.Z,
	}.Normalize()

	return predicted.Mul(power)
}

// LinearCorrection blends with gain Q·dt / (Q·dt + R).
type LinearCorrection struct {
	Q float64
	R float64
}

// Gain returns the blend factor for a step of dt seconds.
func (l LinearCorrection) Gain(dt float64) float64 {
	qt := l.Q * dt
	return qt / (qt + l.R)
}

// Correct implements Corrector.
func (l LinearCorrection) Correct(predicted, measured spatialmath.Quaternion, dt float64) spatialmath.Quaternion {
	stateError := measured.Sub(predicted)
	return predicted.Add(stateError.Scale(l.Gain(dt)))
}
