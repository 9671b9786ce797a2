// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/pkg/errors"

	"github.com/relabs-tech/inertial_fusion/internal/spatialmath"
)

// Default correction gains.
const (
	DefaultSlerpPower = 0.02
	DefaultQ          = 0.001
	DefaultR          = 0.0005
)

// FusionConfig holds the filter tunables. The zero value is not usable; start
// from DefaultFusionConfig.
type FusionConfig struct {
	GyroEnabled    bool
	AccelEnabled   bool
	CompassEnabled bool

	Policy     CorrectionPolicy
	SlerpPower float64 // slerp policy, 0..1
	Q          float64 // linear policy process noise
	R          float64 // linear policy measurement noise
}

// DefaultFusionConfig enables every sensor and uses the slerp policy.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		GyroEnabled:    true,
		AccelEnabled:   true,
		CompassEnabled: true,
		Policy:         PolicySlerp,
		SlerpPower:     DefaultSlerpPower,
		Q:              DefaultQ,
		R:              DefaultR,
	}
}

// Validate checks the policy and its gains.
func (c FusionConfig) Validate() error {
	if _, err := ParseCorrectionPolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.SlerpPower < 0 || c.SlerpPower > 1 || math.IsNaN(c.SlerpPower) {
		return errors.Errorf("slerp power must be within [0, 1], got %g", c.SlerpPower)
	}
	if c.Q < 0 {
		return errors.Errorf("Q must not be negative, got %g", c.Q)
	}
	if c.R <= 0 {
		return errors.Errorf("R must be positive, got %g", c.R)
	}
	return nil
}

// Fusion is a quaternion complementary filter: gyro rates are integrated to
// predict the attitude and the prediction is corrected towards the attitude
// measured from gravity and the magnetic field.
//
// Fusion is not safe for concurrent use; each physical sensor owns one.
type Fusion struct {
	cfg FusionConfig

	firstTime      bool
	lastFusionTime uint64

	fusionPose    spatialmath.Vector3
	fusionQPose   spatialmath.Quaternion
	measuredPose  spatialmath.Vector3
	measuredQPose spatialmath.Quaternion
}

// NewFusion validates cfg and returns a filter waiting for its first sample.
func NewFusion(cfg FusionConfig) (*Fusion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid fusion config")
	}
	cfg.Policy, _ = ParseCorrectionPolicy(string(cfg.Policy))
	f := &Fusion{cfg: cfg}
	f.Reset()
	return f, nil
}

// Reset zeroes the pose and makes the next sample seed the filter. Tunables and
// enable flags are kept.
func (f *Fusion) Reset() {
	f.firstTime = true
	f.fusionPose = spatialmath.Vector3{}
	f.fusionQPose = spatialmath.FromEuler(f.fusionPose)
	f.measuredPose = spatialmath.Vector3{}
	f.measuredQPose = spatialmath.FromEuler(f.measuredPose)
}

// Config returns the current tunables.
func (f *Fusion) Config() FusionConfig { return f.cfg }

func (f *Fusion) SetGyroEnabled(enabled bool)    { f.cfg.GyroEnabled = enabled }
func (f *Fusion) SetAccelEnabled(enabled bool)   { f.cfg.AccelEnabled = enabled }
func (f *Fusion) SetCompassEnabled(enabled bool) { f.cfg.CompassEnabled = enabled }

// SetSlerpPower changes the slerp gain without resetting. Values outside
// [0, 1] are ignored.
func (f *Fusion) SetSlerpPower(power float64) {
	if power >= 0 && power <= 1 {
		f.cfg.SlerpPower = power
	}
}

// SetQ changes the process noise and resets the filter. Negative values are
// ignored but still reset.
func (f *Fusion) SetQ(q float64) {
	if q >= 0 {
		f.cfg.Q = q
	}
	f.Reset()
}

// SetR changes the measurement noise and resets the filter. Non-positive
// values are ignored but still reset.
func (f *Fusion) SetR(r float64) {
	if r > 0 {
		f.cfg.R = r
	}
	f.Reset()
}

func (f *Fusion) corrector() Corrector {
	if f.cfg.Policy == PolicyLinear {
		return LinearCorrection{Q: f.cfg.Q, R: f.cfg.R}
	}
	return SlerpCorrection{Power: f.cfg.SlerpPower}
}

// Update feeds one corrected sample. timestamp is in milliseconds. The first
// sample after Reset seeds the pose from accel and compass; later samples with
// a timestamp not after the previous one are ignored.
func (f *Fusion) Update(gyro, accel, compass spatialmath.Vector3, timestamp uint64) {
	if f.firstTime {
		f.lastFusionTime = timestamp
		f.calculatePose(accel, compass)

		f.fusionQPose = spatialmath.FromEuler(f.measuredPose)
		f.fusionPose = f.measuredPose
		f.firstTime = false
		return
	}

	dt := float64(int64(timestamp-f.lastFusionTime)) / 1000
	f.lastFusionTime = timestamp
	if dt <= 0 {
		return
	}

	f.calculatePose(accel, compass)

	if !f.cfg.GyroEnabled {
		gyro = spatialmath.Vector3{}
	}
	half := gyro.Scale(0.5)
	rate := f.fusionQPose.Mul(spatialmath.Quaternion{X: half.X, Y: half.Y, Z: half.Z})
	f.fusionQPose = f.fusionQPose.Add(rate.Scale(dt))

	if f.cfg.AccelEnabled || f.cfg.CompassEnabled {
		f.fusionQPose = f.corrector().Correct(f.fusionQPose, f.measuredQPose, dt)
	}

	f.fusionQPose = f.fusionQPose.Normalize()
	f.fusionPose = f.fusionQPose.ToEuler()
}

// calculatePose derives the measured attitude from accel and compass, holding
// the fused angles for any disabled or missing input.
func (f *Fusion) calculatePose(accel, compass spatialmath.Vector3) {
	if f.cfg.AccelEnabled {
		f.measuredPose = spatialmath.AccelToEuler(accel)
	} else {
		f.measuredPose = f.fusionPose
	}

	if f.cfg.CompassEnabled && !compass.IsZero() {
		f.measuredPose.Z = spatialmath.TiltCompensatedYaw(f.measuredPose, compass)
	} else {
		f.measuredPose.Z = f.fusionPose.Z
	}

	f.measuredQPose = spatialmath.FromEuler(f.measuredPose)

	if aligned, flipped := alignToReference(f.measuredQPose, f.fusionQPose); flipped {
		f.measuredQPose = aligned
		f.measuredPose = aligned.ToEuler()
	}
}

// alignToReference negates q when its largest magnitude component has the
// opposite sign to the same component of ref. q and -q are the same rotation,
// so this only removes the sign ambiguity between successive estimates.
func alignToReference(q, ref spatialmath.Quaternion) (spatialmath.Quaternion, bool) {
	maxIndex := 0
	maxVal := -1.0
	for i := 0; i < 4; i++ {
		if v := math.Abs(q.Component(i)); v > maxVal {
			maxVal = v
			maxIndex = i
		}
	}

	qc := q.Component(maxIndex)
	rc := ref.Component(maxIndex)
	if (qc < 0 && rc > 0) || (qc > 0 && rc < 0) {
		return q.Negate(), true
	}
	return q, false
}

// FusionPose returns the fused roll, pitch and yaw in radians.
func (f *Fusion) FusionPose() spatialmath.Vector3 { return f.fusionPose }

// FusionQPose returns the fused attitude as a unit quaternion.
func (f *Fusion) FusionQPose() spatialmath.Quaternion { return f.fusionQPose }

// MeasuredPose returns the accel/compass attitude of the last sample in radians.
func (f *Fusion) MeasuredPose() spatialmath.Vector3 { return f.measuredPose }

// MeasuredQPose returns the accel/compass attitude of the last sample.
func (f *Fusion) MeasuredQPose() spatialmath.Quaternion { return f.measuredQPose }
